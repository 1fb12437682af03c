// Package ring implements the GRASS line reassembler: a fixed-capacity
// ring buffer that turns a raw byte stream into a sequence of
// newline-terminated lines, one non-blocking read at a time.
package ring

import (
	"github.com/grassproto/grass/internal/netutil"
)

// capacity is the size of the backing array. At most capacity-1 bytes
// are ever live, so read_idx == write_idx unambiguously means empty.
const capacity = 4096

// LineBuffer reassembles complete lines out of a byte stream read from
// a single non-blocking file descriptor.
type LineBuffer struct {
	buf      [capacity]byte
	readIdx  int
	writeIdx int
}

// NextLine returns the next complete line (without its trailing \n; a
// trailing \r is preserved), pulling from fd without blocking if the
// buffer doesn't already hold a full line. closed is true iff fd
// reported EOF during this call. A would-block pull is not an error:
// it yields ("", false, false, nil).
//
// When the buffer is full with no newline, one more byte is read: a
// newline completes the capacity-1 held bytes as a line; any other
// byte is discarded and the buffer stays Full.
func (b *LineBuffer) NextLine(fd int) (line string, ok bool, closed bool, err error) {
	if idx, found := b.findNewline(); found {
		return b.consume(idx), true, false, nil
	}

	closed, err = b.receiveFromSocket(fd)
	if err != nil {
		return "", false, false, err
	}

	if idx, found := b.findNewline(); found {
		return b.consume(idx), true, closed, nil
	}

	if !closed && b.full() {
		var next [1]byte
		n, eof, perr := netutil.Read(fd, next[:])
		if perr != nil && perr != netutil.ErrWouldBlock {
			return "", false, false, perr
		}
		if n == 1 && next[0] == '\n' {
			line = b.consume(b.writeIdx)
			b.writeIdx = b.readIdx
			return line, true, false, nil
		}
		closed = eof
	}

	return "", false, closed, nil
}

func (b *LineBuffer) empty() bool {
	return b.readIdx == b.writeIdx
}

func (b *LineBuffer) full() bool {
	return b.readIdx == (b.writeIdx+1)%capacity
}

func (b *LineBuffer) findNewline() (int, bool) {
	for i := b.readIdx; i != b.writeIdx; i = (i + 1) % capacity {
		if b.buf[i] == '\n' {
			return i, true
		}
	}
	return 0, false
}

// receiveFromSocket fills free space in the buffer with one or two
// non-blocking reads (two only when the free region wraps around the
// end of the array and the first read fully consumed its segment,
// indicating more bytes may still be pending). The total bytes pulled
// across both reads is always bounded by the true free space
// (capacity-1 minus live bytes) so the buffer can never be driven past
// the one-byte-short-of-full invariant that keeps empty and full
// distinguishable.
func (b *LineBuffer) receiveFromSocket(fd int) (closed bool, err error) {
	if b.writeIdx < b.readIdx {
		// Free region does not wrap: a single straight-line read.
		maxRecv := b.readIdx - b.writeIdx - 1
		if maxRecv == 0 {
			return false, nil
		}
		n, eof, err := netutil.Read(fd, b.buf[b.writeIdx:b.writeIdx+maxRecv])
		if err != nil {
			if err == netutil.ErrWouldBlock {
				return false, nil
			}
			return false, err
		}
		if eof {
			return true, nil
		}
		b.writeIdx += n
		return false, nil
	}

	// writeIdx >= readIdx: the free region runs from writeIdx to the end
	// of the array and then (if any remains) wraps to index 0, stopping
	// one byte short of readIdx.
	live := b.writeIdx - b.readIdx
	free := capacity - 1 - live
	if free == 0 {
		return false, nil
	}
	segment := capacity - b.writeIdx
	if segment > free {
		segment = free
	}

	n, eof, err := netutil.Read(fd, b.buf[b.writeIdx:b.writeIdx+segment])
	if err != nil {
		if err == netutil.ErrWouldBlock {
			return false, nil
		}
		return false, err
	}
	if eof {
		return true, nil
	}
	b.writeIdx = (b.writeIdx + n) % capacity

	if n == segment && segment < free {
		// Filled exactly to the array end with more free space still
		// wrapped at the front; probe once more for pending bytes.
		return b.receiveFromSocket(fd)
	}
	return false, nil
}

// consume removes and returns the bytes from readIdx up to (but not
// including) end, then advances readIdx past the newline at end.
func (b *LineBuffer) consume(end int) string {
	if end >= b.readIdx {
		line := string(b.buf[b.readIdx:end])
		b.readIdx = (end + 1) % capacity
		return line
	}

	head := string(b.buf[b.readIdx:capacity])
	b.readIdx = 0
	return head + b.consume(end)
}

// Full reports whether the buffer currently holds a maximal, still
// newline-free run of bytes. A line that cannot fit is a protocol
// violation; callers must close the connection rather than stall.
func (b *LineBuffer) Full() bool {
	return b.full()
}
