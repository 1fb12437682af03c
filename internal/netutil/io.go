package netutil

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ErrWouldBlock is returned by Read when a non-blocking fd has nothing
// available right now. Callers must treat it as "no data yet", not a
// failure.
var ErrWouldBlock = errors.New("netutil: read would block")

// Read performs a single non-blocking read into buf. It returns
// (n, false, nil) on data, (0, false, ErrWouldBlock) when nothing is
// available yet, and (0, true, nil) when the peer closed the
// connection (a zero-length read, i.e. EOF).
func Read(fd int, buf []byte) (n int, closed bool, err error) {
	n, err = unix.Read(fd, buf)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return 0, false, ErrWouldBlock
		}
		return 0, false, fmt.Errorf("read: %w", err)
	}
	if n == 0 {
		return 0, true, nil
	}
	return n, false, nil
}

// WriteFull blocks until all of buf has been written to fd, or an
// error (including EPIPE, when the peer has gone away) occurs. Session
// fds are in non-blocking mode for the reader's sake, so a write that
// would block surfaces as EAGAIN rather than actually blocking the
// thread; WriteFull waits for writability and retries, keeping reply
// writes effectively blocking without spinning the dispatcher.
func WriteFull(fd int, buf []byte) error {
	for len(buf) > 0 {
		n, err := unix.Write(fd, buf)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
				if werr := waitWritable(fd); werr != nil {
					return werr
				}
				continue
			}
			return fmt.Errorf("write: %w", err)
		}
		buf = buf[n:]
	}
	return nil
}

// waitWritable blocks until fd is writable (or errored/hung-up),
// using poll(2) so the retry in WriteFull never spins the CPU.
func waitWritable(fd int) error {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	for {
		_, err := unix.Poll(fds, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("poll: %w", err)
		}
		return nil
	}
}
