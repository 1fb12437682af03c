package ring

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// newPipe returns a connected read/write *os.File pair with the read
// end set non-blocking, mirroring the session control-connection fds
// LineBuffer is built to consume.
func newPipe(t *testing.T) (r, w *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(int(r.Fd()), true))
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	return r, w
}

func TestNextLineReturnsNoneWhenWouldBlock(t *testing.T) {
	r, _ := newPipe(t)
	var b LineBuffer

	line, ok, closed, err := b.NextLine(int(r.Fd()))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, closed)
	assert.Equal(t, "", line)
}

func TestNextLineAssemblesACompleteLine(t *testing.T) {
	r, w := newPipe(t)
	var b LineBuffer

	_, err := w.Write([]byte("hello world\n"))
	require.NoError(t, err)

	line, ok, closed, err := b.NextLine(int(r.Fd()))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, closed)
	assert.Equal(t, "hello world", line)
}

func TestNextLinePreservesCarriageReturn(t *testing.T) {
	r, w := newPipe(t)
	var b LineBuffer

	_, err := w.Write([]byte("hi\r\n"))
	require.NoError(t, err)

	line, ok, _, err := b.NextLine(int(r.Fd()))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hi\r", line)
}

func TestNextLineSplitsMultipleLinesAcrossCalls(t *testing.T) {
	r, w := newPipe(t)
	var b LineBuffer

	_, err := w.Write([]byte("one\ntwo\nthree\n"))
	require.NoError(t, err)

	var got []string
	for i := 0; i < 3; i++ {
		line, ok, _, err := b.NextLine(int(r.Fd()))
		require.NoError(t, err)
		require.True(t, ok)
		got = append(got, line)
	}
	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func TestNextLineHandlesPartialLineAcrossPulls(t *testing.T) {
	r, w := newPipe(t)
	var b LineBuffer

	_, err := w.Write([]byte("partial-"))
	require.NoError(t, err)
	line, ok, closed, err := b.NextLine(int(r.Fd()))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, closed)
	assert.Equal(t, "", line)

	_, err = w.Write([]byte("line\n"))
	require.NoError(t, err)
	line, ok, _, err = b.NextLine(int(r.Fd()))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "partial-line", line)
}

func TestNextLineReportsClosedOnEOF(t *testing.T) {
	r, w := newPipe(t)
	var b LineBuffer

	w.Close()

	line, ok, closed, err := b.NextLine(int(r.Fd()))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, closed)
	assert.Equal(t, "", line)
}

func TestExactly4095ByteLineIsAccepted(t *testing.T) {
	r, w := newPipe(t)
	var b LineBuffer

	payload := strings.Repeat("x", capacity-1)
	_, err := w.Write([]byte(payload))
	require.NoError(t, err)
	_, err = w.Write([]byte("\n"))
	require.NoError(t, err)

	var line string
	var ok bool
	for i := 0; i < 4 && !ok; i++ {
		var lerr error
		line, ok, _, lerr = b.NextLine(int(r.Fd()))
		require.NoError(t, lerr)
	}
	require.True(t, ok)
	assert.Equal(t, payload, line)
}

func TestFullReportsOverflowWhenNoNewlineFits(t *testing.T) {
	r, w := newPipe(t)
	var b LineBuffer

	// A pipe's kernel buffer is bounded (commonly 64KiB); write in
	// chunks so this never blocks regardless of that limit, feeding
	// the ring far past its own capacity with no newline anywhere.
	chunk := strings.Repeat("x", capacity)
	for i := 0; i < 4; i++ {
		_, err := w.Write([]byte(chunk))
		require.NoError(t, err)

		for j := 0; j < 4; j++ {
			_, ok, _, lerr := b.NextLine(int(r.Fd()))
			require.NoError(t, lerr)
			require.False(t, ok)
		}
	}
	assert.True(t, b.Full())
}
