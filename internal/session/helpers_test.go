package session_test

import (
	"io"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func dial(port int) (net.Conn, error) {
	return net.DialTimeout("tcp", "127.0.0.1:"+strconv.Itoa(port), 2*time.Second)
}

func readFull(t *testing.T, r io.Reader, buf []byte) {
	t.Helper()
	_, err := io.ReadFull(r, buf)
	require.NoError(t, err)
}

func waitForFile(t *testing.T, path string, size int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if info, err := os.Stat(path); err == nil && info.Size() == int64(size) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s to reach %d bytes", path, size)
}
