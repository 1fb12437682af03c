package netutil

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Sendfile streams exactly size bytes from srcFD (a regular file) to
// dstFD (a connected socket) using the sendfile(2) zero-copy kernel
// transfer, looping over partial transfers and EINTR.
func Sendfile(dstFD, srcFD int, size int64) error {
	var off int64
	for off < size {
		n, err := unix.Sendfile(dstFD, srcFD, &off, int(size-off))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("sendfile: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("sendfile: source ended before transfer completed")
		}
	}
	return nil
}
