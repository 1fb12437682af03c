package netutil

import (
	"errors"

	"golang.org/x/sys/unix"
)

// ReadySet is a thin wrapper around unix.FdSet, rebuilt by the
// dispatcher before every select() call.
type ReadySet struct {
	set unix.FdSet
	max int
}

// Reset clears the set.
func (r *ReadySet) Reset() {
	r.set = unix.FdSet{}
	r.max = 0
}

// Add registers fd as a candidate for readiness.
func (r *ReadySet) Add(fd int) {
	idx := fd / 64
	bit := uint(fd % 64)
	r.set.Bits[idx] |= 1 << bit
	if fd > r.max {
		r.max = fd
	}
}

// IsSet reports whether fd was marked ready by the last Wait call.
func (r *ReadySet) IsSet(fd int) bool {
	idx := fd / 64
	bit := uint(fd % 64)
	return r.set.Bits[idx]&(1<<bit) != 0
}

// Wait blocks until at least one fd previously Add-ed is readable,
// with no timeout. On return, the set holds only the fds that are
// actually ready.
func (r *ReadySet) Wait() error {
	// select(2) is interrupted by signals even with SA_RESTART, and the
	// Go runtime delivers preemption signals to every thread; an EINTR
	// here means retry, not a fatal dispatcher error.
	saved := r.set
	for {
		_, err := unix.Select(r.max+1, &r.set, nil, nil, nil)
		if err == nil {
			return nil
		}
		if !errors.Is(err, unix.EINTR) {
			return err
		}
		r.set = saved
	}
}
