// Package netutil wraps the raw POSIX socket calls GRASS is built on:
// plain AF_INET/SOCK_STREAM sockets, manipulated directly through
// golang.org/x/sys/unix rather than net.Listener/net.Conn, so that the
// control-plane dispatcher can multiplex them with a single select()
// call instead of one goroutine per connection.
package netutil

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// backlogSize bounds the number of pending connections the kernel will
// queue for us before a listen-side accept call is made.
const backlogSize = 128

// CreateSocket allocates a non-blocking-capable TCP/IPv4 socket with
// SO_REUSEADDR set.
func CreateSocket() (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, fmt.Errorf("create socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("set SO_REUSEADDR: %w", err)
	}
	return fd, nil
}

// Bind binds fd to port on all interfaces. port == 0 requests an
// OS-assigned ephemeral port.
func Bind(fd int, port uint16) error {
	sa := &unix.SockaddrInet4{Port: int(port)}
	if err := unix.Bind(fd, sa); err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	return nil
}

// Port returns the local port fd is bound to (used after binding to
// port 0 to discover the OS-assigned ephemeral port).
func Port(fd int) (uint16, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0, fmt.Errorf("getsockname: %w", err)
	}
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return 0, fmt.Errorf("getsockname: unexpected address family")
	}
	return uint16(in4.Port), nil
}

// Listen marks fd as a listening socket.
func Listen(fd int) error {
	if err := unix.Listen(fd, backlogSize); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Accept accepts exactly one pending connection on fd.
func Accept(fd int) (int, error) {
	nfd, _, err := unix.Accept(fd)
	if err != nil {
		return -1, fmt.Errorf("accept: %w", err)
	}
	return nfd, nil
}

// SetNonblocking toggles O_NONBLOCK on fd.
func SetNonblocking(fd int, nonblocking bool) error {
	if err := unix.SetNonblock(fd, nonblocking); err != nil {
		return fmt.Errorf("set nonblocking: %w", err)
	}
	return nil
}

// Shutdown shuts down both directions of fd. Errors are not
// actionable by callers (the descriptor is being torn down either
// way) so this never returns one.
func Shutdown(fd int) {
	_ = unix.Shutdown(fd, unix.SHUT_RDWR)
}

// Close closes fd.
func Close(fd int) {
	_ = unix.Close(fd)
}

// PeerAddr returns a human-readable "ip:port" string for the remote
// end of a connected socket, or "" if it cannot be determined. Never
// fatal; it is only used for logging and session introspection.
func PeerAddr(fd int) string {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return ""
	}
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%d.%d.%d.%d:%d", in4.Addr[0], in4.Addr[1], in4.Addr[2], in4.Addr[3], in4.Port)
}

// ListenEphemeral creates, binds to an OS-assigned port, and starts
// listening on a fresh socket in one step. Used by the file-transfer
// side channel, which always wants a throwaway listener.
func ListenEphemeral() (fd int, port uint16, err error) {
	fd, err = CreateSocket()
	if err != nil {
		return -1, 0, err
	}
	if err := Bind(fd, 0); err != nil {
		Close(fd)
		return -1, 0, err
	}
	port, err = Port(fd)
	if err != nil {
		Close(fd)
		return -1, 0, err
	}
	if err := Listen(fd); err != nil {
		Close(fd)
		return -1, 0, err
	}
	return fd, port, nil
}
