package netutil_test

import "golang.org/x/sys/unix"

// dial connects fd to 127.0.0.1:port using the same raw syscalls the
// package under test is built on, so these tests never pull in net.Conn.
func dial(fd int, port uint16) error {
	return unix.Connect(fd, &unix.SockaddrInet4{Port: int(port), Addr: [4]byte{127, 0, 0, 1}})
}
