// Package transfer implements the GRASS file-transfer side channel:
// get and put each open a fresh ephemeral TCP listener, hand its port
// back to the session for inclusion in the control-connection reply,
// and service exactly one inbound connection on a detached worker
// goroutine with no back-reference to the session that requested it.
// Put reads are bounded by the negotiated size, and EOF is the only
// signal of a closed peer.
package transfer

import (
	"fmt"
	"os"
	"syscall"

	"github.com/grassproto/grass/internal/audit"
	"github.com/grassproto/grass/internal/metrics"
	"github.com/grassproto/grass/internal/netutil"
)

// Direction identifies which way bytes flow across the side channel.
type Direction int

const (
	// Get streams a file from the server to the connecting peer.
	Get Direction = iota
	// Put streams a file from the connecting peer to the server.
	Put
)

// Service bounds the number of concurrently in-flight get/put workers
// with a fixed-size pool. If the pool is full the caller gets an
// immediate rejection rather than an unbounded queue of detached
// workers.
type Service struct {
	sem     chan struct{}
	metrics *metrics.Registry
}

// New constructs a Service that allows at most maxInFlight concurrent
// transfer workers.
func New(maxInFlight int, m *metrics.Registry) *Service {
	return &Service{
		sem:     make(chan struct{}, maxInFlight),
		metrics: m,
	}
}

// ErrPoolFull is returned when every worker slot is occupied.
var ErrPoolFull = fmt.Errorf("transfer worker pool exhausted")

// StartGet opens the side channel for a get of path, returning the
// ephemeral port the client must dial and the file's size. The
// listener is guaranteed to be accepting connections before this
// function returns.
func (s *Service) StartGet(path, user, remote string) (port uint16, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return 0, 0, err
	}
	size = info.Size()

	select {
	case s.sem <- struct{}{}:
	default:
		f.Close()
		s.metrics.TransferWorkerRejected()
		return 0, 0, ErrPoolFull
	}

	listenFD, port, err := netutil.ListenEphemeral()
	if err != nil {
		<-s.sem
		f.Close()
		return 0, 0, err
	}

	fileFD := int(f.Fd())
	s.metrics.TransferWorkerStarted()
	go s.runGet(listenFD, fileFD, f, size, user, remote)

	return port, size, nil
}

// StartPut opens the side channel for a put that will write exactly
// size bytes to the file at absPath. The file is created (and
// truncated if it already existed) before the listener starts
// accepting.
func (s *Service) StartPut(absPath string, size int64, user, remote string) (port uint16, err error) {
	f, err := os.OpenFile(absPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC|syscall.O_NOFOLLOW, 0o640)
	if err != nil {
		return 0, err
	}

	select {
	case s.sem <- struct{}{}:
	default:
		f.Close()
		s.metrics.TransferWorkerRejected()
		return 0, ErrPoolFull
	}

	listenFD, port, err := netutil.ListenEphemeral()
	if err != nil {
		<-s.sem
		f.Close()
		return 0, err
	}

	s.metrics.TransferWorkerStarted()
	go s.runPut(listenFD, f, size, user, remote)

	return port, nil
}

func (s *Service) release(listenFD int, f *os.File) {
	netutil.Shutdown(listenFD)
	netutil.Close(listenFD)
	f.Close()
	s.metrics.TransferWorkerEnded()
	<-s.sem
}

func (s *Service) runGet(listenFD, fileFD int, f *os.File, size int64, user, remote string) {
	defer s.release(listenFD, f)

	dataFD, err := netutil.Accept(listenFD)
	if err != nil {
		s.metrics.IncStorageIOError("get")
		return
	}
	defer func() {
		netutil.Shutdown(dataFD)
		netutil.Close(dataFD)
	}()

	err = netutil.Sendfile(dataFD, fileFD, size)
	audit.Log(user, remote, "get_transfer", "", "", size, err)
	if err != nil {
		s.metrics.IncStorageIOError("get")
		return
	}
	s.metrics.AddBytesOut(size)
}

func (s *Service) runPut(listenFD int, f *os.File, size int64, user, remote string) {
	defer s.release(listenFD, f)

	dataFD, err := netutil.Accept(listenFD)
	if err != nil {
		s.metrics.IncStorageIOError("put")
		return
	}
	defer func() {
		netutil.Shutdown(dataFD)
		netutil.Close(dataFD)
	}()

	written, err := copyBounded(f, dataFD, size)
	audit.Log(user, remote, "put_transfer", "", "", written, err)
	if err != nil {
		s.metrics.IncStorageIOError("put")
		return
	}
	s.metrics.AddBytesIn(written)
}

// copyBounded reads from the (blocking) data socket into f until
// exactly size bytes have been written or the peer closes early.
func copyBounded(f *os.File, dataFD int, size int64) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64
	for total < size {
		want := len(buf)
		if remaining := size - total; remaining < int64(want) {
			want = int(remaining)
		}
		n, closed, err := netutil.Read(dataFD, buf[:want])
		if err != nil {
			if err == netutil.ErrWouldBlock {
				continue
			}
			return total, err
		}
		if closed {
			return total, fmt.Errorf("peer closed after %d of %d bytes", total, size)
		}
		if _, werr := f.Write(buf[:n]); werr != nil {
			return total, werr
		}
		total += int64(n)
	}
	return total, nil
}
