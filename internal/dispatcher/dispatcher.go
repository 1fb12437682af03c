// Package dispatcher implements the GRASS server's single-threaded,
// readiness-based event loop: it owns the listening socket and the
// table mapping connection fd to Session, and is the only goroutine
// that ever mutates either. File-transfer workers spawned on a
// session's behalf share no state with it.
package dispatcher

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/grassproto/grass/internal/config"
	"github.com/grassproto/grass/internal/metrics"
	"github.com/grassproto/grass/internal/netutil"
	"github.com/grassproto/grass/internal/session"
	"github.com/grassproto/grass/internal/transfer"
)

// SessionSnapshot is a point-in-time, read-only copy of one session's
// introspectable state, published for the admin HTTP surface so it
// never touches live Session data from another goroutine.
type SessionSnapshot struct {
	Remote      string    `json:"remote"`
	User        string    `json:"user"`
	Cwd         string    `json:"cwd"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// Dispatcher is the GRASS control-plane event loop.
type Dispatcher struct {
	cfg       *config.ServerConfig
	transfers *transfer.Service
	metrics   *metrics.Registry

	listenFD int
	ready    netutil.ReadySet
	sessions map[int]*session.Session

	snapshot atomic.Pointer[[]SessionSnapshot]
}

// New binds and listens on cfg.Port, returning a Dispatcher ready to
// Run. The listening socket is created here, not in Run, so New's
// error return covers every startup failure the process must exit
// non-zero on.
func New(cfg *config.ServerConfig, transfers *transfer.Service, m *metrics.Registry) (*Dispatcher, error) {
	fd, err := netutil.CreateSocket()
	if err != nil {
		return nil, err
	}
	if err := netutil.Bind(fd, cfg.Port); err != nil {
		netutil.Close(fd)
		return nil, err
	}
	if err := netutil.Listen(fd); err != nil {
		netutil.Close(fd)
		return nil, err
	}

	d := &Dispatcher{
		cfg:       cfg,
		transfers: transfers,
		metrics:   m,
		listenFD:  fd,
		sessions:  make(map[int]*session.Session),
	}
	empty := []SessionSnapshot{}
	d.snapshot.Store(&empty)
	return d, nil
}

// Close shuts down the listening socket. Safe to call once Run has
// returned.
func (d *Dispatcher) Close() {
	netutil.Close(d.listenFD)
}

// Port reports the port the listening socket is bound to, useful
// both for logging and for tests that bind cfg.Port=0 to get an
// OS-assigned port.
func (d *Dispatcher) Port() (uint16, error) {
	return netutil.Port(d.listenFD)
}

// Snapshot returns the most recently published session list, safe for
// concurrent use by the admin HTTP surface.
func (d *Dispatcher) Snapshot() []SessionSnapshot {
	return *d.snapshot.Load()
}

// Run blocks forever, driving the readiness loop. It returns only on
// a fatal dispatcher-level error (a readiness-primitive failure).
func (d *Dispatcher) Run() error {
	for {
		d.ready.Reset()
		d.ready.Add(d.listenFD)
		for fd := range d.sessions {
			d.ready.Add(fd)
		}

		if err := d.ready.Wait(); err != nil {
			return fmt.Errorf("dispatcher: readiness wait: %w", err)
		}

		if d.ready.IsSet(d.listenFD) {
			d.acceptOne()
		}

		for fd, sess := range d.sessions {
			if !d.ready.IsSet(fd) {
				continue
			}
			d.service(fd, sess)
		}

		d.publishSnapshot()
	}
}

func (d *Dispatcher) acceptOne() {
	fd, err := netutil.Accept(d.listenFD)
	if err != nil {
		log.Printf("dispatcher: accept error: %v", err)
		return
	}
	if err := netutil.SetNonblocking(fd, true); err != nil {
		log.Printf("dispatcher: set nonblocking error: %v", err)
		netutil.Close(fd)
		return
	}

	remote := netutil.PeerAddr(fd)
	sess := session.New(fd, remote, d.cfg.BaseDir, d.cfg.CheckLogin, d.listUsers, d.transfers, d.metrics)
	d.sessions[fd] = sess
	d.metrics.SessionStarted()
}

// service drains every complete line currently available on sess,
// writing "Error: <what>\n" best-effort for a session-fatal error
// before evicting it.
func (d *Dispatcher) service(fd int, sess *session.Session) {
	terminate, err := sess.OnReadable()
	if err != nil {
		_ = netutil.WriteFull(fd, []byte(fmt.Sprintf("Error: %v\n", err)))
	}
	if terminate {
		d.evict(fd)
	}
}

func (d *Dispatcher) evict(fd int) {
	delete(d.sessions, fd)
	netutil.Shutdown(fd)
	netutil.Close(fd)
	d.metrics.SessionEnded("closed")
}

// listUsers returns the authenticated username of every live session,
// unsorted (`w` sorts its own copy). Sessions get this as a narrow
// capability instead of a session-table back-reference.
func (d *Dispatcher) listUsers() []string {
	names := make([]string, 0, len(d.sessions))
	for _, sess := range d.sessions {
		if u, ok := sess.AuthenticatedUser(); ok {
			names = append(names, u)
		}
	}
	return names
}

func (d *Dispatcher) publishSnapshot() {
	snap := make([]SessionSnapshot, 0, len(d.sessions))
	for _, sess := range d.sessions {
		snap = append(snap, SessionSnapshot{
			Remote:      sess.Remote(),
			User:        sess.User(),
			Cwd:         sess.Cwd(),
			ConnectedAt: sess.ConnectedAt(),
		})
	}
	d.snapshot.Store(&snap)
}
