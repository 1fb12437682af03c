// Package session implements the GRASS per-connection state machine:
// the login handshake, command parsing and dispatch, and the
// line-protocol reply framing.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/grassproto/grass/internal/audit"
	"github.com/grassproto/grass/internal/metrics"
	"github.com/grassproto/grass/internal/netutil"
	"github.com/grassproto/grass/internal/ring"
	"github.com/grassproto/grass/internal/sandbox"
	"github.com/grassproto/grass/internal/transfer"
)

type authState int

const (
	stateAnonymous authState = iota
	stateAwaitingPassword
	stateAuthenticated
)

// Session holds everything the dispatcher needs to drive one accepted
// connection. Only the dispatcher goroutine ever touches a Session;
// file-transfer workers spawned on its behalf hold no reference back
// to it.
type Session struct {
	fd          int
	remote      string
	connectedAt time.Time

	buffer ring.LineBuffer
	sb     *sandbox.Sandbox

	state         authState
	user          string
	attemptedUser string

	checkLogin func(username, password string) bool
	listUsers  func() []string

	transfers *transfer.Service
	metrics   *metrics.Registry
}

// New constructs a Session for a freshly accepted, already
// non-blocking connection fd. checkLogin and listUsers are the narrow
// capabilities the dispatcher grants in place of a back-reference to
// itself or to the server config.
func New(fd int, remote, baseDir string, checkLogin func(string, string) bool, listUsers func() []string, transfers *transfer.Service, m *metrics.Registry) *Session {
	return &Session{
		fd:          fd,
		remote:      remote,
		connectedAt: time.Now(),
		sb:          sandbox.New(baseDir),
		checkLogin:  checkLogin,
		listUsers:   listUsers,
		transfers:   transfers,
		metrics:     m,
	}
}

// Fd returns the underlying control-connection file descriptor.
func (s *Session) Fd() int { return s.fd }

// Remote returns the peer address string the session was accepted from.
func (s *Session) Remote() string { return s.remote }

// ConnectedAt returns when the session was constructed.
func (s *Session) ConnectedAt() time.Time { return s.connectedAt }

// Cwd returns the session's current working directory, relative to
// base_dir, for introspection (the admin HTTP surface's session list).
func (s *Session) Cwd() string { return s.sb.Cwd() }

// User returns the authenticated username, or "" if not authenticated.
// Callers that only want a display string (the admin surface) use this
// instead of AuthenticatedUser.
func (s *Session) User() string { return s.user }

// AuthenticatedUser reports the logged-in username, if any. The
// dispatcher calls this across every live session to answer `w`
// without Session ever seeing the session table itself.
func (s *Session) AuthenticatedUser() (string, bool) {
	if s.state != stateAuthenticated {
		return "", false
	}
	return s.user, true
}

// OnReadable drains every complete line currently available on fd,
// executes each, and writes its reply. It returns terminate=true when
// the peer closed, the client sent exit, or a buffer overflow, read
// error or reply write error makes the session unrecoverable; err is
// non-nil only for the last of these.
func (s *Session) OnReadable() (terminate bool, err error) {
	for {
		line, ok, closed, err := s.buffer.NextLine(s.fd)
		if err != nil {
			return true, err
		}
		if !ok {
			if closed {
				return true, nil
			}
			if s.buffer.Full() {
				return true, fmt.Errorf("line buffer overflow")
			}
			return false, nil
		}

		exit, reply := s.execute(line)
		if exit {
			return true, nil
		}
		if werr := netutil.WriteFull(s.fd, []byte(reply+"\n")); werr != nil {
			return true, werr
		}
	}
}

// execute runs a single decoded line through the state machine and
// returns the reply to write (already carrying its own trailing "\n"
// when non-empty; the caller appends the reply terminator) along with
// whether the session should terminate (the exit command).
func (s *Session) execute(line string) (terminate bool, reply string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, ""
	}
	cmd, args := fields[0], fields[1:]

	if cmd == "exit" {
		return true, ""
	}

	switch s.state {
	case stateAwaitingPassword:
		// The only universal short-circuit is exit: anything but pass
		// here (ping included) interrupts the login in progress.
		return false, s.handlePassword(cmd, args)
	case stateAnonymous:
		switch cmd {
		case "login":
			return false, s.handleLogin(args)
		case "ping":
			return false, s.cmdPing(args)
		}
		if isPrivileged(cmd) {
			return false, formatError(cmd, newErr(KindAccessDenied))
		}
		return false, formatError(cmd, newErr(KindInvalidCommand))
	case stateAuthenticated:
		return false, s.dispatchAuthenticated(cmd, args)
	}
	return false, formatError(cmd, newErr(KindInvalidCommand))
}

var privilegedCommands = map[string]bool{
	"ls": true, "cd": true, "mkdir": true, "rm": true,
	"get": true, "put": true, "grep": true, "date": true,
	"whoami": true, "w": true, "logout": true,
}

func isPrivileged(cmd string) bool { return privilegedCommands[cmd] }

func (s *Session) handleLogin(args []string) string {
	if len(args) != 1 {
		return formatError("login", newErr(KindMissingArguments))
	}
	s.attemptedUser = args[0]
	s.state = stateAwaitingPassword
	return ""
}

func (s *Session) handlePassword(cmd string, args []string) string {
	user := s.attemptedUser
	s.attemptedUser = ""

	if cmd != "pass" || len(args) != 1 {
		s.state = stateAnonymous
		return "Login interrupted\n"
	}

	start := time.Now()
	ok := s.checkLogin(user, args[0])
	result := metrics.AuthOK
	if !ok {
		result = metrics.AuthFailed
	}
	s.metrics.ObserveAuth(result, time.Since(start))
	audit.Log(user, s.remote, "login", "", "", 0, loginErr(ok))

	if !ok {
		s.state = stateAnonymous
		return "Wrong credentials\n"
	}
	s.state = stateAuthenticated
	s.user = user
	return ""
}

func loginErr(ok bool) error {
	if ok {
		return nil
	}
	return fmt.Errorf("wrong credentials")
}

func (s *Session) dispatchAuthenticated(cmd string, args []string) string {
	start := time.Now()
	reply := s.runAuthenticated(cmd, args)
	result := "ok"
	if strings.HasPrefix(reply, "Error:") {
		result = "error"
	}
	s.metrics.ObserveOp(cmd, result, time.Since(start))
	return reply
}

func (s *Session) runAuthenticated(cmd string, args []string) string {
	switch cmd {
	case "logout":
		s.user = ""
		s.state = stateAnonymous
		return ""
	case "ls":
		return s.cmdLs(args)
	case "cd":
		return s.cmdCd(args)
	case "mkdir":
		return s.cmdMkdir(args)
	case "rm":
		return s.cmdRm(args)
	case "get":
		return s.cmdGet(args)
	case "put":
		return s.cmdPut(args)
	case "grep":
		return s.cmdGrep(args)
	case "date":
		return s.cmdDate(args)
	case "whoami":
		return s.cmdWhoami(args)
	case "w":
		return s.cmdW(args)
	case "ping":
		return s.cmdPing(args)
	default:
		return formatError(cmd, newErr(KindInvalidCommand))
	}
}

func formatError(cmd string, err error) string {
	return fmt.Sprintf("Error: %s: %s\n", cmd, messageFor(err))
}
