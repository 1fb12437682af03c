package session

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/grassproto/grass/internal/audit"
	"github.com/grassproto/grass/internal/grep"
	"github.com/grassproto/grass/internal/sandbox"
)

// ls lists the current directory in a human-readable long form: one
// line per entry, trailing newline on every line including the last.
func (s *Session) cmdLs(_ []string) string {
	cwdAbs, err := s.sb.Resolve("")
	if err != nil {
		return formatError("ls", err)
	}
	entries, err := os.ReadDir(cwdAbs)
	if err != nil {
		return formatError("ls", newErr(KindIOFailure))
	}

	var b strings.Builder
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "%s\t%8d\t%s\t%s\n", info.Mode().String(), info.Size(), info.ModTime().Format("Jan _2 15:04"), e.Name())
	}
	return b.String()
}

func (s *Session) cmdCd(args []string) string {
	if len(args) != 1 {
		return formatError("cd", newErr(KindMissingArguments))
	}
	segs, err := s.sb.Tokenize(args[0])
	if err != nil {
		return formatError("cd", err)
	}
	abs, err := s.sb.Join(segs)
	if err != nil {
		return formatError("cd", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return formatError("cd", newErr(KindNoSuchEntry))
	}
	if !info.IsDir() {
		return formatError("cd", newErr(KindNotADirectory))
	}
	s.sb.Update(segs)
	return ""
}

func (s *Session) cmdMkdir(args []string) string {
	if len(args) != 1 {
		return formatError("mkdir", newErr(KindMissingArguments))
	}
	name := args[0]
	if err := sandbox.ValidateSegmentName(name); err != nil {
		return formatError("mkdir", newErr(KindInvalidName))
	}
	abs, err := s.sb.Resolve(name)
	if err != nil {
		return formatError("mkdir", err)
	}
	if err := os.Mkdir(abs, 0o755); err != nil {
		switch {
		case os.IsExist(err):
			return formatError("mkdir", newErr(KindAlreadyExists))
		case os.IsNotExist(err):
			return formatError("mkdir", newErr(KindNoSuchEntry))
		default:
			return formatError("mkdir", newErr(KindIOFailure))
		}
	}
	return ""
}

func (s *Session) cmdRm(args []string) string {
	if len(args) != 1 {
		return formatError("rm", newErr(KindMissingArguments))
	}
	rel := args[0]
	if rel == "." || rel == ".." {
		return formatError("rm", newErr(KindAccessDenied))
	}
	abs, err := s.sb.Resolve(rel)
	if err != nil {
		return formatError("rm", err)
	}
	if _, err := os.Lstat(abs); err != nil {
		return formatError("rm", newErr(KindNoSuchEntry))
	}
	// Best effort: entries that fail to remove (permissions, races) are
	// skipped rather than aborting the whole subtree.
	_ = os.RemoveAll(abs)
	return ""
}

func (s *Session) cmdGet(args []string) string {
	if len(args) != 1 {
		return formatError("get", newErr(KindMissingArguments))
	}
	abs, err := s.sb.Resolve(args[0])
	if err != nil {
		return formatError("get", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return formatError("get", newErr(KindNoSuchEntry))
	}
	if !info.Mode().IsRegular() {
		return formatError("get", newErr(KindNotAFile))
	}

	port, size, err := s.transfers.StartGet(abs, s.user, s.remote)
	if err != nil {
		return formatError("get", newErr(KindIOFailure))
	}
	return fmt.Sprintf("get port: %d size: %d\n", port, size)
}

func (s *Session) cmdPut(args []string) string {
	if len(args) != 2 {
		return formatError("put", newErr(KindMissingArguments))
	}
	size, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || size <= 0 {
		return formatError("put", newErr(KindInvalidSize))
	}

	filename := sandbox.ExtractFilename(args[0])
	abs, err := s.sb.Resolve(filename)
	if err != nil {
		return formatError("put", err)
	}

	port, err := s.transfers.StartPut(abs, size, s.user, s.remote)
	if err != nil {
		return formatError("put", newErr(KindIOFailure))
	}
	return fmt.Sprintf("put port: %d\n", port)
}

func (s *Session) cmdGrep(args []string) string {
	if len(args) != 1 {
		return formatError("grep", newErr(KindMissingArguments))
	}
	cwdAbs, err := s.sb.Resolve("")
	if err != nil {
		return formatError("grep", err)
	}
	matches, err := grep.SearchDirectory(cwdAbs, args[0])
	if err != nil {
		return formatError("grep", newErr(KindInvalidCommand))
	}

	var b strings.Builder
	for _, m := range matches {
		b.WriteString(m)
		b.WriteByte('\n')
	}
	return b.String()
}

func (s *Session) cmdDate(_ []string) string {
	return time.Now().Format("Mon Jan 02 15:04:05 MST 2006") + "\n"
}

func (s *Session) cmdWhoami(_ []string) string {
	return s.user + "\n"
}

func (s *Session) cmdW(_ []string) string {
	names := s.listUsers()
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	var b strings.Builder
	for _, n := range sorted {
		b.WriteString(n)
		b.WriteByte(' ')
	}
	b.WriteByte('\n')
	return b.String()
}

var hostnamePattern = regexp.MustCompile(`^[a-z0-9.\-:]+$`)

// cmdPing does not require authentication. It invokes the system ping
// with a positional argument vector rather than through a shell, so a
// validated hostname can never smuggle extra arguments in.
func (s *Session) cmdPing(args []string) string {
	if len(args) != 1 {
		return formatError("ping", newErr(KindMissingArguments))
	}
	host := args[0]
	if !hostnamePattern.MatchString(host) {
		return formatError("ping", newErr(KindInvalidHostname))
	}

	out, err := exec.Command("ping", "-c", "1", host).CombinedOutput()
	audit.Log(s.user, s.remote, "ping", host, "", 0, err)

	text := string(out)
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return text
}
