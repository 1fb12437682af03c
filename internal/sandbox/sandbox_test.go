package sandbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeRejectsAbsolutePaths(t *testing.T) {
	sb := New("/base")
	_, err := sb.Tokenize("/etc/passwd")
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestTokenizeRejectsEscapeAtRoot(t *testing.T) {
	sb := New("/base")
	_, err := sb.Tokenize("..")
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestTokenizeIgnoresDotAndEmptySegments(t *testing.T) {
	sb := New("/base")
	segs, err := sb.Tokenize("a/./b//c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, segs)
}

func TestMkdirCdDotDotRoundTrip(t *testing.T) {
	sb := New("/base")
	segs, err := sb.Tokenize("d")
	require.NoError(t, err)
	sb.Update(segs)
	assert.Equal(t, "d", sb.Cwd())

	segs, err = sb.Tokenize("..")
	require.NoError(t, err)
	sb.Update(segs)
	assert.Equal(t, "", sb.Cwd())
}

func TestJoinRejectsPathOver128Bytes(t *testing.T) {
	// base + "/" + segment == 128 exactly must be accepted; 129 must fail.
	base := "/" + strings.Repeat("a", 99) // len 100
	sb := New(base)

	seg27 := strings.Repeat("b", 27)
	abs, err := sb.Join([]string{seg27})
	require.NoError(t, err)
	assert.Len(t, abs, 128)

	seg28 := strings.Repeat("b", 28)
	_, err = sb.Join([]string{seg28})
	assert.ErrorIs(t, err, ErrPathTooLong)
}

func TestResolveDoesNotMutateCwd(t *testing.T) {
	sb := New("/base")
	_, err := sb.Resolve("sub/dir")
	require.NoError(t, err)
	assert.Equal(t, "", sb.Cwd())
}

func TestExtractFilenameStripsPrefix(t *testing.T) {
	assert.Equal(t, "report.txt", ExtractFilename("some/nested/report.txt"))
	assert.Equal(t, "report.txt", ExtractFilename("report.txt"))
}

func TestValidateSegmentName(t *testing.T) {
	assert.NoError(t, ValidateSegmentName("My_Dir-1"))
	assert.Error(t, ValidateSegmentName(""))
	assert.Error(t, ValidateSegmentName("has space"))
	assert.Error(t, ValidateSegmentName("slash/here"))
}
