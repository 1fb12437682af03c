package audit_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grassproto/grass/internal/audit"
)

func TestLogEmitsSuccessEvent(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	audit.Log("alice", "127.0.0.1:1", "get_transfer", "hi.txt", "", 5, nil)

	var ev map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &ev))
	assert.Equal(t, "alice", ev["user"])
	assert.Equal(t, "get_transfer", ev["action"])
	assert.Equal(t, true, ev["success"])
	assert.Equal(t, float64(5), ev["bytes"])
	assert.NotContains(t, ev, "error")
}

func TestLogEmitsFailureEventWithErrorMessage(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	audit.Log("bob", "127.0.0.1:2", "login", "", "", 0, errors.New("wrong credentials"))

	var ev map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &ev))
	assert.Equal(t, false, ev["success"])
	assert.Equal(t, "wrong credentials", ev["error"])
}
