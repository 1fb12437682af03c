package adminapi_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grassproto/grass/internal/adminapi"
	"github.com/grassproto/grass/internal/dispatcher"
)

type fakeSource struct {
	snap []dispatcher.SessionSnapshot
}

func (f fakeSource) Snapshot() []dispatcher.SessionSnapshot { return f.snap }

func TestDefaultConfigFromEnvDefaultsWhenUnset(t *testing.T) {
	cfg := adminapi.DefaultConfigFromEnv(func(string) string { return "" })
	assert.Equal(t, "127.0.0.1:9090", cfg.Addr)
}

func TestDefaultConfigFromEnvHonorsOverride(t *testing.T) {
	cfg := adminapi.DefaultConfigFromEnv(func(k string) string {
		if k == "ADMIN_ADDR" {
			return "0.0.0.0:1234"
		}
		return ""
	})
	assert.Equal(t, "0.0.0.0:1234", cfg.Addr)
}

func TestHealthzAndSessionsEndpoints(t *testing.T) {
	snap := []dispatcher.SessionSnapshot{{Remote: "1.2.3.4:5", User: "alice", Cwd: "a/b"}}
	src := fakeSource{snap: snap}

	port := findFreePort(t)
	cfg := adminapi.Config{Addr: "127.0.0.1:" + strconv.Itoa(port)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	adminapi.Start(ctx, cfg, src, prometheus.NewRegistry())

	base := "http://127.0.0.1:" + strconv.Itoa(port)
	waitForHTTP(t, base+"/healthz")

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(base + "/api/v1/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		OK   bool                         `json:"ok"`
		Data []dispatcher.SessionSnapshot `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.OK)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "alice", body.Data[0].User)
}

func TestStartDisabledWithEmptyAddr(t *testing.T) {
	// Must not panic or block; there is nothing to assert beyond "it returns".
	adminapi.Start(context.Background(), adminapi.Config{Addr: ""}, fakeSource{}, prometheus.NewRegistry())
}

func findFreePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func waitForHTTP(t *testing.T, url string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("server at %s never became reachable", url)
}
