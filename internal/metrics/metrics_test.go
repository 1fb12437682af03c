package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/grassproto/grass/internal/metrics"
)

func TestSessionGaugeTracksActiveCount(t *testing.T) {
	m := metrics.New()
	m.SessionStarted()
	m.SessionStarted()
	m.SessionEnded("closed")

	count, err := testutil.GatherAndCount(m.Gatherer(), "grass_server_sessions_active")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestObserveAuthRecordsBothResults(t *testing.T) {
	m := metrics.New()
	m.ObserveAuth(metrics.AuthOK, time.Millisecond)
	m.ObserveAuth(metrics.AuthFailed, time.Millisecond)

	count, err := testutil.GatherAndCount(m.Gatherer(), "grass_server_auth_attempts_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestBytesCountersIgnoreZero(t *testing.T) {
	m := metrics.New()
	m.AddBytesIn(0)
	m.AddBytesOut(100)

	count, err := testutil.GatherAndCount(m.Gatherer(), "grass_server_bytes_out_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTransferWorkerLifecycle(t *testing.T) {
	m := metrics.New()
	m.TransferWorkerStarted()
	m.TransferWorkerRejected()
	m.TransferWorkerEnded()

	count, err := testutil.GatherAndCount(m.Gatherer(), "grass_server_transfer_workers_rejected_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}
