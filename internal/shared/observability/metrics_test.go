package observability

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLambdaCapturesByOutcome(t *testing.T) {
	before := testutil.ToFloat64(LambdaCaptures.WithLabelValues("ok"))
	LambdaCaptures.WithLabelValues("ok").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(LambdaCaptures.WithLabelValues("ok")))
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))

	_, span := Tracer.Start(context.Background(), "noop")
	span.End()
}

func TestWriteTextfile(t *testing.T) {
	HistorySnapshots.Inc()
	path := filepath.Join(t.TempDir(), "nested", "calltree.prom")

	require.NoError(t, WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "calltree_history_snapshots_total")
}

func TestMetricsServer(t *testing.T) {
	UnresolvedCalls.Inc()
	srv := NewMetricsServer("127.0.0.1:0")
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "calltree_unresolved_calls_total")

	resp, err = http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var status map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "up", status["status"])
}

func TestMetricsServerBindError(t *testing.T) {
	srv := NewMetricsServer("127.0.0.1:-1")
	assert.Error(t, srv.Start(context.Background()))
	assert.NoError(t, srv.Stop(context.Background()))
}
