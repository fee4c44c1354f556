package observability

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	lvl, err = ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	_, err = ParseLevel("loud")
	require.Error(t, err)
}

func TestNewLogger_Formats(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "info", "json").Info("map saved", "markers", 2)
	assert.Contains(t, buf.String(), `"msg":"map saved"`)
	assert.Contains(t, buf.String(), `"markers":2`)

	buf.Reset()
	logger := NewLogger(&buf, "warn", "text")
	logger.Info("hidden")
	logger.Warn("shown", "line", 3)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown line=3")
}

func TestMetrics_RunFinished(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Unix(1700000000, 0))
	m := NewMetricsWithClock(clock)

	m.RunFinished("stream", nil)
	m.RunFinished("cluster", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("stream", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("cluster", "error")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.LastRun))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()
	a.Markers.Add(3)

	assert.Equal(t, 3.0, testutil.ToFloat64(a.Markers))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Markers))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.RowsRead.Add(5)
	m.RowsSkipped.WithLabelValues("not_numeric").Inc()

	path := filepath.Join(t.TempDir(), "violations_map.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "violations_map_rows_read_total 5")
	assert.Contains(t, string(data), `violations_map_rows_skipped_total{reason="not_numeric"} 1`)
}
