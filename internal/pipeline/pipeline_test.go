package pipeline_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zachdehooge/violations-map/internal/config"
	"github.com/Zachdehooge/violations-map/internal/generator"
	"github.com/Zachdehooge/violations-map/internal/observability"
	"github.com/Zachdehooge/violations-map/internal/pipeline"
	"github.com/Zachdehooge/violations-map/internal/reader"
)

func testConfig(t *testing.T, variant config.Variant, csv string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "violations.csv")
	require.NoError(t, os.WriteFile(input, []byte(csv), 0o644))

	cfg := config.Default(variant)
	cfg.Input = input
	cfg.Output = filepath.Join(dir, "map.html")
	cfg.LatField, cfg.LonField, cfg.LabelField = "lat", "lon", "id"
	return cfg
}

func readOutput(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRun_StreamSkipsBadRows(t *testing.T) {
	cfg := testConfig(t, config.VariantStream, "lat,lon,id\n10.0,20.0,A\nfoo,20.0,B\n15.0,25.0,C")
	metrics := observability.NewMetrics()

	res, err := pipeline.Run(context.Background(), cfg, slog.Default(), metrics)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Markers)
	assert.Equal(t, generator.LatLng{Lat: 41.79, Lng: -76.58}, res.Center)
	assert.Equal(t, 10, res.Zoom)
	assert.Equal(t, 1, res.Stats.Skipped)

	html := readOutput(t, cfg.Output)
	assert.Equal(t, 2, strings.Count(html, `"popup":`))
	assert.Contains(t, html, `{"lat":10,"lng":20,"popup":"A"}`)
	assert.Contains(t, html, `{"lat":15,"lng":25,"popup":"C"}`)
	assert.NotContains(t, html, `"popup":"B"`)

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.RowsRead))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RowsSkipped.WithLabelValues("not_numeric")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Markers))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Runs.WithLabelValues("stream", "success")))
}

func TestRun_MissingColumnWritesNothing(t *testing.T) {
	for _, variant := range []config.Variant{config.VariantStream, config.VariantCluster} {
		t.Run(string(variant), func(t *testing.T) {
			cfg := testConfig(t, variant, "lat,id\n10.0,A\n")
			metrics := observability.NewMetrics()

			_, err := pipeline.Run(context.Background(), cfg, slog.Default(), metrics)
			require.ErrorIs(t, err, reader.ErrMissingColumn)

			_, statErr := os.Stat(cfg.Output)
			assert.True(t, os.IsNotExist(statErr), "output must not be written")
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Runs.WithLabelValues(string(variant), "error")))
		})
	}
}

func TestRun_FailedRunKeepsPreviousOutput(t *testing.T) {
	cfg := testConfig(t, config.VariantStream, "lat,id\n10.0,A\n")
	require.NoError(t, os.WriteFile(cfg.Output, []byte("previous map"), 0o644))

	_, err := pipeline.Run(context.Background(), cfg, slog.Default(), observability.NewMetrics())
	require.Error(t, err)
	assert.Equal(t, "previous map", readOutput(t, cfg.Output))
}

func TestRun_ClusterCapsAtLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString("id,lat,lon\n")
	for i := range 25 {
		fmt.Fprintf(&b, "V%02d,%d.5,-%d.5\n", i, 40+i%2, 76+i%2)
	}
	cfg := testConfig(t, config.VariantCluster, b.String())

	res, err := pipeline.Run(context.Background(), cfg, slog.Default(), observability.NewMetrics())
	require.NoError(t, err)

	assert.Equal(t, 20, res.Markers)
	assert.Equal(t, 25, res.Stats.Valid, "rows past the limit are still valid records")
	assert.Equal(t, 7, res.Zoom)

	html := readOutput(t, cfg.Output)
	assert.Contains(t, html, "leaflet.markercluster")
	assert.Equal(t, 20, strings.Count(html, `"popup":`))
	assert.Contains(t, html, `"popup":"V19"`)
	assert.NotContains(t, html, `"popup":"V20"`)
}

func TestRun_ClusterCentresOnMeanOfKeptRows(t *testing.T) {
	csv := "id,lat,lon\nA,40.0,-75.0\nB,,-10.0\nC,44.0,-79.0\nD,90.0,NA\n"
	cfg := testConfig(t, config.VariantCluster, csv)

	res, err := pipeline.Run(context.Background(), cfg, slog.Default(), observability.NewMetrics())
	require.NoError(t, err)

	assert.InDelta(t, 42.0, res.Center.Lat, 1e-9)
	assert.InDelta(t, -77.0, res.Center.Lng, 1e-9)
	assert.Equal(t, 2, res.Markers)
	assert.Equal(t, 2, res.Stats.Dropped)
}

func TestRun_ClusterWithoutCoordinatesFails(t *testing.T) {
	cfg := testConfig(t, config.VariantCluster, "id,lat,lon\nA,,\n")

	_, err := pipeline.Run(context.Background(), cfg, slog.Default(), observability.NewMetrics())
	require.Error(t, err)
	_, statErr := os.Stat(cfg.Output)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_UnwritableOutput(t *testing.T) {
	cfg := testConfig(t, config.VariantStream, "lat,lon,id\n1,2,A\n")
	cfg.Output = filepath.Join(t.TempDir(), "no", "such", "dir", "map.html")

	_, err := pipeline.Run(context.Background(), cfg, slog.Default(), observability.NewMetrics())
	require.Error(t, err)
}

func TestRun_UnreadableInput(t *testing.T) {
	cfg := config.Default(config.VariantStream)
	cfg.Input = filepath.Join(t.TempDir(), "missing.csv")
	cfg.Output = filepath.Join(t.TempDir(), "map.html")

	_, err := pipeline.Run(context.Background(), cfg, slog.Default(), observability.NewMetrics())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_StreamHonoursLimit(t *testing.T) {
	cfg := testConfig(t, config.VariantStream, "lat,lon,id\n1,1,A\n2,2,B\n3,3,C\n")
	cfg.Limit = 2

	res, err := pipeline.Run(context.Background(), cfg, slog.Default(), observability.NewMetrics())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Markers)
	assert.Equal(t, 3, res.Stats.Valid)
}

func TestCollect(t *testing.T) {
	csv := "lat,lon,id\n1,1,A\nx,2,B\n3,3,C\n"

	cfg := testConfig(t, config.VariantStream, csv)
	cfg.ReportSkipped = true
	records, stats, err := pipeline.Collect(context.Background(), cfg, slog.Default())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "C", records[1].Label)
	require.Len(t, stats.Errors, 1)
	assert.Equal(t, 3, stats.Errors[0].Line)

	cfg = testConfig(t, config.VariantCluster, csv)
	records, _, err = pipeline.Collect(context.Background(), cfg, slog.Default())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
