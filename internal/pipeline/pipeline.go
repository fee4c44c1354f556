// Package pipeline turns a violations CSV into a saved HTML map. A run moves
// through a single path: the header is resolved, records are read and
// validated, the map canvas is built and finally saved. Failing before the
// save leaves any existing output untouched.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/Zachdehooge/violations-map/internal/config"
	"github.com/Zachdehooge/violations-map/internal/generator"
	"github.com/Zachdehooge/violations-map/internal/observability"
	"github.com/Zachdehooge/violations-map/internal/reader"
	"github.com/Zachdehooge/violations-map/internal/table"
)

// Result describes a finished run.
type Result struct {
	Variant config.Variant
	Output  string
	Center  generator.LatLng
	Zoom    int
	Markers int
	Stats   reader.Stats
}

// Run executes one map generation run for cfg.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (Result, error) {
	res, err := run(ctx, cfg, logger, metrics)
	metrics.RunFinished(string(cfg.Variant), err)
	return res, err
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (Result, error) {
	logger = logger.With("variant", cfg.Variant, "input", cfg.Input)

	var (
		m     *generator.Map
		stats reader.Stats
		err   error
	)
	switch cfg.Variant {
	case config.VariantStream:
		m, stats, err = buildStream(ctx, cfg, logger)
	case config.VariantCluster:
		m, stats, err = buildCluster(ctx, cfg, logger)
	default:
		err = fmt.Errorf("unknown variant %q", cfg.Variant)
	}
	recordStats(metrics, stats)
	if err != nil {
		return Result{Variant: cfg.Variant, Stats: stats}, err
	}
	logger.Info("map built", "markers", m.MarkerCount(), "valid", stats.Valid, "skipped", stats.Skipped, "dropped", stats.Dropped)

	if err := m.Save(cfg.Output); err != nil {
		return Result{Variant: cfg.Variant, Stats: stats}, err
	}
	metrics.Markers.Add(float64(m.MarkerCount()))
	logger.Info("map saved", "output", cfg.Output)

	return Result{
		Variant: cfg.Variant,
		Output:  cfg.Output,
		Center:  m.Center,
		Zoom:    m.Zoom,
		Markers: m.MarkerCount(),
		Stats:   stats,
	}, nil
}

// Collect reads and validates the records of cfg.Input the way the configured
// variant would, without building a map. Limit is not applied.
func Collect(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]reader.Record, reader.Stats, error) {
	if cfg.Variant == config.VariantCluster {
		tbl, err := table.LoadFile(ctx, cfg.Input, tableOptions(cfg))
		if err != nil {
			return nil, reader.Stats{}, err
		}
		records, stats := tbl.Records(skipPolicy(cfg), logger)
		return records, stats, nil
	}

	var records []reader.Record
	stats, err := reader.ReadFile(ctx, cfg.Input, streamOptions(cfg, logger), func(rec reader.Record) error {
		records = append(records, rec)
		return nil
	})
	return records, stats, err
}

// buildStream places every valid row as a marker directly on a map with a
// fixed centre.
func buildStream(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*generator.Map, reader.Stats, error) {
	center := generator.LatLng{}
	if cfg.Center != nil {
		center = generator.LatLng{Lat: cfg.Center.Lat, Lng: cfg.Center.Lon}
	}
	m := generator.NewMap(center, cfg.Zoom, generator.WithTitle(title(cfg)))

	stats, err := reader.ReadFile(ctx, cfg.Input, streamOptions(cfg, logger), func(rec reader.Record) error {
		if cfg.Limit > 0 && m.MarkerCount() >= cfg.Limit {
			return nil
		}
		m.AddMarker(markerFor(rec))
		return nil
	})
	if err != nil {
		return nil, stats, fmt.Errorf("failed to read %s: %w", cfg.Input, err)
	}
	return m, stats, nil
}

// buildCluster loads the full table, centres the map on the mean of the rows
// with coordinates and adds the first cfg.Limit of them to one cluster.
func buildCluster(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*generator.Map, reader.Stats, error) {
	tbl, err := table.LoadFile(ctx, cfg.Input, tableOptions(cfg))
	if err != nil {
		return nil, reader.Stats{}, fmt.Errorf("failed to load %s: %w", cfg.Input, err)
	}
	logger.Debug("table loaded", "rows", len(tbl.Rows), "columns", len(tbl.Header))

	records, stats := tbl.Records(skipPolicy(cfg), logger)

	var center generator.LatLng
	if cfg.Center != nil {
		center = generator.LatLng{Lat: cfg.Center.Lat, Lng: cfg.Center.Lon}
	} else {
		lat, lon, err := table.Mean(records)
		if err != nil {
			return nil, stats, fmt.Errorf("failed to centre map on %s: %w", cfg.Input, err)
		}
		center = generator.LatLng{Lat: lat, Lng: lon}
	}

	m := generator.NewMap(center, cfg.Zoom, generator.WithTitle(title(cfg)))
	cluster := generator.NewCluster()
	m.AddCluster(cluster)
	for _, rec := range table.Head(records, cfg.Limit) {
		cluster.AddMarker(markerFor(rec))
	}
	return m, stats, nil
}

func markerFor(rec reader.Record) generator.Marker {
	return generator.Marker{
		Location: generator.LatLng{Lat: rec.Lat, Lng: rec.Lon},
		Popup:    rec.Label,
	}
}

func columns(cfg *config.Config) reader.Columns {
	return reader.Columns{
		Latitude:  cfg.LatField,
		Longitude: cfg.LonField,
		Label:     cfg.LabelField,
	}
}

func skipPolicy(cfg *config.Config) reader.SkipPolicy {
	if cfg.ReportSkipped {
		return reader.SkipReport
	}
	return reader.SkipSilent
}

func streamOptions(cfg *config.Config, logger *slog.Logger) reader.StreamOptions {
	return reader.StreamOptions{
		Delimiter: ',',
		Columns:   columns(cfg),
		Policy:    skipPolicy(cfg),
		Logger:    logger,
	}
}

func tableOptions(cfg *config.Config) table.Options {
	return table.Options{Comma: ',', Columns: columns(cfg)}
}

func title(cfg *config.Config) string {
	return fmt.Sprintf("Violations map: %s", filepath.Base(cfg.Input))
}

func recordStats(metrics *observability.Metrics, stats reader.Stats) {
	metrics.RowsRead.Add(float64(stats.Rows))
	metrics.RowsDropped.Add(float64(stats.Dropped))
	if stats.ShortRows > 0 {
		metrics.RowsSkipped.WithLabelValues("short_row").Add(float64(stats.ShortRows))
	}
	if stats.NotNumeric > 0 {
		metrics.RowsSkipped.WithLabelValues("not_numeric").Add(float64(stats.NotNumeric))
	}
}
