// Package table loads a whole CSV file into memory before any record is
// built, so rows with missing coordinates can be excluded once, up front,
// and aggregates such as the mean centre are computed over exactly the rows
// that remain.
package table

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Zachdehooge/violations-map/internal/reader"
)

var ErrNoRecords = errors.New("no rows with usable coordinates")

// missingValues are the cell contents treated as "no value", following the
// conventions of common dataframe loaders.
var missingValues = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// IsMissing reports whether a cell holds no value.
func IsMissing(cell string) bool {
	_, ok := missingValues[strings.TrimSpace(cell)]
	return ok
}

// Row is one data row with its source line number.
type Row struct {
	Line  int
	Cells []string
}

// Table is a parsed CSV file: the header, the resolved column positions and
// every data row in input order.
type Table struct {
	Header  []string
	Rows    []Row
	Indices reader.Indices
}

// Options configures Load.
type Options struct {
	Comma   rune
	Columns reader.Columns
}

// Load parses the whole of r. Quoted fields are supported and rows may have
// differing lengths; a syntactically broken file is an error.
func Load(r io.Reader, opts Options) (*Table, error) {
	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	header = append([]string(nil), header...)
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	idx, err := reader.ResolveFields(header, opts.Columns)
	if err != nil {
		return nil, err
	}

	t := &Table{Header: header, Indices: idx}
	for {
		cells, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		t.Rows = append(t.Rows, Row{Line: line, Cells: cells})
	}

	return t, nil
}

// LoadFile opens path and loads it. The file is closed before returning.
func LoadFile(ctx context.Context, path string, opts Options) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	return Load(f, opts)
}

func cell(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}
	return ""
}

// Records returns the coordinate records of the table in input order. Rows
// whose latitude or longitude is missing are dropped before anything else
// happens; rows with a present but non-numeric coordinate follow policy.
func (t *Table) Records(policy reader.SkipPolicy, logger *slog.Logger) ([]reader.Record, reader.Stats) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var stats reader.Stats
	records := make([]reader.Record, 0, len(t.Rows))
	for _, row := range t.Rows {
		stats.Rows++

		latCell := cell(row.Cells, t.Indices.Latitude)
		lonCell := cell(row.Cells, t.Indices.Longitude)
		if IsMissing(latCell) || IsMissing(lonCell) {
			stats.Dropped++
			continue
		}

		fields := row.Cells
		if need := max(t.Indices.Latitude, t.Indices.Longitude, t.Indices.Label) + 1; len(fields) < need {
			// Short rows still carry both coordinates here; pad the label.
			fields = append(append([]string(nil), fields...), make([]string, need-len(fields))...)
		}

		rec, err := reader.ExtractFields(row.Line, fields, t.Indices)
		if err != nil {
			var rowErr *reader.RowError
			if errors.As(err, &rowErr) {
				stats.Skip(policy, rowErr)
				if policy == reader.SkipReport {
					logger.Warn("skipping row", "line", rowErr.Line, "reason", rowErr.Reason(), "error", rowErr)
				}
			}
			continue
		}
		stats.Valid++
		records = append(records, rec)
	}

	logger.Debug("table records extracted", "rows", stats.Rows, "valid", stats.Valid, "dropped", stats.Dropped, "skipped", stats.Skipped)
	return records, stats
}

// Mean returns the arithmetic mean latitude and longitude of records.
func Mean(records []reader.Record) (lat, lon float64, err error) {
	if len(records) == 0 {
		return 0, 0, ErrNoRecords
	}
	for _, r := range records {
		lat += r.Lat
		lon += r.Lon
	}
	n := float64(len(records))
	return lat / n, lon / n, nil
}

// Head returns the first n records; n <= 0 returns all of them.
func Head(records []reader.Record, n int) []reader.Record {
	if n <= 0 || n >= len(records) {
		return records
	}
	return records[:n]
}
