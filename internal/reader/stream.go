package reader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// SkipPolicy decides what happens to rows whose coordinates fail coercion.
type SkipPolicy int

const (
	// SkipSilent drops the row without any diagnostic.
	SkipSilent SkipPolicy = iota
	// SkipReport drops the row, keeps its RowError in Stats and logs it.
	SkipReport
)

func (p SkipPolicy) String() string {
	if p == SkipReport {
		return "report"
	}
	return "silent"
}

// Stats summarises one pass over the input.
type Stats struct {
	Rows       int // data rows seen, header and blank lines excluded
	Valid      int
	Skipped    int
	Dropped    int // rows excluded up front for missing coordinates
	ShortRows  int
	NotNumeric int
	Errors     []*RowError // populated under SkipReport only
}

// Skip accounts for a rejected row according to policy.
func (s *Stats) Skip(policy SkipPolicy, rowErr *RowError) {
	s.Skipped++
	switch rowErr.Reason() {
	case "short_row":
		s.ShortRows++
	case "not_numeric":
		s.NotNumeric++
	}
	if policy == SkipReport {
		s.Errors = append(s.Errors, rowErr)
	}
}

// StreamOptions configures Stream.
type StreamOptions struct {
	Delimiter rune
	Columns   Columns
	Policy    SkipPolicy
	Logger    *slog.Logger
}

func (o StreamOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

func (o StreamOptions) delimiter() rune {
	if o.Delimiter == 0 {
		return ','
	}
	return o.Delimiter
}

// Stream reads the header from r, then passes each valid data row to fn in
// input order. Rows that fail coordinate coercion are handled by the skip
// policy; any other failure, including an error returned by fn, ends the run.
func Stream(ctx context.Context, r io.Reader, opts StreamOptions, fn func(Record) error) (Stats, error) {
	var stats Stats
	logger := opts.logger()
	delim := opts.delimiter()

	br := bufio.NewReader(r)
	header, _, err := readLine(br)
	if err != nil {
		return stats, fmt.Errorf("failed to read header: %w", err)
	}

	idx, err := ResolveHeader(header, delim, opts.Columns)
	if err != nil {
		return stats, err
	}
	logger.Debug("header resolved",
		"latitude_index", idx.Latitude,
		"longitude_index", idx.Longitude,
		"label_index", idx.Label,
	)

	lineNo := 1
	for {
		line, ok, err := readLine(br)
		if err != nil {
			return stats, fmt.Errorf("failed to read line %d: %w", lineNo+1, err)
		}
		if !ok {
			break
		}
		lineNo++
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if strings.TrimSpace(line) == "" {
			continue
		}
		stats.Rows++

		rec, err := ExtractRow(lineNo, line, delim, idx)
		if err != nil {
			var rowErr *RowError
			if !errors.As(err, &rowErr) {
				return stats, err
			}
			stats.Skip(opts.Policy, rowErr)
			if opts.Policy == SkipReport {
				logger.Warn("skipping row", "line", rowErr.Line, "reason", rowErr.Reason(), "error", rowErr)
			}
			continue
		}

		stats.Valid++
		if err := fn(rec); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// readLine returns the next line including its terminator. Lines have no
// length limit. ok is false once the input is exhausted.
func readLine(br *bufio.Reader) (line string, ok bool, err error) {
	line, err = br.ReadString('\n')
	if errors.Is(err, io.EOF) {
		return line, line != "", nil
	}
	if err != nil {
		return "", false, err
	}
	return line, true, nil
}

// ReadFile opens path and streams it through Stream. The file is closed on
// every return path.
func ReadFile(ctx context.Context, path string, opts StreamOptions, fn func(Record) error) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	return Stream(ctx, f, opts, fn)
}
