package reader

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrShortRow   = errors.New("row has too few fields")
	ErrNotNumeric = errors.New("coordinate is not a finite number")
)

// Record is one validated input row.
type Record struct {
	Line  int
	Lat   float64
	Lon   float64
	Label string
}

// RowError describes why a single data row could not become a Record.
type RowError struct {
	Line  int
	Field string
	Value string
	Err   error
}

func (e *RowError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: %s %q: %v", e.Line, e.Field, e.Value, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Reason is a short machine-friendly name for the failure class.
func (e *RowError) Reason() string {
	switch {
	case errors.Is(e.Err, ErrShortRow):
		return "short_row"
	case errors.Is(e.Err, ErrNotNumeric):
		return "not_numeric"
	default:
		return "other"
	}
}

// ExtractRow splits a raw data line and extracts the record at idx.
func ExtractRow(lineNo int, line string, delim rune, idx Indices) (Record, error) {
	line = strings.TrimRight(line, "\r\n")
	return ExtractFields(lineNo, strings.Split(line, string(delim)), idx)
}

// ExtractFields coerces the coordinate fields of an already-split row.
// All failures are returned as *RowError.
func ExtractFields(lineNo int, fields []string, idx Indices) (Record, error) {
	if len(fields) < idx.width() {
		return Record{}, &RowError{Line: lineNo, Err: fmt.Errorf("%w: got %d, need %d", ErrShortRow, len(fields), idx.width())}
	}

	lat, err := ParseCoordinate(fields[idx.Latitude])
	if err != nil {
		return Record{}, &RowError{Line: lineNo, Field: "latitude", Value: fields[idx.Latitude], Err: err}
	}
	lon, err := ParseCoordinate(fields[idx.Longitude])
	if err != nil {
		return Record{}, &RowError{Line: lineNo, Field: "longitude", Value: fields[idx.Longitude], Err: err}
	}

	return Record{
		Line:  lineNo,
		Lat:   lat,
		Lon:   lon,
		Label: fields[idx.Label],
	}, nil
}

// ParseCoordinate parses a decimal degree value. Surrounding whitespace is
// allowed; NaN and infinities are rejected.
func ParseCoordinate(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, ErrNotNumeric
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNotNumeric
	}
	return v, nil
}
