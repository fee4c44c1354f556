package reader

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingColumn   = errors.New("required column not found in header")
	ErrDuplicateColumn = errors.New("required column appears more than once in header")
)

// Columns names the three fields every map record is built from.
type Columns struct {
	Latitude  string
	Longitude string
	Label     string
}

// Indices holds the zero-based header positions of the required columns.
type Indices struct {
	Latitude  int
	Longitude int
	Label     int
}

// width is the minimum number of fields a row needs to cover every index.
func (i Indices) width() int {
	return max(i.Latitude, i.Longitude, i.Label) + 1
}

// ResolveHeader splits a header line on delim and resolves the required
// columns by name. The line terminator, if any, is not part of the last name.
func ResolveHeader(line string, delim rune, cols Columns) (Indices, error) {
	line = strings.TrimRight(line, "\r\n")
	return ResolveFields(strings.Split(line, string(delim)), cols)
}

// ResolveFields maps already-split header names to positions. Every required
// name must occur exactly once.
func ResolveFields(fields []string, cols Columns) (Indices, error) {
	positions := make(map[string][]int, len(fields))
	for i, name := range fields {
		positions[name] = append(positions[name], i)
	}

	lookup := func(name string) (int, error) {
		switch found := positions[name]; len(found) {
		case 0:
			return -1, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		case 1:
			return found[0], nil
		default:
			return -1, fmt.Errorf("%w: %q at positions %v", ErrDuplicateColumn, name, found)
		}
	}

	var (
		idx Indices
		err error
	)
	if idx.Latitude, err = lookup(cols.Latitude); err != nil {
		return Indices{}, err
	}
	if idx.Longitude, err = lookup(cols.Longitude); err != nil {
		return Indices{}, err
	}
	if idx.Label, err = lookup(cols.Label); err != nil {
		return Indices{}, err
	}
	return idx, nil
}
