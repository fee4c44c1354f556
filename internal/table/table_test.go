package table

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zachdehooge/violations-map/internal/reader"
)

var cols = reader.Columns{Latitude: "latitude", Longitude: "longitude", Label: "Viol Id"}

func TestLoad_ResolvesColumnsByName(t *testing.T) {
	input := `Viol Id,Operator,latitude,longitude
101,"Range Resources, LLC",41.2,-77.1
102,Chesapeake,41.4,-77.3
`
	tbl, err := Load(strings.NewReader(input), Options{Columns: cols})
	require.NoError(t, err)

	assert.Equal(t, reader.Indices{Latitude: 2, Longitude: 3, Label: 0}, tbl.Indices)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, 2, tbl.Rows[0].Line)
	assert.Equal(t, "Range Resources, LLC", tbl.Rows[0].Cells[1])
}

func TestLoad_MissingColumn(t *testing.T) {
	_, err := Load(strings.NewReader("Viol Id,latitude\n1,41.0\n"), Options{Columns: cols})
	require.ErrorIs(t, err, reader.ErrMissingColumn)

	_, err = Load(strings.NewReader(""), Options{Columns: cols})
	require.ErrorIs(t, err, reader.ErrMissingColumn)
}

func TestLoad_StripsByteOrderMark(t *testing.T) {
	input := "\ufefflatitude,longitude,Viol Id\n41.2,-77.1,101\n"

	tbl, err := Load(strings.NewReader(input), Options{Columns: cols})
	require.NoError(t, err)
	assert.Equal(t, "latitude", tbl.Header[0])
	assert.Equal(t, reader.Indices{Latitude: 0, Longitude: 1, Label: 2}, tbl.Indices)
}

func TestLoad_BrokenQuotingFails(t *testing.T) {
	_, err := Load(strings.NewReader("Viol Id,latitude,longitude\n1,\"41.0,-77\n"), Options{Columns: cols})
	require.Error(t, err)
}

func TestRecords_DropsMissingAndSkipsNonNumeric(t *testing.T) {
	input := `Viol Id,latitude,longitude
A,40.0,-75.0
B,,-76.0
C,42.0,NA
D,north,-77.0
E,44.0,-79.0
`
	tbl, err := Load(strings.NewReader(input), Options{Columns: cols})
	require.NoError(t, err)

	records, stats := tbl.Records(reader.SkipReport, nil)

	require.Len(t, records, 2)
	assert.Equal(t, "A", records[0].Label)
	assert.Equal(t, "E", records[1].Label)
	assert.Equal(t, 5, stats.Rows)
	assert.Equal(t, 2, stats.Dropped)
	assert.Equal(t, 1, stats.Skipped)
	require.Len(t, stats.Errors, 1)
	assert.Equal(t, 5, stats.Errors[0].Line)
}

func TestMean_UsesOnlyRetainedRows(t *testing.T) {
	input := `Viol Id,latitude,longitude
A,40.0,-75.0
B,,-10.0
C,50.0,NA
E,44.0,-79.0
`
	tbl, err := Load(strings.NewReader(input), Options{Columns: cols})
	require.NoError(t, err)

	records, _ := tbl.Records(reader.SkipSilent, nil)
	lat, lon, err := Mean(records)
	require.NoError(t, err)
	assert.InDelta(t, 42.0, lat, 1e-9)
	assert.InDelta(t, -77.0, lon, 1e-9)
}

func TestMean_Empty(t *testing.T) {
	_, _, err := Mean(nil)
	require.ErrorIs(t, err, ErrNoRecords)
}

func TestHead(t *testing.T) {
	records := make([]reader.Record, 25)
	for i := range records {
		records[i] = reader.Record{Line: i + 2, Label: fmt.Sprint(i)}
	}

	head := Head(records, 20)
	require.Len(t, head, 20)
	assert.Equal(t, "0", head[0].Label)
	assert.Equal(t, "19", head[19].Label)

	assert.Len(t, Head(records, 0), 25)
	assert.Len(t, Head(records[:3], 20), 3)
}

func TestIsMissing(t *testing.T) {
	for _, v := range []string{"", " ", "NA", "NaN", "null", "#N/A"} {
		assert.True(t, IsMissing(v), v)
	}
	for _, v := range []string{"0", "41.2", "foo"} {
		assert.False(t, IsMissing(v), v)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte("latitude,longitude,Viol Id\n1,2,x\n"), 0o644))

	tbl, err := LoadFile(context.Background(), path, Options{Columns: cols})
	require.NoError(t, err)
	assert.Len(t, tbl.Rows, 1)

	_, err = LoadFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), Options{Columns: cols})
	require.ErrorIs(t, err, os.ErrNotExist)
}
