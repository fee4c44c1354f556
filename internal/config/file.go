package config

import (
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// hclConfigFile is the top-level structure of a map config file, e.g.
//
//	input  = "violations.csv"
//	output = "violations.html"
//
//	columns {
//	  latitude  = "latitude"
//	  longitude = "longitude"
//	  label     = "Viol Id"
//	}
//
//	map {
//	  zoom       = 7
//	  limit      = 20
//	  center_lat = 41.0
//	  center_lon = -77.5
//	}
type hclConfigFile struct {
	Input         *string     `hcl:"input,optional"`
	Output        *string     `hcl:"output,optional"`
	ReportSkipped *bool       `hcl:"report_skipped,optional"`
	MetricsFile   *string     `hcl:"metrics_file,optional"`
	Columns       *hclColumns `hcl:"columns,block"`
	Map           *hclMap     `hcl:"map,block"`
}

type hclColumns struct {
	Latitude  *string `hcl:"latitude,optional"`
	Longitude *string `hcl:"longitude,optional"`
	Label     *string `hcl:"label,optional"`
}

type hclMap struct {
	Zoom      *int     `hcl:"zoom,optional"`
	Limit     *int     `hcl:"limit,optional"`
	CenterLat *float64 `hcl:"center_lat,optional"`
	CenterLon *float64 `hcl:"center_lon,optional"`
}

// ApplyFile overlays the settings found in an HCL config file.
func (c *Config) ApplyFile(path string) error {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}

	var parsed hclConfigFile
	diags = gohcl.DecodeBody(hclFile.Body, nil, &parsed)
	if diags.HasErrors() {
		return fmt.Errorf("failed to decode config file %s: %w", path, diags)
	}

	assign(&c.Input, parsed.Input)
	assign(&c.Output, parsed.Output)
	assign(&c.ReportSkipped, parsed.ReportSkipped)
	assign(&c.MetricsFile, parsed.MetricsFile)

	if cols := parsed.Columns; cols != nil {
		assign(&c.LatField, cols.Latitude)
		assign(&c.LonField, cols.Longitude)
		assign(&c.LabelField, cols.Label)
	}

	if m := parsed.Map; m != nil {
		assign(&c.Zoom, m.Zoom)
		assign(&c.Limit, m.Limit)
		switch {
		case m.CenterLat != nil && m.CenterLon != nil:
			c.Center = &Coordinate{Lat: *m.CenterLat, Lon: *m.CenterLon}
		case m.CenterLat != nil || m.CenterLon != nil:
			return errors.New("map block needs both center_lat and center_lon")
		}
	}

	return nil
}

func assign[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
