package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Variant selects how the input is read and how markers are placed.
type Variant string

const (
	// VariantStream reads the file line by line and places every valid row
	// as a marker on a map with a fixed centre.
	VariantStream Variant = "stream"
	// VariantCluster loads the whole table, centres the map on the mean
	// coordinate and adds the first Limit rows to a marker cluster.
	VariantCluster Variant = "cluster"
)

// Defaults shared by both variants.
const (
	DefaultInput      = "Pennsylvania Oil and Gas Violations.csv"
	DefaultLatField   = "latitude"
	DefaultLonField   = "longitude"
	DefaultLabelField = "Viol Id"
	DefaultLogLevel   = "warn"
	DefaultLogFormat  = "text"
)

// Coordinate is a map centre in decimal degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Config holds every setting for one map generation run.
type Config struct {
	Variant Variant
	Input   string
	Output  string

	LatField   string
	LonField   string
	LabelField string

	// Center is nil when the map should be centred on the mean of the records.
	Center *Coordinate
	Zoom   int
	// Limit caps the number of markers; zero means no cap.
	Limit int

	ReportSkipped bool

	LogLevel    string
	LogFormat   string
	MetricsFile string
}

// Default returns the built-in settings for a variant.
func Default(v Variant) *Config {
	cfg := &Config{
		Variant:    v,
		Input:      DefaultInput,
		LatField:   DefaultLatField,
		LonField:   DefaultLonField,
		LabelField: DefaultLabelField,
		LogLevel:   DefaultLogLevel,
		LogFormat:  DefaultLogFormat,
	}

	switch v {
	case VariantCluster:
		cfg.Output = "Violations_folium.html"
		cfg.Zoom = 7
		cfg.Limit = 20
	default:
		cfg.Output = "Violations_Folium.html"
		cfg.Center = &Coordinate{Lat: 41.79, Lon: -76.58}
		cfg.Zoom = 10
	}
	return cfg
}

// Load builds the settings for a run. Layers apply lowest to highest
// precedence: variant defaults, the HCL file (file, or VMAP_CONFIG when file
// is empty), .env and VMAP_* environment variables, then overrides. The
// result is validated.
func Load(v Variant, file string, overrides func(*Config)) (*Config, error) {
	cfg := Default(v)

	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	if file == "" {
		file = os.Getenv("VMAP_CONFIG")
	}
	if file != "" {
		if err := cfg.ApplyFile(file); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if overrides != nil {
		overrides(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads environment variables from the given .env files. Files
// that do not exist are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides settings with VMAP_* environment variables that are set.
func (c *Config) ApplyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString("VMAP_INPUT", &c.Input)
	setString("VMAP_OUTPUT", &c.Output)
	setString("VMAP_LAT_FIELD", &c.LatField)
	setString("VMAP_LON_FIELD", &c.LonField)
	setString("VMAP_LABEL_FIELD", &c.LabelField)
	setString("VMAP_LOG_LEVEL", &c.LogLevel)
	setString("VMAP_LOG_FORMAT", &c.LogFormat)
	setString("VMAP_METRICS_FILE", &c.MetricsFile)

	if v := os.Getenv("VMAP_ZOOM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("invalid VMAP_ZOOM")
		}
		c.Zoom = n
	}
	if v := os.Getenv("VMAP_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("invalid VMAP_LIMIT")
		}
		c.Limit = n
	}
	if v := os.Getenv("VMAP_REPORT_SKIPPED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.New("invalid VMAP_REPORT_SKIPPED")
		}
		c.ReportSkipped = b
	}
	return nil
}

// Validate checks the settings for consistency.
func (c *Config) Validate() error {
	if c.Variant != VariantStream && c.Variant != VariantCluster {
		return fmt.Errorf("unknown variant %q", c.Variant)
	}
	if strings.TrimSpace(c.Input) == "" {
		return errors.New("input path is required")
	}
	if strings.TrimSpace(c.Output) == "" {
		return errors.New("output path is required")
	}
	if c.LatField == "" || c.LonField == "" || c.LabelField == "" {
		return errors.New("latitude, longitude and label column names are required")
	}
	if c.LatField == c.LonField || c.LatField == c.LabelField || c.LonField == c.LabelField {
		return errors.New("latitude, longitude and label must be distinct columns")
	}
	if c.Center != nil {
		if c.Center.Lat < -90 || c.Center.Lat > 90 {
			return fmt.Errorf("centre latitude %v out of range", c.Center.Lat)
		}
		if c.Center.Lon < -180 || c.Center.Lon > 180 {
			return fmt.Errorf("centre longitude %v out of range", c.Center.Lon)
		}
	}
	if c.Zoom < 1 || c.Zoom > 18 {
		return fmt.Errorf("zoom %d out of range 1-18", c.Zoom)
	}
	if c.Limit < 0 {
		return errors.New("limit must not be negative")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}
