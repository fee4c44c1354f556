package generator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/natefinch/atomic"
)

// clock stamps the generation time into every document; tests freeze it via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// DefaultZoom matches Leaflet's usual starting zoom when none is given.
const DefaultZoom = 10

// LatLng is a WGS84 coordinate in decimal degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Marker is a point annotation; Popup is shown when the marker is clicked.
type Marker struct {
	Location LatLng
	Popup    string
}

// markerJSON is the shape consumed by the browser JS.
type markerJSON struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Popup string  `json:"popup"`
}

// Cluster groups markers so Leaflet.markercluster can merge nearby ones at
// low zoom levels. It is attached to a Map as a single layer.
type Cluster struct {
	markers []Marker
}

func NewCluster() *Cluster {
	return &Cluster{}
}

func (c *Cluster) AddMarker(m Marker) {
	c.markers = append(c.markers, m)
}

func (c *Cluster) Len() int {
	return len(c.markers)
}

// TileLayer is the base map imagery source.
type TileLayer struct {
	URL         string
	Attribution template.HTML
	MaxZoom     int
}

// OpenStreetMap is the default tile layer.
var OpenStreetMap = TileLayer{
	URL:         "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
	Attribution: `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`,
	MaxZoom:     19,
}

// Map is the in-memory map canvas: a centre, a zoom level, a tile layer and
// the markers and clusters added to it.
type Map struct {
	Center LatLng
	Zoom   int
	Tiles  TileLayer
	Title  string

	markers  []Marker
	clusters []*Cluster
}

// Option customises a Map at construction.
type Option func(*Map)

func WithTiles(t TileLayer) Option {
	return func(m *Map) { m.Tiles = t }
}

func WithTitle(title string) Option {
	return func(m *Map) { m.Title = title }
}

// NewMap creates an empty map canvas. A zoom of zero or less selects DefaultZoom.
func NewMap(center LatLng, zoom int, opts ...Option) *Map {
	if zoom <= 0 {
		zoom = DefaultZoom
	}
	m := &Map{
		Center: center,
		Zoom:   zoom,
		Tiles:  OpenStreetMap,
		Title:  "Map",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddMarker attaches a marker directly to the map.
func (m *Map) AddMarker(mk Marker) {
	m.markers = append(m.markers, mk)
}

// AddCluster attaches a marker cluster to the map. Markers added to the
// cluster afterwards are still rendered.
func (m *Map) AddCluster(c *Cluster) {
	m.clusters = append(m.clusters, c)
}

// MarkerCount is the number of markers on the map, clustered or not.
func (m *Map) MarkerCount() int {
	n := len(m.markers)
	for _, c := range m.clusters {
		n += c.Len()
	}
	return n
}

func toMarkerJSON(markers []Marker) []markerJSON {
	out := make([]markerJSON, len(markers))
	for i, mk := range markers {
		out[i] = markerJSON{Lat: mk.Location.Lat, Lng: mk.Location.Lng, Popup: mk.Popup}
	}
	return out
}

func toJSON(v interface{}) (template.JS, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return template.JS(b), nil
}

// Render writes the map as a self-contained HTML document.
func (m *Map) Render(w io.Writer) error {
	clusters := make([][]markerJSON, len(m.clusters))
	for i, c := range m.clusters {
		clusters[i] = toMarkerJSON(c.markers)
	}

	data := struct {
		Title       string
		Center      LatLng
		Zoom        int
		Tiles       TileLayer
		Markers     []markerJSON
		Clusters    [][]markerJSON
		MarkerCount int
		GeneratedAt string
	}{
		Title:       m.Title,
		Center:      m.Center,
		Zoom:        m.Zoom,
		Tiles:       m.Tiles,
		Markers:     toMarkerJSON(m.markers),
		Clusters:    clusters,
		MarkerCount: m.MarkerCount(),
		GeneratedAt: clock.Now().UTC().Format(time.RFC3339),
	}

	return mapTemplate.Execute(w, data)
}

// Save renders the map and replaces path with the result. The file at path is
// only swapped once the whole document has been rendered and written.
func (m *Map) Save(path string) error {
	var buf bytes.Buffer
	if err := m.Render(&buf); err != nil {
		return fmt.Errorf("failed to render map: %w", err)
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
