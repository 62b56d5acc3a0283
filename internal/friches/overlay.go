package friches

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

var ErrOverlayUnavailable = errors.New("overlay not loaded")

// OverlayFeature is one decoded GeoJSON feature. Key holds the join value
// read from the configured property (or the feature id).
type OverlayFeature struct {
	Key        string
	Geometry   geom.T
	Properties map[string]interface{}
}

// Overlay is a decoded GeoJSON FeatureCollection.
type Overlay struct {
	Features []OverlayFeature
	Skipped  int
}

type rawFeature struct {
	Type       string                 `json:"type"`
	ID         json.RawMessage        `json:"id,omitempty"`
	Properties map[string]interface{} `json:"properties"`
	Geometry   json.RawMessage        `json:"geometry"`
}

type rawCollection struct {
	Type     string       `json:"type"`
	Features []rawFeature `json:"features"`
}

// DecodeOverlay reads a FeatureCollection. Features with a missing or
// undecodable geometry are skipped and counted rather than failing the file.
// When polygonsOnly is set, anything but Polygon and MultiPolygon is skipped
// as well.
func DecodeOverlay(r io.Reader, joinKey string, polygonsOnly bool) (*Overlay, error) {
	var raw rawCollection
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding geojson: %w", err)
	}
	if raw.Type != "FeatureCollection" {
		return nil, fmt.Errorf("decoding geojson: expected FeatureCollection, got %q", raw.Type)
	}

	out := &Overlay{}
	for _, f := range raw.Features {
		if len(f.Geometry) == 0 || string(f.Geometry) == "null" {
			out.Skipped++
			continue
		}
		var g geom.T
		if err := geojson.Unmarshal(f.Geometry, &g); err != nil {
			out.Skipped++
			continue
		}
		if polygonsOnly && !isPolygonal(g) {
			out.Skipped++
			continue
		}

		key := ""
		if joinKey != "" {
			key = propString(f.Properties[joinKey])
		}
		if key == "" {
			key = rawIDString(f.ID)
		}

		out.Features = append(out.Features, OverlayFeature{
			Key:        key,
			Geometry:   g,
			Properties: f.Properties,
		})
	}
	return out, nil
}

func isPolygonal(g geom.T) bool {
	switch g.(type) {
	case *geom.Polygon, *geom.MultiPolygon:
		return true
	}
	return false
}

// propString renders a join value. Numeric ids come out of encoding/json as
// float64 and must not be printed in exponent form.
func propString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func rawIDString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return propString(v)
}

// FeatureCollection re-encodes the overlay untouched.
func (o *Overlay) FeatureCollection() *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(o.Features))}
	for _, f := range o.Features {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         f.Key,
			Geometry:   f.Geometry,
			Properties: f.Properties,
		})
	}
	return fc
}
