// Package boundary loads the administrative-boundary dataset the region layer
// matches geocoder output against.
package boundary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
)

// ErrDatasetUnavailable wraps every fetch or parse failure. Callers are
// expected to warn and continue with an empty feature list; the map stays
// usable for markers without boundaries.
var ErrDatasetUnavailable = errors.New("boundary dataset unavailable")

// Position is one GeoJSON vertex in [longitude, latitude] order, kept in
// dataset order until draw time.
type Position [2]float64

func (p Position) Lng() float64 { return p[0] }
func (p Position) Lat() float64 { return p[1] }

// Feature is one named region. OuterRings holds the outer ring of each member
// polygon: exactly one for a Polygon geometry, one per member for a
// MultiPolygon. Holes are not drawn and are dropped at parse time.
type Feature struct {
	RegionName   string
	GeometryType string // "Polygon" or "MultiPolygon"
	OuterRings   [][]Position
}

// Find returns the feature whose region name equals name exactly.
// Matching is case-sensitive: the dataset's naming convention must mirror the
// geocoder's output format.
func Find(features []Feature, name string) (Feature, bool) {
	for _, f := range features {
		if f.RegionName == name {
			return f, true
		}
	}
	return Feature{}, false
}

type Loader struct {
	client   *http.Client
	nameProp string
	logger   *slog.Logger
}

func NewLoader(client *http.Client, nameProp string, logger *slog.Logger) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	if nameProp == "" {
		nameProp = "sggnm"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{client: client, nameProp: nameProp, logger: logger}
}

// Load fetches and parses the named dataset. Source may be an http(s) URL or
// a local file path. Load is idempotent and safe to retry.
func (l *Loader) Load(ctx context.Context, source string) ([]Feature, error) {
	raw, err := l.read(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %w", ErrDatasetUnavailable, source, err)
	}
	feats, err := l.parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %q: %w", ErrDatasetUnavailable, source, err)
	}
	l.logger.Info("boundary dataset loaded", "source", source, "features", len(feats))
	return feats, nil
}

func (l *Loader) read(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("status %d", resp.StatusCode)
		}
		return io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	}
	return os.ReadFile(source)
}

func (l *Loader) parse(raw []byte) ([]Feature, error) {
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]any `json:"properties"`
			Geometry   struct {
				Type        string          `json:"type"`
				Coordinates json.RawMessage `json:"coordinates"`
			} `json:"geometry"`
		} `json:"features"`
	}
	if err := json.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("parse feature collection: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("unexpected document type %q", fc.Type)
	}

	out := make([]Feature, 0, len(fc.Features))
	for i, f := range fc.Features {
		name, _ := f.Properties[l.nameProp].(string)
		if name == "" {
			l.logger.Warn("feature missing region name property; skipped",
				"index", i, "property", l.nameProp)
			continue
		}

		var rings [][]Position
		switch f.Geometry.Type {
		case "Polygon":
			var coords [][][]float64 // [ring][i][lon,lat]
			if err := json.Unmarshal(f.Geometry.Coordinates, &coords); err != nil {
				return nil, fmt.Errorf("feature %q: parse polygon coords: %w", name, err)
			}
			if len(coords) == 0 {
				l.logger.Warn("feature has empty polygon; skipped", "region", name)
				continue
			}
			rings = append(rings, toRing(coords[0]))
		case "MultiPolygon":
			var coords [][][][]float64 // [poly][ring][i][lon,lat]
			if err := json.Unmarshal(f.Geometry.Coordinates, &coords); err != nil {
				return nil, fmt.Errorf("feature %q: parse multipolygon coords: %w", name, err)
			}
			for _, poly := range coords {
				if len(poly) == 0 {
					continue
				}
				rings = append(rings, toRing(poly[0]))
			}
			if len(rings) == 0 {
				l.logger.Warn("feature has empty multipolygon; skipped", "region", name)
				continue
			}
		default:
			l.logger.Warn("unsupported geometry type; skipped",
				"region", name, "type", f.Geometry.Type)
			continue
		}

		out = append(out, Feature{
			RegionName:   name,
			GeometryType: f.Geometry.Type,
			OuterRings:   rings,
		})
	}
	return out, nil
}

func toRing(coords [][]float64) []Position {
	ring := make([]Position, 0, len(coords))
	for _, xy := range coords {
		if len(xy) < 2 {
			continue
		}
		ring = append(ring, Position{xy[0], xy[1]})
	}
	return ring
}
