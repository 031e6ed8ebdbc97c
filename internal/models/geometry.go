package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkt"
	"github.com/twpayne/go-geom/xy"
)

const (
	metersPerDegreeLat = 110540.0
	metersPerDegreeLon = 111320.0
	squareMetersPerHa  = 10000.0
)

// GeoJSONPolygon represents a GeoJSON Polygon type for API input/output.
// Coordinates are [lon, lat] pairs.
type GeoJSONPolygon struct {
	Type        string        `json:"type"`
	Coordinates [][][]float64 `json:"coordinates"`
}

// ToPolygon converts the GeoJSON document into a go-geom polygon with SRID 4326.
func (g *GeoJSONPolygon) ToPolygon() (*geom.Polygon, error) {
	if g == nil || g.Type == "" {
		return nil, errors.New("empty geometry")
	}

	geoJSONBytes, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}

	var geometry geom.T
	if err := geojson.Unmarshal(geoJSONBytes, &geometry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal GeoJSON: %w", err)
	}

	polygon, ok := geometry.(*geom.Polygon)
	if !ok {
		return nil, fmt.Errorf("geometry is not a Polygon")
	}
	if polygon.NumLinearRings() == 0 || polygon.LinearRing(0).NumCoords() < 4 {
		return nil, fmt.Errorf("polygon needs a closed ring of at least 4 positions")
	}
	return polygon.SetSRID(4326), nil
}

// BoundaryMetrics is what a farm boundary contributes to its profile.
type BoundaryMetrics struct {
	Centroid     Coordinates
	AreaHectares float64
	WKT          string
}

// Measure computes the centroid and an equirectangular area estimate of the
// polygon, which is accurate enough at field scale.
func (g *GeoJSONPolygon) Measure() (*BoundaryMetrics, error) {
	polygon, err := g.ToPolygon()
	if err != nil {
		return nil, err
	}

	centroid, err := xy.Centroid(polygon)
	if err != nil {
		return nil, fmt.Errorf("failed to compute centroid: %w", err)
	}
	lon0, lat0 := centroid.X(), centroid.Y()

	scaleX := metersPerDegreeLon * math.Cos(lat0*math.Pi/180)
	projected := make([][]geom.Coord, 0, polygon.NumLinearRings())
	for _, ring := range polygon.Coords() {
		projectedRing := make([]geom.Coord, 0, len(ring))
		for _, c := range ring {
			projectedRing = append(projectedRing, geom.Coord{
				(c.X() - lon0) * scaleX,
				(c.Y() - lat0) * metersPerDegreeLat,
			})
		}
		projected = append(projected, projectedRing)
	}

	planar, err := geom.NewPolygon(geom.XY).SetCoords(projected)
	if err != nil {
		return nil, fmt.Errorf("failed to project polygon: %w", err)
	}

	wktString, err := wkt.Marshal(polygon)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal to WKT: %w", err)
	}

	return &BoundaryMetrics{
		Centroid:     Coordinates{Lat: lat0, Lon: lon0},
		AreaHectares: math.Round(planar.Area()/squareMetersPerHa*100) / 100,
		WKT:          wktString,
	}, nil
}
