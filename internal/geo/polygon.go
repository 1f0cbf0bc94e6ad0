// Package geo validates and tests zone polygons stored as GeoJSON.
package geo

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

var (
	ErrNotPolygon       = errors.New("geometry is not a polygon")
	ErrHolesUnsupported = errors.New("polygons with holes are not supported")
	ErrTooFewPoints     = errors.New("polygon ring needs at least 4 points")
	ErrRingNotClosed    = errors.New("polygon ring is not closed")
	ErrSelfIntersecting = errors.New("polygon ring intersects itself")
	ErrZeroArea         = errors.New("polygon ring has no area")
)

// ValidCoordinate reports whether lat/lng are inside WGS84 bounds.
func ValidCoordinate(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// ParsePolygon decodes a stored GeoJSON Polygon geometry and validates it.
func ParsePolygon(data []byte) (orb.Polygon, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty polygon data")
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	poly, ok := g.Geometry().(orb.Polygon)
	if !ok {
		return nil, ErrNotPolygon
	}
	if err := ValidatePolygon(poly); err != nil {
		return nil, err
	}
	return poly, nil
}

// PolygonFromCoordinates builds a single-ring polygon from [lng, lat] pairs,
// closing the ring when the last point differs from the first.
func PolygonFromCoordinates(coords [][]float64) (orb.Polygon, error) {
	ring := make(orb.Ring, 0, len(coords)+1)
	for i, c := range coords {
		if len(c) != 2 {
			return nil, fmt.Errorf("coordinate %d must be a [lng, lat] pair", i)
		}
		if !ValidCoordinate(c[1], c[0]) {
			return nil, fmt.Errorf("coordinate %d is out of range", i)
		}
		ring = append(ring, orb.Point{c[0], c[1]})
	}
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}
	poly := orb.Polygon{ring}
	if err := ValidatePolygon(poly); err != nil {
		return nil, err
	}
	return poly, nil
}

// MarshalPolygon encodes poly as a GeoJSON geometry for storage.
func MarshalPolygon(poly orb.Polygon) ([]byte, error) {
	return geojson.NewGeometry(poly).MarshalJSON()
}

func ValidatePolygon(poly orb.Polygon) error {
	if len(poly) == 0 {
		return ErrTooFewPoints
	}
	if len(poly) > 1 {
		return ErrHolesUnsupported
	}
	return ValidateRing(poly[0])
}

func ValidateRing(r orb.Ring) error {
	if len(r) < 4 {
		return ErrTooFewPoints
	}
	if !r.Closed() {
		return ErrRingNotClosed
	}
	if selfIntersects(r) {
		return ErrSelfIntersecting
	}
	if planar.Area(r) == 0 {
		return ErrZeroArea
	}
	return nil
}

// Contains uses planar ray casting on [lng, lat]. Points on an edge or a
// vertex count as inside.
func Contains(poly orb.Polygon, lat, lng float64) bool {
	return planar.PolygonContains(poly, orb.Point{lng, lat})
}

func selfIntersects(r orb.Ring) bool {
	n := len(r) - 1 // segment count, ring is closed
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if segmentsIntersect(r[i], r[i+1], r[j], r[j+1]) {
				return true
			}
		}
	}
	return false
}

func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := orientation(q1, q2, p1)
	d2 := orientation(q1, q2, p2)
	d3 := orientation(p1, p2, q1)
	d4 := orientation(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	switch {
	case d1 == 0 && onSegment(q1, q2, p1):
		return true
	case d2 == 0 && onSegment(q1, q2, p2):
		return true
	case d3 == 0 && onSegment(p1, p2, q1):
		return true
	case d4 == 0 && onSegment(p1, p2, q2):
		return true
	}
	return false
}

func orientation(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func onSegment(a, b, p orb.Point) bool {
	return min(a[0], b[0]) <= p[0] && p[0] <= max(a[0], b[0]) &&
		min(a[1], b[1]) <= p[1] && p[1] <= max(a[1], b[1])
}
