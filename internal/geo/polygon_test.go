package geo

import (
	"errors"
	"testing"
)

var mgRoad = [][]float64{
	{77.5950, 12.9750},
	{77.6050, 12.9750},
	{77.6050, 12.9850},
	{77.5950, 12.9850},
}

func TestPolygonFromCoordinates_ClosesRing(t *testing.T) {
	t.Parallel()

	poly, err := PolygonFromCoordinates(mgRoad)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(poly[0]) != 5 {
		t.Fatalf("expected closed ring of 5 points, got %d", len(poly[0]))
	}
	if poly[0][0] != poly[0][4] {
		t.Fatal("first and last point differ")
	}
}

func TestPolygonFromCoordinates_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		coords [][]float64
		want   error
	}{
		{"too few", [][]float64{{0, 0}, {1, 0}}, ErrTooFewPoints},
		{"bowtie", [][]float64{{0, 0}, {1, 1}, {1, 0}, {0, 1}}, ErrSelfIntersecting},
		{"collinear", [][]float64{{0, 0}, {1, 0}, {2, 0}}, ErrZeroArea},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PolygonFromCoordinates(tt.coords)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v want %v", err, tt.want)
			}
		})
	}

	if _, err := PolygonFromCoordinates([][]float64{{200, 0}, {1, 0}, {1, 1}}); err == nil {
		t.Fatal("expected out of range error")
	}
	if _, err := PolygonFromCoordinates([][]float64{{1}, {1, 0}, {1, 1}}); err == nil {
		t.Fatal("expected pair error")
	}
}

func TestParsePolygon_RoundTrip(t *testing.T) {
	t.Parallel()

	poly, err := PolygonFromCoordinates(mgRoad)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	data, err := MarshalPolygon(poly)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := ParsePolygon(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !back.Equal(poly) {
		t.Fatalf("round trip mismatch: %v vs %v", back, poly)
	}
}

func TestParsePolygon_Errors(t *testing.T) {
	t.Parallel()

	if _, err := ParsePolygon(nil); err == nil {
		t.Fatal("expected error for empty data")
	}
	if _, err := ParsePolygon([]byte(`{"type":"Polygon","coordinates":`)); err == nil {
		t.Fatal("expected error for truncated json")
	}
	if _, err := ParsePolygon([]byte(`{"type":"Point","coordinates":[1,2]}`)); !errors.Is(err, ErrNotPolygon) {
		t.Fatalf("expected ErrNotPolygon, got %v", err)
	}
	holes := `{"type":"Polygon","coordinates":[
		[[0,0],[10,0],[10,10],[0,10],[0,0]],
		[[2,2],[3,2],[3,3],[2,3],[2,2]]]}`
	if _, err := ParsePolygon([]byte(holes)); !errors.Is(err, ErrHolesUnsupported) {
		t.Fatalf("expected ErrHolesUnsupported, got %v", err)
	}
	open := `{"type":"Polygon","coordinates":[[[0,0],[10,0],[10,10],[0,10]]]}`
	if _, err := ParsePolygon([]byte(open)); !errors.Is(err, ErrRingNotClosed) {
		t.Fatalf("expected ErrRingNotClosed, got %v", err)
	}
}

func TestContains(t *testing.T) {
	t.Parallel()

	poly, err := PolygonFromCoordinates(mgRoad)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	tests := []struct {
		name     string
		lat, lng float64
		want     bool
	}{
		{"inside", 12.98, 77.60, true},
		{"outside", 0, 0, false},
		{"east of zone", 12.98, 77.61, false},
		{"on south edge", 12.9750, 77.60, true},
		{"on vertex", 12.9750, 77.5950, true},
	}

	for _, tt := range tests {
		if got := Contains(poly, tt.lat, tt.lng); got != tt.want {
			t.Errorf("%s: got %v want %v", tt.name, got, tt.want)
		}
	}
}

func TestValidCoordinate(t *testing.T) {
	t.Parallel()

	if !ValidCoordinate(90, -180) {
		t.Fatal("bounds are inclusive")
	}
	if ValidCoordinate(90.1, 0) || ValidCoordinate(0, 180.5) {
		t.Fatal("out of range accepted")
	}
}
