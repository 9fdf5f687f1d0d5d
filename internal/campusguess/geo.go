package campusguess

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// EarthRadiusMiles is the mean Earth radius used by DistanceMiles.
const EarthRadiusMiles = 3958.8

// Coord is a geographic coordinate in degrees.
type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Point is a normalized image position; (0,0) is the top-left corner of the
// campus map and (1,1) the bottom-right.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Calibration maps normalized map positions to coordinates by linear
// interpolation between two anchors: A at (0,0) and B at (1,1). It is only
// accurate over a small extent such as a single campus.
type Calibration struct {
	A Coord
	B Coord
}

var errDegenerateCalibration = errors.New("calibration anchors must differ in both latitude and longitude")

// Validate reports whether the anchors span a non-empty rectangle, which
// ToXY needs to be defined.
func (c Calibration) Validate() error {
	if c.A.Lat == c.B.Lat || c.A.Lon == c.B.Lon {
		return errDegenerateCalibration
	}
	return nil
}

// ToLatLon converts a map position to a coordinate. Positions outside the
// unit square extrapolate.
func (c Calibration) ToLatLon(p Point) Coord {
	return Coord{
		Lat: c.A.Lat + p.Y*(c.B.Lat-c.A.Lat),
		Lon: c.A.Lon + p.X*(c.B.Lon-c.A.Lon),
	}
}

// ToXY is the inverse of ToLatLon.
func (c Calibration) ToXY(coord Coord) Point {
	return Point{
		X: (coord.Lon - c.A.Lon) / (c.B.Lon - c.A.Lon),
		Y: (coord.Lat - c.A.Lat) / (c.B.Lat - c.A.Lat),
	}
}

// DistanceMiles returns the great-circle distance between a and b using the
// haversine formula.
func DistanceMiles(a, b Coord) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)

	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	return 2 * EarthRadiusMiles * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// ErrBadCoord is returned by ParseCoord for malformed input.
var ErrBadCoord = errors.New("malformed coordinate")

// String formats c the way location records store it: "lat: 34.07, lon: -118.44".
func (c Coord) String() string {
	return "lat: " + strconv.FormatFloat(c.Lat, 'f', -1, 64) +
		", lon: " + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}

// ParseCoord reads the "lat: x, lon: y" form written by String. The keys
// may come in either order.
func ParseCoord(s string) (Coord, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Coord{}, fmt.Errorf("%w: %q", ErrBadCoord, s)
	}

	var c Coord
	var seen [2]bool
	for _, part := range parts {
		key, val, ok := strings.Cut(part, ":")
		if !ok {
			return Coord{}, fmt.Errorf("%w: %q", ErrBadCoord, s)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return Coord{}, fmt.Errorf("%w: %q", ErrBadCoord, s)
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "lat":
			c.Lat, seen[0] = f, true
		case "lon", "lng":
			c.Lon, seen[1] = f, true
		default:
			return Coord{}, fmt.Errorf("%w: unknown key in %q", ErrBadCoord, s)
		}
	}
	if !seen[0] || !seen[1] {
		return Coord{}, fmt.Errorf("%w: %q", ErrBadCoord, s)
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return Coord{}, fmt.Errorf("%w: out of range %q", ErrBadCoord, s)
	}
	return c, nil
}
