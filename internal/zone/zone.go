// Package zone holds the monitored polygon, its on-disk form and the
// occupancy tracking built on top of it.
package zone

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// ErrTooFewPoints is returned for polygons with fewer than three vertices.
var ErrTooFewPoints = errors.New("zone polygon needs at least 3 points")

// Point is a polygon vertex in frame pixel coordinates. It is stored as a
// two-element JSON array.
type Point struct {
	X int
	Y int
}

// MarshalJSON encodes the point as [x,y].
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.X, p.Y})
}

// UnmarshalJSON decodes a point from [x,y].
func (p *Point) UnmarshalJSON(data []byte) error {
	var xy []int
	if err := json.Unmarshal(data, &xy); err != nil {
		return err
	}
	if len(xy) != 2 {
		return fmt.Errorf("zone point needs 2 coordinates, got %d", len(xy))
	}
	p.X, p.Y = xy[0], xy[1]
	return nil
}

// Polygon is an ordered list of vertices.
type Polygon []Point

// DefaultPolygon returns the polygon used when no zone file is available.
func DefaultPolygon() Polygon {
	return Polygon{{120, 120}, {520, 120}, {640, 420}, {140, 450}}
}

// Validate checks that the polygon has enough vertices.
func (p Polygon) Validate() error {
	if len(p) < 3 {
		return fmt.Errorf("%w: got %d", ErrTooFewPoints, len(p))
	}
	return nil
}

// Clone returns a copy that shares no memory with p.
func (p Polygon) Clone() Polygon {
	if p == nil {
		return nil
	}
	return append(Polygon(nil), p...)
}

// Equal reports whether both polygons have the same vertices in order.
func (p Polygon) Equal(other Polygon) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// ImagePoints converts the vertices to image points.
func (p Polygon) ImagePoints() []image.Point {
	pts := make([]image.Point, len(p))
	for i, v := range p {
		pts[i] = image.Pt(v.X, v.Y)
	}
	return pts
}

// Contains reports whether pt lies inside the polygon or on its edge.
func (p Polygon) Contains(pt image.Point) bool {
	if len(p) < 3 {
		return false
	}
	pv := gocv.NewPointVectorFromPoints(p.ImagePoints())
	defer pv.Close()
	return gocv.PointPolygonTest(pv, pt, false) >= 0
}

// Draw outlines the polygon on img.
func (p Polygon) Draw(img *gocv.Mat, c color.RGBA, thickness int) {
	if len(p) < 2 {
		return
	}
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{p.ImagePoints()})
	defer pv.Close()
	gocv.Polylines(img, pv, true, c, thickness)
}
