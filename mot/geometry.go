package mot

import (
	"fmt"
	"math"
)

// maxCoordinate bounds detection coordinates so the integer centroid never saturates
const maxCoordinate = math.MaxInt32

// Box is an axis-aligned detection box in frame pixel coordinates.
// (X1, Y1) is the top-left corner and (X2, Y2) is the bottom-right one.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// NewBox creates box from two corners
func NewBox(x1, y1, x2, y2 float64) Box {
	return Box{
		X1: x1,
		Y1: y1,
		X2: x2,
		Y2: y2,
	}
}

// NewBoxXYWH creates box from top-left corner and its size
func NewBoxXYWH(x, y, width, height float64) Box {
	return Box{
		X1: x,
		Y1: y,
		X2: x + width,
		Y2: y + height,
	}
}

// Validate checks that every coordinate is finite, fits into pixel range and corners are not inverted.
func (b Box) Validate() error {
	for _, v := range [4]float64{b.X1, b.Y1, b.X2, b.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite coordinate in box %v", b)
		}
		if math.Abs(v) > maxCoordinate {
			return fmt.Errorf("coordinate %v is out of range in box %v", v, b)
		}
	}
	if b.X2 < b.X1 || b.Y2 < b.Y1 {
		return fmt.Errorf("inverted box %v", b)
	}
	return nil
}

// Centroid returns integer center of the box. Halves are floored.
func (b Box) Centroid() Point {
	return Point{
		X: int(math.Floor((b.X1 + b.X2) / 2.0)),
		Y: int(math.Floor((b.Y1 + b.Y2) / 2.0)),
	}
}

// Point is integer position in frame pixel coordinates
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// NewPoint creates new point
func NewPoint(x, y int) Point {
	return Point{
		X: x,
		Y: y,
	}
}

func euclideanDistance(p1, p2 Point) float64 {
	return math.Hypot(float64(p1.X-p2.X), float64(p1.Y-p2.Y))
}
