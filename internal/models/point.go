package models

import (
	"fmt"
	"math"
)

// Epsilon is the per-axis tolerance used when comparing points on the map.
const Epsilon = 1.0

// Point is a coordinate on the 0-100 map plane.
type Point struct {
	X float64 `json:"x" parquet:"name=x,type=DOUBLE"`
	Y float64 `json:"y" parquet:"name=y,type=DOUBLE"`
}

// RoadSegment is an undirected, axis-aligned stretch of road.
type RoadSegment struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

func Distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Near reports whether a and b are within eps of each other on both axes.
func Near(a, b Point, eps float64) bool {
	return math.Abs(a.X-b.X) < eps && math.Abs(a.Y-b.Y) < eps
}

// Lerp returns the point a fraction t of the way from a to b.
func Lerp(a, b Point, t float64) Point {
	return Point{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
	}
}

// Key identifies a point by its rounded coordinates.
func (p Point) Key() string {
	return fmt.Sprintf("%d,%d", int(math.Round(p.X)), int(math.Round(p.Y)))
}

func (p Point) String() string {
	return fmt.Sprintf("(%.1f,%.1f)", p.X, p.Y)
}
