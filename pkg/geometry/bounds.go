package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Bounds is an axis-aligned box as [xmin, xmax, ymin, ymax, zmin, zmax]
type Bounds [6]float64

// Min returns the minimum corner
func (b Bounds) Min() r3.Vec {
	return r3.Vec{X: b[0], Y: b[2], Z: b[4]}
}

// Max returns the maximum corner
func (b Bounds) Max() r3.Vec {
	return r3.Vec{X: b[1], Y: b[3], Z: b[5]}
}

// Center is the average of the min and max corner on each axis
func (b Bounds) Center() r3.Vec {
	return r3.Vec{
		X: (b[0] + b[1]) / 2,
		Y: (b[2] + b[3]) / 2,
		Z: (b[4] + b[5]) / 2,
	}
}

// Diagonal is the distance between the min and max corners
func (b Bounds) Diagonal() float64 {
	return r3.Norm(r3.Sub(b.Max(), b.Min()))
}

// Corners returns the eight corners of the box
func (b Bounds) Corners() [8]r3.Vec {
	return [8]r3.Vec{
		{X: b[0], Y: b[2], Z: b[4]},
		{X: b[0], Y: b[2], Z: b[5]},
		{X: b[0], Y: b[3], Z: b[4]},
		{X: b[0], Y: b[3], Z: b[5]},
		{X: b[1], Y: b[2], Z: b[4]},
		{X: b[1], Y: b[2], Z: b[5]},
		{X: b[1], Y: b[3], Z: b[4]},
		{X: b[1], Y: b[3], Z: b[5]},
	}
}

// Contains reports whether p lies inside the box, inclusive
func (b Bounds) Contains(p r3.Vec) bool {
	return p.X >= b[0] && p.X <= b[1] &&
		p.Y >= b[2] && p.Y <= b[3] &&
		p.Z >= b[4] && p.Z <= b[5]
}

// BoundsOfPoints returns the smallest box containing every point
func BoundsOfPoints(points ...r3.Vec) Bounds {
	b := Bounds{math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)}
	for _, p := range points {
		b[0], b[1] = math.Min(b[0], p.X), math.Max(b[1], p.X)
		b[2], b[3] = math.Min(b[2], p.Y), math.Max(b[3], p.Y)
		b[4], b[5] = math.Min(b[4], p.Z), math.Max(b[5], p.Z)
	}
	return b
}
