// Package geometry provides the plane, bounds and rotation math used to keep
// the orthogonal MPR views in sync. All vectors are gonum r3 vectors.
package geometry

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"mprviewer/internal/models"
)

// DefaultEpsilon is the tolerance used for parallel and zero-length checks
const DefaultEpsilon = 1e-6

// ErrDegenerate is returned when planes or vectors do not define a unique result
var ErrDegenerate = errors.New("degenerate geometry")

// Line is an infinite line through Point along the unit vector Direction
type Line struct {
	Point     r3.Vec
	Direction r3.Vec
}

// IntersectPlanes returns the line shared by planes a and b.
// Parallel or coincident planes yield ErrDegenerate.
func IntersectPlanes(a, b models.Plane, eps float64) (Line, error) {
	na, err := Normalize(a.Normal, eps)
	if err != nil {
		return Line{}, err
	}
	nb, err := Normalize(b.Normal, eps)
	if err != nil {
		return Line{}, err
	}

	u := r3.Cross(na, nb)
	u2 := r3.Norm2(u)
	if math.Sqrt(u2) < eps {
		return Line{}, ErrDegenerate
	}

	// point = (da (nb x u) + db (u x na)) / |u|^2 lies on both planes
	da := r3.Dot(na, a.Position)
	db := r3.Dot(nb, b.Position)
	p := r3.Add(r3.Scale(da, r3.Cross(nb, u)), r3.Scale(db, r3.Cross(u, na)))
	p = r3.Scale(1/u2, p)

	return Line{Point: p, Direction: r3.Scale(1/math.Sqrt(u2), u)}, nil
}

// IntersectLine returns the point where line l crosses plane c.
// A line parallel to the plane yields ErrDegenerate.
func IntersectLine(l Line, c models.Plane, eps float64) (r3.Vec, error) {
	nc, err := Normalize(c.Normal, eps)
	if err != nil {
		return r3.Vec{}, err
	}
	dir, err := Normalize(l.Direction, eps)
	if err != nil {
		return r3.Vec{}, err
	}

	denom := r3.Dot(nc, dir)
	if math.Abs(denom) < eps {
		return r3.Vec{}, ErrDegenerate
	}
	t := r3.Dot(nc, r3.Sub(c.Position, l.Point)) / denom
	return r3.Add(l.Point, r3.Scale(t, dir)), nil
}

// Intersect computes the common point of three planes. It never returns a
// non-finite point: any degenerate configuration yields ErrDegenerate.
func Intersect(a, b, c models.Plane, eps float64) (r3.Vec, error) {
	if eps <= 0 {
		eps = DefaultEpsilon
	}
	line, err := IntersectPlanes(a, b, eps)
	if err != nil {
		return r3.Vec{}, err
	}
	p, err := IntersectLine(line, c, eps)
	if err != nil {
		return r3.Vec{}, err
	}
	if !Finite(p) {
		return r3.Vec{}, ErrDegenerate
	}
	return p, nil
}

// DistanceToPlane returns the signed distance from p to plane c
func DistanceToPlane(p r3.Vec, c models.Plane) float64 {
	n := r3.Norm(c.Normal)
	if n == 0 {
		return math.NaN()
	}
	return r3.Dot(r3.Sub(p, c.Position), c.Normal) / n
}

// Finite reports whether every component of v is a finite number
func Finite(v r3.Vec) bool {
	for _, x := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
