package geometry

import (
	"math"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

// Normalize returns v scaled to unit length. Vectors shorter than eps
// cannot be normalized and yield ErrDegenerate instead of NaNs.
func Normalize(v r3.Vec, eps float64) (r3.Vec, error) {
	n := r3.Norm(v)
	if n < eps || !Finite(v) {
		return r3.Vec{}, ErrDegenerate
	}
	return r3.Scale(1/n, v), nil
}

// DegToRad converts degrees to radians
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// Rotate rotates v by deg degrees around axis (right-hand rule).
// A zero angle returns v unchanged; a zero axis yields ErrDegenerate.
func Rotate(v r3.Vec, deg float64, axis r3.Vec, eps float64) (r3.Vec, error) {
	if deg == 0 {
		return v, nil
	}
	a, err := Normalize(axis, eps)
	if err != nil {
		return r3.Vec{}, err
	}
	return r3.NewRotation(DegToRad(deg), a).Rotate(v), nil
}

// Parallel reports whether a and b point along the same line within eps
func Parallel(a, b r3.Vec, eps float64) bool {
	na, err := Normalize(a, eps)
	if err != nil {
		return true
	}
	nb, err := Normalize(b, eps)
	if err != nil {
		return true
	}
	return r3.Norm(r3.Cross(na, nb)) < eps
}

// EqualVec compares two vectors component-wise within tol
func EqualVec(a, b r3.Vec, tol float64) bool {
	return scalar.EqualWithinAbs(a.X, b.X, tol) &&
		scalar.EqualWithinAbs(a.Y, b.Y, tol) &&
		scalar.EqualWithinAbs(a.Z, b.Z, tol)
}

// SliceCoordinate returns the position of p along the slice normal.
//
// This is what rotating p so that normal maps onto +X and reading the X
// component gives, without building the rotation.
func SliceCoordinate(p, normal r3.Vec, eps float64) (float64, error) {
	n, err := Normalize(normal, eps)
	if err != nil {
		return 0, err
	}
	return r3.Dot(p, n), nil
}

// SliceRange returns the minimum and maximum slice coordinates of the
// bounds' corners along normal.
func SliceRange(b Bounds, normal r3.Vec, eps float64) (min, max float64, err error) {
	n, err := Normalize(normal, eps)
	if err != nil {
		return 0, 0, err
	}
	min, max = math.Inf(1), math.Inf(-1)
	for _, c := range b.Corners() {
		x := r3.Dot(c, n)
		min = math.Min(min, x)
		max = math.Max(max, x)
	}
	return min, max, nil
}

// Clamp limits value to [min, max]
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
