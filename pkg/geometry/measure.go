package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Distance returns the Euclidean distance between a and b
func Distance(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// Angle returns the angle in degrees at vertex between the segments to a
// and to b. A segment shorter than eps yields ErrDegenerate.
func Angle(vertex, a, b r3.Vec, eps float64) (float64, error) {
	u, err := Normalize(r3.Sub(a, vertex), eps)
	if err != nil {
		return 0, err
	}
	v, err := Normalize(r3.Sub(b, vertex), eps)
	if err != nil {
		return 0, err
	}
	// atan2 stays accurate for nearly parallel segments
	return math.Atan2(r3.Norm(r3.Cross(u, v)), r3.Dot(u, v)) * 180 / math.Pi, nil
}
