package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"mprviewer/internal/models"
)

func TestIntersectOrthogonalPlanes(t *testing.T) {
	center := r3.Vec{X: 50, Y: 50, Z: 50}
	a := models.Plane{Position: center, Normal: r3.Vec{Z: 1}}
	b := models.Plane{Position: center, Normal: r3.Vec{X: 1}}
	c := models.Plane{Position: center, Normal: r3.Vec{Y: 1}}

	p, err := Intersect(a, b, c, DefaultEpsilon)
	require.NoError(t, err)
	assert.True(t, EqualVec(center, p, 1e-9), "expected %v, got %v", center, p)
}

// Every returned point must lie on all three planes
func TestIntersectPointLiesOnPlanes(t *testing.T) {
	testCases := []struct {
		name    string
		a, b, c models.Plane
	}{
		{
			name: "offset axis planes",
			a:    models.Plane{Position: r3.Vec{X: 3}, Normal: r3.Vec{X: 1}},
			b:    models.Plane{Position: r3.Vec{Y: -7}, Normal: r3.Vec{Y: 2}},
			c:    models.Plane{Position: r3.Vec{Z: 11}, Normal: r3.Vec{Z: -5}},
		},
		{
			name: "oblique planes",
			a:    models.Plane{Position: r3.Vec{X: 1, Y: 2, Z: 3}, Normal: r3.Vec{X: 1, Y: 1}},
			b:    models.Plane{Position: r3.Vec{X: -4, Y: 0, Z: 8}, Normal: r3.Vec{Y: 1, Z: 1}},
			c:    models.Plane{Position: r3.Vec{X: 10, Y: 10, Z: 10}, Normal: r3.Vec{X: 1, Z: 1}},
		},
		{
			name: "rotated camera directions",
			a:    models.Plane{Position: r3.Vec{X: 12.5, Y: 40, Z: 7}, Normal: r3.Vec{X: 0.2, Y: 0.1, Z: 0.97}},
			b:    models.Plane{Position: r3.Vec{X: 12.5, Y: 40, Z: 7}, Normal: r3.Vec{X: -0.95, Y: 0.3, Z: 0.1}},
			c:    models.Plane{Position: r3.Vec{X: 0, Y: 41, Z: 0}, Normal: r3.Vec{X: 0.1, Y: 0.98, Z: -0.2}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Intersect(tc.a, tc.b, tc.c, DefaultEpsilon)
			require.NoError(t, err)
			for _, plane := range []models.Plane{tc.a, tc.b, tc.c} {
				assert.InDelta(t, 0, DistanceToPlane(p, plane), 1e-6)
			}
		})
	}
}

func TestIntersectDegenerate(t *testing.T) {
	origin := r3.Vec{}
	testCases := []struct {
		name    string
		a, b, c models.Plane
	}{
		{
			name: "identical normals",
			a:    models.Plane{Position: origin, Normal: r3.Vec{Z: 1}},
			b:    models.Plane{Position: origin, Normal: r3.Vec{Z: 1}},
			c:    models.Plane{Position: origin, Normal: r3.Vec{X: 1}},
		},
		{
			name: "opposite normals",
			a:    models.Plane{Position: origin, Normal: r3.Vec{X: 1}},
			b:    models.Plane{Position: r3.Vec{X: 5}, Normal: r3.Vec{X: -1}},
			c:    models.Plane{Position: origin, Normal: r3.Vec{Y: 1}},
		},
		{
			name: "third plane parallel to line",
			a:    models.Plane{Position: origin, Normal: r3.Vec{X: 1}},
			b:    models.Plane{Position: origin, Normal: r3.Vec{Y: 1}},
			c:    models.Plane{Position: origin, Normal: r3.Vec{X: 1, Y: 1}},
		},
		{
			name: "nearly parallel",
			a:    models.Plane{Position: origin, Normal: r3.Vec{Z: 1}},
			b:    models.Plane{Position: origin, Normal: r3.Vec{X: 1e-9, Z: 1}},
			c:    models.Plane{Position: origin, Normal: r3.Vec{Y: 1}},
		},
		{
			name: "zero normal",
			a:    models.Plane{Position: origin, Normal: r3.Vec{}},
			b:    models.Plane{Position: origin, Normal: r3.Vec{Y: 1}},
			c:    models.Plane{Position: origin, Normal: r3.Vec{Z: 1}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Intersect(tc.a, tc.b, tc.c, DefaultEpsilon)
			assert.ErrorIs(t, err, ErrDegenerate)
			assert.True(t, Finite(p))
		})
	}
}

func TestIntersectPlanesLine(t *testing.T) {
	a := models.Plane{Position: r3.Vec{X: 2}, Normal: r3.Vec{X: 1}}
	b := models.Plane{Position: r3.Vec{Y: 3}, Normal: r3.Vec{Y: 1}}

	line, err := IntersectPlanes(a, b, DefaultEpsilon)
	require.NoError(t, err)
	assert.InDelta(t, 2, line.Point.X, 1e-12)
	assert.InDelta(t, 3, line.Point.Y, 1e-12)
	assert.InDelta(t, 1, math.Abs(line.Direction.Z), 1e-12)
}

func TestBounds(t *testing.T) {
	b := Bounds{0, 100, 10, 30, -5, 5}

	assert.Equal(t, r3.Vec{X: 50, Y: 20, Z: 0}, b.Center())
	assert.InDelta(t, math.Sqrt(100*100+20*20+10*10), b.Diagonal(), 1e-12)
	assert.True(t, b.Contains(r3.Vec{X: 100, Y: 10, Z: 0}))
	assert.False(t, b.Contains(r3.Vec{X: 101}))

	corners := b.Corners()
	assert.Equal(t, b, BoundsOfPoints(corners[:]...))
}
