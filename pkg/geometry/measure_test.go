package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestDistance(t *testing.T) {
	assert.Equal(t, 5.0, Distance(r3.Vec{X: 1, Y: 1}, r3.Vec{X: 4, Y: 5}))
	assert.Equal(t, 0.0, Distance(r3.Vec{Z: 2}, r3.Vec{Z: 2}))
}

func TestAngle(t *testing.T) {
	tests := []struct {
		name     string
		vertex   r3.Vec
		a, b     r3.Vec
		expected float64
	}{
		{"right", r3.Vec{}, r3.Vec{X: 2}, r3.Vec{Y: 3}, 90},
		{"straight", r3.Vec{}, r3.Vec{X: 1}, r3.Vec{X: -4}, 180},
		{"same direction", r3.Vec{Z: 1}, r3.Vec{X: 1, Z: 1}, r3.Vec{X: 5, Z: 1}, 0},
		{"oblique", r3.Vec{X: 1, Y: 1}, r3.Vec{X: 2, Y: 1}, r3.Vec{X: 2, Y: 2}, 45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Angle(tt.vertex, tt.a, tt.b, DefaultEpsilon)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}

	_, err := Angle(r3.Vec{X: 1}, r3.Vec{X: 1}, r3.Vec{Y: 1}, DefaultEpsilon)
	assert.ErrorIs(t, err, ErrDegenerate)
}
