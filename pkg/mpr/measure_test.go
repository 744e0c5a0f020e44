package mpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"mprviewer/internal/models"
	"mprviewer/pkg/geometry"
)

func TestOnMeasureLength(t *testing.T) {
	c, _ := newTestCoordinator(t, true)

	m, err := c.OnMeasure("top", models.MeasureLength, r2.Vec{X: 10, Y: 10})
	require.NoError(t, err)
	assert.False(t, m.Complete())
	assert.Empty(t, m.Label)
	assert.Equal(t, r3.Vec{X: 10, Y: 10, Z: 50}, m.Points[0].World)

	m, err = c.OnMeasure("left", models.MeasureLength, r2.Vec{X: 13, Y: 14})
	require.NoError(t, err)
	require.True(t, m.Complete())
	assert.InDelta(t, 5, m.Value, 1e-12)
	assert.Equal(t, "5.0 mm", m.Label)
	assert.Equal(t, models.ViewKey("left"), m.Points[1].View)

	// the next pick starts over
	m, err = c.OnMeasure("top", models.MeasureLength, r2.Vec{})
	require.NoError(t, err)
	assert.Len(t, m.Points, 1)
	assert.Zero(t, m.Value)
}

func TestOnMeasureAngle(t *testing.T) {
	c, _ := newTestCoordinator(t, true)

	_, err := c.OnMeasure("top", models.MeasureLength, r2.Vec{X: 1})
	require.NoError(t, err)

	// switching mode drops the length pick
	var m models.Measurement
	for _, p := range []r2.Vec{{X: 60, Y: 50}, {X: 50, Y: 50}, {X: 50, Y: 60}} {
		m, err = c.OnMeasure("front", models.MeasureAngle, p)
		require.NoError(t, err)
	}
	require.True(t, m.Complete())
	assert.InDelta(t, 90, m.Value, 1e-9)
	assert.Equal(t, "90.0°", m.Label)

	// a zero-length arm is rejected and the pick is not kept
	for _, p := range []r2.Vec{{X: 1, Y: 1}, {X: 1, Y: 1}} {
		_, err = c.OnMeasure("front", models.MeasureAngle, p)
		require.NoError(t, err)
	}
	_, err = c.OnMeasure("front", models.MeasureAngle, r2.Vec{X: 2, Y: 2})
	assert.ErrorIs(t, err, geometry.ErrDegenerate)

	m, err = c.Measurement()
	require.NoError(t, err)
	assert.Len(t, m.Points, 2)
	assert.False(t, m.Complete())

	// copies are independent
	m.Points[0].World = r3.Vec{X: -1}
	again, err := c.Measurement()
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{X: 1, Y: 1, Z: 50}, again.Points[0].World)

	require.NoError(t, c.ResetMeasurement())
	m, err = c.Measurement()
	require.NoError(t, err)
	assert.Empty(t, m.Points)
	assert.Equal(t, models.MeasureAngle, m.Mode)
}

func TestOnMeasureErrors(t *testing.T) {
	c, _ := newTestCoordinator(t, true)

	_, err := c.OnMeasure("side", models.MeasureLength, r2.Vec{})
	assert.ErrorIs(t, err, ErrUnknownViewKey)

	_, err = c.OnMeasure("top", models.MeasureMode(7), r2.Vec{})
	assert.Error(t, err)

	fresh := NewCoordinator(newFakeRenderer(), Options{})
	_, err = fresh.Initialize(models.DefaultViewKeys)
	require.NoError(t, err)
	_, err = fresh.OnMeasure("top", models.MeasureLength, r2.Vec{})
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = fresh.Measurement()
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRelativeWindow(t *testing.T) {
	c, f := newTestCoordinator(t, true)

	rel, err := c.RelativeWindow("top")
	require.NoError(t, err)
	assert.Equal(t, models.Window{Center: 0.5, Width: 1}, rel)

	state, err := c.SetRelativeWindow("top", models.Window{Center: 0.25, Width: 0.5})
	require.NoError(t, err)
	for _, key := range models.DefaultViewKeys {
		assert.Equal(t, models.Window{Center: 256, Width: 512}, state.Views[key].Window, "%s", key)
		assert.Equal(t, 512.0, f.views[key].width)
	}

	rel, err = c.RelativeWindow("left")
	require.NoError(t, err)
	assert.Equal(t, models.Window{Center: 0.25, Width: 0.5}, rel)

	// a flat volume has no relative scale
	f.hi = f.lo
	_, err = c.RelativeWindow("top")
	assert.Error(t, err)
	_, err = c.SetRelativeWindow("top", rel)
	assert.Error(t, err)

	_, err = c.RelativeWindow("side")
	assert.ErrorIs(t, err, ErrUnknownViewKey)
}
