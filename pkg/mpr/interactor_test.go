package mpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"mprviewer/internal/models"
)

func press(x, y float64) models.MouseEvent {
	return models.MouseEvent{Kind: models.EventPress, Button: models.ButtonLeft, Position: r2.Vec{X: x, Y: y}}
}

func move(x, y float64) models.MouseEvent {
	return models.MouseEvent{Kind: models.EventMove, Position: r2.Vec{X: x, Y: y}}
}

func release() models.MouseEvent {
	return models.MouseEvent{Kind: models.EventRelease, Button: models.ButtonLeft}
}

func wheel(delta float64) models.MouseEvent {
	return models.MouseEvent{Kind: models.EventScroll, WheelDelta: delta}
}

func sendAll(t *testing.T, c *Coordinator, key models.ViewKey, events ...models.MouseEvent) models.ManagerState {
	t.Helper()
	var state models.ManagerState
	var err error
	for _, ev := range events {
		state, err = c.HandleEvent(key, ev)
		require.NoError(t, err)
	}
	return state
}

func TestLevelInteractor(t *testing.T) {
	c, f := newTestCoordinator(t, true)
	require.NoError(t, c.SetActiveTool(models.ToolLevel))

	state := sendAll(t, c, "top", press(0, 0), move(10, 20), release())
	for _, key := range models.DefaultViewKeys {
		assert.Equal(t, models.Window{Center: 522, Width: 1034}, state.Views[key].Window, "%s", key)
		assert.Equal(t, 1034.0, f.views[key].width)
	}

	// moves without a pressed button do nothing
	state = sendAll(t, c, "top", move(500, 500))
	assert.Equal(t, models.Window{Center: 522, Width: 1034}, state.Views["top"].Window)

	// the width never drops below one
	state = sendAll(t, c, "left", press(0, 0), move(-5000, 0), release())
	assert.Equal(t, 1.0, state.Views["left"].Window.Width)
}

func TestCrosshairInteractor(t *testing.T) {
	c, f := newTestCoordinator(t, true)
	require.NoError(t, c.SetActiveTool(models.ToolCrosshair))

	state := sendAll(t, c, "top", press(30, 40))
	assert.Equal(t, r3.Vec{X: 30, Y: 40, Z: 50}, state.SliceIntersection)
	assert.InDelta(t, 30, f.views["left"].focal.X, 1e-9)
	assert.InDelta(t, 40, f.views["front"].focal.Y, 1e-9)

	state = sendAll(t, c, "top", move(60, 70), release(), move(0, 0))
	assert.Equal(t, r3.Vec{X: 60, Y: 70, Z: 50}, state.SliceIntersection)

	// right clicks do not pick
	state = sendAll(t, c, "top", models.MouseEvent{Kind: models.EventPress, Button: models.ButtonRight})
	assert.Equal(t, r3.Vec{X: 60, Y: 70, Z: 50}, state.SliceIntersection)
}

func TestScrollFromAnyTool(t *testing.T) {
	for _, tool := range []models.Tool{models.ToolLevel, models.ToolCrosshair, models.ToolPan, models.ToolZoom} {
		t.Run(tool.String(), func(t *testing.T) {
			c, f := newTestCoordinator(t, true)
			require.NoError(t, c.SetActiveTool(tool))

			state := sendAll(t, c, "top", wheel(3))
			assert.InDelta(t, 53, f.views["top"].focal.Z, 1e-9)
			assert.InDelta(t, 53, state.SliceIntersection.Z, 1e-9)
			assert.InDelta(t, 50, state.SliceIntersection.X, 1e-9)
		})
	}
}

func TestScrollClampsToVolume(t *testing.T) {
	c, f := newTestCoordinator(t, true)
	require.NoError(t, c.SetActiveTool(models.ToolLevel))

	state := sendAll(t, c, "front", wheel(500))
	assert.InDelta(t, 100, f.views["front"].focal.Y, 1e-9)
	assert.InDelta(t, 100, state.SliceIntersection.Y, 1e-9)
}

func TestPanInteractor(t *testing.T) {
	c, f := newTestCoordinator(t, true)
	require.NoError(t, c.SetActiveTool(models.ToolPan))

	sendAll(t, c, "left", press(10, 10), move(15, 8), move(20, 6), release(), move(100, 100))
	assert.Equal(t, r2.Vec{X: 10, Y: -4}, f.views["left"].pan)
	assert.Equal(t, r2.Vec{}, f.views["top"].pan)
}

func TestModifierPan(t *testing.T) {
	c, f := newTestCoordinator(t, true)
	require.NoError(t, c.SetActiveTool(models.ToolLevel))

	ev := press(0, 0)
	ev.Shift = true
	state := sendAll(t, c, "top", ev, move(7, 3), release())
	assert.Equal(t, r2.Vec{X: 7, Y: 3}, f.views["top"].pan)
	assert.Equal(t, models.Window{Center: 512, Width: 1024}, state.Views["top"].Window, "pan does not level")
}

func TestZoomInteractor(t *testing.T) {
	c, f := newTestCoordinator(t, true)
	require.NoError(t, c.SetActiveTool(models.ToolZoom))

	sendAll(t, c, "front", press(0, 0), move(0, 50), release())
	assert.InDelta(t, 1.5, f.views["front"].zoom, 1e-9)

	sendAll(t, c, "front", press(0, 0), move(0, -1000), release())
	assert.InDelta(t, 1.5*0.05, f.views["front"].zoom, 1e-9)
}

func TestHandleEventUnknownView(t *testing.T) {
	c, _ := newTestCoordinator(t, true)
	require.NoError(t, c.SetActiveTool(models.ToolPan))

	_, err := c.HandleEvent("back", wheel(1))
	assert.ErrorIs(t, err, ErrUnknownViewKey)
}
