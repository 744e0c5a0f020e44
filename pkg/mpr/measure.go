package mpr

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"mprviewer/internal/models"
	"mprviewer/pkg/geometry"
)

// measureStrategy computes the value and label of a complete measurement
type measureStrategy func(points []r3.Vec, eps float64) (float64, string, error)

var measureStrategies = map[models.MeasureMode]measureStrategy{
	models.MeasureLength: func(p []r3.Vec, eps float64) (float64, string, error) {
		d := geometry.Distance(p[0], p[1])
		return d, fmt.Sprintf("%.1f mm", d), nil
	},
	models.MeasureAngle: func(p []r3.Vec, eps float64) (float64, string, error) {
		a, err := geometry.Angle(p[1], p[0], p[2], eps)
		if err != nil {
			return 0, "", fmt.Errorf("angle segment: %w", err)
		}
		return a, fmt.Sprintf("%.1f°", a), nil
	},
}

// addMeasurePoint picks p into m. A pick after a complete measurement
// starts a new one. When the pick completes m its value is computed; a
// degenerate result leaves m as it was.
func addMeasurePoint(m *models.Measurement, p models.MeasurePoint, eps float64) error {
	strategy, ok := measureStrategies[m.Mode]
	if !ok {
		return fmt.Errorf("invalid measure mode %v", m.Mode)
	}

	next := models.Measurement{Mode: m.Mode}
	if !m.Complete() {
		next.Points = append(next.Points, m.Points...)
	}
	next.Points = append(next.Points, p)

	if next.Complete() {
		world := make([]r3.Vec, len(next.Points))
		for i, q := range next.Points {
			world[i] = q.World
		}
		value, label, err := strategy(world, eps)
		if err != nil {
			return err
		}
		next.Value, next.Label = value, label
	}
	*m = next
	return nil
}

// OnMeasure picks the display position pos of view key into the current
// measurement. Switching mode discards the points picked so far.
func (c *Coordinator) OnMeasure(key models.ViewKey, mode models.MeasureMode, pos r2.Vec) (models.Measurement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diag.Events++

	if err := c.requireVolume(); err != nil {
		return models.Measurement{}, c.fail(err)
	}
	if _, err := c.store.Index(key); err != nil {
		return models.Measurement{}, c.fail(err)
	}
	if !mode.Valid() {
		return models.Measurement{}, c.fail(fmt.Errorf("invalid measure mode %v", mode))
	}
	world, err := c.renderer.DisplayToWorld(key, pos)
	if err != nil {
		return models.Measurement{}, c.fail(err)
	}
	if !geometry.Finite(world) {
		return models.Measurement{}, c.fail(fmt.Errorf("%w: pick at %v is not finite", ErrDegenerateGeometry, pos))
	}

	if c.measurement.Mode != mode {
		c.measurement = models.Measurement{Mode: mode}
	}
	p := models.MeasurePoint{View: key, Display: pos, World: world}
	if err := addMeasurePoint(&c.measurement, p, c.opts.Epsilon); err != nil {
		return models.Measurement{}, c.fail(err)
	}
	if c.measurement.Complete() {
		c.log.Debugf("%v measurement: %s", mode, c.measurement.Label)
	}
	return c.measurement.Clone(), nil
}

// Measurement returns a copy of the current measurement
func (c *Coordinator) Measurement() (models.Measurement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireVolume(); err != nil {
		return models.Measurement{}, err
	}
	return c.measurement.Clone(), nil
}

// ResetMeasurement discards every picked point
func (c *Coordinator) ResetMeasurement() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diag.Events++

	if err := c.requireVolume(); err != nil {
		return c.fail(err)
	}
	c.measurement = models.Measurement{Mode: c.measurement.Mode}
	return nil
}

// RelativeWindow returns key's window as a fraction of the volume's data range
func (c *Coordinator) RelativeWindow(key models.ViewKey) (models.Window, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireVolume(); err != nil {
		return models.Window{}, err
	}
	vs, err := c.store.Get(key)
	if err != nil {
		return models.Window{}, err
	}
	lo, hi, err := c.renderer.ScalarRange(c.volume)
	if err != nil {
		return models.Window{}, err
	}
	return vs.Window.Relative(lo, hi)
}

// SetRelativeWindow sets key's window from a fraction of the volume's data
// range, following the same synchronization as UpdateWindowLevel.
func (c *Coordinator) SetRelativeWindow(key models.ViewKey, rel models.Window) (models.ManagerState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diag.Events++

	if err := c.requireVolume(); err != nil {
		return models.ManagerState{}, c.fail(err)
	}
	lo, hi, err := c.renderer.ScalarRange(c.volume)
	if err != nil {
		return models.ManagerState{}, c.fail(err)
	}
	w, err := rel.Absolute(lo, hi)
	if err != nil {
		return models.ManagerState{}, c.fail(err)
	}
	if err := c.updateWindowLevel(key, w.Center, w.Width); err != nil {
		return models.ManagerState{}, c.fail(err)
	}
	return c.store.Snapshot(), nil
}
