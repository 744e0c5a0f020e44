package mpr

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"mprviewer/internal/models"
)

// Interactor turns the pointer events of one view into coordinator
// operations. Every tool scrolls slices with the wheel; the left button
// does what the tool is named after.
type Interactor interface {
	Tool() models.Tool
	Handle(ev models.MouseEvent) error
}

// newInteractor builds the handler of tool for one view
func newInteractor(c *Coordinator, key models.ViewKey, tool models.Tool) (Interactor, error) {
	base := baseInteractor{c: c, key: key}
	switch tool {
	case models.ToolLevel:
		return &levelInteractor{baseInteractor: base}, nil
	case models.ToolCrosshair:
		return &crosshairInteractor{baseInteractor: base}, nil
	case models.ToolPan:
		return &panInteractor{baseInteractor: base}, nil
	case models.ToolZoom:
		return &zoomInteractor{baseInteractor: base}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownTool, tool)
}

// baseInteractor carries the behaviour shared by every tool: wheel
// scrolling and a modifier-drag pan.
type baseInteractor struct {
	c   *Coordinator
	key models.ViewKey

	panning bool
	last    r2.Vec
}

func (b *baseInteractor) scroll(ev models.MouseEvent) error {
	r := b.c.renderer
	slice, err := r.Slice(b.key)
	if err != nil {
		return err
	}
	if err := r.SetSlice(b.key, slice+ev.WheelDelta*b.c.opts.ScrollStep); err != nil {
		return err
	}
	if err := r.Render(b.key); err != nil {
		return err
	}
	return b.c.updateIntersection()
}

// modifierPan handles shift/control drags; it reports whether it consumed ev
func (b *baseInteractor) modifierPan(ev models.MouseEvent) (bool, error) {
	switch ev.Kind {
	case models.EventPress:
		if !ev.Shift && !ev.Control {
			return false, nil
		}
		b.panning, b.last = true, ev.Position
		return true, nil
	case models.EventMove:
		if !b.panning {
			return false, nil
		}
		return true, b.pan(ev.Position)
	case models.EventRelease:
		if !b.panning {
			return false, nil
		}
		b.panning = false
		return true, nil
	}
	return false, nil
}

func (b *baseInteractor) pan(pos r2.Vec) error {
	delta := r2.Sub(pos, b.last)
	b.last = pos
	if err := b.c.renderer.Pan(b.key, delta); err != nil {
		return err
	}
	return b.c.renderer.Render(b.key)
}

// levelInteractor changes window/level while the left button is dragged
type levelInteractor struct {
	baseInteractor

	leveling bool
	start    r2.Vec
}

func (l *levelInteractor) Tool() models.Tool { return models.ToolLevel }

func (l *levelInteractor) Handle(ev models.MouseEvent) error {
	if ev.Kind == models.EventScroll {
		return l.scroll(ev)
	}
	if done, err := l.modifierPan(ev); done || err != nil {
		return err
	}
	switch ev.Kind {
	case models.EventPress:
		if ev.Button == models.ButtonLeft {
			l.leveling, l.start = true, ev.Position
		}
	case models.EventMove:
		if l.leveling {
			return l.windowLevelFromMouse(ev.Position)
		}
	case models.EventRelease:
		l.leveling = false
	}
	return nil
}

// windowLevelFromMouse scales the drag by the volume's dynamic range:
// horizontal motion changes the width, vertical motion the center at half rate.
func (l *levelInteractor) windowLevelFromMouse(pos r2.Vec) error {
	c := l.c
	lo, hi, err := c.renderer.ScalarRange(c.volume)
	if err != nil {
		return err
	}
	multiplier := (hi - lo) / 1024 * c.opts.LevelScale

	dx := (pos.X - l.start.X) * multiplier
	dy := (pos.Y - l.start.Y) * multiplier * 0.5
	l.start = pos

	vs, err := c.store.Get(l.key)
	if err != nil {
		return err
	}
	width := math.Max(1, math.Round(vs.Window.Width+dx))
	center := math.Round(vs.Window.Center + dy)

	return c.updateWindowLevel(l.key, center, width)
}

// crosshairInteractor moves the slice intersection to the picked point
type crosshairInteractor struct {
	baseInteractor

	picking bool
}

func (x *crosshairInteractor) Tool() models.Tool { return models.ToolCrosshair }

func (x *crosshairInteractor) Handle(ev models.MouseEvent) error {
	if ev.Kind == models.EventScroll {
		return x.scroll(ev)
	}
	if done, err := x.modifierPan(ev); done || err != nil {
		return err
	}
	switch ev.Kind {
	case models.EventPress:
		if ev.Button != models.ButtonLeft {
			return nil
		}
		x.picking = true
		return x.pick(ev.Position)
	case models.EventMove:
		if x.picking {
			return x.pick(ev.Position)
		}
	case models.EventRelease:
		x.picking = false
	}
	return nil
}

func (x *crosshairInteractor) pick(pos r2.Vec) error {
	world, err := x.c.renderer.DisplayToWorld(x.key, pos)
	if err != nil {
		return err
	}
	return x.c.crosshairSelect(x.key, world)
}

// panInteractor pans the camera with the left button
type panInteractor struct {
	baseInteractor
}

func (p *panInteractor) Tool() models.Tool { return models.ToolPan }

func (p *panInteractor) Handle(ev models.MouseEvent) error {
	switch ev.Kind {
	case models.EventScroll:
		return p.scroll(ev)
	case models.EventPress:
		p.panning, p.last = true, ev.Position
	case models.EventMove:
		if p.panning {
			return p.pan(ev.Position)
		}
	case models.EventRelease:
		p.panning = false
	}
	return nil
}

// zoomInteractor zooms with a vertical left-button drag
type zoomInteractor struct {
	baseInteractor

	zooming bool
}

func (z *zoomInteractor) Tool() models.Tool { return models.ToolZoom }

func (z *zoomInteractor) Handle(ev models.MouseEvent) error {
	if ev.Kind == models.EventScroll {
		return z.scroll(ev)
	}
	if done, err := z.modifierPan(ev); done || err != nil {
		return err
	}
	switch ev.Kind {
	case models.EventPress:
		z.zooming, z.last = true, ev.Position
	case models.EventMove:
		if !z.zooming {
			return nil
		}
		dy := ev.Position.Y - z.last.Y
		z.last = ev.Position
		factor := math.Max(0.05, 1+dy*z.c.opts.ZoomFactor)
		if err := z.c.renderer.Zoom(z.key, factor); err != nil {
			return err
		}
		return z.c.renderer.Render(z.key)
	case models.EventRelease:
		z.zooming = false
	}
	return nil
}
