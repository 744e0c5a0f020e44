// Package mpr keeps three orthogonal multiplanar-reconstruction views in
// sync. It owns the per-view state, maps rotations and slab thickness from
// one view onto its dependent view, tracks the common slice intersection,
// and forwards the resulting values to a Renderer.
package mpr

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"mprviewer/internal/models"
	"mprviewer/pkg/config"
	"mprviewer/pkg/geometry"
)

// Lifecycle is the state of a Coordinator
type Lifecycle int

const (
	Uninitialized Lifecycle = iota
	Initialized
	VolumeLoaded
	ToolActive
	Destroyed
)

func (l Lifecycle) String() string {
	switch l {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case VolumeLoaded:
		return "volume-loaded"
	case ToolActive:
		return "tool-active"
	case Destroyed:
		return "destroyed"
	}
	return fmt.Sprintf("Lifecycle(%d)", int(l))
}

// Options tune the coordinator's policies
type Options struct {
	// SyncWindowLevels copies window/level changes to every view
	SyncWindowLevels bool
	// Epsilon is the tolerance for parallel and zero-length checks
	Epsilon float64
	// MIPThreshold is the slab thickness above which MIP becomes the default blend
	MIPThreshold float64
	// LevelScale scales the level tool's drag sensitivity
	LevelScale float64
	// ScrollStep is the slice distance per wheel step
	ScrollStep float64
	// ZoomFactor is the zoom change per dragged pixel
	ZoomFactor float64
	// Logger receives diagnostics; a quiet named logger is used when nil
	Logger *logrus.Entry
}

// OptionsFromConfig extracts coordinator options from a loaded configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SyncWindowLevels: cfg.Sync.WindowLevels,
		Epsilon:          cfg.Geometry.Epsilon,
		MIPThreshold:     cfg.Geometry.MIPThreshold,
		LevelScale:       cfg.Interaction.LevelScale,
		ScrollStep:       cfg.Interaction.ScrollStep,
		ZoomFactor:       cfg.Interaction.ZoomFactor,
		Logger:           config.NamedLogger("mpr", cfg.Output.Verbose),
	}
}

// Diagnostics is a read-only view of the coordinator's bookkeeping
type Diagnostics struct {
	Lifecycle      Lifecycle
	ActiveTool     string
	Events         int
	SolverFailures int
	LastError      string
}

// Coordinator drives the three MPR views. Every public operation runs to
// completion, including propagation to dependent views, before the next one
// starts; results are returned as immutable snapshots.
type Coordinator struct {
	mu sync.Mutex

	renderer Renderer
	opts     Options
	log      *logrus.Entry

	lifecycle  Lifecycle
	store      *Store
	propagator *Propagator

	volume   VolumeHandle
	tool     models.Tool
	handlers map[models.ViewKey]Interactor

	measurement models.Measurement

	diag Diagnostics
}

// NewCoordinator creates an uninitialized coordinator rendering through r
func NewCoordinator(r Renderer, opts Options) *Coordinator {
	if opts.Epsilon <= 0 {
		opts.Epsilon = geometry.DefaultEpsilon
	}
	if opts.ScrollStep == 0 {
		opts.ScrollStep = 1
	}
	if opts.LevelScale == 0 {
		opts.LevelScale = 1
	}
	log := opts.Logger
	if log == nil {
		log = config.NamedLogger("mpr", false)
	}
	return &Coordinator{renderer: r, opts: opts, log: log}
}

// Initialize creates the per-view state for exactly three view keys and
// returns the initial snapshot.
func (c *Coordinator) Initialize(keys []models.ViewKey) (models.ManagerState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diag.Events++

	if c.lifecycle != Uninitialized {
		return models.ManagerState{}, c.fail(fmt.Errorf("%w: initialize while %v", ErrInvalidState, c.lifecycle))
	}
	store, err := NewStore(keys, c.opts.Epsilon)
	if err != nil {
		return models.ManagerState{}, c.fail(err)
	}
	c.store = store
	c.propagator = NewPropagator(store, c.opts.Epsilon, c.opts.MIPThreshold)
	c.lifecycle = Initialized

	c.log.Debugf("initialized views %v", keys)
	return store.Snapshot(), nil
}

// SetVolume uploads v, centres the slice intersection on it, sets every
// view's window to the volume's data range and attaches it to all views.
// An active tool survives a volume change.
func (c *Coordinator) SetVolume(v *models.Volume) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diag.Events++

	switch c.lifecycle {
	case Initialized, VolumeLoaded, ToolActive:
	default:
		return c.fail(fmt.Errorf("%w: set volume while %v", ErrInvalidState, c.lifecycle))
	}
	if err := v.Validate(); err != nil {
		return c.fail(err)
	}

	r := c.renderer
	h, err := r.CreateVolumeActor(v)
	if err != nil {
		return c.fail(fmt.Errorf("creating volume actor: %w", err))
	}
	bounds, err := r.Bounds(h)
	if err != nil {
		return c.fail(fmt.Errorf("reading volume bounds: %w", err))
	}
	lo, hi, err := r.ScalarRange(h)
	if err != nil {
		return c.fail(fmt.Errorf("reading scalar range: %w", err))
	}
	window := models.WindowFromRange(lo, hi)

	for _, key := range c.store.Keys() {
		if err := c.store.Set(key, ViewPatch{Window: &window}); err != nil {
			return c.fail(err)
		}
		if err := r.AttachVolume(key, h); err != nil {
			return c.fail(fmt.Errorf("attaching volume to %q: %w", key, err))
		}
		if err := c.pushView(key); err != nil {
			return c.fail(err)
		}
	}
	c.volume = h
	c.store.SetIntersection(bounds.Center())
	c.measurement = models.Measurement{Mode: c.measurement.Mode}

	if c.lifecycle == ToolActive {
		if err := c.installTool(c.tool); err != nil {
			return c.fail(err)
		}
	} else {
		c.lifecycle = VolumeLoaded
	}

	c.log.Debugf("volume %dx%dx%d loaded, center %v", v.Width, v.Height, v.Depth, bounds.Center())
	return nil
}

// SetActiveTool swaps the interaction handler of every view. Geometry and
// per-view state are untouched.
func (c *Coordinator) SetActiveTool(tool models.Tool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diag.Events++

	if err := c.requireVolume(); err != nil {
		return c.fail(err)
	}
	if !tool.Valid() {
		return c.fail(fmt.Errorf("%w: %v", ErrUnknownTool, tool))
	}
	if err := c.installTool(tool); err != nil {
		return c.fail(err)
	}
	c.log.Debugf("active tool %v", tool)
	return nil
}

// ActiveTool returns the current tool, if one has been set
func (c *Coordinator) ActiveTool() (models.Tool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tool, c.lifecycle == ToolActive
}

// OnRotate applies an absolute rotation of key's local axis to the
// dependent view, then pushes the orientation of every view except key,
// which is driven directly by the user.
func (c *Coordinator) OnRotate(key models.ViewKey, axis models.Axis, deg float64) (models.ManagerState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diag.Events++

	if err := c.requireVolume(); err != nil {
		return models.ManagerState{}, c.fail(err)
	}
	target, err := c.propagator.ApplyRotation(key, axis, deg)
	if err != nil {
		return models.ManagerState{}, c.fail(err)
	}
	for _, k := range c.store.Others(key) {
		if err := c.pushOrientation(k); err != nil {
			return models.ManagerState{}, c.fail(err)
		}
	}

	c.log.Debugf("rotate %s/%v %.1f deg -> %s", key, axis, deg, target)
	return c.store.Snapshot(), nil
}

// OnViewRotate spins key's up vector in-plane by deg degrees (absolute)
func (c *Coordinator) OnViewRotate(key models.ViewKey, deg float64) (models.ManagerState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diag.Events++

	if err := c.requireVolume(); err != nil {
		return models.ManagerState{}, c.fail(err)
	}
	if err := c.propagator.ApplyViewRotation(key, deg); err != nil {
		return models.ManagerState{}, c.fail(err)
	}
	if err := c.pushOrientation(key); err != nil {
		return models.ManagerState{}, c.fail(err)
	}
	return c.store.Snapshot(), nil
}

// OnThickness sets the slab thickness of the view dependent on (key, axis)
// and configures only that view's renderer.
func (c *Coordinator) OnThickness(key models.ViewKey, axis models.Axis, thickness float64) (models.ManagerState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diag.Events++

	if err := c.requireVolume(); err != nil {
		return models.ManagerState{}, c.fail(err)
	}
	if thickness < 0 || math.IsNaN(thickness) || math.IsInf(thickness, 0) {
		return models.ManagerState{}, c.fail(fmt.Errorf("slab thickness must be finite and not negative, got %v", thickness))
	}
	target, _, err := c.propagator.Target(key, axis)
	if err != nil {
		return models.ManagerState{}, c.fail(err)
	}
	prev, err := c.store.Get(target)
	if err != nil {
		return models.ManagerState{}, c.fail(err)
	}
	// a renderer failure puts the target's slab back the way it was
	rollback := func(err error) error {
		_ = c.store.Set(target, ViewPatch{SliceThickness: &prev.SliceThickness, BlendMode: &prev.BlendMode})
		_ = c.renderer.SetSlabThickness(target, prev.SliceThickness)
		return c.fail(err)
	}

	_, rerender, err := c.propagator.ApplyThickness(key, axis, thickness)
	if err != nil {
		return models.ManagerState{}, c.fail(err)
	}
	vs, err := c.store.Get(target)
	if err != nil {
		return models.ManagerState{}, rollback(err)
	}

	r := c.renderer
	if err := r.SetSlabThickness(target, vs.SliceThickness); err != nil {
		return models.ManagerState{}, rollback(err)
	}
	if err := r.SetBlendMode(target, EffectiveBlendMode(vs, c.opts.MIPThreshold)); err != nil {
		return models.ManagerState{}, rollback(err)
	}
	if rerender {
		if err := r.Render(target); err != nil {
			return models.ManagerState{}, rollback(err)
		}
	}

	c.log.Debugf("thickness %s/%v %.2f px -> %s (%v)", key, axis, thickness, target, vs.BlendMode)
	return c.store.Snapshot(), nil
}

// SetBlendMode explicitly chooses the blend mode of one view. It reports
// whether the view had to be re-rendered.
func (c *Coordinator) SetBlendMode(key models.ViewKey, mode models.BlendMode) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diag.Events++

	if err := c.requireVolume(); err != nil {
		return false, c.fail(err)
	}
	if !mode.Valid() {
		return false, c.fail(fmt.Errorf("invalid blend mode %v", mode))
	}
	vs, err := c.store.Get(key)
	if err != nil {
		return false, c.fail(err)
	}
	before := EffectiveBlendMode(vs, c.opts.MIPThreshold)
	if err := c.store.Set(key, ViewPatch{BlendMode: &mode}); err != nil {
		return false, c.fail(err)
	}
	vs.BlendMode = mode
	after := EffectiveBlendMode(vs, c.opts.MIPThreshold)
	if before == after {
		return false, nil
	}

	if err := c.renderer.SetBlendMode(key, after); err != nil {
		return false, c.fail(err)
	}
	if err := c.renderer.Render(key); err != nil {
		return false, c.fail(err)
	}
	return true, nil
}

// OnScroll recomputes the slice intersection from the three cameras. When
// the planes are degenerate the previous point is kept, the snapshot is
// flagged stale, and no error is returned.
func (c *Coordinator) OnScroll() (models.ManagerState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diag.Events++

	if err := c.requireVolume(); err != nil {
		return models.ManagerState{}, c.fail(err)
	}
	if err := c.updateIntersection(); err != nil {
		return models.ManagerState{}, c.fail(err)
	}
	return c.store.Snapshot(), nil
}

// OnCrosshairSelect moves the slice intersection to worldPos and makes
// every other view jump to the slice containing it.
func (c *Coordinator) OnCrosshairSelect(key models.ViewKey, worldPos r3.Vec) (models.ManagerState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diag.Events++

	if err := c.requireVolume(); err != nil {
		return models.ManagerState{}, c.fail(err)
	}
	if err := c.crosshairSelect(key, worldPos); err != nil {
		return models.ManagerState{}, c.fail(err)
	}
	return c.store.Snapshot(), nil
}

// UpdateWindowLevel sets key's window and, when synchronization is on,
// copies it to every other view.
func (c *Coordinator) UpdateWindowLevel(key models.ViewKey, center, width float64) (models.ManagerState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diag.Events++

	if err := c.requireVolume(); err != nil {
		return models.ManagerState{}, c.fail(err)
	}
	if err := c.updateWindowLevel(key, center, width); err != nil {
		return models.ManagerState{}, c.fail(err)
	}
	return c.store.Snapshot(), nil
}

// HandleEvent routes a pointer event of one view to the active tool
func (c *Coordinator) HandleEvent(key models.ViewKey, ev models.MouseEvent) (models.ManagerState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diag.Events++

	if c.lifecycle != ToolActive {
		return models.ManagerState{}, c.fail(fmt.Errorf("%w: no active tool while %v", ErrInvalidState, c.lifecycle))
	}
	h, ok := c.handlers[key]
	if !ok {
		return models.ManagerState{}, c.fail(fmt.Errorf("%w: %q", ErrUnknownViewKey, key))
	}
	if err := h.Handle(ev); err != nil {
		return models.ManagerState{}, c.fail(err)
	}
	return c.store.Snapshot(), nil
}

// Snapshot returns a deep copy of the current state
func (c *Coordinator) Snapshot() (models.ManagerState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lifecycle == Uninitialized || c.lifecycle == Destroyed {
		return models.ManagerState{}, fmt.Errorf("%w: snapshot while %v", ErrInvalidState, c.lifecycle)
	}
	return c.store.Snapshot(), nil
}

// Orientation returns the effective slice normal and view-up of one view
func (c *Coordinator) Orientation(key models.ViewKey) (normal, up r3.Vec, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lifecycle == Uninitialized || c.lifecycle == Destroyed {
		return r3.Vec{}, r3.Vec{}, fmt.Errorf("%w: orientation while %v", ErrInvalidState, c.lifecycle)
	}
	vs, err := c.store.Get(key)
	if err != nil {
		return r3.Vec{}, r3.Vec{}, err
	}
	return Orientation(vs, c.opts.Epsilon)
}

// Lifecycle returns the coordinator's current state
func (c *Coordinator) Lifecycle() Lifecycle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lifecycle
}

// Diagnostics returns a copy of the coordinator's bookkeeping
func (c *Coordinator) Diagnostics() Diagnostics {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := c.diag
	d.Lifecycle = c.lifecycle
	if c.lifecycle == ToolActive {
		d.ActiveTool = c.tool.String()
	}
	return d
}

// Destroy releases every view. No operation is valid afterwards.
func (c *Coordinator) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diag.Events++

	if c.lifecycle == Destroyed {
		return c.fail(fmt.Errorf("%w: already destroyed", ErrInvalidState))
	}
	var errs []error
	if c.lifecycle == VolumeLoaded || c.lifecycle == ToolActive {
		for _, key := range c.store.Keys() {
			if err := c.renderer.Release(key); err != nil {
				errs = append(errs, fmt.Errorf("releasing %q: %w", key, err))
			}
		}
	}
	c.handlers = nil
	c.lifecycle = Destroyed
	return errors.Join(errs...)
}

func (c *Coordinator) requireVolume() error {
	if c.lifecycle != VolumeLoaded && c.lifecycle != ToolActive {
		return fmt.Errorf("%w: volume required, coordinator is %v", ErrInvalidState, c.lifecycle)
	}
	return nil
}

func (c *Coordinator) fail(err error) error {
	c.diag.LastError = err.Error()
	if errors.Is(err, ErrInvalidState) {
		c.log.Warn(err)
	} else {
		c.log.Debug(err)
	}
	return err
}

func (c *Coordinator) installTool(tool models.Tool) error {
	handlers := make(map[models.ViewKey]Interactor, len(c.store.keys))
	for _, key := range c.store.Keys() {
		h, err := newInteractor(c, key, tool)
		if err != nil {
			return err
		}
		handlers[key] = h
	}
	c.handlers = handlers
	c.tool = tool
	c.lifecycle = ToolActive
	return nil
}

// pushView sends every piece of a view's state to the renderer
func (c *Coordinator) pushView(key models.ViewKey) error {
	vs, err := c.store.Get(key)
	if err != nil {
		return err
	}
	r := c.renderer
	normal, up, err := Orientation(vs, c.opts.Epsilon)
	if err != nil {
		return fmt.Errorf("orienting %q: %w", key, err)
	}
	if err := r.SetSliceNormalAndUp(key, normal, up); err != nil {
		return err
	}
	if err := r.SetSlabThickness(key, vs.SliceThickness); err != nil {
		return err
	}
	if err := r.SetBlendMode(key, EffectiveBlendMode(vs, c.opts.MIPThreshold)); err != nil {
		return err
	}
	if err := r.SetWindowLevel(key, vs.Window.Width, vs.Window.Center); err != nil {
		return err
	}
	return r.Render(key)
}

func (c *Coordinator) pushOrientation(key models.ViewKey) error {
	vs, err := c.store.Get(key)
	if err != nil {
		return err
	}
	normal, up, err := Orientation(vs, c.opts.Epsilon)
	if err != nil {
		return fmt.Errorf("orienting %q: %w", key, err)
	}
	if err := c.renderer.SetSliceNormalAndUp(key, normal, up); err != nil {
		return err
	}
	return c.renderer.Render(key)
}

// updateIntersection solves for the common point of the three camera
// planes. The new point is computed in full before it is stored.
func (c *Coordinator) updateIntersection() error {
	keys := c.store.Keys()
	planes := make([]models.Plane, 0, len(keys))
	for _, key := range keys {
		fp, err := c.renderer.CameraFocalPoint(key)
		if err != nil {
			return err
		}
		dir, err := c.renderer.CameraDirection(key)
		if err != nil {
			return err
		}
		planes = append(planes, models.Plane{Position: fp, Normal: dir})
	}

	p, err := geometry.Intersect(planes[0], planes[1], planes[2], c.opts.Epsilon)
	if errors.Is(err, geometry.ErrDegenerate) {
		c.diag.SolverFailures++
		c.store.MarkStale()
		c.log.Debugf("slice planes do not intersect, keeping %v", c.store.Intersection())
		return nil
	}
	if err != nil {
		return err
	}

	c.store.SetIntersection(p)
	c.log.Debugf("updating slice intersection %v", p)
	return c.updateCenters(p)
}

func (c *Coordinator) crosshairSelect(key models.ViewKey, worldPos r3.Vec) error {
	if _, err := c.store.Index(key); err != nil {
		return err
	}
	if !geometry.Finite(worldPos) {
		return fmt.Errorf("crosshair position %v: %w", worldPos, ErrDegenerateGeometry)
	}

	// compute every target slice before touching any view
	others := c.store.Others(key)
	slices := make([]float64, len(others))
	for i, k := range others {
		dir, err := c.renderer.CameraDirection(k)
		if err != nil {
			return err
		}
		if slices[i], err = geometry.SliceCoordinate(worldPos, dir, c.opts.Epsilon); err != nil {
			return fmt.Errorf("camera direction of %q: %w", k, err)
		}
	}

	c.store.SetIntersection(worldPos)
	for i, k := range others {
		if err := c.renderer.SetSlice(k, slices[i]); err != nil {
			return err
		}
		if err := c.renderer.Render(k); err != nil {
			return err
		}
	}
	return c.updateCenters(worldPos)
}

// updateCenters records where p appears in every view
func (c *Coordinator) updateCenters(p r3.Vec) error {
	for _, key := range c.store.Keys() {
		d, err := c.renderer.WorldToDisplay(key, p)
		if err != nil {
			return err
		}
		c.store.SetCenter(key, d)
	}
	return nil
}

func (c *Coordinator) updateWindowLevel(key models.ViewKey, center, width float64) error {
	if _, err := c.store.Index(key); err != nil {
		return err
	}
	window := models.Window{Center: center, Width: width}
	if !window.Finite() {
		return fmt.Errorf("window must be finite, got %v/%v", width, center)
	}

	targets := []models.ViewKey{key}
	if c.opts.SyncWindowLevels {
		targets = append(targets, c.store.Others(key)...)
	}
	for _, k := range targets {
		if err := c.store.Set(k, ViewPatch{Window: &window}); err != nil {
			return err
		}
		if err := c.renderer.SetWindowLevel(k, width, center); err != nil {
			return err
		}
		if err := c.renderer.Render(k); err != nil {
			return err
		}
	}
	return nil
}
