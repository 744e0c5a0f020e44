package mpr

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"mprviewer/internal/models"
	"mprviewer/pkg/geometry"
)

// RotationField names the rotation field of a view that a coupling writes
type RotationField int

const (
	FieldXRotation RotationField = iota
	FieldYRotation
)

func (f RotationField) String() string {
	if f == FieldXRotation {
		return "x-rotation"
	}
	return "y-rotation"
}

type coupling struct {
	target int
	field  RotationField
}

// couplings[source][axis] is the view and field driven by rotating the
// source view around its local axis. Since the views are mutually
// orthogonal, a local X/Y rotation of one view is a Y or X rotation of
// another; the table follows the initial normals in store.go.
var couplings = [3][2]coupling{
	// top: x -> front Y, y -> left Y
	{{target: 2, field: FieldYRotation}, {target: 1, field: FieldYRotation}},
	// left: x -> top X, y -> front X
	{{target: 0, field: FieldXRotation}, {target: 2, field: FieldXRotation}},
	// front: x -> top Y, y -> left X
	{{target: 0, field: FieldYRotation}, {target: 1, field: FieldXRotation}},
}

// Propagator maps rotation and thickness changes on one view onto the
// dependent view and keeps that view's orientation valid.
type Propagator struct {
	store        *Store
	eps          float64
	mipThreshold float64
}

// NewPropagator creates a propagator writing into store
func NewPropagator(store *Store, eps, mipThreshold float64) *Propagator {
	if eps <= 0 {
		eps = geometry.DefaultEpsilon
	}
	return &Propagator{store: store, eps: eps, mipThreshold: mipThreshold}
}

// Target returns the view and rotation field driven by (source, axis)
func (p *Propagator) Target(source models.ViewKey, axis models.Axis) (models.ViewKey, RotationField, error) {
	i, err := p.store.Index(source)
	if err != nil {
		return "", 0, err
	}
	if axis != models.AxisX && axis != models.AxisY {
		return "", 0, fmt.Errorf("%w: %v", ErrUnknownAxis, axis)
	}
	c := couplings[i][axis]
	return p.store.keys[c.target], c.field, nil
}

// ApplyRotation writes the absolute angle into the dependent view's rotation
// field. The write only happens if the resulting orientation is valid.
func (p *Propagator) ApplyRotation(source models.ViewKey, axis models.Axis, deg float64) (models.ViewKey, error) {
	target, field, err := p.Target(source, axis)
	if err != nil {
		return "", err
	}
	vs, err := p.store.Get(target)
	if err != nil {
		return "", err
	}

	var patch ViewPatch
	switch field {
	case FieldXRotation:
		vs.XRotation = deg
		patch.XRotation = &deg
	case FieldYRotation:
		vs.YRotation = deg
		patch.YRotation = &deg
	}
	if _, _, err := Orientation(vs, p.eps); err != nil {
		return "", fmt.Errorf("rotating %q: %w", target, err)
	}

	return target, p.store.Set(target, patch)
}

// ApplyViewRotation sets the in-plane rotation of a view itself
func (p *Propagator) ApplyViewRotation(key models.ViewKey, deg float64) error {
	vs, err := p.store.Get(key)
	if err != nil {
		return err
	}
	vs.ViewRotation = deg
	if _, _, err := Orientation(vs, p.eps); err != nil {
		return fmt.Errorf("rotating %q: %w", key, err)
	}
	return p.store.Set(key, ViewPatch{ViewRotation: &deg})
}

// ApplyThickness sets the slab thickness of the dependent view. A slab
// thicker than the MIP threshold switches blending from none to MIP; an
// explicitly chosen mode is left alone. The returned flag reports whether
// the target needs a re-render.
func (p *Propagator) ApplyThickness(source models.ViewKey, axis models.Axis, thickness float64) (models.ViewKey, bool, error) {
	target, _, err := p.Target(source, axis)
	if err != nil {
		return "", false, err
	}
	vs, err := p.store.Get(target)
	if err != nil {
		return "", false, err
	}

	before := EffectiveBlendMode(vs, p.mipThreshold)
	rerender := vs.SliceThickness != thickness

	patch := ViewPatch{SliceThickness: &thickness}
	if thickness > p.mipThreshold && vs.BlendMode == models.BlendNone {
		mip := models.BlendMIP
		patch.BlendMode = &mip
		vs.BlendMode = mip
	}
	vs.SliceThickness = thickness
	if EffectiveBlendMode(vs, p.mipThreshold) != before {
		rerender = true
	}

	return target, rerender, p.store.Set(target, patch)
}

// EffectiveBlendMode is the blend mode actually used for rendering: slabs
// at or below the threshold always composite.
func EffectiveBlendMode(vs models.ViewState, threshold float64) models.BlendMode {
	if vs.SliceThickness <= threshold {
		return models.BlendNone
	}
	return vs.BlendMode
}

// Orientation composes a view's base vectors with its rotation fields:
// the X rotation turns around unit(up x normal), the Y rotation around the
// base up vector, and the view rotation spins the up vector in-plane around
// the resulting normal. The returned vectors are unit length and orthogonal.
func Orientation(vs models.ViewState, eps float64) (normal, up r3.Vec, err error) {
	n, err := geometry.Normalize(vs.SliceNormal, eps)
	if err != nil {
		return r3.Vec{}, r3.Vec{}, err
	}
	u, err := geometry.Normalize(vs.ViewUp, eps)
	if err != nil {
		return r3.Vec{}, r3.Vec{}, err
	}
	xAxis, err := geometry.Normalize(r3.Cross(u, n), eps)
	if err != nil {
		return r3.Vec{}, r3.Vec{}, err
	}
	// make up exactly perpendicular to the normal before rotating
	u = r3.Cross(n, xAxis)

	if n, err = geometry.Rotate(n, vs.XRotation, xAxis, eps); err != nil {
		return r3.Vec{}, r3.Vec{}, err
	}
	if up, err = geometry.Rotate(u, vs.XRotation, xAxis, eps); err != nil {
		return r3.Vec{}, r3.Vec{}, err
	}
	if n, err = geometry.Rotate(n, vs.YRotation, u, eps); err != nil {
		return r3.Vec{}, r3.Vec{}, err
	}
	if up, err = geometry.Rotate(up, vs.YRotation, u, eps); err != nil {
		return r3.Vec{}, r3.Vec{}, err
	}
	// negative: the spin axis is really the direction of projection
	if up, err = geometry.Rotate(up, -vs.ViewRotation, n, eps); err != nil {
		return r3.Vec{}, r3.Vec{}, err
	}

	if normal, err = geometry.Normalize(n, eps); err != nil {
		return r3.Vec{}, r3.Vec{}, err
	}
	if up, err = geometry.Normalize(up, eps); err != nil {
		return r3.Vec{}, r3.Vec{}, err
	}
	return normal, up, nil
}
