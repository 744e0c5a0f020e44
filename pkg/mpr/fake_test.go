package mpr

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"mprviewer/internal/models"
	"mprviewer/pkg/geometry"
)

type fakeView struct {
	focal     r3.Vec
	dir       r3.Vec
	up        r3.Vec
	thickness float64
	blend     models.BlendMode
	width     float64
	center    float64
	zoom      float64
	pan       r2.Vec
	attached  bool
	released  bool
	renders   int
}

// fakeRenderer keeps a camera per view and records every call
type fakeRenderer struct {
	views  map[models.ViewKey]*fakeView
	bounds geometry.Bounds
	lo, hi float64
	calls  []string
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{
		views:  make(map[models.ViewKey]*fakeView),
		bounds: geometry.Bounds{0, 100, 0, 100, 0, 100},
		lo:     0,
		hi:     1024,
	}
}

func (f *fakeRenderer) record(format string, args ...interface{}) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeRenderer) reset() {
	f.calls = nil
}

func (f *fakeRenderer) view(key models.ViewKey) (*fakeView, error) {
	v, ok := f.views[key]
	if !ok {
		return nil, fmt.Errorf("view %q not attached", key)
	}
	return v, nil
}

func (f *fakeRenderer) CreateVolumeActor(v *models.Volume) (VolumeHandle, error) {
	f.record("create")
	return 1, nil
}

func (f *fakeRenderer) Bounds(h VolumeHandle) (geometry.Bounds, error) {
	return f.bounds, nil
}

func (f *fakeRenderer) ScalarRange(h VolumeHandle) (float64, float64, error) {
	return f.lo, f.hi, nil
}

func (f *fakeRenderer) AttachVolume(key models.ViewKey, h VolumeHandle) error {
	f.record("attach %s", key)
	f.views[key] = &fakeView{
		focal:    f.bounds.Center(),
		dir:      r3.Vec{Z: 1},
		up:       r3.Vec{Y: 1},
		zoom:     1,
		attached: true,
	}
	return nil
}

func (f *fakeRenderer) Release(key models.ViewKey) error {
	v, err := f.view(key)
	if err != nil {
		return err
	}
	f.record("release %s", key)
	v.released = true
	return nil
}

func (f *fakeRenderer) CameraFocalPoint(key models.ViewKey) (r3.Vec, error) {
	v, err := f.view(key)
	if err != nil {
		return r3.Vec{}, err
	}
	return v.focal, nil
}

func (f *fakeRenderer) CameraDirection(key models.ViewKey) (r3.Vec, error) {
	v, err := f.view(key)
	if err != nil {
		return r3.Vec{}, err
	}
	return v.dir, nil
}

func (f *fakeRenderer) SetSliceNormalAndUp(key models.ViewKey, normal, up r3.Vec) error {
	v, err := f.view(key)
	if err != nil {
		return err
	}
	f.record("orient %s", key)
	v.dir, v.up = normal, up
	return nil
}

func (f *fakeRenderer) SetSlabThickness(key models.ViewKey, thickness float64) error {
	v, err := f.view(key)
	if err != nil {
		return err
	}
	f.record("thickness %s", key)
	v.thickness = thickness
	return nil
}

func (f *fakeRenderer) SetBlendMode(key models.ViewKey, mode models.BlendMode) error {
	v, err := f.view(key)
	if err != nil {
		return err
	}
	f.record("blend %s %v", key, mode)
	v.blend = mode
	return nil
}

func (f *fakeRenderer) SetWindowLevel(key models.ViewKey, width, center float64) error {
	v, err := f.view(key)
	if err != nil {
		return err
	}
	f.record("wwwl %s", key)
	v.width, v.center = width, center
	return nil
}

func (f *fakeRenderer) Slice(key models.ViewKey) (float64, error) {
	v, err := f.view(key)
	if err != nil {
		return 0, err
	}
	return geometry.SliceCoordinate(v.focal, v.dir, geometry.DefaultEpsilon)
}

func (f *fakeRenderer) SetSlice(key models.ViewKey, slice float64) error {
	v, err := f.view(key)
	if err != nil {
		return err
	}
	lo, hi, err := f.SliceRange(key)
	if err != nil {
		return err
	}
	current, err := f.Slice(key)
	if err != nil {
		return err
	}
	f.record("slice %s", key)
	dir, _ := geometry.Normalize(v.dir, geometry.DefaultEpsilon)
	v.focal = r3.Add(v.focal, r3.Scale(geometry.Clamp(slice, lo, hi)-current, dir))
	return nil
}

func (f *fakeRenderer) SliceRange(key models.ViewKey) (float64, float64, error) {
	v, err := f.view(key)
	if err != nil {
		return 0, 0, err
	}
	return geometry.SliceRange(f.bounds, v.dir, geometry.DefaultEpsilon)
}

func (f *fakeRenderer) Pan(key models.ViewKey, delta r2.Vec) error {
	v, err := f.view(key)
	if err != nil {
		return err
	}
	f.record("pan %s", key)
	v.pan = r2.Add(v.pan, delta)
	return nil
}

func (f *fakeRenderer) Zoom(key models.ViewKey, factor float64) error {
	v, err := f.view(key)
	if err != nil {
		return err
	}
	f.record("zoom %s", key)
	v.zoom *= factor
	return nil
}

func (f *fakeRenderer) WorldToDisplay(key models.ViewKey, p r3.Vec) (r2.Vec, error) {
	if _, err := f.view(key); err != nil {
		return r2.Vec{}, err
	}
	return r2.Vec{X: p.X, Y: p.Y}, nil
}

func (f *fakeRenderer) DisplayToWorld(key models.ViewKey, p r2.Vec) (r3.Vec, error) {
	v, err := f.view(key)
	if err != nil {
		return r3.Vec{}, err
	}
	return r3.Vec{X: p.X, Y: p.Y, Z: v.focal.Z}, nil
}

func (f *fakeRenderer) Render(key models.ViewKey) error {
	v, err := f.view(key)
	if err != nil {
		return err
	}
	f.record("render %s", key)
	v.renders++
	return nil
}

// callsFor returns the recorded calls that start with prefix
func (f *fakeRenderer) callsFor(prefix string) []string {
	var out []string
	for _, c := range f.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			out = append(out, c)
		}
	}
	return out
}
