package mpr

import (
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"mprviewer/internal/models"
	"mprviewer/pkg/geometry"
)

// VolumeHandle identifies a volume actor created by a Renderer
type VolumeHandle int

// Renderer is the rendering layer the coordinator drives. Views are
// addressed by their key; the coordinator never renders by itself, it only
// computes which values to hand to the renderer.
type Renderer interface {
	// CreateVolumeActor uploads a volume and returns its handle
	CreateVolumeActor(v *models.Volume) (VolumeHandle, error)
	// Bounds returns the world-space bounds of a volume actor
	Bounds(h VolumeHandle) (geometry.Bounds, error)
	// ScalarRange returns the minimum and maximum sample of a volume actor
	ScalarRange(h VolumeHandle) (min, max float64, err error)
	// AttachVolume shows the volume in a view, centred on its middle slice
	AttachVolume(view models.ViewKey, h VolumeHandle) error
	// Release frees every resource held for a view
	Release(view models.ViewKey) error

	CameraFocalPoint(view models.ViewKey) (r3.Vec, error)
	CameraDirection(view models.ViewKey) (r3.Vec, error)
	SetSliceNormalAndUp(view models.ViewKey, normal, up r3.Vec) error

	SetSlabThickness(view models.ViewKey, thickness float64) error
	SetBlendMode(view models.ViewKey, mode models.BlendMode) error
	SetWindowLevel(view models.ViewKey, width, center float64) error

	// Slice returns the focal point's position along the view direction
	Slice(view models.ViewKey) (float64, error)
	// SetSlice moves the focal point along the view direction, clamped to the slice range
	SetSlice(view models.ViewKey, slice float64) error
	SliceRange(view models.ViewKey) (min, max float64, err error)

	// Pan moves the camera by a display-space delta in pixels
	Pan(view models.ViewKey, delta r2.Vec) error
	// Zoom multiplies the visible extent by factor
	Zoom(view models.ViewKey, factor float64) error

	WorldToDisplay(view models.ViewKey, p r3.Vec) (r2.Vec, error)
	DisplayToWorld(view models.ViewKey, p r2.Vec) (r3.Vec, error)

	Render(view models.ViewKey) error
}
