package models

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// IdentityDirection is the direction cosine matrix of an axis-aligned volume
var IdentityDirection = [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}

// Volume represents a 3D image grid handed to the rendering layer
type Volume struct {
	// Data is the 3D volume data as a 1D array in row-major order
	// (index = z*Width*Height + y*Width + x)
	Data []float64

	// Width is the width of the volume in voxels
	Width int

	// Height is the height of the volume in voxels
	Height int

	// Depth is the number of slices in the volume
	Depth int

	// VoxelSize is the physical size of each voxel in mm
	VoxelSize struct {
		X, Y, Z float64
	}

	// Origin is the world position of the first voxel
	Origin r3.Vec

	// Direction holds the row-major direction cosines of the index axes.
	// A zero value is treated as IdentityDirection.
	Direction [9]float64
}

// NewVolume allocates a zeroed volume with unit spacing at the world origin
func NewVolume(width, height, depth int) *Volume {
	v := &Volume{
		Data:      make([]float64, width*height*depth),
		Width:     width,
		Height:    height,
		Depth:     depth,
		Direction: IdentityDirection,
	}
	v.VoxelSize.X, v.VoxelSize.Y, v.VoxelSize.Z = 1, 1, 1
	return v
}

// Validate checks that the dimensions, spacing and data length agree
func (v *Volume) Validate() error {
	if v == nil {
		return fmt.Errorf("volume is nil")
	}
	if v.Width < 1 || v.Height < 2 || v.Depth < 2 {
		return fmt.Errorf("volume dimensions %dx%dx%d are too small", v.Width, v.Height, v.Depth)
	}
	if v.VoxelSize.X <= 0 || v.VoxelSize.Y <= 0 || v.VoxelSize.Z <= 0 {
		return fmt.Errorf("voxel size must be positive")
	}
	if len(v.Data) != v.Width*v.Height*v.Depth {
		return fmt.Errorf("volume data has %d samples, expected %d",
			len(v.Data), v.Width*v.Height*v.Depth)
	}
	return nil
}

// Index returns the flat data index of voxel (x, y, z)
func (v *Volume) Index(x, y, z int) int {
	return z*v.Width*v.Height + y*v.Width + x
}

// At returns the sample at voxel (x, y, z), or false when outside the grid
func (v *Volume) At(x, y, z int) (float64, bool) {
	if x < 0 || y < 0 || z < 0 || x >= v.Width || y >= v.Height || z >= v.Depth {
		return 0, false
	}
	return v.Data[v.Index(x, y, z)], true
}

// Dir returns the direction cosines, substituting the identity for a zero value
func (v *Volume) Dir() [9]float64 {
	if v.Direction == ([9]float64{}) {
		return IdentityDirection
	}
	return v.Direction
}
