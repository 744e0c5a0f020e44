package visualization

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"mprviewer/internal/models"
	"mprviewer/pkg/geometry"
)

// volumeActor is a volume placed in world space. Index (i, j, k) maps to
// Origin + Dᵀ·S·(i, j, k) where the rows of D are the direction cosines of
// the index axes and S holds the voxel spacing.
type volumeActor struct {
	vol *models.Volume

	dir     *mat.Dense
	toWorld [9]float64
	toIndex [9]float64

	bounds geometry.Bounds
	lo, hi float64
	// step is the smallest voxel spacing
	step float64
}

func newVolumeActor(v *models.Volume) (*volumeActor, error) {
	d := v.Dir()
	dir := mat.NewDense(3, 3, d[:])
	spacing := []float64{v.VoxelSize.X, v.VoxelSize.Y, v.VoxelSize.Z}

	var m mat.Dense
	m.Mul(dir.T(), mat.NewDiagDense(3, spacing))
	var inv mat.Dense
	if err := inv.Inverse(&m); err != nil {
		return nil, fmt.Errorf("volume direction cannot be inverted: %w", err)
	}

	a := &volumeActor{
		vol:  v,
		dir:  dir,
		lo:   floats.Min(v.Data),
		hi:   floats.Max(v.Data),
		step: floats.Min(spacing),
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			a.toWorld[i*3+j] = m.At(i, j)
			a.toIndex[i*3+j] = inv.At(i, j)
		}
	}

	last := r3.Vec{X: float64(v.Width - 1), Y: float64(v.Height - 1), Z: float64(v.Depth - 1)}
	var corners []r3.Vec
	for _, i := range []float64{0, last.X} {
		for _, j := range []float64{0, last.Y} {
			for _, k := range []float64{0, last.Z} {
				corners = append(corners, a.world(r3.Vec{X: i, Y: j, Z: k}))
			}
		}
	}
	a.bounds = geometry.BoundsOfPoints(corners...)
	return a, nil
}

func mul3(m [9]float64, v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m[0]*v.X + m[1]*v.Y + m[2]*v.Z,
		Y: m[3]*v.X + m[4]*v.Y + m[5]*v.Z,
		Z: m[6]*v.X + m[7]*v.Y + m[8]*v.Z,
	}
}

// world maps continuous index coordinates to world space
func (a *volumeActor) world(idx r3.Vec) r3.Vec {
	return r3.Add(a.vol.Origin, mul3(a.toWorld, idx))
}

// index maps a world point to continuous index coordinates
func (a *volumeActor) index(p r3.Vec) r3.Vec {
	return mul3(a.toIndex, r3.Sub(p, a.vol.Origin))
}

// sample returns the nearest voxel to world point p
func (a *volumeActor) sample(p r3.Vec) (float64, bool) {
	idx := a.index(p)
	return a.vol.At(int(math.Round(idx.X)), int(math.Round(idx.Y)), int(math.Round(idx.Z)))
}

// orient maps a direction from the volume's index frame to world space
func (a *volumeActor) orient(v r3.Vec) r3.Vec {
	var out mat.VecDense
	out.MulVec(a.dir.T(), mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return r3.Vec{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}

// slabOffsets returns the sample offsets along the direction of projection.
// Without blending only the focal plane is sampled. A slab never extends
// further than limit, the length of the volume's diagonal.
func slabOffsets(thickness float64, mode models.BlendMode, step, limit float64) []float64 {
	if mode == models.BlendNone || !(thickness >= step) || step <= 0 {
		return []float64{0}
	}
	if thickness > limit {
		thickness = math.Max(limit, step)
	}
	n := int(math.Floor(thickness/step)) + 1
	offsets := make([]float64, n)
	floats.Span(offsets, -thickness/2, thickness/2)
	return offsets
}

// composite combines the samples of one ray
func composite(samples []float64, mode models.BlendMode) float64 {
	switch mode {
	case models.BlendMIP:
		return floats.Max(samples)
	case models.BlendMinIP:
		return floats.Min(samples)
	case models.BlendAverage:
		return stat.Mean(samples, nil)
	}
	return samples[len(samples)/2]
}

// grayLevel maps value through the window onto the 16-bit gray range
func grayLevel(value float64, w models.Window) color.Gray16 {
	lower, upper := w.Range()
	if upper <= lower {
		if value >= upper {
			return color.Gray16{Y: 65535}
		}
		return color.Gray16{}
	}
	t := (value - lower) / (upper - lower)
	if math.IsNaN(t) {
		return color.Gray16{}
	}
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, math.Round(t*65535))))}
}
