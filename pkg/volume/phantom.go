package volume

import (
	"fmt"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"mprviewer/internal/models"
)

// Phantom intensities
const (
	background = 0
	shell      = 3000
	tissue     = 1200
	ventricle  = 400
	lesion     = 2500
)

type ellipsoid struct {
	center r3.Vec
	radii  r3.Vec
	value  float64
}

// contains reports whether normalized point p lies inside e
func (e ellipsoid) contains(p r3.Vec) bool {
	d := r3.Sub(p, e.center)
	x, y, z := d.X/e.radii.X, d.Y/e.radii.Y, d.Z/e.radii.Z
	return x*x+y*y+z*z <= 1
}

// phantomShapes are painted in order; later shapes overwrite earlier ones.
// Coordinates are normalized to [-1, 1] on every axis.
var phantomShapes = []ellipsoid{
	{center: r3.Vec{}, radii: r3.Vec{X: 0.9, Y: 0.95, Z: 0.85}, value: shell},
	{center: r3.Vec{}, radii: r3.Vec{X: 0.82, Y: 0.87, Z: 0.77}, value: tissue},
	{center: r3.Vec{X: -0.2, Y: -0.1}, radii: r3.Vec{X: 0.12, Y: 0.3, Z: 0.2}, value: ventricle},
	{center: r3.Vec{X: 0.2, Y: -0.1}, radii: r3.Vec{X: 0.12, Y: 0.3, Z: 0.2}, value: ventricle},
	{center: r3.Vec{X: 0.35, Y: 0.4, Z: 0.3}, radii: r3.Vec{X: 0.1, Y: 0.1, Z: 0.1}, value: lesion},
}

// NewPhantom synthesizes a head-like test volume of nested ellipsoids.
// The asymmetric lesion makes every orientation distinguishable.
func NewPhantom(width, height, depth int) (*models.Volume, error) {
	vol := models.NewVolume(width, height, depth)
	if err := vol.Validate(); err != nil {
		return nil, fmt.Errorf("phantom: %w", err)
	}

	norm := func(i, n int) float64 {
		if n < 2 {
			return 0
		}
		return 2*float64(i)/float64(n-1) - 1
	}

	// slices are independent, so they are shared between all cores
	var wg sync.WaitGroup
	numCores := runtime.NumCPU()
	slicesPerCore := (depth + numCores - 1) / numCores

	for c := 0; c < numCores; c++ {
		startSlice := c * slicesPerCore
		endSlice := startSlice + slicesPerCore
		if endSlice > depth {
			endSlice = depth
		}
		if startSlice >= endSlice {
			break
		}

		wg.Add(1)
		go func(startSlice, endSlice int) {
			defer wg.Done()
			for z := startSlice; z < endSlice; z++ {
				for y := 0; y < height; y++ {
					for x := 0; x < width; x++ {
						p := r3.Vec{X: norm(x, width), Y: norm(y, height), Z: norm(z, depth)}
						value := float64(background)
						for _, e := range phantomShapes {
							if e.contains(p) {
								value = e.value
							}
						}
						vol.Data[vol.Index(x, y, z)] = value
					}
				}
			}
		}(startSlice, endSlice)
	}
	wg.Wait()

	return vol, nil
}
