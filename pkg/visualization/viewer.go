// Package visualization is a headless software renderer for the MPR
// coordinator. Every view owns a parallel-projection camera looking into a
// shared volume; Render resamples the volume on the camera's focal plane
// into a 16-bit grayscale frame that can be written to disk.
package visualization

import (
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"mprviewer/internal/models"
	"mprviewer/pkg/config"
	"mprviewer/pkg/geometry"
	"mprviewer/pkg/mpr"
)

var _ mpr.Renderer = (*Viewer)(nil)

// viewAngle is the perspective angle used to place the camera eye point.
// Frames are always rendered with a parallel projection.
const viewAngle = math.Pi / 2

type camera struct {
	focal r3.Vec
	// dir is the unit direction of projection
	dir r3.Vec
	// up is the unit view-up vector, perpendicular to dir
	up       r3.Vec
	distance float64
	// scale is half the visible height in world units
	scale float64
}

func (c camera) position() r3.Vec {
	return r3.Sub(c.focal, r3.Scale(c.distance, c.dir))
}

func (c camera) right() r3.Vec {
	return r3.Cross(c.dir, c.up)
}

type view struct {
	actor     *volumeActor
	cam       camera
	thickness float64
	blend     models.BlendMode
	window    models.Window
	frame     *image.Gray16
	rendered  int
}

// Viewer implements mpr.Renderer without a display
type Viewer struct {
	mu sync.RWMutex

	// frame size of every view in pixels
	width  int
	height int

	// workers is the number of goroutines sharing one frame
	workers int

	actors []*volumeActor
	views  map[models.ViewKey]*view

	log *logrus.Entry
}

// NewViewer creates a renderer producing width x height frames. Sizes and
// worker counts below one are raised to one.
func NewViewer(width, height, workers int, log *logrus.Entry) *Viewer {
	width, height, workers = max(width, 1), max(height, 1), max(workers, 1)
	if log == nil {
		log = config.NamedLogger("visualization", false)
	}
	return &Viewer{
		width:   width,
		height:  height,
		workers: workers,
		views:   make(map[models.ViewKey]*view),
		log:     log,
	}
}

// NewViewerFromConfig creates a renderer with the configured frame size
func NewViewerFromConfig(cfg *config.Config) *Viewer {
	return NewViewer(cfg.Render.Width, cfg.Render.Height, cfg.Render.Workers,
		config.NamedLogger("visualization", cfg.Output.Verbose))
}

// CreateVolumeActor uploads v and returns its handle
func (v *Viewer) CreateVolumeActor(vol *models.Volume) (mpr.VolumeHandle, error) {
	if err := vol.Validate(); err != nil {
		return 0, err
	}
	a, err := newVolumeActor(vol)
	if err != nil {
		return 0, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.actors = append(v.actors, a)
	v.log.Debugf("volume actor %d: bounds %v, range [%g, %g]", len(v.actors), a.bounds, a.lo, a.hi)
	return mpr.VolumeHandle(len(v.actors)), nil
}

func (v *Viewer) actor(h mpr.VolumeHandle) (*volumeActor, error) {
	if h < 1 || int(h) > len(v.actors) {
		return nil, fmt.Errorf("unknown volume handle %d", h)
	}
	return v.actors[h-1], nil
}

// Bounds returns the world bounds of a volume's voxel centers
func (v *Viewer) Bounds(h mpr.VolumeHandle) (geometry.Bounds, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	a, err := v.actor(h)
	if err != nil {
		return geometry.Bounds{}, err
	}
	return a.bounds, nil
}

// ScalarRange returns the smallest and largest sample of a volume
func (v *Viewer) ScalarRange(h mpr.VolumeHandle) (float64, float64, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	a, err := v.actor(h)
	if err != nil {
		return 0, 0, err
	}
	return a.lo, a.hi, nil
}

// AttachVolume shows a volume in a view, with the camera on the volume center
// looking along the volume's Z axis.
func (v *Viewer) AttachVolume(key models.ViewKey, h mpr.VolumeHandle) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	a, err := v.actor(h)
	if err != nil {
		return err
	}
	diagonal := a.bounds.Diagonal()
	v.views[key] = &view{
		actor: a,
		cam: camera{
			focal:    a.bounds.Center(),
			dir:      a.orient(r3.Vec{Z: 1}),
			up:       a.orient(r3.Vec{Y: -1}),
			distance: diagonal / (2 * math.Tan(viewAngle/2)),
			scale:    math.Max(diagonal/2, 1),
		},
		window: models.WindowFromRange(a.lo, a.hi),
	}
	return nil
}

// Release drops a view and its last frame
func (v *Viewer) Release(key models.ViewKey) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.views[key]; !ok {
		return fmt.Errorf("view %q has no volume", key)
	}
	delete(v.views, key)
	return nil
}

func (v *Viewer) view(key models.ViewKey) (*view, error) {
	vw, ok := v.views[key]
	if !ok {
		return nil, fmt.Errorf("view %q has no volume", key)
	}
	return vw, nil
}

// CameraFocalPoint returns the focal point of a view's camera
func (v *Viewer) CameraFocalPoint(key models.ViewKey) (r3.Vec, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	vw, err := v.view(key)
	if err != nil {
		return r3.Vec{}, err
	}
	return vw.cam.focal, nil
}

// CameraDirection returns the direction of projection of a view's camera
func (v *Viewer) CameraDirection(key models.ViewKey) (r3.Vec, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	vw, err := v.view(key)
	if err != nil {
		return r3.Vec{}, err
	}
	return vw.cam.dir, nil
}

// CameraPosition returns the eye point of a view's camera
func (v *Viewer) CameraPosition(key models.ViewKey) (r3.Vec, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	vw, err := v.view(key)
	if err != nil {
		return r3.Vec{}, err
	}
	return vw.cam.position(), nil
}

// SetSliceNormalAndUp points a view's camera along normal. Both vectors are
// given in the volume's index frame and mapped through its direction
// cosines; the focal point stays where it is.
func (v *Viewer) SetSliceNormalAndUp(key models.ViewKey, normal, up r3.Vec) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	vw, err := v.view(key)
	if err != nil {
		return err
	}

	n, err := geometry.Normalize(vw.actor.orient(normal), geometry.DefaultEpsilon)
	if err != nil {
		return fmt.Errorf("slice normal of %q: %w", key, err)
	}
	u := vw.actor.orient(up)
	u = r3.Sub(u, r3.Scale(r3.Dot(u, n), n))
	if u, err = geometry.Normalize(u, geometry.DefaultEpsilon); err != nil {
		return fmt.Errorf("view up of %q: %w", key, err)
	}

	vw.cam.dir, vw.cam.up = n, u
	return nil
}

// SetSlabThickness sets the slab thickness of a view in world units
func (v *Viewer) SetSlabThickness(key models.ViewKey, thickness float64) error {
	if thickness < 0 || math.IsNaN(thickness) || math.IsInf(thickness, 0) {
		return fmt.Errorf("invalid slab thickness %v", thickness)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	vw, err := v.view(key)
	if err != nil {
		return err
	}
	vw.thickness = thickness
	return nil
}

// SetBlendMode sets how the samples of a slab are combined
func (v *Viewer) SetBlendMode(key models.ViewKey, mode models.BlendMode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid blend mode %v", mode)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	vw, err := v.view(key)
	if err != nil {
		return err
	}
	vw.blend = mode
	return nil
}

// SetWindowLevel sets the grayscale mapping of a view
func (v *Viewer) SetWindowLevel(key models.ViewKey, width, center float64) error {
	w := models.Window{Center: center, Width: width}
	if !w.Finite() {
		return fmt.Errorf("invalid window %v/%v", width, center)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	vw, err := v.view(key)
	if err != nil {
		return err
	}
	vw.window = w
	return nil
}

// Slice returns the focal point's coordinate along the direction of projection
func (v *Viewer) Slice(key models.ViewKey) (float64, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	vw, err := v.view(key)
	if err != nil {
		return 0, err
	}
	return geometry.SliceCoordinate(vw.cam.focal, vw.cam.dir, geometry.DefaultEpsilon)
}

// SliceRange returns the slice coordinates spanned by the volume
func (v *Viewer) SliceRange(key models.ViewKey) (float64, float64, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	vw, err := v.view(key)
	if err != nil {
		return 0, 0, err
	}
	return geometry.SliceRange(vw.actor.bounds, vw.cam.dir, geometry.DefaultEpsilon)
}

// SetSlice moves the camera along its direction of projection so the focal
// point lies on slice, clamped to the volume.
func (v *Viewer) SetSlice(key models.ViewKey, slice float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	vw, err := v.view(key)
	if err != nil {
		return err
	}
	lo, hi, err := geometry.SliceRange(vw.actor.bounds, vw.cam.dir, geometry.DefaultEpsilon)
	if err != nil {
		return err
	}
	current := r3.Dot(vw.cam.focal, vw.cam.dir)
	target := geometry.Clamp(slice, lo, hi)
	vw.cam.focal = r3.Add(vw.cam.focal, r3.Scale(target-current, vw.cam.dir))
	return nil
}

func (v *Viewer) pixelSize(vw *view) float64 {
	return 2 * vw.cam.scale / float64(v.height)
}

// Pan moves the camera so the image follows a display-space drag
func (v *Viewer) Pan(key models.ViewKey, delta r2.Vec) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	vw, err := v.view(key)
	if err != nil {
		return err
	}
	ps := v.pixelSize(vw)
	shift := r3.Add(r3.Scale(-delta.X*ps, vw.cam.right()), r3.Scale(delta.Y*ps, vw.cam.up))
	vw.cam.focal = r3.Add(vw.cam.focal, shift)
	return nil
}

// Zoom shrinks the visible extent by factor
func (v *Viewer) Zoom(key models.ViewKey, factor float64) error {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return fmt.Errorf("invalid zoom factor %v", factor)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	vw, err := v.view(key)
	if err != nil {
		return err
	}
	vw.cam.scale /= factor
	return nil
}

// WorldToDisplay projects p onto a view. Display coordinates start at the
// top-left pixel with Y pointing down.
func (v *Viewer) WorldToDisplay(key models.ViewKey, p r3.Vec) (r2.Vec, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	vw, err := v.view(key)
	if err != nil {
		return r2.Vec{}, err
	}
	ps := v.pixelSize(vw)
	rel := r3.Sub(p, vw.cam.focal)
	return r2.Vec{
		X: float64(v.width)/2 + r3.Dot(rel, vw.cam.right())/ps,
		Y: float64(v.height)/2 - r3.Dot(rel, vw.cam.up)/ps,
	}, nil
}

// DisplayToWorld returns the point on the focal plane under a display position
func (v *Viewer) DisplayToWorld(key models.ViewKey, p r2.Vec) (r3.Vec, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	vw, err := v.view(key)
	if err != nil {
		return r3.Vec{}, err
	}
	return v.planePoint(vw, p.X, p.Y), nil
}

func (v *Viewer) planePoint(vw *view, x, y float64) r3.Vec {
	ps := v.pixelSize(vw)
	p := r3.Add(vw.cam.focal, r3.Scale((x-float64(v.width)/2)*ps, vw.cam.right()))
	return r3.Add(p, r3.Scale((float64(v.height)/2-y)*ps, vw.cam.up))
}

// Render resamples a view into its frame. Rows are split evenly between
// the workers.
func (v *Viewer) Render(key models.ViewKey) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	vw, err := v.view(key)
	if err != nil {
		return err
	}

	start := time.Now()
	img := image.NewGray16(image.Rect(0, 0, v.width, v.height))
	offsets := slabOffsets(vw.thickness, vw.blend, vw.actor.step, vw.actor.bounds.Diagonal())

	var wg sync.WaitGroup
	rowsPerWorker := (v.height + v.workers - 1) / v.workers
	for w := 0; w < v.workers; w++ {
		startRow := w * rowsPerWorker
		endRow := startRow + rowsPerWorker
		if endRow > v.height {
			endRow = v.height
		}
		if startRow >= endRow {
			break
		}

		wg.Add(1)
		go func(startRow, endRow int) {
			defer wg.Done()
			samples := make([]float64, 0, len(offsets))
			for y := startRow; y < endRow; y++ {
				for x := 0; x < v.width; x++ {
					// pixel centers
					p := v.planePoint(vw, float64(x)+0.5, float64(y)+0.5)
					samples = samples[:0]
					for _, o := range offsets {
						if s, ok := vw.actor.sample(r3.Add(p, r3.Scale(o, vw.cam.dir))); ok {
							samples = append(samples, s)
						}
					}
					if len(samples) == 0 {
						continue
					}
					img.SetGray16(x, y, grayLevel(composite(samples, vw.blend), vw.window))
				}
			}
		}(startRow, endRow)
	}
	wg.Wait()

	vw.frame = img
	vw.rendered++
	v.log.Debugf("rendered %s (%v, slab %.2f) in %v", key, vw.blend, vw.thickness, time.Since(start))
	return nil
}

// Frame returns the last rendered frame of a view
func (v *Viewer) Frame(key models.ViewKey) (*image.Gray16, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	vw, err := v.view(key)
	if err != nil {
		return nil, err
	}
	if vw.frame == nil {
		return nil, fmt.Errorf("view %q has not been rendered", key)
	}
	return vw.frame, nil
}

// RenderCount returns how many frames a view has rendered
func (v *Viewer) RenderCount(key models.ViewKey) int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if vw, ok := v.views[key]; ok {
		return vw.rendered
	}
	return 0
}

// SaveFrame saves the last frame of a view as a JPEG image
func (v *Viewer) SaveFrame(key models.ViewKey, filename string) error {
	img, err := v.Frame(key)
	if err != nil {
		return err
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveFrames writes the last frame of every view into outputDir as
// <prefix>_<view>.jpg and returns the written paths.
func (v *Viewer) SaveFrames(outputDir, prefix string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	v.mu.RLock()
	keys := make([]string, 0, len(v.views))
	for k := range v.views {
		keys = append(keys, string(k))
	}
	v.mu.RUnlock()
	sort.Strings(keys)

	paths := make([]string, 0, len(keys))
	for _, k := range keys {
		filename := filepath.Join(outputDir, fmt.Sprintf("%s_%s.jpg", prefix, k))
		if err := v.SaveFrame(models.ViewKey(k), filename); err != nil {
			return paths, err
		}
		paths = append(paths, filename)
	}
	return paths, nil
}
