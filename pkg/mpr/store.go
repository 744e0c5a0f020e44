package mpr

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"mprviewer/internal/models"
	"mprviewer/pkg/geometry"
)

// Initial orientation per view position. The three normals are mutually
// perpendicular: top looks along +Z, left along -X, front along +Y.
var (
	initialNormals = [3]r3.Vec{{Z: 1}, {X: -1}, {Y: 1}}
	initialViewUps = [3]r3.Vec{{Y: -1}, {Z: 1}, {Z: 1}}
)

const initialThickness = 0.1

// ViewPatch is a partial ViewState update; nil fields are left unchanged
type ViewPatch struct {
	SliceNormal    *r3.Vec
	ViewUp         *r3.Vec
	XRotation      *float64
	YRotation      *float64
	ViewRotation   *float64
	SliceThickness *float64
	BlendMode      *models.BlendMode
	Window         *models.Window
}

// Store holds one ViewState per view key plus the shared intersection point.
// It is the coordinator's single mutable source of truth; readers get copies.
type Store struct {
	keys    []models.ViewKey
	index   map[models.ViewKey]int
	views   map[models.ViewKey]models.ViewState
	centers map[models.ViewKey]r2.Vec

	intersection r3.Vec
	stale        bool
	eps          float64
}

// NewStore creates the default orientation for exactly three distinct view keys
func NewStore(keys []models.ViewKey, eps float64) (*Store, error) {
	if len(keys) != len(initialNormals) {
		return nil, fmt.Errorf("%w: expected %d view keys, got %d",
			ErrUnknownViewKey, len(initialNormals), len(keys))
	}
	if eps <= 0 {
		eps = geometry.DefaultEpsilon
	}

	s := &Store{
		keys:    append([]models.ViewKey(nil), keys...),
		index:   make(map[models.ViewKey]int, len(keys)),
		views:   make(map[models.ViewKey]models.ViewState, len(keys)),
		centers: make(map[models.ViewKey]r2.Vec, len(keys)),
		eps:     eps,
	}
	for i, k := range keys {
		if _, dup := s.index[k]; dup || k == "" {
			return nil, fmt.Errorf("%w: %q", ErrUnknownViewKey, k)
		}
		s.index[k] = i
		s.views[k] = models.ViewState{
			SliceNormal:    initialNormals[i],
			ViewUp:         initialViewUps[i],
			SliceThickness: initialThickness,
			BlendMode:      models.BlendNone,
		}
	}
	return s, nil
}

// Keys returns the view keys in configuration order
func (s *Store) Keys() []models.ViewKey {
	return append([]models.ViewKey(nil), s.keys...)
}

// Index returns the position of key in the configured key list
func (s *Store) Index(key models.ViewKey) (int, error) {
	i, ok := s.index[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownViewKey, key)
	}
	return i, nil
}

// Others returns every key except key, in configuration order
func (s *Store) Others(key models.ViewKey) []models.ViewKey {
	out := make([]models.ViewKey, 0, len(s.keys)-1)
	for _, k := range s.keys {
		if k != key {
			out = append(out, k)
		}
	}
	return out
}

// Get returns a copy of the state of one view
func (s *Store) Get(key models.ViewKey) (models.ViewState, error) {
	vs, ok := s.views[key]
	if !ok {
		return models.ViewState{}, fmt.Errorf("%w: %q", ErrUnknownViewKey, key)
	}
	return vs, nil
}

// Set applies a partial update to one view. Orientation vectors are
// normalized; a zero-length or parallel normal/up pair is rejected with
// ErrDegenerateGeometry and nothing is written.
func (s *Store) Set(key models.ViewKey, patch ViewPatch) error {
	vs, err := s.Get(key)
	if err != nil {
		return err
	}

	if patch.SliceNormal != nil {
		vs.SliceNormal = *patch.SliceNormal
	}
	if patch.ViewUp != nil {
		vs.ViewUp = *patch.ViewUp
	}
	if patch.SliceNormal != nil || patch.ViewUp != nil {
		n, err := geometry.Normalize(vs.SliceNormal, s.eps)
		if err != nil {
			return fmt.Errorf("slice normal of %q: %w", key, err)
		}
		up, err := geometry.Normalize(vs.ViewUp, s.eps)
		if err != nil {
			return fmt.Errorf("view up of %q: %w", key, err)
		}
		if geometry.Parallel(n, up, s.eps) {
			return fmt.Errorf("slice normal and view up of %q are parallel: %w", key, ErrDegenerateGeometry)
		}
		vs.SliceNormal, vs.ViewUp = n, up
	}
	if patch.XRotation != nil {
		vs.XRotation = *patch.XRotation
	}
	if patch.YRotation != nil {
		vs.YRotation = *patch.YRotation
	}
	if patch.ViewRotation != nil {
		vs.ViewRotation = *patch.ViewRotation
	}
	if patch.SliceThickness != nil {
		vs.SliceThickness = *patch.SliceThickness
	}
	if patch.BlendMode != nil {
		vs.BlendMode = *patch.BlendMode
	}
	if patch.Window != nil {
		vs.Window = *patch.Window
	}

	s.views[key] = vs
	return nil
}

// Intersection returns the current slice intersection point
func (s *Store) Intersection() r3.Vec {
	return s.intersection
}

// SetIntersection replaces the slice intersection and clears the stale flag
func (s *Store) SetIntersection(p r3.Vec) {
	s.intersection = p
	s.stale = false
}

// MarkStale records that the last intersection update was dropped
func (s *Store) MarkStale() {
	s.stale = true
}

// SetCenter records the crosshair center of a view in display coordinates
func (s *Store) SetCenter(key models.ViewKey, c r2.Vec) {
	s.centers[key] = c
}

// Snapshot returns a deep copy of the whole state
func (s *Store) Snapshot() models.ManagerState {
	state := models.ManagerState{
		SliceIntersection: s.intersection,
		Views:             s.views,
		InteractorCenters: s.centers,
		IntersectionStale: s.stale,
	}
	return state.Clone()
}
