package mpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"mprviewer/internal/models"
	"mprviewer/pkg/geometry"
)

func TestNewStoreDefaultsAreOrthogonal(t *testing.T) {
	s, err := NewStore(models.DefaultViewKeys, geometry.DefaultEpsilon)
	require.NoError(t, err)

	keys := s.Keys()
	for i, a := range keys {
		va, err := s.Get(a)
		require.NoError(t, err)
		assert.InDelta(t, 1, r3.Norm(va.SliceNormal), 1e-6, "%s normal", a)
		assert.InDelta(t, 1, r3.Norm(va.ViewUp), 1e-6, "%s up", a)
		assert.False(t, geometry.Parallel(va.SliceNormal, va.ViewUp, 1e-6))
		assert.Equal(t, models.BlendNone, va.BlendMode)

		for _, b := range keys[i+1:] {
			vb, err := s.Get(b)
			require.NoError(t, err)
			assert.InDelta(t, 0, r3.Dot(va.SliceNormal, vb.SliceNormal), 1e-6, "%s . %s", a, b)
		}
	}
}

func TestNewStoreRejectsBadKeys(t *testing.T) {
	_, err := NewStore([]models.ViewKey{"top", "left"}, 0)
	assert.ErrorIs(t, err, ErrUnknownViewKey)

	_, err = NewStore([]models.ViewKey{"top", "top", "front"}, 0)
	assert.ErrorIs(t, err, ErrUnknownViewKey)

	_, err = NewStore([]models.ViewKey{"top", "", "front"}, 0)
	assert.ErrorIs(t, err, ErrUnknownViewKey)
}

func TestStoreSet(t *testing.T) {
	s, err := NewStore(models.DefaultViewKeys, 0)
	require.NoError(t, err)

	thickness := 3.0
	mode := models.BlendAverage
	require.NoError(t, s.Set("left", ViewPatch{SliceThickness: &thickness, BlendMode: &mode}))

	vs, err := s.Get("left")
	require.NoError(t, err)
	assert.Equal(t, 3.0, vs.SliceThickness)
	assert.Equal(t, models.BlendAverage, vs.BlendMode)
	assert.Equal(t, r3.Vec{X: -1}, vs.SliceNormal, "untouched fields keep their value")

	// orientation vectors are normalized
	normal := r3.Vec{X: 2}
	up := r3.Vec{Y: 3}
	require.NoError(t, s.Set("top", ViewPatch{SliceNormal: &normal, ViewUp: &up}))
	vs, err = s.Get("top")
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{X: 1}, vs.SliceNormal)
	assert.Equal(t, r3.Vec{Y: 1}, vs.ViewUp)

	// a normal parallel to the up vector is rejected without side effects
	bad := r3.Vec{Y: -1}
	err = s.Set("top", ViewPatch{SliceNormal: &bad, SliceThickness: &thickness})
	assert.ErrorIs(t, err, ErrDegenerateGeometry)
	vs, err = s.Get("top")
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{X: 1}, vs.SliceNormal)
	assert.Equal(t, initialThickness, vs.SliceThickness)

	assert.ErrorIs(t, s.Set("back", ViewPatch{}), ErrUnknownViewKey)
}

func TestStoreSnapshotIsACopy(t *testing.T) {
	s, err := NewStore(models.DefaultViewKeys, 0)
	require.NoError(t, err)
	s.SetIntersection(r3.Vec{X: 1, Y: 2, Z: 3})

	snap := s.Snapshot()
	vs := snap.Views["top"]
	vs.XRotation = 45
	snap.Views["top"] = vs
	delete(snap.Views, "left")
	snap.SliceIntersection = r3.Vec{}

	again := s.Snapshot()
	assert.Len(t, again.Views, 3)
	assert.Equal(t, 0.0, again.Views["top"].XRotation)
	assert.Equal(t, r3.Vec{X: 1, Y: 2, Z: 3}, again.SliceIntersection)
}

func TestStoreStaleFlag(t *testing.T) {
	s, err := NewStore(models.DefaultViewKeys, 0)
	require.NoError(t, err)

	s.MarkStale()
	assert.True(t, s.Snapshot().IntersectionStale)
	s.SetIntersection(r3.Vec{X: 1})
	assert.False(t, s.Snapshot().IntersectionStale)
}

func TestStoreOthers(t *testing.T) {
	s, err := NewStore(models.DefaultViewKeys, 0)
	require.NoError(t, err)
	assert.Equal(t, []models.ViewKey{"top", "front"}, s.Others("left"))
}
