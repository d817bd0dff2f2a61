// Package volume ties a sparse voxel store to its transform and exposes the
// queries a renderer or simulation needs: world bounds, the value range,
// point sampling and ray marching.
package volume

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"sparsevol/internal/models"
	"sparsevol/pkg/interpolation"
	"sparsevol/pkg/march"
	"sparsevol/pkg/transform"
)

// Store is the voxel storage a Volume is built on.
type Store interface {
	march.Hierarchy
	interpolation.ValueSource

	// ActiveIndexBound returns the inclusive box of active voxels.
	ActiveIndexBound() models.CoordBBox
	// ScanMinMax traverses every active voxel. It is called once per Volume.
	ScanMinMax() (lo, hi float32, ok bool)
	ActiveValues() []float64
	ActiveVoxelCount() uint64
	LeafCount() int
}

// Volume is a loaded store together with the quantities derived from it at
// load time. A Volume never changes after NewVolume returns.
type Volume struct {
	store Store
	xform *transform.Transform

	// indexBound is the box of active voxel centres in index space.
	indexBound models.CoordBBox

	// worldBound is indexBound mapped through xform.
	worldBound models.Bound

	// min and max come from the single full scan made by NewVolume.
	min, max float64

	sampler *interpolation.Trilinear
	marcher *march.Marcher
}

// NewVolume builds a Volume over store and caches its bounds and value
// range. store must not be modified afterwards.
//
// Parameters:
//   - store: the voxel storage, usually a *grid.Grid
//   - xform: the index-to-world transform of store
//
// Returns:
//   - The Volume, or an error if either argument is missing
func NewVolume(store Store, xform *transform.Transform) (*Volume, error) {
	if store == nil {
		return nil, errors.New("volume store is nil")
	}
	if xform == nil {
		return nil, errors.New("volume transform is nil")
	}

	v := &Volume{
		store:      store,
		xform:      xform,
		indexBound: store.ActiveIndexBound(),
	}
	v.worldBound = xform.IndexBoundToWorld(v.indexBound)

	lo, hi, _ := store.ScanMinMax()
	v.min, v.max = float64(lo), float64(hi)

	v.sampler = interpolation.NewTrilinear(store, xform)
	v.marcher = march.New(store, xform, v.indexBound)
	return v, nil
}

// Store returns the underlying voxel storage.
func (v *Volume) Store() Store { return v.store }

// Transform returns the index-to-world transform.
func (v *Volume) Transform() *transform.Transform { return v.xform }

// IndexBound returns the index-space box of active voxels. It is empty when
// the store has no active voxels.
func (v *Volume) IndexBound() models.CoordBBox { return v.indexBound }

// Bound returns the world-space bound of the active voxels, or the zero
// Bound when there are none.
func (v *Volume) Bound() models.Bound { return v.worldBound }

// Min returns the smallest active value found at load time.
func (v *Volume) Min() float64 { return v.min }

// Max returns the largest active value found at load time.
func (v *Volume) Max() float64 { return v.max }

// IsEmpty reports whether the volume has no active voxels.
func (v *Volume) IsEmpty() bool { return v.indexBound.IsEmpty() }

// Sample returns the trilinearly interpolated value at a world-space point.
func (v *Volume) Sample(p mgl64.Vec3) float64 {
	return v.sampler.Sample(p)
}

// March samples ray at the multiples of step that fall in active space.
func (v *Volume) March(ray models.Ray, step float64, fn march.Callback) (march.Result, error) {
	return v.marcher.March(ray, step, fn)
}

// Spans returns the active time spans of ray.
func (v *Volume) Spans(ray models.Ray) []models.TimeSpan {
	return v.marcher.Spans(ray)
}
