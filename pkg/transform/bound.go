package transform

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"sparsevol/internal/models"
)

// IndexBoundToWorld maps an index-space box of voxel centers to the smallest
// world-space axis-aligned box containing all eight transformed corners.
// An empty box maps to the zero Bound.
func (t *Transform) IndexBoundToWorld(b models.CoordBBox) models.Bound {
	if b.IsEmpty() {
		return models.Bound{}
	}
	return t.BoundToWorld(models.Bound{Min: b.Min.Vec3(), Max: b.Max.Vec3()})
}

// BoundToWorld maps an index-space bound to world space by transforming its
// corners.
func (t *Transform) BoundToWorld(b models.Bound) models.Bound {
	lo := mgl64.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := mgl64.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for corner := 0; corner < 8; corner++ {
		p := b.Min
		for axis := 0; axis < 3; axis++ {
			if corner&(1<<axis) != 0 {
				p[axis] = b.Max[axis]
			}
		}
		w := t.IndexToWorld(p)
		for axis := 0; axis < 3; axis++ {
			lo[axis] = math.Min(lo[axis], w[axis])
			hi[axis] = math.Max(hi[axis], w[axis])
		}
	}
	return models.Bound{Min: lo, Max: hi}
}
