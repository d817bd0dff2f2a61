// Package transform maps points and vectors between index space (the voxel
// lattice) and world space (where rays and sample points are given).
package transform

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrNotAffine is returned for matrices whose bottom row is not (0, 0, 0, 1).
var ErrNotAffine = errors.New("transform matrix is not affine")

// Transform is an affine bijection between index and world space. The
// forward matrix maps index to world, the inverse maps world to index.
// A Transform is immutable once built.
type Transform struct {
	forward mgl64.Mat4
	inverse mgl64.Mat4
}

// New builds a Transform from an index-to-world matrix. The matrix must be
// affine and invertible; the inverse is computed with gonum so that singular
// and ill-conditioned matrices are reported instead of silently zeroed.
func New(m mgl64.Mat4) (*Transform, error) {
	if m.At(3, 0) != 0 || m.At(3, 1) != 0 || m.At(3, 2) != 0 || m.At(3, 3) != 1 {
		return nil, ErrNotAffine
	}

	data := make([]float64, 16)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			v := m.At(r, c)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.Errorf("transform matrix has non-finite entry at (%d, %d)", r, c)
			}
			data[r*4+c] = v
		}
	}

	var inv mat.Dense
	if err := inv.Inverse(mat.NewDense(4, 4, data)); err != nil {
		return nil, errors.Wrap(err, "transform matrix is not invertible")
	}

	var inverse mgl64.Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			inverse[c*4+r] = inv.At(r, c)
		}
	}
	// Pin the affine row exactly so round trips do not pick up a w drift.
	inverse[3], inverse[7], inverse[11], inverse[15] = 0, 0, 0, 1

	return &Transform{forward: m, inverse: inverse}, nil
}

// Identity returns the transform whose index and world spaces coincide.
func Identity() *Transform {
	return &Transform{forward: mgl64.Ident4(), inverse: mgl64.Ident4()}
}

// NewScaleTranslate builds the common voxel-size-plus-origin transform:
// world = index*voxelSize + origin.
func NewScaleTranslate(voxelSize, origin mgl64.Vec3) (*Transform, error) {
	m := mgl64.Translate3D(origin[0], origin[1], origin[2]).
		Mul4(mgl64.Scale3D(voxelSize[0], voxelSize[1], voxelSize[2]))
	return New(m)
}

// FromRowMajor builds a Transform from 16 row-major matrix entries.
func FromRowMajor(values []float64) (*Transform, error) {
	if len(values) != 16 {
		return nil, errors.Errorf("transform needs 16 matrix entries, got %d", len(values))
	}
	var m mgl64.Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			m[c*4+r] = values[r*4+c]
		}
	}
	return New(m)
}

// RowMajor returns the forward matrix as 16 row-major entries.
func (t *Transform) RowMajor() []float64 {
	values := make([]float64, 16)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			values[r*4+c] = t.forward.At(r, c)
		}
	}
	return values
}

// Matrix returns the index-to-world matrix.
func (t *Transform) Matrix() mgl64.Mat4 {
	return t.forward
}

// IndexToWorld maps an index-space point to world space.
func (t *Transform) IndexToWorld(p mgl64.Vec3) mgl64.Vec3 {
	return t.forward.Mul4x1(p.Vec4(1)).Vec3()
}

// WorldToIndex maps a world-space point to index space.
func (t *Transform) WorldToIndex(p mgl64.Vec3) mgl64.Vec3 {
	return t.inverse.Mul4x1(p.Vec4(1)).Vec3()
}

// IndexToWorldDir maps an index-space vector to world space, ignoring the
// translation.
func (t *Transform) IndexToWorldDir(v mgl64.Vec3) mgl64.Vec3 {
	return t.forward.Mul4x1(v.Vec4(0)).Vec3()
}

// WorldToIndexDir maps a world-space vector to index space, ignoring the
// translation.
func (t *Transform) WorldToIndexDir(v mgl64.Vec3) mgl64.Vec3 {
	return t.inverse.Mul4x1(v.Vec4(0)).Vec3()
}

// VoxelSize returns the world-space length of one index step along each
// index axis.
func (t *Transform) VoxelSize() mgl64.Vec3 {
	return mgl64.Vec3{
		t.IndexToWorldDir(mgl64.Vec3{1, 0, 0}).Len(),
		t.IndexToWorldDir(mgl64.Vec3{0, 1, 0}).Len(),
		t.IndexToWorldDir(mgl64.Vec3{0, 0, 1}).Len(),
	}
}
