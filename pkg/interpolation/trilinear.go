package interpolation

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"sparsevol/internal/models"
	"sparsevol/pkg/transform"
)

// ValueSource is the voxel lookup a sampler needs. Inactive voxels must
// return the background value.
type ValueSource interface {
	ValueAt(c models.Coord) float32
	Background() float32
}

// Trilinear samples a voxel field at arbitrary world-space positions by
// blending the 8 voxels surrounding the point.
type Trilinear struct {
	source ValueSource
	xform  *transform.Transform
}

// NewTrilinear creates a sampler over source using xform to reach index space.
func NewTrilinear(source ValueSource, xform *transform.Transform) *Trilinear {
	return &Trilinear{source: source, xform: xform}
}

// Sample returns the interpolated value at a world-space point.
func (s *Trilinear) Sample(world mgl64.Vec3) float64 {
	return s.SampleIndex(s.xform.WorldToIndex(world))
}

// SampleIndex returns the interpolated value at an index-space point.
// Points that are not finite, or whose neighbourhood falls outside the int32
// lattice, sample as the background value.
func (s *Trilinear) SampleIndex(p mgl64.Vec3) float64 {
	var base [3]int32
	var frac [3]float64
	for axis := 0; axis < 3; axis++ {
		f := math.Floor(p[axis])
		if math.IsNaN(f) || f < math.MinInt32 || f > math.MaxInt32-1 {
			return float64(s.source.Background())
		}
		base[axis] = int32(f)
		frac[axis] = p[axis] - f
	}

	// Corner values indexed by bit 0 = x, bit 1 = y, bit 2 = z.
	var v [8]float64
	for corner := 0; corner < 8; corner++ {
		c := models.Coord{
			X: base[0] + int32(corner&1),
			Y: base[1] + int32((corner>>1)&1),
			Z: base[2] + int32((corner>>2)&1),
		}
		v[corner] = float64(s.source.ValueAt(c))
	}

	fx, fy, fz := frac[0], frac[1], frac[2]
	x00 := lerp(v[0], v[1], fx)
	x10 := lerp(v[2], v[3], fx)
	x01 := lerp(v[4], v[5], fx)
	x11 := lerp(v[6], v[7], fx)
	y0 := lerp(x00, x10, fy)
	y1 := lerp(x01, x11, fy)
	return lerp(y0, y1, fz)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
