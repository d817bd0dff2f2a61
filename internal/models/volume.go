package models

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Coord is an integer voxel coordinate in index space.
// Voxel centers sit on integer coordinates, so voxel (i, j, k) covers
// [i-0.5, i+0.5) x [j-0.5, j+0.5) x [k-0.5, k+0.5).
type Coord struct {
	X, Y, Z int32
}

// Vec3 returns the coordinate as a floating-point vector.
func (c Coord) Vec3() mgl64.Vec3 {
	return mgl64.Vec3{float64(c.X), float64(c.Y), float64(c.Z)}
}

// Axis returns the component along axis 0, 1 or 2.
func (c Coord) Axis(i int) int32 {
	switch i {
	case 0:
		return c.X
	case 1:
		return c.Y
	default:
		return c.Z
	}
}

// CoordBBox is an inclusive axis-aligned box of voxel coordinates.
type CoordBBox struct {
	Min, Max Coord
}

// EmptyCoordBBox returns a box that contains nothing and grows correctly
// under Expand.
func EmptyCoordBBox() CoordBBox {
	return CoordBBox{
		Min: Coord{math.MaxInt32, math.MaxInt32, math.MaxInt32},
		Max: Coord{math.MinInt32, math.MinInt32, math.MinInt32},
	}
}

// IsEmpty reports whether the box contains no voxels.
func (b CoordBBox) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Expand grows the box to include c.
func (b *CoordBBox) Expand(c Coord) {
	b.Min.X = min(b.Min.X, c.X)
	b.Min.Y = min(b.Min.Y, c.Y)
	b.Min.Z = min(b.Min.Z, c.Z)
	b.Max.X = max(b.Max.X, c.X)
	b.Max.Y = max(b.Max.Y, c.Y)
	b.Max.Z = max(b.Max.Z, c.Z)
}

// Union grows the box to include other.
func (b *CoordBBox) Union(other CoordBBox) {
	if other.IsEmpty() {
		return
	}
	b.Expand(other.Min)
	b.Expand(other.Max)
}

// Contains reports whether c lies inside the box.
func (b CoordBBox) Contains(c Coord) bool {
	return c.X >= b.Min.X && c.X <= b.Max.X &&
		c.Y >= b.Min.Y && c.Y <= b.Max.Y &&
		c.Z >= b.Min.Z && c.Z <= b.Max.Z
}

// Dim returns the number of voxels along each axis.
func (b CoordBBox) Dim() Coord {
	if b.IsEmpty() {
		return Coord{}
	}
	return Coord{b.Max.X - b.Min.X + 1, b.Max.Y - b.Min.Y + 1, b.Max.Z - b.Min.Z + 1}
}

// Bound is a floating-point axis-aligned box in either index or world space.
// The zero Bound is the degenerate "no data" bound reported for empty or
// unloaded volumes.
type Bound struct {
	Min, Max mgl64.Vec3
}

// IsZero reports whether b is the degenerate no-data bound.
func (b Bound) IsZero() bool {
	return b == Bound{}
}

// Contains reports whether p lies inside the bound, allowing eps slack on
// every face.
func (b Bound) Contains(p mgl64.Vec3, eps float64) bool {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i]-eps || p[i] > b.Max[i]+eps {
			return false
		}
	}
	return true
}

// Size returns the extent along each axis.
func (b Bound) Size() mgl64.Vec3 {
	return b.Max.Sub(b.Min)
}

// Center returns the midpoint of the bound.
func (b Bound) Center() mgl64.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}
