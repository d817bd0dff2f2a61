// Package grid implements a sparse scalar voxel store organised as a
// four-level tree: a root table of upper nodes (32³ children), lower nodes
// (16³ children) and leaves of 8³ voxels. A node exists only while it holds
// at least one active voxel, which makes every level usable as an
// emptiness query for ray traversal.
package grid

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"sparsevol/internal/models"
)

// Hierarchy levels, from voxel resolution up to the coarsest node.
const (
	VoxelLevel = 0
	LeafLevel  = 1
	LowerLevel = 2
	UpperLevel = 3
)

// log2 of the number of voxels spanned per axis at each level.
const (
	leafTotalLog2  = 3
	lowerTotalLog2 = 7
	upperTotalLog2 = 12
)

var levelLog2 = [...]uint{0, leafTotalLog2, lowerTotalLog2, upperTotalLog2}

type leafNode struct {
	origin models.Coord
	mask   Mask512
	values [512]float32
}

type lowerNode struct {
	origin    models.Coord
	childMask Mask4096
	children  map[uint32]*leafNode
}

type upperNode struct {
	origin    models.Coord
	childMask Mask32768
	children  map[uint32]*lowerNode
}

// Grid is a sparse float volume. Inactive voxels read as the background
// value. Grid is not safe for concurrent mutation; concurrent reads are fine.
type Grid struct {
	name       string
	background float32
	root       map[models.Coord]*upperNode
}

// New creates an empty grid with the given background value.
func New(background float32) *Grid {
	return &Grid{
		name:       "density",
		background: background,
		root:       make(map[models.Coord]*upperNode),
	}
}

// Name returns the grid name.
func (g *Grid) Name() string { return g.name }

// SetName renames the grid.
func (g *Grid) SetName(name string) { g.name = name }

// Background returns the value reported for inactive voxels.
func (g *Grid) Background() float32 { return g.background }

// LevelDim returns the number of voxels spanned per axis by one block at the
// given level.
func (g *Grid) LevelDim(level int) int32 {
	return LevelDim(level)
}

// TopLevel returns the coarsest level below the root table.
func (g *Grid) TopLevel() int { return UpperLevel }

// LevelDim returns the block size per axis at the given level.
func LevelDim(level int) int32 {
	if level < VoxelLevel || level > UpperLevel {
		return 0
	}
	return 1 << levelLog2[level]
}

func originOf(c models.Coord, log2 uint) models.Coord {
	mask := ^int32((1 << log2) - 1)
	return models.Coord{X: c.X & mask, Y: c.Y & mask, Z: c.Z & mask}
}

// childIndex returns the linear index of the child containing c inside a
// node spanning 2^parentLog2 voxels whose children span 2^childLog2 voxels.
func childIndex(c models.Coord, parentLog2, childLog2 uint) uint32 {
	n := parentLog2 - childLog2
	local := uint32(1)<<parentLog2 - 1
	x := (uint32(c.X) & local) >> childLog2
	y := (uint32(c.Y) & local) >> childLog2
	z := (uint32(c.Z) & local) >> childLog2
	return x<<(2*n) | y<<n | z
}

// voxelOffset is the inverse of childIndex inside a leaf.
func voxelOffset(i uint32) models.Coord {
	return models.Coord{X: int32(i >> 6), Y: int32((i >> 3) & 7), Z: int32(i & 7)}
}

func (g *Grid) findLower(c models.Coord) *lowerNode {
	upper := g.root[originOf(c, upperTotalLog2)]
	if upper == nil {
		return nil
	}
	return upper.children[childIndex(c, upperTotalLog2, lowerTotalLog2)]
}

func (g *Grid) findLeaf(c models.Coord) *leafNode {
	lower := g.findLower(c)
	if lower == nil {
		return nil
	}
	return lower.children[childIndex(c, lowerTotalLog2, leafTotalLog2)]
}

func (g *Grid) touchLeaf(c models.Coord) *leafNode {
	uo := originOf(c, upperTotalLog2)
	upper := g.root[uo]
	if upper == nil {
		upper = &upperNode{origin: uo, children: make(map[uint32]*lowerNode)}
		g.root[uo] = upper
	}

	li := childIndex(c, upperTotalLog2, lowerTotalLog2)
	lower := upper.children[li]
	if lower == nil {
		lower = &lowerNode{origin: originOf(c, lowerTotalLog2), children: make(map[uint32]*leafNode)}
		upper.children[li] = lower
		upper.childMask.Set(li)
	}

	fi := childIndex(c, lowerTotalLog2, leafTotalLog2)
	leaf := lower.children[fi]
	if leaf == nil {
		leaf = &leafNode{origin: originOf(c, leafTotalLog2)}
		for i := range leaf.values {
			leaf.values[i] = g.background
		}
		lower.children[fi] = leaf
		lower.childMask.Set(fi)
	}
	return leaf
}

// SetValue stores v at c and marks the voxel active.
func (g *Grid) SetValue(c models.Coord, v float32) {
	leaf := g.touchLeaf(c)
	i := childIndex(c, leafTotalLog2, 0)
	leaf.values[i] = v
	leaf.mask.Set(i)
}

// SetValueOff deactivates the voxel at c and resets it to the background.
// Nodes left without active voxels are pruned.
func (g *Grid) SetValueOff(c models.Coord) {
	uo := originOf(c, upperTotalLog2)
	upper := g.root[uo]
	if upper == nil {
		return
	}
	li := childIndex(c, upperTotalLog2, lowerTotalLog2)
	lower := upper.children[li]
	if lower == nil {
		return
	}
	fi := childIndex(c, lowerTotalLog2, leafTotalLog2)
	leaf := lower.children[fi]
	if leaf == nil {
		return
	}

	i := childIndex(c, leafTotalLog2, 0)
	leaf.values[i] = g.background
	leaf.mask.Clear(i)
	if !leaf.mask.IsOff() {
		return
	}

	delete(lower.children, fi)
	lower.childMask.Clear(fi)
	if !lower.childMask.IsOff() {
		return
	}
	delete(upper.children, li)
	upper.childMask.Clear(li)
	if upper.childMask.IsOff() {
		delete(g.root, uo)
	}
}

// Fill sets every voxel inside bbox to v and marks it active.
func (g *Grid) Fill(bbox models.CoordBBox, v float32) {
	if bbox.IsEmpty() {
		return
	}
	for x := bbox.Min.X; x <= bbox.Max.X; x++ {
		for y := bbox.Min.Y; y <= bbox.Max.Y; y++ {
			for z := bbox.Min.Z; z <= bbox.Max.Z; z++ {
				g.SetValue(models.Coord{X: x, Y: y, Z: z}, v)
			}
		}
	}
}

// Clear removes every voxel.
func (g *Grid) Clear() {
	g.root = make(map[models.Coord]*upperNode)
}

// ValueAt returns the value at c, or the background if c is inactive.
func (g *Grid) ValueAt(c models.Coord) float32 {
	leaf := g.findLeaf(c)
	if leaf == nil {
		return g.background
	}
	i := childIndex(c, leafTotalLog2, 0)
	if !leaf.mask.Get(i) {
		return g.background
	}
	return leaf.values[i]
}

// IsActive reports whether the voxel at c is active.
func (g *Grid) IsActive(c models.Coord) bool {
	leaf := g.findLeaf(c)
	return leaf != nil && leaf.mask.Get(childIndex(c, leafTotalLog2, 0))
}

// IsActiveRegion reports whether the block at the given level containing c
// holds any active voxel. Level 0 is a single voxel; levels above the upper
// nodes ask whether the grid holds anything at all.
func (g *Grid) IsActiveRegion(c models.Coord, level int) bool {
	switch level {
	case VoxelLevel:
		return g.IsActive(c)
	case LeafLevel:
		lower := g.findLower(c)
		return lower != nil && lower.childMask.Get(childIndex(c, lowerTotalLog2, leafTotalLog2))
	case LowerLevel:
		upper := g.root[originOf(c, upperTotalLog2)]
		return upper != nil && upper.childMask.Get(childIndex(c, upperTotalLog2, lowerTotalLog2))
	case UpperLevel:
		_, ok := g.root[originOf(c, upperTotalLog2)]
		return ok
	default:
		return level > UpperLevel && len(g.root) > 0
	}
}

// leaves returns every leaf ordered by origin (z, then y, then x).
func (g *Grid) leaves() []*leafNode {
	var out []*leafNode
	for _, upper := range g.root {
		for _, lower := range upper.children {
			for _, leaf := range lower.children {
				out = append(out, leaf)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return coordLess(out[i].origin, out[j].origin)
	})
	return out
}

func coordLess(a, b models.Coord) bool {
	if a.Z != b.Z {
		return a.Z < b.Z
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}

// LeafCount returns the number of allocated leaves.
func (g *Grid) LeafCount() int {
	n := 0
	for _, upper := range g.root {
		for _, lower := range upper.children {
			n += len(lower.children)
		}
	}
	return n
}

// ActiveVoxelCount returns the number of active voxels.
func (g *Grid) ActiveVoxelCount() uint64 {
	var n uint64
	for _, upper := range g.root {
		for _, lower := range upper.children {
			for _, leaf := range lower.children {
				n += uint64(leaf.mask.CountOn())
			}
		}
	}
	return n
}

// ForEachActive visits every active voxel, leaf by leaf in origin order.
func (g *Grid) ForEachActive(fn func(c models.Coord, v float32)) {
	for _, leaf := range g.leaves() {
		leaf.mask.ForEachOn(func(i uint32) {
			off := voxelOffset(i)
			fn(models.Coord{X: leaf.origin.X + off.X, Y: leaf.origin.Y + off.Y, Z: leaf.origin.Z + off.Z}, leaf.values[i])
		})
	}
}

// ForEachLeaf visits every leaf in origin order with its mask and the
// values of its active voxels in ascending voxel index order.
func (g *Grid) ForEachLeaf(fn func(origin models.Coord, mask Mask512, active []float32)) {
	buf := make([]float32, 0, 512)
	for _, leaf := range g.leaves() {
		buf = buf[:0]
		leaf.mask.ForEachOn(func(i uint32) {
			buf = append(buf, leaf.values[i])
		})
		fn(leaf.origin, leaf.mask, buf)
	}
}

// SetLeaf activates the voxels of mask inside the leaf at origin, taking
// their values in ascending voxel index order from active.
func (g *Grid) SetLeaf(origin models.Coord, mask Mask512, active []float32) error {
	if originOf(origin, leafTotalLog2) != origin {
		return errors.Errorf("leaf origin %v is not aligned to %d", origin, LevelDim(LeafLevel))
	}
	if n := mask.CountOn(); n != len(active) {
		return errors.Errorf("leaf %v has %d active voxels but %d values", origin, n, len(active))
	}
	if mask.IsOff() {
		return nil
	}

	leaf := g.touchLeaf(origin)
	k := 0
	mask.ForEachOn(func(i uint32) {
		leaf.values[i] = active[k]
		leaf.mask.Set(i)
		k++
	})
	return nil
}

// ActiveIndexBound returns the inclusive index-space box of all active
// voxels, or an empty box when nothing is active.
func (g *Grid) ActiveIndexBound() models.CoordBBox {
	bbox := models.EmptyCoordBBox()
	for _, upper := range g.root {
		for _, lower := range upper.children {
			for _, leaf := range lower.children {
				leaf.mask.ForEachOn(func(i uint32) {
					off := voxelOffset(i)
					bbox.Expand(models.Coord{X: leaf.origin.X + off.X, Y: leaf.origin.Y + off.Y, Z: leaf.origin.Z + off.Z})
				})
			}
		}
	}
	return bbox
}

// ActiveValues returns the values of all active voxels.
func (g *Grid) ActiveValues() []float64 {
	values := make([]float64, 0, g.ActiveVoxelCount())
	for _, upper := range g.root {
		for _, lower := range upper.children {
			for _, leaf := range lower.children {
				leaf.mask.ForEachOn(func(i uint32) {
					values = append(values, float64(leaf.values[i]))
				})
			}
		}
	}
	return values
}

// ScanMinMax traverses every active voxel and returns the smallest and
// largest value. With no active voxels it returns the background twice and
// ok=false. This is a full scan; callers cache the result.
func (g *Grid) ScanMinMax() (lo, hi float32, ok bool) {
	values := g.ActiveValues()
	if len(values) == 0 {
		return g.background, g.background, false
	}
	return float32(floats.Min(values)), float32(floats.Max(values)), true
}
