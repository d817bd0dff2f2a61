package march

import (
	"math"

	"sparsevol/internal/models"
)

// minInterval is the shortest block crossing, relative to the crossing time,
// that the traversal treats as real. Shorter crossings come from rays
// grazing edges and corners or from re-entering a block at a rounding
// boundary.
const minInterval = 1e-12

// dda steps a ray through a regular grid of cubic blocks of side dim,
// accumulating exact per-axis crossing times instead of re-deriving the
// position at each step.
type dda struct {
	dim   int64
	block [3]int64
	step  [3]int64
	next  [3]float64
	delta [3]float64
	enter float64
}

// init positions the DDA on the block containing the ray at time t. The
// block origin is clamped to [lo, hi] so a child walk never starts outside
// its parent because of rounding.
func (d *dda) init(r *indexRay, t float64, dim int64, lo, hi [3]int64) {
	d.dim = dim
	d.enter = t
	p := r.cell.Add(r.dir.Mul(t))
	fdim := float64(dim)
	for axis := 0; axis < 3; axis++ {
		b := int64(math.Floor(p[axis]/fdim)) * dim
		if b < lo[axis] {
			b = lo[axis]
		}
		if b > hi[axis] {
			b = hi[axis]
		}
		d.block[axis] = b

		dir := r.dir[axis]
		switch {
		case dir > 0:
			d.step[axis] = dim
			d.next[axis] = t + (float64(b+dim)-p[axis])/dir
			d.delta[axis] = fdim / dir
		case dir < 0:
			d.step[axis] = -dim
			d.next[axis] = t + (float64(b)-p[axis])/dir
			d.delta[axis] = -fdim / dir
		default:
			d.step[axis] = 0
			d.next[axis] = math.Inf(1)
			d.delta[axis] = math.Inf(1)
		}
	}
}

// exit is the time the ray leaves the current block.
func (d *dda) exit() float64 {
	return math.Min(d.next[0], math.Min(d.next[1], d.next[2]))
}

// advance moves to the neighbouring block across the nearest face.
func (d *dda) advance() {
	axis := 0
	if d.next[1] < d.next[axis] {
		axis = 1
	}
	if d.next[2] < d.next[axis] {
		axis = 2
	}
	d.enter = d.next[axis]
	d.block[axis] += d.step[axis]
	d.next[axis] += d.delta[axis]
}

func (d *dda) coord() models.Coord {
	return models.Coord{X: int32(d.block[0]), Y: int32(d.block[1]), Z: int32(d.block[2])}
}

// spanSearch accumulates one span during a hierarchical walk.
type spanSearch struct {
	store Hierarchy
	ray   *indexRay
	open  bool
	t0    float64
	t1    float64
}

// walk visits the blocks of one level between ta and tb, descending into
// active blocks and skipping inactive ones whole. It returns true as soon
// as an open span meets inactive space, which closes the span.
func (s *spanSearch) walk(level int, ta, tb float64, lo, hi [3]int64) bool {
	dim := int64(s.store.LevelDim(level))
	var d dda
	d.init(s.ray, ta, dim, lo, hi)

	for {
		enter := math.Max(d.enter, ta)
		exit := math.Min(d.exit(), tb)
		if exit-enter > minInterval*math.Max(1, math.Abs(enter)) {
			switch {
			case !s.store.IsActiveRegion(d.coord(), level):
				if s.open {
					return true
				}
			case level == 0:
				if !s.open {
					s.open = true
					s.t0 = enter
				}
				s.t1 = exit
			default:
				var childLo, childHi [3]int64
				childDim := int64(s.store.LevelDim(level - 1))
				for axis := 0; axis < 3; axis++ {
					childLo[axis] = d.block[axis]
					childHi[axis] = d.block[axis] + dim - childDim
				}
				if s.walk(level-1, enter, exit, childLo, childHi) {
					return true
				}
			}
		}
		if d.exit() >= tb {
			return false
		}
		d.advance()
	}
}

// nextSpan finds the first maximal active span at or after index time
// from, clipped to the ray's interval. Times are in index space.
func (m *Marcher) nextSpan(r *indexRay, from float64) (models.TimeSpan, bool) {
	if from > r.t1 {
		return models.TimeSpan{}, false
	}
	if from == r.t0 && r.t1-r.t0 <= minInterval*math.Max(1, math.Abs(r.t0)) {
		return m.pointSpan(r)
	}
	s := spanSearch{store: m.store, ray: r}
	unbounded := [3]int64{math.MinInt64, math.MinInt64, math.MinInt64}
	top := [3]int64{math.MaxInt64, math.MaxInt64, math.MaxInt64}
	s.walk(m.store.TopLevel(), from, r.t1, unbounded, top)
	if !s.open {
		return models.TimeSpan{}, false
	}
	return models.TimeSpan{T0: s.t0, T1: s.t1}, true
}

// pointSpan handles a clipped interval of zero length, which happens when
// the active bound is one voxel thick along the ray. The DDA discards such
// crossings, so the voxel under the single instant is tested directly.
func (m *Marcher) pointSpan(r *indexRay) (models.TimeSpan, bool) {
	p := r.cell.Add(r.dir.Mul(r.t0))
	c := models.Coord{
		X: int32(math.Floor(p[0])),
		Y: int32(math.Floor(p[1])),
		Z: int32(math.Floor(p[2])),
	}
	if !m.store.IsActiveRegion(c, 0) {
		return models.TimeSpan{}, false
	}
	return models.TimeSpan{T0: r.t0, T1: r.t1}, true
}
