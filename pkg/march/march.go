// Package march walks rays through the active regions of a sparse volume.
//
// A ray is moved into index space, clipped against the active index bound
// and then handed to a hierarchical DDA that skips empty blocks from the
// coarsest level down to single voxels. The DDA yields maximal runs of
// active space (spans) in increasing time order; the marcher then samples
// each span on a global lattice of ray times k*step, so spans separated by a
// skipped gap stay in phase with each other.
package march

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"sparsevol/internal/models"
	"sparsevol/pkg/transform"
)

var (
	// ErrInvalidArgument is the root of every input validation error.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidRay reports a degenerate ray.
	ErrInvalidRay = errors.Wrap(ErrInvalidArgument, "invalid ray")
	// ErrInvalidStep reports a step size that is not a positive finite number.
	ErrInvalidStep = errors.Wrap(ErrInvalidArgument, "invalid step size")
)

// latticeEps absorbs rounding when snapping span ends to the step lattice,
// relative to the step size.
const latticeEps = 1e-9

// Hierarchy answers emptiness queries for blocks of voxels at several
// granularities. Level 0 is a single voxel and block size grows with level
// up to TopLevel. Block origins are multiples of LevelDim(level).
type Hierarchy interface {
	IsActiveRegion(c models.Coord, level int) bool
	LevelDim(level int) int32
	TopLevel() int
}

// Callback receives each sample time. Returning false stops the march.
type Callback func(t float64) bool

// Result summarises one march.
type Result struct {
	Spans     int
	Samples   int
	Cancelled bool
}

// Marcher traverses rays through one volume. It holds no per-ray state and
// may be shared by concurrent readers.
type Marcher struct {
	store Hierarchy
	xform *transform.Transform
	bound models.CoordBBox
}

// New creates a Marcher over store, whose active voxels lie inside bound.
func New(store Hierarchy, xform *transform.Transform, bound models.CoordBBox) *Marcher {
	return &Marcher{store: store, xform: xform, bound: bound}
}

// Validate checks a ray and step size before marching.
func Validate(ray models.Ray, step float64) error {
	if err := ray.Validate(); err != nil {
		return errors.Wrap(ErrInvalidRay, err.Error())
	}
	if !(step > 0) || math.IsInf(step, 1) {
		return errors.Wrapf(ErrInvalidStep, "step %v", step)
	}
	return nil
}

// March samples ray at every time k*step (k an integer) that falls inside an
// active span, in strictly increasing order, until fn returns false or the
// ray leaves the clipped interval.
func (m *Marcher) March(ray models.Ray, step float64, fn Callback) (Result, error) {
	var res Result
	if err := Validate(ray, step); err != nil {
		return res, err
	}

	it := m.Iterate(ray)
	haveLast := false
	var lastK int64
	for {
		span, ok := it.Next()
		if !ok {
			return res, nil
		}
		res.Spans++

		kStart := int64(math.Ceil(span.T0/step - latticeEps))
		kEnd := int64(math.Floor(span.T1/step + latticeEps))
		if haveLast && kStart <= lastK {
			kStart = lastK + 1
		}
		for k := kStart; k <= kEnd; k++ {
			haveLast, lastK = true, k
			res.Samples++
			if !fn(float64(k) * step) {
				res.Cancelled = true
				return res, nil
			}
		}
	}
}

// MarchPoints is March with the world-space position of each sample
// computed for the callback.
func (m *Marcher) MarchPoints(ray models.Ray, step float64, fn func(models.SamplePoint) bool) (Result, error) {
	return m.March(ray, step, func(t float64) bool {
		return fn(models.SamplePoint{T: t, Position: ray.At(t)})
	})
}

// Spans returns every active span along ray in world time.
func (m *Marcher) Spans(ray models.Ray) []models.TimeSpan {
	var spans []models.TimeSpan
	it := m.Iterate(ray)
	for {
		span, ok := it.Next()
		if !ok {
			return spans
		}
		spans = append(spans, span)
	}
}

// indexRay is a ray in index space with a unit direction. Index time is
// distance along dir; world time = index time / scale.
type indexRay struct {
	origin mgl64.Vec3
	// cell is origin shifted by half a voxel so voxel i covers [i, i+1).
	cell  mgl64.Vec3
	dir   mgl64.Vec3
	scale float64
	t0    float64
	t1    float64
}

// SpanIterator yields the active spans of one ray in order. It resumes each
// search just past the end of the previous span.
type SpanIterator struct {
	m    *Marcher
	r    indexRay
	from float64
	done bool
}

// Iterate starts a span search along ray. Invalid rays and rays missing the
// active bound produce an iterator with no spans.
func (m *Marcher) Iterate(ray models.Ray) *SpanIterator {
	it := &SpanIterator{m: m, done: true}
	if m == nil || m.store == nil || m.bound.IsEmpty() || ray.Validate() != nil {
		return it
	}

	d := m.xform.WorldToIndexDir(ray.Direction)
	scale := d.Len()
	if scale == 0 || math.IsInf(scale, 0) || math.IsNaN(scale) {
		return it
	}
	o := m.xform.WorldToIndex(ray.Origin)
	dir := d.Mul(1 / scale)

	t0, t1, hit := clipBox(o, dir, m.bound.Min.Vec3(), m.bound.Max.Vec3(), ray.TMin*scale, ray.TMax*scale)
	if !hit {
		return it
	}

	it.r = indexRay{
		origin: o,
		cell:   o.Add(mgl64.Vec3{0.5, 0.5, 0.5}),
		dir:    dir,
		scale:  scale,
		t0:     t0,
		t1:     t1,
	}
	it.from = t0
	it.done = false
	return it
}

// Next returns the next span in world time.
func (it *SpanIterator) Next() (models.TimeSpan, bool) {
	if it.done {
		return models.TimeSpan{}, false
	}
	span, ok := it.m.nextSpan(&it.r, it.from)
	if !ok {
		it.done = true
		return models.TimeSpan{}, false
	}
	it.from = math.Nextafter(span.T1, math.Inf(1))
	if it.from > it.r.t1 {
		it.done = true
	}
	return models.TimeSpan{T0: span.T0 / it.r.scale, T1: span.T1 / it.r.scale}, true
}

// clipBox intersects a ray with the closed box [lo, hi] using the slab
// method, restricted to [t0, t1].
func clipBox(o, d, lo, hi mgl64.Vec3, t0, t1 float64) (float64, float64, bool) {
	for axis := 0; axis < 3; axis++ {
		if d[axis] == 0 {
			if o[axis] < lo[axis] || o[axis] > hi[axis] {
				return 0, 0, false
			}
			continue
		}
		inv := 1 / d[axis]
		near := (lo[axis] - o[axis]) * inv
		far := (hi[axis] - o[axis]) * inv
		if near > far {
			near, far = far, near
		}
		t0 = math.Max(t0, near)
		t1 = math.Min(t1, far)
		if t0 > t1 {
			return 0, 0, false
		}
	}
	return t0, t1, true
}
