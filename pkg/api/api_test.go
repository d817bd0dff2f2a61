package api

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"sparsevol/internal/models"
	"sparsevol/pkg/grid"
	"sparsevol/pkg/transform"
	"sparsevol/pkg/volio"
)

type report struct {
	code    ErrorCode
	message string
}

type recorder struct {
	mu      sync.Mutex
	reports []report
}

func (r *recorder) ReportError(code ErrorCode, message string) {
	r.mu.Lock()
	r.reports = append(r.reports, report{code, message})
	r.mu.Unlock()
}

func (r *recorder) take() []report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.reports
	r.reports = nil
	return out
}

func cubeFile(t *testing.T) string {
	t.Helper()
	g := grid.New(0)
	g.SetName("density")
	g.Fill(models.CoordBBox{Max: models.Coord{X: 9, Y: 9, Z: 9}}, 1)
	g.Fill(models.CoordBBox{Min: models.Coord{X: 20}, Max: models.Coord{X: 29, Y: 9, Z: 9}}, 2)
	path := filepath.Join(t.TempDir(), "cubes.svol")
	require.NoError(t, volio.WriteFile(path, volio.ScalarEntry(g, transform.Identity(), volio.ClassFogVolume, volio.CompressionNone)))
	return path
}

func TestInvalidHandleReportsOnce(t *testing.T) {
	rec := &recorder{}
	lib := New(WithErrorSink(rec))
	bogus := Handle(uuid.New())

	ops := map[string]func(h Handle){
		"load":    func(h Handle) { require.False(t, lib.LoadVolume(h, "x.svol")) },
		"bound":   func(h Handle) { require.True(t, lib.GetBound(h).IsZero()) },
		"max":     func(h Handle) { require.Zero(t, lib.GetMaxValue(h)) },
		"eval":    func(h Handle) { require.Zero(t, lib.EvalScalar(h, mgl64.Vec3{1, 1, 1})) },
		"release": func(h Handle) { lib.ReleaseContext(h) },
		"march": func(h Handle) {
			lib.MarchVolume(h, mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, 0, 1, 1, func(float64) bool {
				t.Fatal("callback on invalid handle")
				return false
			})
		},
	}
	for name, op := range ops {
		for _, h := range []Handle{NilHandle, bogus} {
			op(h)
			reports := rec.take()
			require.Len(t, reports, 1, name)
			require.Equal(t, InvalidContext, reports[0].code, name)
		}
	}
}

func TestReleasedHandleIsInvalid(t *testing.T) {
	rec := &recorder{}
	lib := New(WithErrorSink(rec))
	h := lib.CreateContext()
	require.Equal(t, 1, lib.Len())

	lib.ReleaseContext(h)
	require.Empty(t, rec.take())
	require.Zero(t, lib.Len())

	lib.GetMaxValue(h)
	reports := rec.take()
	require.Len(t, reports, 1)
	require.Equal(t, InvalidContext, reports[0].code)
}

func TestLoadVolumeErrors(t *testing.T) {
	rec := &recorder{}
	lib := New(WithErrorSink(rec))
	h := lib.CreateContext()

	require.False(t, lib.LoadVolume(h, filepath.Join(t.TempDir(), "missing.svol")))
	reports := rec.take()
	require.Len(t, reports, 1)
	require.Equal(t, Unknown, reports[0].code)
	require.Contains(t, reports[0].message, "missing.svol")

	fieldless := filepath.Join(t.TempDir(), "vectors.svol")
	require.NoError(t, volio.WriteFile(fieldless, volio.RawEntry("velocity", "vec3s", nil, []byte{1})))
	require.False(t, lib.LoadVolume(h, fieldless))
	require.Empty(t, rec.take())
}

func TestUnloadedContextIsSilent(t *testing.T) {
	rec := &recorder{}
	lib := New(WithErrorSink(rec))
	h := lib.CreateContext()

	require.True(t, lib.GetBound(h).IsZero())
	require.Zero(t, lib.GetMaxValue(h))
	require.Zero(t, lib.EvalScalar(h, mgl64.Vec3{}))
	calls := 0
	lib.MarchVolume(h, mgl64.Vec3{-5, 5, 5}, mgl64.Vec3{1, 0, 0}, 0, 20, 1, func(float64) bool {
		calls++
		return true
	})
	require.Zero(t, calls)
	require.Empty(t, rec.take())
}

func TestMarchVolume(t *testing.T) {
	rec := &recorder{}
	lib := New(WithErrorSink(rec))
	h := lib.CreateContext()
	require.True(t, lib.LoadVolume(h, cubeFile(t)))
	require.Equal(t, 2.0, lib.GetMaxValue(h))
	require.Equal(t, 1.0, lib.EvalScalar(h, mgl64.Vec3{4, 4, 4}))

	var times []float64
	lib.MarchVolume(h, mgl64.Vec3{-5, 5, 5}, mgl64.Vec3{1, 0, 0}, 0, 20, 1, func(ts float64) bool {
		times = append(times, ts)
		return true
	})
	require.Len(t, times, 10)
	require.InDelta(t, 5, times[0], 1e-9)
	require.InDelta(t, 14, times[9], 1e-9)

	calls := 0
	lib.MarchVolume(h, mgl64.Vec3{-5, 5, 5}, mgl64.Vec3{1, 0, 0}, 0, 100, 1, func(float64) bool {
		calls++
		return calls < 13
	})
	require.Equal(t, 13, calls)
	require.Empty(t, rec.take())
}

func TestMarchVolumeInvalidArguments(t *testing.T) {
	rec := &recorder{}
	lib := New(WithErrorSink(rec))
	h := lib.CreateContext()
	require.True(t, lib.LoadVolume(h, cubeFile(t)))

	never := func(float64) bool {
		t.Fatal("callback on invalid input")
		return false
	}
	lib.MarchVolume(h, mgl64.Vec3{}, mgl64.Vec3{}, 0, 10, 1, never)
	lib.MarchVolume(h, mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, 10, 0, 1, never)
	lib.MarchVolume(h, mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, 0, 10, 0, never)
	lib.MarchVolume(h, mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, 0, 10, 1, nil)

	reports := rec.take()
	require.Len(t, reports, 4)
	for _, r := range reports {
		require.Equal(t, InvalidArgument, r.code)
	}
}

func TestPanicsBecomeUnknown(t *testing.T) {
	rec := &recorder{}
	lib := New(WithErrorSink(rec))
	h := lib.CreateContext()
	require.True(t, lib.LoadVolume(h, cubeFile(t)))

	require.NotPanics(t, func() {
		lib.MarchVolume(h, mgl64.Vec3{-5, 5, 5}, mgl64.Vec3{1, 0, 0}, 0, 20, 1, func(float64) bool {
			panic("renderer exploded")
		})
	})
	reports := rec.take()
	require.Len(t, reports, 1)
	require.Equal(t, Unknown, reports[0].code)
	require.Contains(t, reports[0].message, "renderer exploded")
}

func TestFailedReloadKeepsVolume(t *testing.T) {
	rec := &recorder{}
	lib := New(WithErrorSink(rec))
	h := lib.CreateContext()
	require.True(t, lib.LoadVolume(h, cubeFile(t)))

	probe := mgl64.Vec3{21.5, 3.25, 4.75}
	bound, maxValue, value := lib.GetBound(h), lib.GetMaxValue(h), lib.EvalScalar(h, probe)

	junk := filepath.Join(t.TempDir(), "junk.svol")
	require.NoError(t, os.WriteFile(junk, []byte("nope"), 0o644))
	require.False(t, lib.LoadVolume(h, junk))
	require.Len(t, rec.take(), 1)

	require.Equal(t, bound, lib.GetBound(h))
	require.Equal(t, maxValue, lib.GetMaxValue(h))
	require.Equal(t, value, lib.EvalScalar(h, probe))
}

func TestSetErrorFunc(t *testing.T) {
	lib := New()
	lib.GetMaxValue(NilHandle)

	var codes []ErrorCode
	lib.SetErrorFunc(func(code ErrorCode, _ string) {
		codes = append(codes, code)
	})
	lib.GetMaxValue(NilHandle)
	require.Equal(t, []ErrorCode{InvalidContext}, codes)

	lib.SetErrorFunc(nil)
	lib.GetMaxValue(NilHandle)
	require.Len(t, codes, 1)
}

func TestConcurrentContexts(t *testing.T) {
	lib := New()
	path := cubeFile(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := lib.CreateContext()
			if lib.LoadVolume(h, path) && lib.GetMaxValue(h) != 2 {
				t.Errorf("unexpected max value %v", lib.GetMaxValue(h))
			}
			lib.ReleaseContext(h)
		}()
	}
	wg.Wait()
	require.Zero(t, lib.Len())
}

func TestErrorCodeString(t *testing.T) {
	require.Equal(t, "invalid_context", InvalidContext.String())
	require.Equal(t, "invalid_argument", InvalidArgument.String())
	require.Equal(t, "unknown", Unknown.String())
}
