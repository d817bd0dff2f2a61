package volume

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"sparsevol/internal/models"
	"sparsevol/pkg/grid"
	"sparsevol/pkg/transform"
	"sparsevol/pkg/volio"
)

// countingStore records how often the full min/max scan runs.
type countingStore struct {
	*grid.Grid
	scans int
}

func (s *countingStore) ScanMinMax() (float32, float32, bool) {
	s.scans++
	return s.Grid.ScanMinMax()
}

func blobGrid(seed int64) *grid.Grid {
	rng := rand.New(rand.NewSource(seed))
	g := grid.New(0)
	g.Fill(models.CoordBBox{Max: models.Coord{X: 9, Y: 9, Z: 9}}, 1)
	for i := 0; i < 300; i++ {
		g.SetValue(models.Coord{
			X: int32(rng.Intn(40) - 20),
			Y: int32(rng.Intn(40) - 20),
			Z: int32(rng.Intn(40) - 20),
		}, float32(rng.Float64()*5))
	}
	return g
}

func writeVolume(t *testing.T, g *grid.Grid, xf *transform.Transform) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "volume.svol")
	require.NoError(t, volio.WriteFile(path, volio.ScalarEntry(g, xf, volio.ClassFogVolume, volio.CompressionZstd)))
	return path
}

func TestUnloadedContextDefaults(t *testing.T) {
	c := NewContext()
	require.False(t, c.Loaded())
	require.True(t, c.Bound().IsZero())
	require.True(t, c.IndexBound().IsEmpty())
	require.Zero(t, c.MaxValue())
	require.Zero(t, c.Sample(mgl64.Vec3{1, 2, 3}))

	calls := 0
	res, err := c.March(models.Ray{Direction: mgl64.Vec3{1, 0, 0}, TMax: 10}, 1, func(float64) bool {
		calls++
		return true
	})
	require.NoError(t, err)
	require.Zero(t, calls)
	require.Zero(t, res.Spans)

	_, ok := c.Stats()
	require.False(t, ok)
}

func TestScanRunsOncePerLoad(t *testing.T) {
	store := &countingStore{Grid: blobGrid(1)}
	c := NewContext(WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, c.LoadGrid(store, transform.Identity()))
	require.Equal(t, 1, store.scans)

	for i := 0; i < 5; i++ {
		c.MaxValue()
		c.MinValue()
		c.Bound()
		c.Sample(mgl64.Vec3{float64(i), 1, 1})
	}
	require.Equal(t, 1, store.scans)
}

func TestBoundContainsActiveVoxels(t *testing.T) {
	xf, err := transform.New(mgl64.Translate3D(4, -2, 7).
		Mul4(mgl64.HomogRotate3D(0.7, mgl64.Vec3{1, 1, 0}.Normalize())).
		Mul4(mgl64.Scale3D(0.3, 0.3, 0.6)))
	require.NoError(t, err)

	g := blobGrid(2)
	c := NewContext()
	require.NoError(t, c.LoadGrid(g, xf))

	bound := c.Bound()
	require.False(t, bound.IsZero())
	g.ForEachActive(func(coord models.Coord, _ float32) {
		p := xf.IndexToWorld(coord.Vec3())
		require.True(t, bound.Contains(p, 1e-9), "voxel %v at %v outside %v", coord, p, bound)
	})
}

func TestSampleWithinValueRange(t *testing.T) {
	g := blobGrid(3)
	xf, err := transform.NewScaleTranslate(mgl64.Vec3{0.5, 0.5, 0.5}, mgl64.Vec3{-1, 0, 1})
	require.NoError(t, err)
	c := NewContext()
	require.NoError(t, c.LoadGrid(g, xf))

	lo := math.Min(c.MinValue(), float64(g.Background()))
	hi := math.Max(c.MaxValue(), float64(g.Background()))
	rng := rand.New(rand.NewSource(4))
	for i := 0; i < 5000; i++ {
		p := mgl64.Vec3{rng.Float64()*30 - 15, rng.Float64()*30 - 15, rng.Float64()*30 - 15}
		v := c.Sample(p)
		require.True(t, v >= lo-1e-6 && v <= hi+1e-6, "sample %v at %v outside [%v, %v]", v, p, lo, hi)
	}
}

func TestLoadFromFile(t *testing.T) {
	g := grid.New(0)
	g.SetName("density")
	g.Fill(models.CoordBBox{Max: models.Coord{X: 9, Y: 9, Z: 9}}, 1)
	g.SetValue(models.Coord{X: 4, Y: 4, Z: 4}, 3)
	path := writeVolume(t, g, transform.Identity())

	c := NewContext(WithLogger(zaptest.NewLogger(t)))
	ok, err := c.Load(path)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3.0, c.MaxValue())
	require.Equal(t, 1.0, c.MinValue())
	require.Equal(t, mgl64.Vec3{0, 0, 0}, c.Bound().Min)
	require.Equal(t, mgl64.Vec3{9, 9, 9}, c.Bound().Max)

	var times []float64
	ray := models.Ray{Origin: mgl64.Vec3{-5, 5, 5}, Direction: mgl64.Vec3{1, 0, 0}, TMin: 0, TMax: 20}
	res, err := c.March(ray, 1, func(ts float64) bool {
		times = append(times, ts)
		return true
	})
	require.NoError(t, err)
	require.Equal(t, 10, res.Samples)
	for i, ts := range times {
		require.InDelta(t, float64(5+i), ts, 1e-9)
	}

	stats, ok := c.Stats()
	require.True(t, ok)
	require.Equal(t, uint64(1000), stats.ActiveVoxels)
	require.InDelta(t, 1.002, stats.Mean, 1e-9)
	require.Greater(t, stats.Entropy, 0.0)
}

func TestFailedLoadKeepsState(t *testing.T) {
	g := blobGrid(5)
	g.SetName("density")
	good := writeVolume(t, g, transform.Identity())

	dir := t.TempDir()
	unreadable := filepath.Join(dir, "missing.svol")
	junk := filepath.Join(dir, "junk.svol")
	require.NoError(t, os.WriteFile(junk, []byte("SVOL garbage"), 0o644))
	fieldless := filepath.Join(dir, "vectors.svol")
	require.NoError(t, volio.WriteFile(fieldless, volio.RawEntry("velocity", "vec3s", nil, []byte{1, 2, 3})))

	c := NewContext(WithLogger(zaptest.NewLogger(t)))
	ok, err := c.Load(good)
	require.NoError(t, err)
	require.True(t, ok)

	probe := mgl64.Vec3{3.3, 4.1, 5.9}
	bound, maxValue, sample := c.Bound(), c.MaxValue(), c.Sample(probe)
	vol := c.Volume()

	for _, path := range []string{unreadable, junk} {
		ok, err := c.Load(path)
		require.Error(t, err)
		require.False(t, ok)
	}
	ok, err = c.Load(fieldless)
	require.NoError(t, err)
	require.False(t, ok)

	require.Same(t, vol, c.Volume())
	require.Equal(t, bound, c.Bound())
	require.Equal(t, maxValue, c.MaxValue())
	require.Equal(t, sample, c.Sample(probe))
}

func TestWithReader(t *testing.T) {
	calls := 0
	c := NewContext(WithReader(func(path string) (*grid.Grid, *transform.Transform, bool, error) {
		calls++
		g := grid.New(0)
		g.SetValue(models.Coord{}, 2)
		return g, transform.Identity(), true, nil
	}))
	ok, err := c.Load("in-memory")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, calls)
	require.Equal(t, 2.0, c.MaxValue())
}

func TestStatsOfUniformVolume(t *testing.T) {
	g := grid.New(0)
	g.Fill(models.CoordBBox{Max: models.Coord{X: 3, Y: 3, Z: 3}}, 7)
	vol, err := NewVolume(g, transform.Identity())
	require.NoError(t, err)

	s := vol.Stats()
	require.Equal(t, uint64(64), s.ActiveVoxels)
	require.Equal(t, 1, s.Leaves)
	require.Equal(t, 7.0, s.Mean)
	require.Zero(t, s.StdDev)
	require.Zero(t, s.Entropy)
}

func TestNewVolumeRejectsMissingParts(t *testing.T) {
	_, err := NewVolume(nil, transform.Identity())
	require.Error(t, err)
	_, err = NewVolume(grid.New(0), nil)
	require.Error(t, err)
}
