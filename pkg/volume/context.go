package volume

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"sparsevol/internal/models"
	"sparsevol/pkg/grid"
	"sparsevol/pkg/march"
	"sparsevol/pkg/metrics"
	"sparsevol/pkg/transform"
	"sparsevol/pkg/volio"
)

// Reader loads the first scalar grid of a volume file. found is false, with
// a nil error, when the file holds no scalar grid.
type Reader func(path string) (g *grid.Grid, xf *transform.Transform, found bool, err error)

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Context) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithReader replaces the file reader, volio.ReadFirstScalarGrid by default.
func WithReader(read Reader) Option {
	return func(c *Context) {
		if read != nil {
			c.read = read
		}
	}
}

// Context owns at most one loaded Volume and answers queries against it.
// Queries made before the first successful load return defaults.
//
// A Context is not safe for a load concurrent with other calls. Concurrent
// queries without a load in progress are safe.
type Context struct {
	logger *zap.Logger
	read   Reader
	vol    *Volume
}

// NewContext creates an empty Context.
func NewContext(opts ...Option) *Context {
	c := &Context{
		logger: zap.NewNop(),
		read:   volio.ReadFirstScalarGrid,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load reads the first scalar grid from path and makes it the current
// volume. It returns false with a nil error when the file holds no scalar
// grid, and false with the error when the file cannot be read. In both
// cases the previously loaded volume, if any, stays in place.
func (c *Context) Load(path string) (bool, error) {
	start := time.Now()

	g, xf, found, err := c.read(path)
	if err != nil {
		metrics.InstrumentLoad(metrics.LoadFailed)
		c.logger.Warn("volume load failed", zap.String("path", path), zap.Error(err))
		return false, errors.Wrapf(err, "loading %s", path)
	}
	if !found {
		metrics.InstrumentLoad(metrics.LoadMissing)
		c.logger.Info("no scalar grid in volume file", zap.String("path", path))
		return false, nil
	}

	if err := c.LoadGrid(g, xf); err != nil {
		metrics.InstrumentLoad(metrics.LoadFailed)
		return false, errors.Wrapf(err, "loading %s", path)
	}
	metrics.InstrumentLoad(metrics.LoadOK)
	c.logger.Debug("volume file loaded",
		zap.String("path", path),
		zap.String("grid", g.Name()),
		zap.Duration("elapsed", time.Since(start)))
	return true, nil
}

// LoadGrid makes an in-memory store the current volume.
func (c *Context) LoadGrid(store Store, xf *transform.Transform) error {
	vol, err := NewVolume(store, xf)
	if err != nil {
		return err
	}
	c.vol = vol

	b := vol.Bound()
	c.logger.Info("volume loaded",
		zap.Uint64("activeVoxels", store.ActiveVoxelCount()),
		zap.Float64s("boundMin", b.Min[:]),
		zap.Float64s("boundMax", b.Max[:]),
		zap.Float64("min", vol.Min()),
		zap.Float64("max", vol.Max()))
	return nil
}

// Volume returns the current volume, or nil before the first load.
func (c *Context) Volume() *Volume { return c.vol }

// Loaded reports whether a volume has been loaded.
func (c *Context) Loaded() bool { return c.vol != nil }

// Bound returns the world bound of the current volume, or the zero Bound.
func (c *Context) Bound() models.Bound {
	if c.vol == nil {
		return models.Bound{}
	}
	return c.vol.Bound()
}

// IndexBound returns the index bound of the current volume, or an empty box.
func (c *Context) IndexBound() models.CoordBBox {
	if c.vol == nil {
		return models.EmptyCoordBBox()
	}
	return c.vol.IndexBound()
}

// MaxValue returns the cached maximum, 0 before the first load.
func (c *Context) MaxValue() float64 {
	if c.vol == nil {
		return 0
	}
	return c.vol.Max()
}

// MinValue returns the cached minimum, 0 before the first load.
func (c *Context) MinValue() float64 {
	if c.vol == nil {
		return 0
	}
	return c.vol.Min()
}

// Sample returns the interpolated value at a world-space point, 0 before
// the first load.
func (c *Context) Sample(p mgl64.Vec3) float64 {
	if c.vol == nil {
		return 0
	}
	metrics.InstrumentPointSample()
	return c.vol.Sample(p)
}

// March marches ray through the current volume. Before the first load it
// does nothing and reports no error.
func (c *Context) March(ray models.Ray, step float64, fn march.Callback) (march.Result, error) {
	if c.vol == nil {
		return march.Result{}, nil
	}
	res, err := c.vol.March(ray, step, fn)
	if err != nil {
		return res, err
	}
	metrics.InstrumentMarch(res.Spans, res.Samples)
	return res, nil
}

// Stats summarises the current volume's values.
func (c *Context) Stats() (Stats, bool) {
	if c.vol == nil {
		return Stats{}, false
	}
	return c.vol.Stats(), true
}
