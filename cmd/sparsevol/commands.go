package main

import (
	"fmt"
	"strconv"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"sparsevol/internal/models"
	"sparsevol/pkg/api"
	"sparsevol/pkg/transform"
	"sparsevol/pkg/visualization"
	"sparsevol/pkg/volio"
	"sparsevol/pkg/volume"
)

// demoVoxelSize is the world-space edge length of a demo voxel.
const demoVoxelSize = 0.5

// errorCollector gathers the failures a Library reports.
type errorCollector struct {
	err error
}

func (c *errorCollector) ReportError(code api.ErrorCode, message string) {
	c.err = multierr.Append(c.err, errors.Errorf("%s: %s", code, message))
}

// openLibrary creates a library context and loads path into it.
func (e *env) openLibrary(path string) (*api.Library, api.Handle, *errorCollector, error) {
	sink := &errorCollector{}
	lib := api.New(api.WithLogger(e.logger), api.WithErrorSink(sink))
	h := lib.CreateContext()
	if !lib.LoadVolume(h, path) {
		lib.ReleaseContext(h)
		if sink.err != nil {
			return nil, api.NilHandle, nil, sink.err
		}
		return nil, api.NilHandle, nil, errors.Errorf("%s has no scalar grid", path)
	}
	return lib, h, sink, nil
}

// openContext loads path into a fresh volume context.
func (e *env) openContext(path string) (*volume.Context, error) {
	ctx := volume.NewContext(volume.WithLogger(e.logger))
	ok, err := ctx.Load(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Errorf("%s has no scalar grid", path)
	}
	return ctx, nil
}

func (e *env) demoAction(c *cli.Context) error {
	radius, gap, compression := e.cfg.Demo.Radius, e.cfg.Demo.Gap, e.cfg.Demo.Compression
	if c.IsSet(flagRadius) {
		radius = c.Int(flagRadius)
	}
	if c.IsSet(flagGap) {
		gap = c.Int(flagGap)
	}
	if c.IsSet(flagCompression) {
		compression = c.String(flagCompression)
	}
	if radius < 1 || gap < 0 {
		return errors.Errorf("radius must be positive and gap non-negative, got %d and %d", radius, gap)
	}

	g := buildDemoGrid(radius, gap)
	xf, err := transform.NewScaleTranslate(mgl64.Vec3{demoVoxelSize, demoVoxelSize, demoVoxelSize}, mgl64.Vec3{})
	if err != nil {
		return err
	}

	path := c.String(flagOutput)
	err = volio.WriteFile(path,
		volio.RawEntry("velocity", "vec3s", xf, make([]byte, 12)),
		volio.ScalarEntry(g, xf, volio.ClassFogVolume, compression),
	)
	if err != nil {
		return err
	}
	e.logger.Info("demo volume written", zap.String("path", path), zap.Uint64("activeVoxels", g.ActiveVoxelCount()))

	out := struct {
		Path         string `json:"path"`
		ActiveVoxels uint64 `json:"activeVoxels"`
		Leaves       int    `json:"leaves"`
	}{path, g.ActiveVoxelCount(), g.LeafCount()}
	return e.print(c, out, func() {
		fmt.Fprintf(c.App.Writer, "wrote %s: %d active voxels in %d leaves\n", out.Path, out.ActiveVoxels, out.Leaves)
	})
}

func (e *env) infoAction(c *cli.Context) error {
	path, err := fileArg(c)
	if err != nil {
		return err
	}
	hdr, err := volio.ReadHeader(path)
	if err != nil {
		return err
	}
	ctx, err := e.openContext(path)
	if err != nil {
		return err
	}
	stats, _ := ctx.Stats()

	out := struct {
		Path       string             `json:"path"`
		Grids      []volio.GridHeader `json:"grids"`
		IndexBound models.CoordBBox   `json:"indexBound"`
		Bound      models.Bound       `json:"bound"`
		VoxelSize  mgl64.Vec3         `json:"voxelSize"`
		Stats      volume.Stats       `json:"stats"`
	}{path, hdr.Grids, ctx.IndexBound(), ctx.Bound(), ctx.Volume().Transform().VoxelSize(), stats}

	return e.print(c, out, func() {
		w := c.App.Writer
		fmt.Fprintf(w, "%s (format version %d)\n", path, hdr.Version)
		for _, g := range hdr.Grids {
			fmt.Fprintf(w, "  grid %-12s type=%-6s compression=%-4s leaves=%d voxels=%d\n",
				g.Name, g.Type, g.Compression, g.LeafCount, g.VoxelCount)
		}
		fmt.Fprintf(w, "index bound: %v .. %v\n", out.IndexBound.Min, out.IndexBound.Max)
		fmt.Fprintf(w, "world bound: %v .. %v\n", out.Bound.Min, out.Bound.Max)
		fmt.Fprintf(w, "voxel size:  %v\n", out.VoxelSize)
		fmt.Fprintf(w, "values:      min=%.4f max=%.4f mean=%.4f stddev=%.4f entropy=%.3f bits\n",
			stats.Min, stats.Max, stats.Mean, stats.StdDev, stats.Entropy)
		fmt.Fprintf(w, "active:      %d voxels in %d leaves\n", stats.ActiveVoxels, stats.Leaves)
	})
}

func (e *env) sampleAction(c *cli.Context) error {
	if c.NArg() != 4 {
		return errors.Errorf("usage: %s", c.Command.UsageText)
	}
	var p mgl64.Vec3
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(c.Args().Get(i+1), 64)
		if err != nil {
			return errors.Wrapf(err, "coordinate %d", i)
		}
		p[i] = v
	}

	lib, h, sink, err := e.openLibrary(c.Args().First())
	if err != nil {
		return err
	}
	defer lib.ReleaseContext(h)

	value := lib.EvalScalar(h, p)
	if sink.err != nil {
		return sink.err
	}

	out := struct {
		Point mgl64.Vec3 `json:"point"`
		Value float64    `json:"value"`
	}{p, value}
	return e.print(c, out, func() {
		fmt.Fprintf(c.App.Writer, "%v -> %.6f\n", p, value)
	})
}

func vec3Flag(c *cli.Context, name string) (mgl64.Vec3, error) {
	values := c.Float64Slice(name)
	if len(values) != 3 {
		return mgl64.Vec3{}, errors.Errorf("--%s needs three comma separated values, got %d", name, len(values))
	}
	return mgl64.Vec3{values[0], values[1], values[2]}, nil
}

type marchSample struct {
	T        float64    `json:"t"`
	Position mgl64.Vec3 `json:"position"`
	Value    float64    `json:"value"`
}

func (e *env) marchAction(c *cli.Context) error {
	path, err := fileArg(c)
	if err != nil {
		return err
	}
	origin, err := vec3Flag(c, flagOrigin)
	if err != nil {
		return err
	}
	dir, err := vec3Flag(c, flagDirection)
	if err != nil {
		return err
	}
	tmax, step := e.cfg.March.MaxDistance, e.cfg.March.StepSize
	if c.IsSet(flagTMax) {
		tmax = c.Float64(flagTMax)
	}
	if c.IsSet(flagStep) {
		step = c.Float64(flagStep)
	}
	limit := c.Int(flagLimit)

	lib, h, sink, err := e.openLibrary(path)
	if err != nil {
		return err
	}
	defer lib.ReleaseContext(h)

	ray := models.Ray{Origin: origin, Direction: dir}
	var samples []marchSample
	lib.MarchVolume(h, origin, dir, c.Float64(flagTMin), tmax, step, func(t float64) bool {
		p := ray.At(t)
		samples = append(samples, marchSample{T: t, Position: p, Value: lib.EvalScalar(h, p)})
		return limit <= 0 || len(samples) < limit
	})
	if sink.err != nil {
		return sink.err
	}

	return e.print(c, samples, func() {
		w := c.App.Writer
		for _, s := range samples {
			fmt.Fprintf(w, "t=%-10.4f pos=%-40v value=%.6f\n", s.T, s.Position, s.Value)
		}
		fmt.Fprintf(w, "%d samples\n", len(samples))
	})
}

func (e *env) sliceAction(c *cli.Context) error {
	path, err := fileArg(c)
	if err != nil {
		return err
	}
	outDir, format, resolution := e.cfg.Slices.OutputDir, e.cfg.Slices.Format, e.cfg.Slices.Resolution
	if c.IsSet(flagOutput) {
		outDir = c.String(flagOutput)
	}
	if c.IsSet(flagFormat) {
		format = c.String(flagFormat)
	}
	if c.IsSet(flagResolution) {
		resolution = c.Int(flagResolution)
	}

	ctx, err := e.openContext(path)
	if err != nil {
		return err
	}
	viewer, err := visualization.NewVolumeViewer(ctx.Volume(), visualization.Options{
		Resolution: resolution,
		Quality:    e.cfg.Slices.Quality,
	})
	if err != nil {
		return err
	}
	files, err := viewer.SaveSliceSequence(c.String(flagAxis), c.Int(flagCount), format, outDir)
	if err != nil {
		return err
	}

	return e.print(c, files, func() {
		for _, f := range files {
			fmt.Fprintln(c.App.Writer, f)
		}
	})
}
