// Package main is the sparsevol command line tool.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"sparsevol/pkg/config"
	"sparsevol/pkg/logging"
)

const (
	flagConfig = "config"
	flagDebug  = "debug"
	flagJSON   = "json"

	flagOutput      = "output"
	flagRadius      = "radius"
	flagGap         = "gap"
	flagCompression = "compression"
	flagOrigin      = "origin"
	flagDirection   = "dir"
	flagTMin        = "tmin"
	flagTMax        = "tmax"
	flagStep        = "step"
	flagLimit       = "limit"
	flagAxis        = "axis"
	flagCount       = "count"
	flagFormat      = "format"
	flagResolution  = "resolution"
)

// env is the state shared by every command after Before has run.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	json   bool
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	e := &env{}

	return &cli.App{
		Name:  "sparsevol",
		Usage: "inspect, sample and ray march sparse scalar volumes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
			&cli.BoolFlag{
				Name:  flagJSON,
				Usage: "print results as JSON",
			},
		},
		Before: func(c *cli.Context) error {
			cfg := config.DefaultConfig()
			if path := c.String(flagConfig); path != "" {
				var err error
				if cfg, err = config.LoadConfig(path); err != nil {
					return err
				}
			}
			level := cfg.Logging.Level
			if c.Bool(flagDebug) || cfg.Output.Verbose {
				level = "debug"
			}
			logger, err := logging.NewLogger("sparsevol", level, cfg.Logging.Encoding)
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.logger = logger
			e.json = c.Bool(flagJSON) || cfg.Output.JSON
			return nil
		},
		After: func(c *cli.Context) error {
			if e.logger != nil {
				_ = e.logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "demo",
				Usage:     "write a demo volume: a sphere and a slab separated by empty space",
				UsageText: "sparsevol demo [--output FILE]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagOutput, Aliases: []string{"o"}, Value: "demo.svol", Usage: "output `FILE`"},
					&cli.IntFlag{Name: flagRadius, Usage: "sphere radius in voxels (default from config)"},
					&cli.IntFlag{Name: flagGap, Usage: "empty voxels between sphere and slab (default from config)"},
					&cli.StringFlag{Name: flagCompression, Usage: "payload compression: none or zstd (default from config)"},
				},
				Action: e.demoAction,
			},
			{
				Name:      "info",
				Usage:     "list the grids in a volume file and summarise the first scalar grid",
				UsageText: "sparsevol info FILE",
				Action:    e.infoAction,
			},
			{
				Name:      "sample",
				Usage:     "evaluate the interpolated value at a world-space point",
				UsageText: "sparsevol sample FILE X Y Z",
				Action:    e.sampleAction,
			},
			{
				Name:      "march",
				Usage:     "march a ray through the active regions and print every sample",
				UsageText: "sparsevol march --origin X,Y,Z --dir X,Y,Z [options] FILE",
				Flags: []cli.Flag{
					&cli.Float64SliceFlag{Name: flagOrigin, Required: true, Usage: "ray origin in world space"},
					&cli.Float64SliceFlag{Name: flagDirection, Required: true, Usage: "ray direction in world space"},
					&cli.Float64Flag{Name: flagTMin, Value: 0, Usage: "start of the ray interval"},
					&cli.Float64Flag{Name: flagTMax, Usage: "end of the ray interval (default march.maxDistance)"},
					&cli.Float64Flag{Name: flagStep, Usage: "sample spacing in ray time (default march.stepSize)"},
					&cli.IntFlag{Name: flagLimit, Usage: "stop after this many samples, 0 for no limit"},
				},
				Action: e.marchAction,
			},
			{
				Name:      "slice",
				Usage:     "render evenly spaced axis-aligned slices to images",
				UsageText: "sparsevol slice [--axis z] [--count 8] [options] FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagAxis, Value: "z", Usage: "slice normal: x, y or z"},
					&cli.IntFlag{Name: flagCount, Value: 8, Usage: "number of slices"},
					&cli.StringFlag{Name: flagOutput, Aliases: []string{"o"}, Usage: "output `DIR` (default slices.outputDir)"},
					&cli.StringFlag{Name: flagFormat, Usage: "png or jpeg (default slices.format)"},
					&cli.IntFlag{Name: flagResolution, Usage: "pixels along the longer side (default slices.resolution)"},
				},
				Action: e.sliceAction,
			},
		},
	}
}

// print writes v as indented JSON when --json is set and calls text
// otherwise.
func (e *env) print(c *cli.Context, v interface{}, text func()) error {
	if !e.json {
		text()
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding output")
	}
	_, err = fmt.Fprintln(c.App.Writer, string(data))
	return err
}

// fileArg returns the first positional argument.
func fileArg(c *cli.Context) (string, error) {
	if c.NArg() < 1 {
		return "", errors.Errorf("usage: %s", c.Command.UsageText)
	}
	return c.Args().First(), nil
}
