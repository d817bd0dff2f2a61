package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"

	"sparsevol/internal/models"
	"sparsevol/pkg/march"
	"sparsevol/pkg/transform"
)

func TestDemoGridHasTwoRegionsAlongX(t *testing.T) {
	g := buildDemoGrid(4, 3)
	m := march.New(g, transform.Identity(), g.ActiveIndexBound())

	spans := m.Spans(models.Ray{Origin: mgl64.Vec3{-10, 0, 0}, Direction: mgl64.Vec3{1, 0, 0}, TMin: 0, TMax: 100})
	require.Len(t, spans, 2)
	require.InDelta(t, 6, spans[0].T0, 1e-9)
	require.InDelta(t, 14.5, spans[0].T1, 1e-9)
	require.InDelta(t, 17.5, spans[1].T0, 1e-9)
	require.InDelta(t, 25, spans[1].T1, 1e-9)
}

func run(t *testing.T, args ...string) []byte {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	require.NoError(t, app.Run(append([]string{"sparsevol"}, args...)))
	return out.Bytes()
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "demo.svol")

	run(t, "demo", "--output", path, "--radius", "4", "--gap", "3")

	var info struct {
		Grids []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"grids"`
		Stats struct {
			Max float64 `json:"max"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(run(t, "--json", "info", path), &info))
	require.Len(t, info.Grids, 2)
	require.Equal(t, "velocity", info.Grids[0].Name)
	require.Equal(t, "density", info.Grids[1].Name)
	require.InDelta(t, 1, info.Stats.Max, 1e-6)

	var sample struct {
		Value float64 `json:"value"`
	}
	require.NoError(t, json.Unmarshal(run(t, "--json", "sample", path, "0", "0", "0"), &sample))
	require.InDelta(t, 1, sample.Value, 1e-6)

	// World space is index space scaled by the demo voxel size.
	var samples []marchSample
	out := run(t, "--json", "march", "--origin=-5,0,0", "--dir=1,0,0", "--tmax=20", "--step=1", path)
	require.NoError(t, json.Unmarshal(out, &samples))
	require.NotEmpty(t, samples)
	for i, s := range samples {
		require.InDelta(t, s.T, float64(int(s.T+0.5)), 1e-9, "sample %d off the lattice", i)
		if i > 0 {
			require.Greater(t, s.T, samples[i-1].T)
		}
	}

	var files []string
	require.NoError(t, json.Unmarshal(run(t, "--json", "slice", "--count", "2", "--output", filepath.Join(dir, "slices"), "--resolution", "16", path), &files))
	require.Len(t, files, 2)
}

func TestSampleRequiresScalarGrid(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	err := app.Run([]string{"sparsevol", "sample", filepath.Join(t.TempDir(), "missing.svol"), "0", "0", "0"})
	require.Error(t, err)
}
