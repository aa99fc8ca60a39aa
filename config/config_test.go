package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-valley/engine/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "valley.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, float32(2), cfg.Viewport.MaxPixelRatio)
	assert.Equal(t, float32(0.0125), cfg.Pointer.Smoothing)
	assert.Equal(t, float32(0.304), cfg.Simulation.FlowFieldInfluence)
	assert.Equal(t, float32(0.672), cfg.Simulation.FlowFieldFrequency)
	assert.Equal(t, [2]float32{-10, 10}, cfg.Simulation.Cursor)
	assert.Equal(t, 1000, cfg.Particles.BreakpointWidth)
	assert.Equal(t, float32(0.1375), cfg.Particles.SmallScale)
	assert.Equal(t, float32(0.175), cfg.Particles.LargeScale)
	assert.Equal(t, 128, cfg.Terrain.Lines.Height)
	assert.Equal(t, [2]float32{10, -10}, cfg.Composite.Cursor)
	require.Len(t, cfg.Resources.Sources, 1)
	assert.Equal(t, resources.SourceGLTFModel, cfg.Resources.Sources[0].Type)

	assert.True(t, cfg.Derived.VSync)
	assert.InDelta(t, 0.831, cfg.Derived.ClearColor[0], 0.001)
	assert.Equal(t, cfg.Derived.ClearColor[0], cfg.Derived.ClearColor[2])
	assert.Equal(t, 1.0, cfg.Derived.ClearColor[3])
}

func TestUserFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
renderer:
  present_mode: uncapped
  clear_color: "#000000"
simulation:
  flow_field_strength: 1.5
resources:
  sources:
    - {name: hills, type: gltfModel, path: hills.glb}
    - {name: lines, type: texture, path: lines.png}
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Derived.VSync)
	assert.Equal(t, [4]float64{0, 0, 0, 1}, cfg.Derived.ClearColor)
	assert.Equal(t, float32(1.5), cfg.Simulation.FlowFieldStrength)
	assert.Equal(t, float32(0.304), cfg.Simulation.FlowFieldInfluence)
	require.Len(t, cfg.Resources.Sources, 2)
	assert.Equal(t, "lines", cfg.Resources.Sources[1].Name)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "present mode", body: "renderer: {present_mode: sometimes}", want: "present_mode"},
		{name: "msaa", body: "renderer: {msaa: 2}", want: "msaa"},
		{name: "clear color", body: `renderer: {clear_color: "ebebeb0"}`, want: "clear_color"},
		{name: "smoothing", body: "pointer: {smoothing: 1}", want: "smoothing"},
		{name: "pixel ratio", body: "viewport: {max_pixel_ratio: 0.5}", want: "max_pixel_ratio"},
		{name: "pixel ratio above two", body: "viewport: {max_pixel_ratio: 4}", want: "max_pixel_ratio"},
		{name: "duplicate source", body: "resources: {sources: [{name: a, type: texture, path: a.png}, {name: a, type: texture, path: b.png}]}", want: "duplicates"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, t.TempDir(), tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading config")

	_, err = Load(writeConfig(t, t.TempDir(), "window: [1, 2"))
	assert.ErrorContains(t, err, "parsing config")
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Particles.PointSize = 0.01
	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.WriteYAML(path))

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, float32(0.01), again.Particles.PointSize)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "particles: {point_size: 0.005}")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloaded := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) { reloaded <- c })
	}()

	// the watcher registers asynchronously, so keep writing until a reload lands
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	var got *Config
	for got == nil {
		select {
		case got = <-reloaded:
		case <-tick.C:
			require.NoError(t, os.WriteFile(path, []byte("particles: {point_size: 0.02}"), 0o644))
		case <-deadline:
			t.Fatal("config was not reloaded")
		}
	}
	assert.Equal(t, float32(0.02), got.Particles.PointSize)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
