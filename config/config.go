// Package config provides configuration loading, validation and live reloading.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-valley/engine/resources"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid config")

// Config holds every tunable of the application.
type Config struct {
	Window     WindowConfig     `yaml:"window"`
	Renderer   RendererConfig   `yaml:"renderer"`
	Clock      ClockConfig      `yaml:"clock"`
	Viewport   ViewportConfig   `yaml:"viewport"`
	Pointer    PointerConfig    `yaml:"pointer"`
	Simulation SimulationConfig `yaml:"simulation"`
	Particles  ParticlesConfig  `yaml:"particles"`
	Terrain    TerrainConfig    `yaml:"terrain"`
	Composite  CompositeConfig  `yaml:"composite"`
	Resources  ResourcesConfig  `yaml:"resources"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Debug      DebugConfig      `yaml:"debug"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// WindowConfig holds the native window settings.
type WindowConfig struct {
	Title     string `yaml:"title"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	MinWidth  int    `yaml:"min_width"`
	MinHeight int    `yaml:"min_height"`
	MaxWidth  int    `yaml:"max_width"`
	MaxHeight int    `yaml:"max_height"`
}

// RendererConfig holds the GPU presentation settings.
type RendererConfig struct {
	PresentMode     string  `yaml:"present_mode"` // vsync or uncapped
	MSAA            int     `yaml:"msaa"`         // 1 or 4
	ClearColor      string  `yaml:"clear_color"`  // #rrggbb, sRGB
	SoftwareAdapter bool    `yaml:"software_adapter"`
	FrameLimit      float64 `yaml:"frame_limit"` // windowed frames per second, 0 = uncapped
}

// ClockConfig holds the headless pacing.
type ClockConfig struct {
	TickRate  int    `yaml:"tick_rate"`
	MaxFrames uint64 `yaml:"max_frames"`
}

// ViewportConfig holds the drawing buffer limits.
type ViewportConfig struct {
	MaxPixelRatio float32 `yaml:"max_pixel_ratio"`
}

// PointerConfig holds the cursor smoothing factor.
type PointerConfig struct {
	Smoothing float32 `yaml:"smoothing"`
}

// SimulationConfig holds the particle flow field parameters.
type SimulationConfig struct {
	FlowFieldInfluence float32    `yaml:"flow_field_influence"`
	FlowFieldStrength  float32    `yaml:"flow_field_strength"`
	FlowFieldFrequency float32    `yaml:"flow_field_frequency"`
	Cursor             [2]float32 `yaml:"cursor"`
	WorkgroupSize      int        `yaml:"workgroup_size"`
	Seed               uint64     `yaml:"seed"` // 0 = random
	DebugPlane         bool       `yaml:"debug_plane"`
}

// RotationConfig holds the coefficients of the pointer-driven particle rotation.
type RotationConfig struct {
	TrailX      float32 `yaml:"trail_x"`
	OffsetX     float32 `yaml:"offset_x"`
	Wobble      float32 `yaml:"wobble"`
	WobbleSpeed float32 `yaml:"wobble_speed"`
	TrailY      float32 `yaml:"trail_y"`
}

// ParticlesConfig holds the point cloud presentation.
type ParticlesConfig struct {
	Model           string         `yaml:"model"`
	PointSize       float32        `yaml:"point_size"`
	Alpha           float32        `yaml:"alpha"`
	BreakpointWidth int            `yaml:"breakpoint_width"`
	SmallScale      float32        `yaml:"small_scale"`
	LargeScale      float32        `yaml:"large_scale"`
	Rotation        RotationConfig `yaml:"rotation"`
}

// LinesConfig holds the terrain contour line texture layout.
type LinesConfig struct {
	Height         int     `yaml:"height"`
	Count          int     `yaml:"count"`
	BigLineWidth   float32 `yaml:"big_line_width"`
	SmallLineWidth float32 `yaml:"small_line_width"`
	SmallLineAlpha float32 `yaml:"small_line_alpha"`
}

// TerrainConfig holds the terrain surface and its shading coefficients.
type TerrainConfig struct {
	Enabled                   bool        `yaml:"enabled"`
	Segments                  int         `yaml:"segments"`
	Scale                     float32     `yaml:"scale"`
	Elevation                 float32     `yaml:"elevation"`
	ElevationValley           float32     `yaml:"elevation_valley"`
	ElevationValleyFrequency  float32     `yaml:"elevation_valley_frequency"`
	ElevationGeneral          float32     `yaml:"elevation_general"`
	ElevationGeneralFrequency float32     `yaml:"elevation_general_frequency"`
	ElevationDetails          float32     `yaml:"elevation_details"`
	ElevationDetailsFrequency float32     `yaml:"elevation_details_frequency"`
	TextureFrequency          float32     `yaml:"texture_frequency"`
	TextureOffset             float32     `yaml:"texture_offset"`
	HslHue                    float32     `yaml:"hsl_hue"`
	HslHueOffset              float32     `yaml:"hsl_hue_offset"`
	HslHueFrequency           float32     `yaml:"hsl_hue_frequency"`
	HslTimeFrequency          float32     `yaml:"hsl_time_frequency"`
	HslLightness              float32     `yaml:"hsl_lightness"`
	HslLightnessVariation     float32     `yaml:"hsl_lightness_variation"`
	HslLightnessFrequency     float32     `yaml:"hsl_lightness_frequency"`
	Lines                     LinesConfig `yaml:"lines"`
}

// CompositeConfig holds the final pass parameters.
type CompositeConfig struct {
	Radius float32    `yaml:"radius"`
	Cursor [2]float32 `yaml:"cursor"`
}

// ResourcesConfig holds the asset manifest.
type ResourcesConfig struct {
	Workers int                `yaml:"workers"` // 0 = one per CPU, minus one
	Sources []resources.Source `yaml:"sources"`
}

// MetricsConfig holds the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// DebugConfig holds development switches.
type DebugConfig struct {
	ShowSimulation bool `yaml:"show_simulation"`
	WatchConfig    bool `yaml:"watch_config"`
}

// DerivedConfig holds values computed from the loaded config.
type DerivedConfig struct {
	ClearColor [4]float64 // linear RGBA
	VSync      bool
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
//
// Parameters:
//   - path: the user config file, may be empty
//
// Returns:
//   - *Config: the validated config with derived values
//   - error: a read, parse or validation error
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		// only overwrites fields present in the file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()
	return cfg, nil
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Validate checks every section and returns all problems joined, each wrapping ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	check(c.Window.Width > 0 && c.Window.Height > 0, "window size %dx%d", c.Window.Width, c.Window.Height)
	check(c.Window.MinWidth <= c.Window.MaxWidth && c.Window.MinHeight <= c.Window.MaxHeight, "window min size exceeds max size")
	check(c.Renderer.PresentMode == "vsync" || c.Renderer.PresentMode == "uncapped", "renderer.present_mode %q", c.Renderer.PresentMode)
	check(c.Renderer.MSAA == 1 || c.Renderer.MSAA == 4, "renderer.msaa %d", c.Renderer.MSAA)
	_, colorErr := parseHexColor(c.Renderer.ClearColor)
	check(colorErr == nil, "renderer.clear_color %q", c.Renderer.ClearColor)
	check(c.Renderer.FrameLimit >= 0, "renderer.frame_limit %v", c.Renderer.FrameLimit)
	check(c.Clock.TickRate > 0, "clock.tick_rate %d", c.Clock.TickRate)
	check(c.Viewport.MaxPixelRatio >= 1 && c.Viewport.MaxPixelRatio <= 2, "viewport.max_pixel_ratio %v must be in [1, 2]", c.Viewport.MaxPixelRatio)
	check(c.Pointer.Smoothing > 0 && c.Pointer.Smoothing < 1, "pointer.smoothing %v must be in (0, 1)", c.Pointer.Smoothing)
	check(c.Simulation.WorkgroupSize > 0, "simulation.workgroup_size %d", c.Simulation.WorkgroupSize)
	check(c.Particles.Model != "", "particles.model is empty")
	check(c.Particles.PointSize > 0, "particles.point_size %v", c.Particles.PointSize)
	check(c.Particles.BreakpointWidth > 0, "particles.breakpoint_width %d", c.Particles.BreakpointWidth)
	check(c.Terrain.Segments > 0, "terrain.segments %d", c.Terrain.Segments)
	check(c.Terrain.Lines.Height > 0, "terrain.lines.height %d", c.Terrain.Lines.Height)
	check(c.Terrain.Lines.Count > 0, "terrain.lines.count %d", c.Terrain.Lines.Count)
	check(c.Composite.Radius >= 0, "composite.radius %v", c.Composite.Radius)
	check(c.Resources.Workers >= 0, "resources.workers %d", c.Resources.Workers)

	names := make(map[string]bool, len(c.Resources.Sources))
	for i, s := range c.Resources.Sources {
		check(s.Name != "", "resources.sources[%d] has no name", i)
		check(s.Path != "", "resources.sources[%d] %q has no path", i, s.Name)
		check(!names[s.Name], "resources.sources[%d] duplicates %q", i, s.Name)
		names[s.Name] = true
	}
	return errors.Join(errs...)
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	srgb, _ := parseHexColor(c.Renderer.ClearColor)
	for i := range 3 {
		c.Derived.ClearColor[i] = srgbToLinear(srgb[i])
	}
	c.Derived.ClearColor[3] = 1
	c.Derived.VSync = c.Renderer.PresentMode == "vsync"
}

// parseHexColor parses #rrggbb into sRGB components in [0, 1].
func parseHexColor(s string) ([3]float64, error) {
	var out [3]float64
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return out, fmt.Errorf("color %q is not #rrggbb", s)
	}
	for i := range 3 {
		v, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
		if err != nil {
			return out, fmt.Errorf("color %q: %w", s, err)
		}
		out[i] = float64(v) / 255
	}
	return out, nil
}

func srgbToLinear(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}
