package experience

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-valley/config"
	"github.com/Carmen-Shannon/oxy-valley/engine/clock"
	"github.com/Carmen-Shannon/oxy-valley/engine/events"
	"github.com/Carmen-Shannon/oxy-valley/engine/game_object"
	"github.com/Carmen-Shannon/oxy-valley/engine/geometry"
	"github.com/Carmen-Shannon/oxy-valley/engine/logger"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-valley/engine/texture"
	"github.com/chewxy/math32"
)

// NamespaceTerrain is the namespace the terrain subscribes under.
const NamespaceTerrain events.Namespace = "terrain"

type terrain struct {
	mu *sync.Mutex

	config   config.TerrainConfig
	lines    texture.Texture
	material material.Material
	object   game_object.GameObject
}

// Terrain is the valley surface: a dense plane displaced and shaded in its shaders,
// with contour lines looked up from a one pixel wide texture.
type Terrain interface {
	// Object returns the terrain mesh.
	Object() game_object.GameObject

	// Material returns the terrain material.
	Material() material.Material

	// LineTexture returns the contour line lookup texture.
	LineTexture() texture.Texture

	// Update pushes the elapsed time.
	Update(frame clock.FrameTime) error

	// Attach subscribes Update to the tick topic.
	Attach(bus events.EventBus, c clock.Clock) error

	// SetConfig applies live shading changes. Geometry and line texture settings are
	// fixed at construction.
	//
	// Parameters:
	//   - cfg: the new terrain settings
	//
	// Returns:
	//   - error: an error if a uniform could not be set
	SetConfig(cfg config.TerrainConfig) error
}

var _ Terrain = &terrain{}

// NewTerrain builds the terrain mesh, its line texture and material.
//
// Parameters:
//   - r: the renderer owning the line texture
//   - cfg: the terrain settings
//
// Returns:
//   - Terrain: the terrain
//   - error: an error if the texture or material could not be created
func NewTerrain(r renderer.Renderer, cfg config.TerrainConfig) (Terrain, error) {
	t := &terrain{
		mu:     &sync.Mutex{},
		config: cfg,
	}

	lines, err := r.NewTexture(texture.Descriptor{
		Label:     "terrain lines",
		Width:     1,
		Height:    cfg.Lines.Height,
		Format:    texture.FormatRGBA8Unorm,
		MinFilter: texture.FilterLinear,
		MagFilter: texture.FilterNearest,
		WrapS:     texture.WrapRepeat,
		WrapT:     texture.WrapRepeat,
		Usage:     texture.UsageSampled | texture.UsageUpload,
	}, LineTextureData(cfg.Lines))
	if err != nil {
		return nil, fmt.Errorf("failed to create line texture: %w", err)
	}
	t.lines = lines

	vs, fs, err := RenderShaders(ShaderTerrain)
	if err != nil {
		return nil, err
	}
	options := []material.MaterialBuilderOption{
		material.WithTexture("uTexture", lines),
	}
	for _, u := range terrainUniforms(cfg) {
		options = append(options, material.WithUniform(u.name, u.value))
	}
	options = append(options,
		material.WithAttributes(
			material.VertexAttribute{Name: geometry.AttributePosition, Components: 3},
			material.VertexAttribute{Name: geometry.AttributeUV, Components: 2},
		),
		material.WithTransparent(true),
		material.WithDoubleSided(true),
	)
	t.material, err = material.NewMaterial("terrain", vs, fs, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create terrain material: %w", err)
	}

	geo := geometry.NewPlane(1, 1, cfg.Segments, cfg.Segments)
	if err := rotateX(geo, -math32.Pi/2); err != nil {
		return nil, err
	}
	t.object = game_object.NewGameObject(geo, t.material,
		game_object.WithLabel("terrain"),
		game_object.WithScale(cfg.Scale, cfg.Scale, cfg.Scale),
	)

	logger.Logger().Info("terrain created", "segments", cfg.Segments, "vertices", geo.VertexCount())
	return t, nil
}

type namedUniform struct {
	name  string
	value float32
}

// terrainUniforms lists the value uniforms in block order.
func terrainUniforms(cfg config.TerrainConfig) []namedUniform {
	return []namedUniform{
		{"uElevation", cfg.Elevation},
		{"uElevationValley", cfg.ElevationValley},
		{"uElevationValleyFrequency", cfg.ElevationValleyFrequency},
		{"uElevationGeneral", cfg.ElevationGeneral},
		{"uElevationGeneralFrequency", cfg.ElevationGeneralFrequency},
		{"uElevationDetails", cfg.ElevationDetails},
		{"uElevationDetailsFrequency", cfg.ElevationDetailsFrequency},
		{"uTextureFrequency", cfg.TextureFrequency},
		{"uTextureOffset", cfg.TextureOffset},
		{"uTime", 0},
		{"uHslHue", cfg.HslHue},
		{"uHslHueOffset", cfg.HslHueOffset},
		{"uHslHueFrequency", cfg.HslHueFrequency},
		{"uHslTimeFrequency", cfg.HslTimeFrequency},
		{"uHslLightness", cfg.HslLightness},
		{"uHslLightnessVariation", cfg.HslLightnessVariation},
		{"uHslLightnessFrequency", cfg.HslLightnessFrequency},
	}
}

// LineTextureData renders the 1×H contour line strip: an opaque white band at the top,
// then Count-1 thin translucent cyan lines spaced evenly below it. Everything else is
// transparent black.
//
// Parameters:
//   - cfg: the line layout
//
// Returns:
//   - []byte: H rows of RGBA8 pixels
func LineTextureData(cfg config.LinesConfig) []byte {
	h := cfg.Height
	data := make([]byte, h*4)
	big := int(math32.Round(float32(h) * cfg.BigLineWidth))
	small := int(math32.Round(float32(h) * cfg.SmallLineWidth))
	spacing := int(math32.Round(float32(h-big) / float32(cfg.Count)))
	alpha := byte(math32.Round(cfg.SmallLineAlpha * 255))

	for y := range h {
		px := data[y*4 : y*4+4]
		if y < big {
			copy(px, []byte{255, 255, 255, 255})
			continue
		}
		for i := range cfg.Count - 1 {
			start := big + spacing*(i+1)
			if y >= start && y < start+small {
				copy(px, []byte{0, 255, 255, alpha})
				break
			}
		}
	}
	return data
}

// rotateX rotates positions and normals of geo about the X axis.
func rotateX(geo geometry.Geometry, angle float32) error {
	sin, cos := math32.Sincos(angle)
	for _, name := range []string{geometry.AttributePosition, geometry.AttributeNormal} {
		attr, ok := geo.Attribute(name)
		if !ok || attr.ItemSize != 3 {
			continue
		}
		data := make([]float32, len(attr.Data))
		for i := 0; i < len(data); i += 3 {
			y, z := attr.Data[i+1], attr.Data[i+2]
			data[i] = attr.Data[i]
			data[i+1] = y*cos - z*sin
			data[i+2] = y*sin + z*cos
		}
		if err := geo.SetAttribute(name, geometry.Attribute{Data: data, ItemSize: 3}); err != nil {
			return err
		}
	}
	return nil
}

func (t *terrain) Object() game_object.GameObject {
	return t.object
}

func (t *terrain) Material() material.Material {
	return t.material
}

func (t *terrain) LineTexture() texture.Texture {
	return t.lines
}

func (t *terrain) Update(frame clock.FrameTime) error {
	return t.material.SetUniform("uTime", frame.ElapsedSeconds())
}

func (t *terrain) Attach(bus events.EventBus, c clock.Clock) error {
	return bus.Subscribe(events.Key{Topic: clock.TopicTick, Namespace: NamespaceTerrain}, func(args ...any) any {
		frame, ok := frameArg(args)
		if !ok && c != nil {
			frame = c.Frame()
		}
		if err := t.Update(frame); err != nil {
			logger.Logger().Warn("terrain update failed", "err", err)
			return err
		}
		return nil
	})
}

func (t *terrain) SetConfig(cfg config.TerrainConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, u := range terrainUniforms(cfg) {
		if u.name == "uTime" {
			continue
		}
		if err := t.material.SetUniform(u.name, u.value); err != nil {
			return err
		}
	}
	t.config = cfg
	return nil
}
