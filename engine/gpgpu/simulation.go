package gpgpu

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/Carmen-Shannon/oxy-valley/common"
	"github.com/Carmen-Shannon/oxy-valley/engine/clock"
	"github.com/Carmen-Shannon/oxy-valley/engine/events"
	"github.com/Carmen-Shannon/oxy-valley/engine/game_object"
	"github.com/Carmen-Shannon/oxy-valley/engine/geometry"
	"github.com/Carmen-Shannon/oxy-valley/engine/logger"
	"github.com/Carmen-Shannon/oxy-valley/engine/pointer"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-valley/engine/texture"
	"github.com/chewxy/math32"
)

//go:embed shaders/debug.wgsl
var debugShaderSource string

const (
	// VariableParticles is the name of the particle state variable and of the texture
	// uniform the compute shader reads it through.
	VariableParticles = "uParticles"

	// Namespace is the namespace Update is subscribed under on the tick topic.
	Namespace events.Namespace = "gpgpu"
)

var (
	// ErrNoParticles is returned for a geometry without vertices.
	ErrNoParticles = errors.New("geometry has no particles")
	// ErrMissingPosition is returned for a geometry without a position attribute.
	ErrMissingPosition = errors.New("geometry has no position attribute")
)

// Coefficients are the live-tunable flow field parameters.
type Coefficients struct {
	FlowFieldInfluence float32 `yaml:"flowFieldInfluence"`
	FlowFieldStrength  float32 `yaml:"flowFieldStrength"`
	FlowFieldFrequency float32 `yaml:"flowFieldFrequency"`
}

// DefaultCoefficients returns the flow field parameters the simulation starts with.
func DefaultCoefficients() Coefficients {
	return Coefficients{
		FlowFieldInfluence: 0.304,
		FlowFieldStrength:  0,
		FlowFieldFrequency: 0.672,
	}
}

type simulation struct {
	mu *sync.Mutex

	renderer    renderer.Renderer
	computation ComputationRenderer
	particles   Variable
	base        texture.Texture
	count       int

	coefficients Coefficients
	cursor       common.Vec2
	rng          *rand.Rand

	debugPlane    bool
	debug         game_object.GameObject
	debugMaterial material.Material
}

// Simulation advances one particle per source geometry vertex through a flow field on
// the GPU. Particle i is texel i of the state texture, holding position in xyz and a
// life value in w.
type Simulation interface {
	// Count returns the number of particles N.
	Count() int

	// Size returns the state texture side length ceil(sqrt(N)).
	Size() int

	// Variable returns the particle state variable.
	Variable() Variable

	// BaseTexture returns the initial state, which the shader respawns particles from.
	BaseTexture() texture.Texture

	// CurrentTexture returns the texture holding the latest particle state.
	CurrentTexture() texture.Texture

	// Update pushes the frame and pointer uniforms and runs one compute pass.
	//
	// Parameters:
	//   - frame: the frame being simulated
	//   - cursor: the pointer position in normalized device coordinates
	//   - velocity: the smoothed pointer speed
	//
	// Returns:
	//   - error: an error if a uniform could not be set or the dispatch failed
	Update(frame clock.FrameTime, cursor common.Vec2, velocity float32) error

	// Attach subscribes Update to the tick topic, reading cursor and velocity from p.
	//
	// Parameters:
	//   - bus: the bus ticks arrive on
	//   - c: the clock used when a tick carries no frame
	//   - p: the pointer tracker, may be nil
	//
	// Returns:
	//   - error: an error if the subscription failed
	Attach(bus events.EventBus, c clock.Clock, p pointer.PointerTracker) error

	// SetCoefficients replaces the flow field parameters from the next Update.
	SetCoefficients(c Coefficients)

	// Coefficients returns the flow field parameters.
	Coefficients() Coefficients

	// DebugObject returns a hidden 3×3 plane showing the current state texture, or nil
	// when the debug plane was disabled.
	DebugObject() game_object.GameObject

	// Release frees the state textures.
	Release()
}

var _ Simulation = &simulation{}

// NewSimulation builds the base texture from the geometry's positions and initializes
// the particle variable with it.
//
// Parameters:
//   - r: the renderer running the dispatches
//   - geo: the source geometry, one particle per vertex
//   - compute: the compute shader advancing the particles
//   - options: functional options applied in order
//
// Returns:
//   - Simulation: the initialized simulation
//   - error: ErrMissingPosition, ErrNoParticles, or an initialization error
func NewSimulation(r renderer.Renderer, geo geometry.Geometry, compute shader.Shader, options ...SimulationBuilderOption) (Simulation, error) {
	if geo == nil {
		return nil, ErrMissingPosition
	}
	position, ok := geo.Attribute(geometry.AttributePosition)
	if !ok {
		return nil, ErrMissingPosition
	}
	count := position.Count()
	if count == 0 {
		return nil, ErrNoParticles
	}

	s := &simulation{
		mu:           &sync.Mutex{},
		renderer:     r,
		count:        count,
		coefficients: DefaultCoefficients(),
		cursor:       common.Vec2{X: -10, Y: 10},
		rng:          rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		debugPlane:   true,
	}
	for _, opt := range options {
		opt(s)
	}

	size := int(math32.Ceil(math32.Sqrt(float32(count))))
	s.computation = NewComputationRenderer(size, r)

	data := s.computation.CreateTexture()
	components := min(position.ItemSize, 3)
	for i := range count {
		for c := range components {
			data[i*4+c] = position.Data[i*position.ItemSize+c]
		}
		data[i*4+3] = s.rng.Float32()
	}

	base, err := r.NewTexture(texture.Descriptor{
		Label:     "particles base",
		Width:     size,
		Height:    size,
		Format:    texture.FormatRGBA32Float,
		MinFilter: texture.FilterNearest,
		MagFilter: texture.FilterNearest,
		Usage:     texture.UsageSampled | texture.UsageUpload,
	}, common.SliceToBytes(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create base texture: %w", err)
	}
	s.base = base
	built := false
	defer func() {
		if !built {
			s.Release()
		}
	}()

	s.particles, err = s.computation.AddVariable(VariableParticles, compute, data,
		material.WithUniform("uTime", float32(0)),
		material.WithUniform("uDeltaTime", float32(0)),
		material.WithUniform("uFlowFieldInfluence", s.coefficients.FlowFieldInfluence),
		material.WithUniform("uFlowFieldStrength", s.coefficients.FlowFieldStrength),
		material.WithUniform("uFlowFieldFrequency", s.coefficients.FlowFieldFrequency),
		material.WithUniform("uVelocity", float32(0)),
		material.WithUniform("uMouse", s.cursor.Array()),
		material.WithFloatTexture("uBase", base),
	)
	if err != nil {
		return nil, err
	}
	if err := s.computation.SetVariableDependencies(s.particles, s.particles); err != nil {
		return nil, err
	}
	if err := s.computation.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize simulation: %w", err)
	}

	if s.debugPlane {
		if err := s.buildDebugObject(); err != nil {
			return nil, err
		}
	}

	built = true
	logger.Logger().Info("simulation created", "particles", count, "size", size)
	return s, nil
}

func (s *simulation) buildDebugObject() error {
	vs, err := shader.NewShader("gpgpu-debug-vs", shader.ShaderTypeVertex, debugShaderSource)
	if err != nil {
		return err
	}
	fs, err := shader.NewShader("gpgpu-debug-fs", shader.ShaderTypeFragment, debugShaderSource)
	if err != nil {
		return err
	}
	m, err := material.NewMaterial("gpgpu debug", vs, fs,
		material.WithUniform("uOpacity", float32(1)),
		material.WithFloatTexture("uTexture", s.computation.CurrentTexture(s.particles)),
		material.WithAttributes(
			material.VertexAttribute{Name: geometry.AttributePosition, Components: 3},
			material.VertexAttribute{Name: geometry.AttributeUV, Components: 2},
		),
		material.WithDoubleSided(true),
	)
	if err != nil {
		return fmt.Errorf("failed to create debug material: %w", err)
	}
	s.debugMaterial = m
	s.debug = game_object.NewGameObject(geometry.NewPlane(3, 3, 1, 1), m,
		game_object.WithLabel("gpgpu debug"),
		game_object.WithEnabled(false),
	)
	return nil
}

func (s *simulation) Count() int {
	return s.count
}

func (s *simulation) Size() int {
	return s.computation.Size()
}

func (s *simulation) Variable() Variable {
	return s.particles
}

func (s *simulation) BaseTexture() texture.Texture {
	return s.base
}

func (s *simulation) CurrentTexture() texture.Texture {
	return s.computation.CurrentTexture(s.particles)
}

func (s *simulation) Update(frame clock.FrameTime, cursor common.Vec2, velocity float32) error {
	s.mu.Lock()
	coefficients := s.coefficients
	s.cursor = cursor
	s.mu.Unlock()

	m := s.particles.Material()
	values := []struct {
		name  string
		value any
	}{
		{"uTime", frame.ElapsedSeconds()},
		{"uDeltaTime", frame.DeltaSeconds()},
		{"uFlowFieldInfluence", coefficients.FlowFieldInfluence},
		{"uFlowFieldStrength", coefficients.FlowFieldStrength},
		{"uFlowFieldFrequency", coefficients.FlowFieldFrequency},
		{"uVelocity", velocity},
		{"uMouse", cursor.Array()},
	}
	for _, u := range values {
		if err := m.SetUniform(u.name, u.value); err != nil {
			return err
		}
	}

	if err := s.computation.Compute(); err != nil {
		return err
	}
	if s.debugMaterial != nil {
		return s.debugMaterial.SetUniform("uTexture", s.CurrentTexture())
	}
	return nil
}

func (s *simulation) Attach(bus events.EventBus, c clock.Clock, p pointer.PointerTracker) error {
	return bus.Subscribe(events.Key{Topic: clock.TopicTick, Namespace: Namespace}, func(args ...any) any {
		frame, ok := frameArg(args)
		if !ok && c != nil {
			frame = c.Frame()
		}
		s.mu.Lock()
		cursor := s.cursor
		s.mu.Unlock()
		var velocity float32
		if p != nil {
			cursor = p.Trail()
			velocity = p.TargetVelocity()
		}
		if err := s.Update(frame, cursor, velocity); err != nil {
			logger.Logger().Warn("simulation step failed", "err", err)
			return err
		}
		return nil
	})
}

func frameArg(args []any) (clock.FrameTime, bool) {
	if len(args) == 0 {
		return clock.FrameTime{}, false
	}
	frame, ok := args[0].(clock.FrameTime)
	return frame, ok
}

func (s *simulation) SetCoefficients(c Coefficients) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coefficients = c
}

func (s *simulation) Coefficients() Coefficients {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coefficients
}

func (s *simulation) DebugObject() game_object.GameObject {
	return s.debug
}

func (s *simulation) Release() {
	s.computation.Release()
	if s.base != nil {
		s.base.Release()
	}
}
