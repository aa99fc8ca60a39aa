package experience

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/Carmen-Shannon/oxy-valley/common"
	"github.com/Carmen-Shannon/oxy-valley/config"
	"github.com/Carmen-Shannon/oxy-valley/engine/clock"
	"github.com/Carmen-Shannon/oxy-valley/engine/events"
	"github.com/Carmen-Shannon/oxy-valley/engine/game_object"
	"github.com/Carmen-Shannon/oxy-valley/engine/geometry"
	"github.com/Carmen-Shannon/oxy-valley/engine/gpgpu"
	"github.com/Carmen-Shannon/oxy-valley/engine/loader"
	"github.com/Carmen-Shannon/oxy-valley/engine/logger"
	"github.com/Carmen-Shannon/oxy-valley/engine/pointer"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-valley/engine/resources"
	"github.com/Carmen-Shannon/oxy-valley/engine/viewport"
	"github.com/chewxy/math32"
)

// Particle attribute names.
const (
	AttributeParticlesUV = "aParticlesUv"
	AttributeSize        = "aSize"
)

// NamespaceParticles is the namespace the particle system subscribes under.
const NamespaceParticles events.Namespace = "particles"

// ErrNoMeshGeometry is returned when the particle model has no mesh to seed particles from.
var ErrNoMeshGeometry = errors.New("no mesh geometry found for model")

type particleSystem struct {
	mu *sync.Mutex

	config     config.ParticlesConfig
	simulation gpgpu.Simulation
	geometry   geometry.Geometry
	material   material.Material
	points     game_object.GameObject

	largeTier bool
	rng       *rand.Rand

	computeShader     shader.Shader
	simulationOptions []gpgpu.SimulationBuilderOption
}

// ParticleSystem draws one point per simulated particle, reading positions from the
// simulation's current state texture.
type ParticleSystem interface {
	// Simulation returns the simulation advancing the particles.
	Simulation() gpgpu.Simulation

	// Object returns the points object.
	Object() game_object.GameObject

	// Material returns the points material.
	Material() material.Material

	// Geometry returns the lookup geometry: one aParticlesUv and aSize entry per texel and a
	// draw range of exactly Count points.
	Geometry() geometry.Geometry

	// Count returns the number of drawn particles N.
	Count() int

	// Size returns the state texture side length.
	Size() int

	// Scale returns the uniform scale of the points object.
	Scale() float32

	// LargeTier reports whether the viewport is wider than the breakpoint.
	LargeTier() bool

	// Resize updates the resolution uniform and snaps the scale when the width crosses
	// the breakpoint.
	//
	// Parameters:
	//   - state: the new viewport state
	//
	// Returns:
	//   - error: an error if the resolution uniform could not be set
	Resize(state viewport.State) error

	// Update binds the current state texture, pushes the cursor and time uniforms and
	// applies the pointer-driven rotation.
	//
	// Parameters:
	//   - frame: the frame being drawn
	//   - trail: the smoothed pointer position
	//
	// Returns:
	//   - error: an error if a uniform could not be set
	Update(frame clock.FrameTime, trail common.Vec2) error

	// Attach subscribes the simulation and the particle system to the tick topic, in that
	// order, and the particle system to the resize topic.
	//
	// Parameters:
	//   - bus: the event bus
	//   - c: the clock used when a tick carries no frame
	//   - p: the pointer tracker, may be nil
	//
	// Returns:
	//   - error: an error if a subscription failed
	Attach(bus events.EventBus, c clock.Clock, p pointer.PointerTracker) error

	// SetConfig applies live presentation changes: point size, alpha, rotation and the
	// tier scales.
	//
	// Parameters:
	//   - cfg: the new particle settings
	//
	// Returns:
	//   - error: an error if a uniform could not be set
	SetConfig(cfg config.ParticlesConfig) error

	// Release frees the simulation textures.
	Release()
}

var _ ParticleSystem = &particleSystem{}

// NewParticleSystemFromResources seeds a particle system from a loaded model.
//
// Parameters:
//   - r: the renderer running the simulation
//   - res: a provider that published ready
//   - model: the model source name
//   - state: the current viewport
//   - options: functional options applied in order
//
// Returns:
//   - ParticleSystem: the particle system
//   - error: ErrNoMeshGeometry, a missing asset, or a construction error
func NewParticleSystemFromResources(r renderer.Renderer, res resources.ResourceProvider, model string, state viewport.State, options ...ParticleSystemBuilderOption) (ParticleSystem, error) {
	geo, err := res.Geometry(model)
	if errors.Is(err, loader.ErrNoMesh) {
		return nil, fmt.Errorf("%w: %q", ErrNoMeshGeometry, model)
	}
	if err != nil {
		return nil, err
	}
	return NewParticleSystem(r, geo, state, options...)
}

// NewParticleSystem builds the simulation for source and the points drawing it.
//
// Parameters:
//   - r: the renderer running the simulation
//   - source: the geometry seeding one particle per vertex
//   - state: the current viewport
//   - options: functional options applied in order
//
// Returns:
//   - ParticleSystem: the particle system
//   - error: a simulation error such as gpgpu.ErrNoParticles, or a material error
func NewParticleSystem(r renderer.Renderer, source geometry.Geometry, state viewport.State, options ...ParticleSystemBuilderOption) (ParticleSystem, error) {
	p := &particleSystem{
		mu:     &sync.Mutex{},
		config: config.Default().Particles,
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range options {
		opt(p)
	}

	if p.computeShader == nil {
		cs, err := ComputeShader(ShaderSimulation)
		if err != nil {
			return nil, err
		}
		p.computeShader = cs
	}
	sim, err := gpgpu.NewSimulation(r, source, p.computeShader, p.simulationOptions...)
	if err != nil {
		return nil, err
	}
	p.simulation = sim
	built := false
	defer func() {
		if !built {
			sim.Release()
		}
	}()

	size := sim.Size()
	uvs := make([]float32, size*size*2)
	sizes := make([]float32, size*size)
	for y := range size {
		for x := range size {
			i := y*size + x
			uvs[i*2] = (float32(x) + 0.5) / float32(size)
			uvs[i*2+1] = (float32(y) + 0.5) / float32(size)
			sizes[i] = p.rng.Float32()
		}
	}
	p.geometry = geometry.NewGeometry("particles")
	if err := p.geometry.SetAttribute(AttributeParticlesUV, geometry.Attribute{Data: uvs, ItemSize: 2}); err != nil {
		return nil, err
	}
	if err := p.geometry.SetAttribute(AttributeSize, geometry.Attribute{Data: sizes, ItemSize: 1}); err != nil {
		return nil, err
	}
	p.geometry.SetDrawRange(0, sim.Count())

	vs, fs, err := RenderShaders(ShaderParticles)
	if err != nil {
		return nil, err
	}
	w, h := state.DrawingBufferSize()
	p.material, err = material.NewMaterial("particles", vs, fs,
		material.WithUniform("uTime", float32(0)),
		material.WithUniform("uSize", p.config.PointSize),
		material.WithUniform("uResolution", [2]float32{float32(w), float32(h)}),
		material.WithFloatTexture("uParticlesTexture", sim.CurrentTexture()),
		material.WithUniform("uAlpha", p.config.Alpha),
		material.WithUniform("uMouse", [2]float32{-10, 10}),
		material.WithAttributes(
			material.VertexAttribute{Name: AttributeParticlesUV, Components: 2},
			material.VertexAttribute{Name: AttributeSize, Components: 1},
		),
		material.WithTopology(material.TopologyPointSprites),
		material.WithTransparent(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create particles material: %w", err)
	}

	p.points = game_object.NewGameObject(p.geometry, p.material,
		game_object.WithLabel("particles"),
		game_object.WithKind(game_object.KindPoints),
		game_object.WithFrustumCulled(false),
		game_object.WithRenderOrder(0),
	)
	p.largeTier = p.isLarge(state.Width)
	p.applyScaleLocked()

	built = true
	logger.Logger().Info("particle system created", "particles", sim.Count(), "size", size)
	return p, nil
}

func (p *particleSystem) Simulation() gpgpu.Simulation {
	return p.simulation
}

func (p *particleSystem) Object() game_object.GameObject {
	return p.points
}

func (p *particleSystem) Material() material.Material {
	return p.material
}

func (p *particleSystem) Geometry() geometry.Geometry {
	return p.geometry
}

func (p *particleSystem) Count() int {
	return p.simulation.Count()
}

func (p *particleSystem) Size() int {
	return p.simulation.Size()
}

func (p *particleSystem) Scale() float32 {
	s, _, _ := p.points.Scale()
	return s
}

func (p *particleSystem) LargeTier() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.largeTier
}

func (p *particleSystem) isLarge(width int) bool {
	return width > p.config.BreakpointWidth
}

func (p *particleSystem) applyScaleLocked() {
	s := p.config.SmallScale
	if p.largeTier {
		s = p.config.LargeScale
	}
	p.points.SetScale(s, s, s)
}

func (p *particleSystem) Resize(state viewport.State) error {
	p.mu.Lock()
	if large := p.isLarge(state.Width); large != p.largeTier {
		p.largeTier = large
		p.applyScaleLocked()
	}
	p.mu.Unlock()

	w, h := state.DrawingBufferSize()
	return p.material.SetUniform("uResolution", [2]float32{float32(w), float32(h)})
}

func (p *particleSystem) Update(frame clock.FrameTime, trail common.Vec2) error {
	if err := p.material.SetUniform("uParticlesTexture", p.simulation.CurrentTexture()); err != nil {
		return err
	}
	if err := p.material.SetUniform("uMouse", trail.Array()); err != nil {
		return err
	}
	elapsed := frame.ElapsedSeconds()
	if err := p.material.SetUniform("uTime", elapsed); err != nil {
		return err
	}

	p.mu.Lock()
	rot := p.config.Rotation
	p.mu.Unlock()
	rx := rot.TrailX*trail.Y + rot.OffsetX
	ry := rot.TrailY * trail.X
	rx += rot.Wobble * math32.Sin(ry+elapsed*rot.WobbleSpeed)
	p.points.SetRotation(rx, ry, 0)
	return nil
}

func (p *particleSystem) Attach(bus events.EventBus, c clock.Clock, ptr pointer.PointerTracker) error {
	if err := p.simulation.Attach(bus, c, ptr); err != nil {
		return err
	}
	err := bus.Subscribe(events.Key{Topic: clock.TopicTick, Namespace: NamespaceParticles}, func(args ...any) any {
		frame, ok := frameArg(args)
		if !ok && c != nil {
			frame = c.Frame()
		}
		trail := common.Vec2{X: -10, Y: 10}
		if ptr != nil {
			trail = ptr.Trail()
		}
		if err := p.Update(frame, trail); err != nil {
			logger.Logger().Warn("particle update failed", "err", err)
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	return bus.Subscribe(events.Key{Topic: viewport.TopicResize, Namespace: NamespaceParticles}, func(args ...any) any {
		state, ok := stateArg(args)
		if !ok {
			return nil
		}
		if err := p.Resize(state); err != nil {
			logger.Logger().Warn("particle resize failed", "err", err)
			return err
		}
		return nil
	})
}

func (p *particleSystem) SetConfig(cfg config.ParticlesConfig) error {
	p.mu.Lock()
	p.config.PointSize = cfg.PointSize
	p.config.Alpha = cfg.Alpha
	p.config.Rotation = cfg.Rotation
	p.config.SmallScale = cfg.SmallScale
	p.config.LargeScale = cfg.LargeScale
	p.applyScaleLocked()
	p.mu.Unlock()

	if err := p.material.SetUniform("uSize", cfg.PointSize); err != nil {
		return err
	}
	return p.material.SetUniform("uAlpha", cfg.Alpha)
}

func (p *particleSystem) Release() {
	p.simulation.Release()
}

func frameArg(args []any) (clock.FrameTime, bool) {
	if len(args) == 0 {
		return clock.FrameTime{}, false
	}
	frame, ok := args[0].(clock.FrameTime)
	return frame, ok
}
