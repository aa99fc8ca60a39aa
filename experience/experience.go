// Package experience assembles the valley: a terrain pass and a GPU particle pass drawn
// off-screen through a shared camera, then composited to the screen. The Experience is
// the explicit context every part is built from; nothing here is reachable globally.
package experience

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-valley/common"
	"github.com/Carmen-Shannon/oxy-valley/config"
	"github.com/Carmen-Shannon/oxy-valley/engine/camera"
	"github.com/Carmen-Shannon/oxy-valley/engine/clock"
	"github.com/Carmen-Shannon/oxy-valley/engine/events"
	"github.com/Carmen-Shannon/oxy-valley/engine/gpgpu"
	"github.com/Carmen-Shannon/oxy-valley/engine/logger"
	"github.com/Carmen-Shannon/oxy-valley/engine/pointer"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer"
	"github.com/Carmen-Shannon/oxy-valley/engine/resources"
	"github.com/Carmen-Shannon/oxy-valley/engine/scene"
	"github.com/Carmen-Shannon/oxy-valley/engine/viewport"
)

// Namespace is the namespace the experience itself subscribes under.
const Namespace events.Namespace = "experience"

// Off-screen pass labels.
const (
	PassParticles = "particles"
	PassValley    = "valley"
)

type experience struct {
	mu *sync.Mutex

	config    *config.Config
	pending   *config.Config
	bus       events.EventBus
	clock     clock.Clock
	renderer  renderer.Renderer
	viewport  viewport.ViewportMonitor
	pointer   pointer.PointerTracker
	resources resources.ResourceProvider

	camera    camera.Camera
	composite Composite
	graph     RenderGraph
	terrain   Terrain
	particles ParticleSystem

	simulationOptions []gpgpu.SimulationBuilderOption
	particleOptions   []ParticleSystemBuilderOption

	ready    bool
	failures []resources.LoadError
	buildErr error
}

// Experience is the application context. It owns the shared camera, the render graph
// and the passes, and builds the particle system once the resources are ready.
type Experience interface {
	// Config returns the active configuration.
	Config() *config.Config

	// Bus returns the event bus.
	Bus() events.EventBus

	// Clock returns the frame clock.
	Clock() clock.Clock

	// Renderer returns the renderer.
	Renderer() renderer.Renderer

	// Viewport returns the viewport monitor.
	Viewport() viewport.ViewportMonitor

	// Pointer returns the pointer tracker.
	Pointer() pointer.PointerTracker

	// Resources returns the resource provider.
	Resources() resources.ResourceProvider

	// Camera returns the shared perspective camera.
	Camera() camera.Camera

	// Graph returns the render graph.
	Graph() RenderGraph

	// Composite returns the compositing pass.
	Composite() Composite

	// Terrain returns the terrain, or nil when it is disabled.
	Terrain() Terrain

	// Particles returns the particle system, or nil until the resources are ready.
	Particles() ParticleSystem

	// Ready reports whether the particle system was built.
	Ready() bool

	// Failures returns the load errors reported by the resource provider.
	Failures() []resources.LoadError

	// Err returns the error that prevented the particle system from being built.
	Err() error

	// ApplyConfig queues a configuration whose tunables are applied on the next tick.
	// It may be called from any goroutine.
	ApplyConfig(cfg *config.Config)

	// ToggleSimulationDebug shows or hides the simulation state plane.
	//
	// Returns:
	//   - bool: true if the plane is now visible
	ToggleSimulationDebug() bool

	// Release frees the particle system.
	Release()
}

var _ Experience = &experience{}

// NewExperience builds the camera, compositing pass, render graph and terrain, creates
// the pointer tracker unless one is supplied, and waits for the resources' ready event to
// build the particle system. Subscriptions are made in frame order: pointer, experience,
// terrain, composite; the simulation and particles join on ready.
//
// Parameters:
//   - cfg: the configuration
//   - bus: the event bus
//   - c: the frame clock
//   - r: the renderer
//   - vp: the viewport monitor
//   - res: the resource provider, not yet started
//   - options: functional options applied in order
//
// Returns:
//   - Experience: the experience
//   - error: an error if a pass could not be built or a subscription failed
func NewExperience(
	cfg *config.Config,
	bus events.EventBus,
	c clock.Clock,
	r renderer.Renderer,
	vp viewport.ViewportMonitor,
	res resources.ResourceProvider,
	options ...ExperienceBuilderOption,
) (Experience, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	e := &experience{
		mu:        &sync.Mutex{},
		config:    cfg,
		bus:       bus,
		clock:     c,
		renderer:  r,
		viewport:  vp,
		resources: res,
	}
	for _, opt := range options {
		opt(e)
	}
	if e.pointer == nil {
		e.pointer = pointer.NewPointerTracker(bus, vp, pointer.WithSmoothing(cfg.Pointer.Smoothing))
	}

	state := vp.State()
	r.SetSize(state.Width, state.Height)
	r.SetPixelRatio(state.PixelRatio)
	r.SetClearColor(cfg.Derived.ClearColor)

	var err error
	if e.camera, err = NewSceneCamera(bus, state.Aspect); err != nil {
		return nil, err
	}
	if e.composite, err = NewComposite(state, cfg.Composite.Radius, cfg.Composite.Cursor); err != nil {
		return nil, err
	}
	e.graph = NewRenderGraph(r, e.camera, e.composite, state)

	subscriptions := []struct {
		topic events.Topic
		cb    events.Callback
	}{
		{clock.TopicTick, e.onTick},
		{resources.TopicReady, e.onReady},
		{resources.TopicLoadFailed, e.onLoadFailed},
	}
	for _, s := range subscriptions {
		if err := bus.Subscribe(events.Key{Topic: s.topic, Namespace: Namespace}, s.cb); err != nil {
			return nil, err
		}
	}

	if cfg.Terrain.Enabled {
		if e.terrain, err = NewTerrain(r, cfg.Terrain); err != nil {
			return nil, err
		}
		if _, err := e.graph.Add(PassValley, scene.NewScene(PassValley, scene.WithObjects(e.terrain.Object())), UniformTexture2); err != nil {
			return nil, err
		}
		if err := e.terrain.Attach(bus, c); err != nil {
			return nil, err
		}
	}
	if err := e.composite.Attach(bus, c, e.pointer); err != nil {
		return nil, err
	}
	if err := e.graph.Attach(bus); err != nil {
		return nil, err
	}
	// the valley and composite render without particles when loading fails, so they
	// are warmed up now rather than on ready
	if err := e.graph.Compile(); err != nil {
		logger.Logger().Warn("pipeline warm-up failed", "err", err)
	}
	return e, nil
}

func (e *experience) onReady(...any) any {
	if err := e.build(); err != nil {
		e.mu.Lock()
		e.buildErr = err
		e.mu.Unlock()
		logger.Logger().Error("experience setup failed", "err", err)
		return err
	}
	return nil
}

func (e *experience) build() error {
	e.mu.Lock()
	if e.particles != nil {
		e.mu.Unlock()
		return nil
	}
	cfg := e.config
	e.mu.Unlock()

	simOptions := append([]gpgpu.SimulationBuilderOption{
		gpgpu.WithCoefficients(gpgpu.Coefficients{
			FlowFieldInfluence: cfg.Simulation.FlowFieldInfluence,
			FlowFieldStrength:  cfg.Simulation.FlowFieldStrength,
			FlowFieldFrequency: cfg.Simulation.FlowFieldFrequency,
		}),
		gpgpu.WithCursor(common.Vec2{X: cfg.Simulation.Cursor[0], Y: cfg.Simulation.Cursor[1]}),
		gpgpu.WithDebugPlane(cfg.Simulation.DebugPlane),
	}, e.simulationOptions...)
	if cfg.Simulation.Seed != 0 {
		simOptions = append(simOptions, gpgpu.WithSeed(cfg.Simulation.Seed))
	}
	options := append([]ParticleSystemBuilderOption{
		WithParticlesConfig(cfg.Particles),
		WithSimulationOptions(simOptions...),
		WithSizeSeed(cfg.Simulation.Seed),
	}, e.particleOptions...)

	ps, err := NewParticleSystemFromResources(e.renderer, e.resources, cfg.Particles.Model, e.viewport.State(), options...)
	if err != nil {
		return fmt.Errorf("building particles from %q: %w", cfg.Particles.Model, err)
	}

	s := scene.NewScene(PassParticles, scene.WithObjects(ps.Object()))
	if debug := ps.Simulation().DebugObject(); debug != nil {
		debug.SetEnabled(cfg.Debug.ShowSimulation)
		s.Add(debug)
	}
	if _, err := e.graph.Add(PassParticles, s, UniformTexture1); err != nil {
		ps.Release()
		return err
	}
	if err := ps.Attach(e.bus, e.clock, e.pointer); err != nil {
		ps.Release()
		return err
	}

	e.mu.Lock()
	e.particles = ps
	e.ready = true
	e.mu.Unlock()

	if err := e.graph.Compile(); err != nil {
		logger.Logger().Warn("pipeline warm-up failed", "err", err)
	}
	logger.Logger().Info("experience ready", "particles", ps.Count())
	return nil
}

func (e *experience) onLoadFailed(args ...any) any {
	var failures []resources.LoadError
	if len(args) > 0 {
		failures, _ = args[0].([]resources.LoadError)
	}
	e.mu.Lock()
	e.failures = failures
	e.mu.Unlock()

	errs := make([]error, len(failures))
	for i, f := range failures {
		errs[i] = f
	}
	logger.Logger().Error("resources failed to load, particles disabled", "failures", len(failures), "err", errors.Join(errs...))
	return nil
}

func (e *experience) onTick(...any) any {
	e.mu.Lock()
	cfg := e.pending
	e.pending = nil
	if cfg != nil {
		e.config = cfg
	}
	particles := e.particles
	e.mu.Unlock()

	if cfg == nil {
		return nil
	}
	var errs []error
	if particles != nil {
		particles.Simulation().SetCoefficients(gpgpu.Coefficients{
			FlowFieldInfluence: cfg.Simulation.FlowFieldInfluence,
			FlowFieldStrength:  cfg.Simulation.FlowFieldStrength,
			FlowFieldFrequency: cfg.Simulation.FlowFieldFrequency,
		})
		errs = append(errs, particles.SetConfig(cfg.Particles))
	}
	if e.terrain != nil {
		errs = append(errs, e.terrain.SetConfig(cfg.Terrain))
	}
	errs = append(errs, e.composite.SetRadius(cfg.Composite.Radius))
	e.renderer.SetClearColor(cfg.Derived.ClearColor)

	if err := errors.Join(errs...); err != nil {
		logger.Logger().Warn("config applied with errors", "err", err)
		return err
	}
	logger.Logger().Info("config applied")
	return nil
}

func (e *experience) Config() *config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config
}

func (e *experience) Bus() events.EventBus {
	return e.bus
}

func (e *experience) Clock() clock.Clock {
	return e.clock
}

func (e *experience) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *experience) Viewport() viewport.ViewportMonitor {
	return e.viewport
}

func (e *experience) Pointer() pointer.PointerTracker {
	return e.pointer
}

func (e *experience) Resources() resources.ResourceProvider {
	return e.resources
}

func (e *experience) Camera() camera.Camera {
	return e.camera
}

func (e *experience) Graph() RenderGraph {
	return e.graph
}

func (e *experience) Composite() Composite {
	return e.composite
}

func (e *experience) Terrain() Terrain {
	return e.terrain
}

func (e *experience) Particles() ParticleSystem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.particles
}

func (e *experience) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

func (e *experience) Failures() []resources.LoadError {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]resources.LoadError, len(e.failures))
	copy(out, e.failures)
	return out
}

func (e *experience) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buildErr
}

func (e *experience) ApplyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = cfg
}

func (e *experience) ToggleSimulationDebug() bool {
	ps := e.Particles()
	if ps == nil {
		return false
	}
	debug := ps.Simulation().DebugObject()
	if debug == nil {
		return false
	}
	visible := !debug.Enabled()
	debug.SetEnabled(visible)
	logger.Logger().Debug("simulation debug plane toggled", "visible", visible)
	return visible
}

func (e *experience) Release() {
	if ps := e.Particles(); ps != nil {
		ps.Release()
	}
}
