package experience

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-valley/engine/camera"
	"github.com/Carmen-Shannon/oxy-valley/engine/clock"
	"github.com/Carmen-Shannon/oxy-valley/engine/events"
	"github.com/Carmen-Shannon/oxy-valley/engine/logger"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer"
	"github.com/Carmen-Shannon/oxy-valley/engine/scene"
	"github.com/Carmen-Shannon/oxy-valley/engine/texture"
	"github.com/Carmen-Shannon/oxy-valley/engine/viewport"
)

// NamespaceGraph is the namespace the render graph subscribes under.
const NamespaceGraph events.Namespace = "graph"

// Entry is one off-screen pass: a scene drawn through the shared camera into its own
// target, which the compositing pass samples through Uniform.
type Entry struct {
	Label   string
	Scene   scene.Scene
	Target  texture.RenderTarget
	Uniform string
}

type renderGraph struct {
	mu *sync.Mutex

	renderer  renderer.Renderer
	camera    camera.Camera
	composite Composite
	state     viewport.State
	entries   []Entry
}

// RenderGraph sequences the frame: every off-screen pass in order, then the compositing
// pass to the screen.
type RenderGraph interface {
	// Add appends an off-screen pass with a target sized to the drawing buffer.
	//
	// Parameters:
	//   - label: the unique pass label
	//   - s: the scene to draw
	//   - uniform: the compositing texture uniform the target is bound to
	//
	// Returns:
	//   - Entry: the new pass
	//   - error: an error for a duplicate label, an unknown uniform or a target failure
	Add(label string, s scene.Scene, uniform string) (Entry, error)

	// Entries returns the passes in render order.
	Entries() []Entry

	// Camera returns the shared camera.
	Camera() camera.Camera

	// Composite returns the compositing pass.
	Composite() Composite

	// Render draws every pass into its target, binds the targets to the compositing
	// material, draws the compositing pass to the screen and presents. Without passes it
	// clears the screen only.
	//
	// Returns:
	//   - error: the first pass error; the screen target is restored regardless
	Render() error

	// Resize follows the viewport: renderer size, every target and the compositing
	// resolution.
	Resize(state viewport.State) error

	// Compile prepares the pipelines of every pass once, outside the frame loop.
	Compile() error

	// Attach subscribes Render to the render topic and Resize to the resize topic.
	Attach(bus events.EventBus) error
}

var _ RenderGraph = &renderGraph{}

// NewRenderGraph creates an empty graph.
//
// Parameters:
//   - r: the renderer issuing the passes
//   - cam: the shared camera
//   - c: the compositing pass
//   - state: the current viewport
//
// Returns:
//   - RenderGraph: the graph
func NewRenderGraph(r renderer.Renderer, cam camera.Camera, c Composite, state viewport.State) RenderGraph {
	return &renderGraph{
		mu:        &sync.Mutex{},
		renderer:  r,
		camera:    cam,
		composite: c,
		state:     state,
	}
}

func (g *renderGraph) Add(label string, s scene.Scene, uniform string) (Entry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, e := range g.entries {
		if e.Label == label {
			return Entry{}, fmt.Errorf("render graph already has a pass %q", label)
		}
	}
	if _, ok := g.composite.Material().Uniform(uniform); !ok {
		return Entry{}, fmt.Errorf("pass %q: composite has no uniform %q", label, uniform)
	}
	w, h := g.targetSizeLocked()
	target, err := g.renderer.NewRenderTarget(label, w, h, texture.WithMipmaps(false))
	if err != nil {
		return Entry{}, fmt.Errorf("pass %q: %w", label, err)
	}
	e := Entry{Label: label, Scene: s, Target: target, Uniform: uniform}
	g.entries = append(g.entries, e)
	logger.Logger().Debug("render pass added", "label", label, "width", w, "height", h)
	return e, nil
}

func (g *renderGraph) targetSizeLocked() (int, int) {
	w, h := g.state.DrawingBufferSize()
	return max(w, 1), max(h, 1)
}

func (g *renderGraph) Entries() []Entry {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Entry, len(g.entries))
	copy(out, g.entries)
	return out
}

func (g *renderGraph) Camera() camera.Camera {
	return g.camera
}

func (g *renderGraph) Composite() Composite {
	return g.composite
}

func (g *renderGraph) Render() error {
	entries := g.Entries()
	defer g.renderer.SetRenderTarget(nil)

	if len(entries) == 0 {
		g.renderer.SetRenderTarget(nil)
		if err := g.renderer.Clear(); err != nil {
			return err
		}
		return g.renderer.Present()
	}

	for _, e := range entries {
		g.renderer.SetRenderTarget(e.Target)
		if err := g.renderer.Render(e.Scene, g.camera); err != nil {
			return fmt.Errorf("pass %q: %w", e.Label, err)
		}
	}
	g.renderer.SetRenderTarget(nil)

	m := g.composite.Material()
	for _, e := range entries {
		if err := m.SetUniform(e.Uniform, e.Target.Texture()); err != nil {
			return err
		}
	}
	if err := g.renderer.Render(g.composite.Scene(), g.composite.Camera()); err != nil {
		return err
	}
	return g.renderer.Present()
}

func (g *renderGraph) Resize(state viewport.State) error {
	g.mu.Lock()
	g.state = state
	w, h := g.targetSizeLocked()
	for _, e := range g.entries {
		e.Target.SetSize(w, h)
	}
	g.mu.Unlock()

	g.renderer.SetSize(state.Width, state.Height)
	g.renderer.SetPixelRatio(state.PixelRatio)
	return g.composite.Resize(state)
}

func (g *renderGraph) Compile() error {
	entries := g.Entries()
	defer g.renderer.SetRenderTarget(nil)

	var errs []error
	for _, e := range entries {
		g.renderer.SetRenderTarget(e.Target)
		if err := g.renderer.Compile(e.Scene, g.camera); err != nil {
			errs = append(errs, fmt.Errorf("pass %q: %w", e.Label, err))
		}
	}
	g.renderer.SetRenderTarget(nil)
	if err := g.renderer.Compile(g.composite.Scene(), g.composite.Camera()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (g *renderGraph) Attach(bus events.EventBus) error {
	err := bus.Subscribe(events.Key{Topic: clock.TopicRender, Namespace: NamespaceGraph}, func(...any) any {
		if err := g.Render(); err != nil {
			logger.Logger().Warn("frame render failed", "err", err)
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	return bus.Subscribe(events.Key{Topic: viewport.TopicResize, Namespace: NamespaceGraph}, func(args ...any) any {
		state, ok := stateArg(args)
		if !ok {
			return nil
		}
		if err := g.Resize(state); err != nil {
			logger.Logger().Warn("render graph resize failed", "err", err)
			return err
		}
		return nil
	})
}
