package experience

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-valley/config"
	"github.com/Carmen-Shannon/oxy-valley/engine/events"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer"
	"github.com/Carmen-Shannon/oxy-valley/engine/scene"
	"github.com/Carmen-Shannon/oxy-valley/engine/texture"
	"github.com/Carmen-Shannon/oxy-valley/engine/viewport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedPass struct {
	kind   renderer.PassKind
	label  string
	target texture.Texture
}

func newGraph(t *testing.T, state viewport.State) (RenderGraph, renderer.Renderer, *[]recordedPass) {
	t.Helper()
	passes := &[]recordedPass{}
	r := newHeadless(t, renderer.WithPassObserver(func(e renderer.PassEvent) {
		*passes = append(*passes, recordedPass{kind: e.Kind, label: e.Label, target: e.Target})
	}))
	c, err := NewComposite(state, 0.09, [2]float32{10, -10})
	require.NoError(t, err)
	cam, err := NewSceneCamera(nil, state.Aspect)
	require.NoError(t, err)
	return NewRenderGraph(r, cam, c, state), r, passes
}

func terrainScene(t *testing.T, r renderer.Renderer, label string) scene.Scene {
	t.Helper()
	cfg := config.Default().Terrain
	cfg.Segments = 1
	tr, err := NewTerrain(r, cfg)
	require.NoError(t, err)
	return scene.NewScene(label, scene.WithObjects(tr.Object()))
}

func TestRenderGraphEmptyClearsOnly(t *testing.T) {
	g, r, passes := newGraph(t, viewport.State{Width: 800, Height: 600, PixelRatio: 1, Aspect: 800.0 / 600.0})
	require.NoError(t, g.Render())

	require.Len(t, *passes, 2)
	assert.Equal(t, "clear", (*passes)[0].label)
	assert.Nil(t, (*passes)[0].target)
	assert.Equal(t, renderer.PassPresent, (*passes)[1].kind)
	assert.Equal(t, uint64(0), r.Info().DrawCalls)
}

func TestRenderGraphPassOrder(t *testing.T) {
	g, r, passes := newGraph(t, viewport.State{Width: 800, Height: 600, PixelRatio: 1, Aspect: 800.0 / 600.0})
	valley, err := g.Add(PassValley, terrainScene(t, r, PassValley), UniformTexture2)
	require.NoError(t, err)
	particles, err := g.Add(PassParticles, terrainScene(t, r, PassParticles), UniformTexture1)
	require.NoError(t, err)

	require.NoError(t, g.Render())
	require.Len(t, *passes, 4)
	assert.Equal(t, recordedPass{kind: renderer.PassRender, label: PassValley, target: valley.Target.Texture()}, (*passes)[0])
	assert.Equal(t, recordedPass{kind: renderer.PassRender, label: PassParticles, target: particles.Target.Texture()}, (*passes)[1])
	assert.Equal(t, recordedPass{kind: renderer.PassRender, label: "composite"}, (*passes)[2])
	assert.Equal(t, renderer.PassPresent, (*passes)[3].kind)

	m := g.Composite().Material()
	tex1, _ := m.Uniform(UniformTexture1)
	tex2, _ := m.Uniform(UniformTexture2)
	assert.Equal(t, particles.Target.Texture(), tex1)
	assert.Equal(t, valley.Target.Texture(), tex2)

	assert.Nil(t, r.RenderTarget())
	assert.Equal(t, uint64(3), r.Info().DrawCalls)
}

func TestRenderGraphAddRejects(t *testing.T) {
	g, r, _ := newGraph(t, viewport.State{Width: 800, Height: 600, PixelRatio: 1, Aspect: 800.0 / 600.0})
	_, err := g.Add(PassValley, terrainScene(t, r, PassValley), UniformTexture2)
	require.NoError(t, err)

	_, err = g.Add(PassValley, terrainScene(t, r, PassValley), UniformTexture1)
	assert.ErrorContains(t, err, "already has a pass")
	_, err = g.Add("extra", terrainScene(t, r, "extra"), "uTexture3")
	assert.ErrorContains(t, err, "no uniform")
	assert.Len(t, g.Entries(), 1)
}

func TestRenderGraphTargetsFollowDrawingBuffer(t *testing.T) {
	g, r, _ := newGraph(t, viewport.State{Width: 800, Height: 600, PixelRatio: 2, Aspect: 800.0 / 600.0})
	e, err := g.Add(PassValley, terrainScene(t, r, PassValley), UniformTexture2)
	require.NoError(t, err)
	assert.Equal(t, 1600, e.Target.Width())
	assert.Equal(t, 1200, e.Target.Height())
	assert.False(t, e.Target.Descriptor().GenerateMipmaps)

	require.NoError(t, g.Resize(viewport.State{Width: 1024, Height: 512, PixelRatio: 1.5, Aspect: 2}))
	assert.Equal(t, 1536, e.Target.Width())
	assert.Equal(t, 768, e.Target.Height())
	w, h := r.DrawingBufferSize()
	assert.Equal(t, 1536, w)
	assert.Equal(t, 768, h)
	resolution, _ := g.Composite().Material().Uniform("uResolution")
	assert.Equal(t, [2]float32{1536, 768}, resolution)
}

func TestRenderGraphZeroSizedViewport(t *testing.T) {
	g, r, _ := newGraph(t, viewport.State{Width: 0, Height: 0, PixelRatio: 1, Aspect: 1})
	e, err := g.Add(PassValley, terrainScene(t, r, PassValley), UniformTexture2)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Target.Width())
	assert.Equal(t, 1, e.Target.Height())
}

func TestRenderGraphAttach(t *testing.T) {
	g, r, passes := newGraph(t, viewport.State{Width: 800, Height: 600, PixelRatio: 1, Aspect: 800.0 / 600.0})
	_, err := g.Add(PassValley, terrainScene(t, r, PassValley), UniformTexture2)
	require.NoError(t, err)
	require.NoError(t, g.Compile())

	bus := events.NewEventBus()
	require.NoError(t, g.Attach(bus))
	bus.TriggerAll("render")
	require.Len(t, *passes, 3)
	assert.Equal(t, PassValley, (*passes)[0].label)

	bus.TriggerAll(viewport.TopicResize, viewport.State{Width: 400, Height: 300, PixelRatio: 1, Aspect: 4.0 / 3.0})
	resolution, _ := g.Composite().Material().Uniform("uResolution")
	assert.Equal(t, [2]float32{400, 300}, resolution)
}
