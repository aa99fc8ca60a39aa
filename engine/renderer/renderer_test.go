package renderer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-valley/engine/camera"
	"github.com/Carmen-Shannon/oxy-valley/engine/game_object"
	"github.com/Carmen-Shannon/oxy-valley/engine/geometry"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-valley/engine/scene"
	"github.com/Carmen-Shannon/oxy-valley/engine/texture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testVertex   = `@vertex fn vs_main(@location(0) p: vec3<f32>) -> @builtin(position) vec4<f32> { return vec4<f32>(p, 1.0); }`
	testFragment = `@fragment fn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }`
	testCompute  = `@compute @workgroup_size(8, 8) fn cs_main() {}`
)

func newHeadless(t *testing.T, options ...RendererBuilderOption) Renderer {
	t.Helper()
	r, err := NewRenderer(BackendTypeHeadless, nil, options...)
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

func newRenderMaterial(t *testing.T, options ...material.MaterialBuilderOption) material.Material {
	t.Helper()
	vs, err := shader.NewShader("vs", shader.ShaderTypeVertex, testVertex)
	require.NoError(t, err)
	fs, err := shader.NewShader("fs", shader.ShaderTypeFragment, testFragment)
	require.NoError(t, err)
	options = append([]material.MaterialBuilderOption{material.WithAttributes(material.VertexAttribute{Name: geometry.AttributePosition, Components: 3})}, options...)
	m, err := material.NewMaterial("quad", vs, fs, options...)
	require.NoError(t, err)
	return m
}

func newComputeMaterial(t *testing.T, options ...material.MaterialBuilderOption) material.Material {
	t.Helper()
	cs, err := shader.NewShader("cs", shader.ShaderTypeCompute, testCompute)
	require.NoError(t, err)
	m, err := material.NewComputeMaterial("step", cs, options...)
	require.NoError(t, err)
	return m
}

func newStorageTexture(t *testing.T, r Renderer) texture.Texture {
	t.Helper()
	tex, err := r.NewTexture(texture.Descriptor{
		Label:  "state",
		Width:  4,
		Height: 4,
		Format: texture.FormatRGBA32Float,
		Usage:  texture.UsageSampled | texture.UsageStorage,
	}, nil)
	require.NoError(t, err)
	return tex
}

func TestNewRendererSize(t *testing.T) {
	r := newHeadless(t, WithSize(800, 600), WithPixelRatio(2))

	w, h := r.Size()
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)

	w, h = r.DrawingBufferSize()
	assert.Equal(t, 1600, w)
	assert.Equal(t, 1200, h)

	r.SetPixelRatio(0)
	assert.Equal(t, float32(1), r.PixelRatio())

	r.SetSize(0, -3)
	w, h = r.Size()
	assert.Equal(t, 1, w)
	assert.Equal(t, 1, h)

	r.SetPixelRatio(1.5)
	r.SetSize(3, 3)
	w, h = r.DrawingBufferSize()
	assert.Equal(t, 5, w)
	assert.Equal(t, 5, h)
}

func TestNewRendererRequiresSurfaceForWGPU(t *testing.T) {
	_, err := NewRenderer(BackendTypeWGPU, nil)
	assert.Error(t, err)
}

func TestRenderReportsPass(t *testing.T) {
	var events []PassEvent
	r := newHeadless(t, WithPassObserver(func(e PassEvent) { events = append(events, e) }))

	s := scene.NewScene("main")
	s.Add(game_object.NewGameObject(geometry.NewPlane(1, 1, 2, 2), newRenderMaterial(t)))
	cam := camera.NewCamera()

	require.NoError(t, r.Render(s, cam))
	require.NoError(t, r.Present())

	require.Len(t, events, 2)
	assert.Equal(t, PassRender, events[0].Kind)
	assert.Equal(t, "main", events[0].Label)
	assert.Equal(t, 1, events[0].Draws)
	assert.Nil(t, events[0].Target)
	assert.Equal(t, PassPresent, events[1].Kind)

	info := r.Info()
	assert.Equal(t, uint64(1), info.Frames)
	assert.Equal(t, uint64(1), info.RenderPasses)
	assert.Equal(t, uint64(1), info.DrawCalls)
	assert.Equal(t, 1, info.Pipelines)
	assert.Equal(t, "headless", info.Backend)
}

func TestRenderSkipsDisabledAndEmpty(t *testing.T) {
	r := newHeadless(t)
	s := scene.NewScene("main")

	hidden := game_object.NewGameObject(geometry.NewPlane(1, 1, 1, 1), newRenderMaterial(t), game_object.WithEnabled(false))
	empty := geometry.NewPlane(1, 1, 1, 1)
	empty.SetDrawRange(0, 0)
	s.Add(hidden, game_object.NewGameObject(empty, newRenderMaterial(t)))

	require.NoError(t, r.Render(s, camera.NewCamera()))
	assert.Equal(t, uint64(0), r.Info().DrawCalls)
	assert.Equal(t, uint64(1), r.Info().RenderPasses)
}

func TestRenderIntoTargetBindsPlaceholderForFeedback(t *testing.T) {
	var events []PassEvent
	r := newHeadless(t, WithPassObserver(func(e PassEvent) { events = append(events, e) }))

	rt, err := r.NewRenderTarget("target", 16, 16)
	require.NoError(t, err)

	m := newRenderMaterial(t, material.WithTexture("uTexture", nil))
	require.NoError(t, m.SetUniform("uTexture", rt.Texture()))

	s := scene.NewScene("offscreen")
	s.Add(game_object.NewGameObject(geometry.NewPlane(1, 1, 1, 1), m))

	r.SetRenderTarget(rt)
	require.NoError(t, r.Render(s, camera.NewCamera()))
	require.Len(t, events, 1)
	assert.Equal(t, rt.ID(), events[0].Target.ID())
	assert.NotNil(t, rt.Handle())

	r.SetRenderTarget(nil)
	assert.Nil(t, r.RenderTarget())
	require.NoError(t, r.Render(s, camera.NewCamera()))
	assert.Nil(t, events[1].Target)
	assert.Equal(t, 2, r.Info().Pipelines)
}

func TestRenderRejectsComputeMaterial(t *testing.T) {
	r := newHeadless(t)
	s := scene.NewScene("main")
	s.Add(game_object.NewGameObject(geometry.NewPlane(1, 1, 1, 1), newComputeMaterial(t)))
	assert.Error(t, r.Render(s, camera.NewCamera()))
}

func TestCompute(t *testing.T) {
	var events []PassEvent
	r := newHeadless(t, WithPassObserver(func(e PassEvent) { events = append(events, e) }))

	input := newStorageTexture(t, r)
	output := newStorageTexture(t, r)
	m := newComputeMaterial(t,
		material.WithUniform("uTime", float32(0)),
		material.WithFloatTexture("uPositions", input),
	)

	require.NoError(t, r.Compute(m, output, [3]uint32{1, 1, 1}))
	require.Len(t, events, 1)
	assert.Equal(t, PassCompute, events[0].Kind)
	assert.Equal(t, output.ID(), events[0].Target.ID())
	assert.Equal(t, uint64(1), r.Info().ComputePasses)

	require.NoError(t, m.SetUniform("uPositions", output))
	assert.ErrorContains(t, r.Compute(m, output, [3]uint32{1, 1, 1}), "reads the output texture")

	require.NoError(t, m.SetUniform("uPositions", input))
	assert.Error(t, r.Compute(m, output, [3]uint32{0, 1, 1}))
	assert.Error(t, r.Compute(m, nil, [3]uint32{1, 1, 1}))
	assert.Error(t, r.Compute(newRenderMaterial(t), output, [3]uint32{1, 1, 1}))
}

func TestObserverOrder(t *testing.T) {
	var kinds []PassKind
	r := newHeadless(t, WithPassObserver(func(e PassEvent) { kinds = append(kinds, e.Kind) }))

	output := newStorageTexture(t, r)
	require.NoError(t, r.Compute(newComputeMaterial(t), output, [3]uint32{1, 1, 1}))
	require.NoError(t, r.Clear())
	require.NoError(t, r.Present())

	assert.Equal(t, []PassKind{PassCompute, PassRender, PassPresent}, kinds)
}

func TestReleasedRenderer(t *testing.T) {
	r, err := NewRenderer(BackendTypeHeadless, nil)
	require.NoError(t, err)
	tex := newStorageTexture(t, r)

	r.Release()
	r.Release()

	assert.True(t, tex.Released())
	assert.ErrorIs(t, r.Render(scene.NewScene("s"), camera.NewCamera()), ErrReleased)
	assert.ErrorIs(t, r.Clear(), ErrReleased)
	assert.ErrorIs(t, r.Present(), ErrReleased)
	assert.ErrorIs(t, r.Compute(newComputeMaterial(t), tex, [3]uint32{1, 1, 1}), ErrReleased)
}
