package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-valley/engine/texture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRenderMaterial(t *testing.T, options ...material.MaterialBuilderOption) material.Material {
	t.Helper()
	vs, err := shader.NewShader("vs", shader.ShaderTypeVertex, `@vertex fn main() -> @builtin(position) vec4<f32> { return vec4<f32>(0.0); }`)
	require.NoError(t, err)
	fs, err := shader.NewShader("fs", shader.ShaderTypeFragment, `@fragment fn main() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }`)
	require.NoError(t, err)
	m, err := material.NewMaterial("m", vs, fs, options...)
	require.NoError(t, err)
	return m
}

func TestNewPipelineDefaults(t *testing.T) {
	p := NewPipeline("key", PipelineTypeRender)
	assert.Equal(t, "key", p.PipelineKey())
	assert.Equal(t, PipelineTypeRender, p.Type())
	assert.True(t, p.DepthTestEnabled())
	assert.True(t, p.DepthWriteEnabled())
	assert.Equal(t, CullBack, p.CullMode())
	assert.Equal(t, uint32(1), p.SampleCount())
	assert.Nil(t, p.Handle())

	p = NewPipeline("key", PipelineTypeRender, WithSampleCount(0))
	assert.Equal(t, uint32(1), p.SampleCount())
}

func TestFromMaterial(t *testing.T) {
	m := newRenderMaterial(t,
		material.WithTransparent(true),
		material.WithDoubleSided(true),
		material.WithAttributes(material.VertexAttribute{Name: "position", Components: 3}),
	)
	p := FromMaterial(m, texture.FormatRGBA8UnormSrgb, 4)

	assert.Equal(t, Key(m, texture.FormatRGBA8UnormSrgb, 4), p.PipelineKey())
	assert.Equal(t, PipelineTypeRender, p.Type())
	assert.Equal(t, CullNone, p.CullMode())
	assert.Equal(t, material.BlendingNormal, p.Blending())
	assert.False(t, p.DepthWriteEnabled())
	assert.Equal(t, uint32(4), p.SampleCount())
	assert.Equal(t, texture.FormatRGBA8UnormSrgb, p.ColorFormat())
	assert.Len(t, p.Attributes(), 1)
	assert.NotNil(t, p.Shader(shader.ShaderTypeVertex))
	assert.Nil(t, p.Shader(shader.ShaderTypeCompute))
}

func TestKeyDistinguishesAttachments(t *testing.T) {
	m := newRenderMaterial(t)
	a := Key(m, texture.FormatRGBA8Unorm, 1)
	b := Key(m, texture.FormatRGBA8UnormSrgb, 1)
	c := Key(m, texture.FormatRGBA8Unorm, 4)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, Key(m, texture.FormatRGBA8Unorm, 1))
}

func TestComputeFromMaterial(t *testing.T) {
	cs, err := shader.NewShader("cs", shader.ShaderTypeCompute, `@compute @workgroup_size(8, 8) fn main() {}`)
	require.NoError(t, err)
	m, err := material.NewComputeMaterial("c", cs)
	require.NoError(t, err)

	p := FromMaterial(m, texture.FormatRGBA8Unorm, 4)
	assert.Equal(t, PipelineTypeCompute, p.Type())
	assert.Equal(t, Key(m, texture.FormatRGBA32Float, 1), p.PipelineKey())
	assert.Equal(t, cs, p.Shader(shader.ShaderTypeCompute))
}

func TestReleaseCallsOnce(t *testing.T) {
	p := NewPipeline("key", PipelineTypeCompute)
	calls := 0
	p.SetHandle("gpu", func() { calls++ })
	assert.Equal(t, "gpu", p.Handle())

	p.Release()
	p.Release()
	assert.Equal(t, 1, calls)
	assert.Nil(t, p.Handle())
}
