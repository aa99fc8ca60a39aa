package material

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-valley/engine/texture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVertex = `@vertex fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> { return vec4<f32>(0.0); }`
const testFragment = `@fragment fn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }`
const testCompute = `@compute @workgroup_size(8, 8) fn cs_main() {}`

func shaders(t *testing.T) (shader.Shader, shader.Shader) {
	t.Helper()
	vs, err := shader.NewShader("vs", shader.ShaderTypeVertex, testVertex)
	require.NoError(t, err)
	fs, err := shader.NewShader("fs", shader.ShaderTypeFragment, testFragment)
	require.NoError(t, err)
	return vs, fs
}

func newTestTexture(t *testing.T, format texture.Format) texture.Texture {
	t.Helper()
	tex, err := texture.NewTexture(texture.Descriptor{Width: 1, Height: 1, Format: format}, nil)
	require.NoError(t, err)
	return tex
}

func TestNewMaterialRequiresStages(t *testing.T) {
	vs, _ := shaders(t)
	_, err := NewMaterial("m", vs, nil)
	assert.Error(t, err)

	_, err = NewComputeMaterial("c", nil)
	assert.Error(t, err)
}

func TestUniformDeclarationErrors(t *testing.T) {
	vs, fs := shaders(t)

	_, err := NewMaterial("m", vs, fs, WithUniform("uTime", 0.0))
	assert.ErrorContains(t, err, "unsupported uniform value type float64")

	_, err = NewMaterial("m", vs, fs, WithUniform("uTime", float32(0)), WithUniform("uTime", float32(1)))
	assert.ErrorContains(t, err, "declared twice")

	_, err = NewMaterial("m", vs, fs, WithUniform("", float32(0)))
	assert.Error(t, err)
}

func TestSetUniform(t *testing.T) {
	vs, fs := shaders(t)
	m, err := NewMaterial("m", vs, fs,
		WithUniform("uTime", float32(0)),
		WithUniform("uMouse", [2]float32{-10, 10}),
		WithTexture("uTexture", nil),
	)
	require.NoError(t, err)

	v0 := m.Version()
	require.NoError(t, m.SetUniform("uTime", float32(1.5)))
	assert.Greater(t, m.Version(), v0)

	value, ok := m.Uniform("uTime")
	require.True(t, ok)
	assert.Equal(t, float32(1.5), value)

	assert.ErrorContains(t, m.SetUniform("uMissing", float32(1)), "no uniform")
	assert.ErrorContains(t, m.SetUniform("uMouse", float32(1)), "expects vec2<f32>")
	assert.ErrorContains(t, m.SetUniform("uTexture", float32(1)), "expects a texture")

	tex := newTestTexture(t, texture.FormatRGBA8Unorm)
	require.NoError(t, m.SetUniform("uTexture", tex))
	value, _ = m.Uniform("uTexture")
	assert.Equal(t, tex, value)

	require.NoError(t, m.SetUniform("uTexture", nil))
	value, _ = m.Uniform("uTexture")
	assert.Nil(t, value)
}

func TestUniformsKeepDeclarationOrder(t *testing.T) {
	vs, fs := shaders(t)
	m, err := NewMaterial("m", vs, fs,
		WithUniform("c", float32(0)),
		WithUniform("a", float32(0)),
		WithUniform("b", float32(0)),
	)
	require.NoError(t, err)

	var names []string
	for _, u := range m.Uniforms() {
		names = append(names, u.Name)
	}
	assert.Equal(t, []string{"c", "a", "b"}, names)
}

func TestBlockLayout(t *testing.T) {
	tests := []struct {
		name     string
		uniforms []Uniform
		offsets  []int
		size     int
	}{
		{name: "empty", size: 16},
		{
			name:     "f32 then vec2",
			uniforms: []Uniform{{Name: "a", Kind: UniformFloat}, {Name: "b", Kind: UniformVec2}},
			offsets:  []int{0, 8},
			size:     16,
		},
		{
			name:     "vec3 packs a trailing f32",
			uniforms: []Uniform{{Name: "a", Kind: UniformVec3}, {Name: "b", Kind: UniformFloat}},
			offsets:  []int{0, 12},
			size:     16,
		},
		{
			name:     "f32 then vec3",
			uniforms: []Uniform{{Name: "a", Kind: UniformFloat}, {Name: "b", Kind: UniformVec3}},
			offsets:  []int{0, 16},
			size:     32,
		},
		{
			name: "textures are skipped",
			uniforms: []Uniform{
				{Name: "a", Kind: UniformFloat},
				{Name: "t", Kind: UniformTexture},
				{Name: "m", Kind: UniformMat4},
			},
			offsets: []int{0, 16},
			size:    80,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			members, size := BlockLayout(tt.uniforms)
			assert.Equal(t, tt.size, size)
			var offsets []int
			for _, m := range members {
				offsets = append(offsets, m.Offset)
			}
			assert.Equal(t, tt.offsets, offsets)
		})
	}
}

func TestPackBlock(t *testing.T) {
	block := PackBlock([]Uniform{
		{Name: "uTime", Kind: UniformFloat, Value: float32(2)},
		{Name: "uMouse", Kind: UniformVec2, Value: [2]float32{-10, 10}},
	})
	require.Len(t, block, 16)

	read := func(offset int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(block[offset:]))
	}
	assert.Equal(t, float32(2), read(0))
	assert.Equal(t, float32(0), read(4))
	assert.Equal(t, float32(-10), read(8))
	assert.Equal(t, float32(10), read(12))
}

func TestBindings(t *testing.T) {
	vs, fs := shaders(t)
	m, err := NewMaterial("m", vs, fs,
		WithUniform("uTime", float32(0)),
		WithFloatTexture("uParticles", nil),
		WithTexture("uLines", nil),
	)
	require.NoError(t, err)

	assert.Equal(t, []Binding{
		{Index: 0, Type: BindingUniformBlock, Name: "uniforms"},
		{Index: 1, Type: BindingFloatTexture, Name: "uParticles"},
		{Index: 2, Type: BindingTexture, Name: "uLines"},
		{Index: 3, Type: BindingSampler, Name: "sampler"},
	}, m.Bindings())

	cs, err := shader.NewShader("cs", shader.ShaderTypeCompute, testCompute)
	require.NoError(t, err)
	c, err := NewComputeMaterial("c", cs, WithFloatTexture("uParticles", nil))
	require.NoError(t, err)
	assert.Equal(t, []Binding{
		{Index: 0, Type: BindingUniformBlock, Name: "uniforms"},
		{Index: 1, Type: BindingFloatTexture, Name: "uParticles"},
		{Index: 2, Type: BindingStorageTexture, Name: "output"},
	}, c.Bindings())
	assert.Equal(t, KindCompute, c.Kind())
	assert.Equal(t, cs, c.Shader(shader.ShaderTypeCompute))
	assert.Nil(t, c.Shader(shader.ShaderTypeVertex))
}

func TestTransparentDefaults(t *testing.T) {
	vs, fs := shaders(t)
	m, err := NewMaterial("m", vs, fs, WithTransparent(true), WithDoubleSided(true))
	require.NoError(t, err)
	assert.True(t, m.Transparent())
	assert.True(t, m.DoubleSided())
	assert.Equal(t, BlendingNormal, m.Blending())
	assert.True(t, m.DepthTest())
	assert.False(t, m.DepthWrite())

	m, err = NewMaterial("m", vs, fs, WithBlending(BlendingAdditive), WithTransparent(true))
	require.NoError(t, err)
	assert.Equal(t, BlendingAdditive, m.Blending())
}
