package shader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const renderSource = `
struct VertexOutput { @builtin(position) position: vec4<f32> };

@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> VertexOutput {
	var out: VertexOutput;
	return out;
}

@fragment fn fs_main() -> @location(0) vec4<f32> {
	return vec4<f32>(1.0);
}
`

const computeSource = `
@compute @workgroup_size(8, 8)
fn simulate(@builtin(global_invocation_id) id: vec3<u32>) {}
`

func TestEntryPoints(t *testing.T) {
	vs, err := NewShader("particles.vs", ShaderTypeVertex, renderSource)
	require.NoError(t, err)
	assert.Equal(t, "vs_main", vs.EntryPoint())
	assert.Equal(t, ShaderTypeVertex, vs.ShaderType())
	assert.Equal(t, [3]uint32{}, vs.WorkgroupSize())

	fs, err := NewShader("particles.fs", ShaderTypeFragment, renderSource)
	require.NoError(t, err)
	assert.Equal(t, "fs_main", fs.EntryPoint())
	assert.Equal(t, renderSource, fs.Source())
	assert.Equal(t, "particles.fs", fs.Key())

	cs, err := NewShader("sim", ShaderTypeCompute, computeSource)
	require.NoError(t, err)
	assert.Equal(t, "simulate", cs.EntryPoint())
	assert.Equal(t, [3]uint32{8, 8, 1}, cs.WorkgroupSize())
}

func TestMissingEntryPoint(t *testing.T) {
	_, err := NewShader("sim", ShaderTypeCompute, renderSource)
	assert.ErrorContains(t, err, "@compute")
}

func TestNewShaderFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.wgsl")
	require.NoError(t, os.WriteFile(path, []byte(computeSource), 0o644))

	cs, err := NewShaderFromFile("sim", ShaderTypeCompute, path)
	require.NoError(t, err)
	assert.Equal(t, "simulate", cs.EntryPoint())

	_, err = NewShaderFromFile("missing", ShaderTypeCompute, filepath.Join(t.TempDir(), "nope.wgsl"))
	assert.Error(t, err)
}
