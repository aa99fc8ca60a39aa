package experience

import (
	"embed"
	"fmt"

	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/shader"
)

//go:embed shaders/*.wgsl
var shaderFiles embed.FS

// Shader library entries. Programs that sample noise are prefixed with shaders/noise.wgsl.
const (
	ShaderSimulation = "particles_simulation"
	ShaderParticles  = "particles"
	ShaderTerrain    = "terrain"
	ShaderComposite  = "composite"
)

var noiseUsers = map[string]bool{
	ShaderSimulation: true,
	ShaderTerrain:    true,
}

// ShaderSource returns the WGSL source of a library program.
//
// Parameters:
//   - name: one of the Shader* names
//
// Returns:
//   - string: the complete source
//   - error: an error if the program does not exist
func ShaderSource(name string) (string, error) {
	body, err := shaderFiles.ReadFile("shaders/" + name + ".wgsl")
	if err != nil {
		return "", fmt.Errorf("shader %q: %w", name, err)
	}
	if !noiseUsers[name] {
		return string(body), nil
	}
	noise, err := shaderFiles.ReadFile("shaders/noise.wgsl")
	if err != nil {
		return "", fmt.Errorf("shader %q: %w", name, err)
	}
	return string(noise) + "\n" + string(body), nil
}

// ComputeShader compiles a library compute program.
func ComputeShader(name string) (shader.Shader, error) {
	source, err := ShaderSource(name)
	if err != nil {
		return nil, err
	}
	return shader.NewShader(name, shader.ShaderTypeCompute, source)
}

// RenderShaders compiles the vertex and fragment stages of a library render program.
//
// Parameters:
//   - name: one of the Shader* names
//
// Returns:
//   - shader.Shader: the vertex stage
//   - shader.Shader: the fragment stage
//   - error: an error if the program does not exist or lacks a stage
func RenderShaders(name string) (shader.Shader, shader.Shader, error) {
	source, err := ShaderSource(name)
	if err != nil {
		return nil, nil, err
	}
	vs, err := shader.NewShader(name+"-vs", shader.ShaderTypeVertex, source)
	if err != nil {
		return nil, nil, err
	}
	fs, err := shader.NewShader(name+"-fs", shader.ShaderTypeFragment, source)
	if err != nil {
		return nil, nil, err
	}
	return vs, fs, nil
}
