package shader

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
)

// ShaderType identifies whether a shader is a render shader or a compute shader.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is the vertex shader type, used for vertex processing in render pipelines.
	ShaderTypeVertex

	// ShaderTypeFragment is the fragment shader type, used for fragment processing in pair with a vertex shader.
	ShaderTypeFragment
)

// String returns the WGSL stage attribute name of the shader type.
func (t ShaderType) String() string {
	switch t {
	case ShaderTypeCompute:
		return "compute"
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	default:
		return "unknown"
	}
}

var (
	entryPointPattern    = regexp.MustCompile(`@(vertex|fragment|compute)[^{]*?\bfn\s+([A-Za-z_][A-Za-z0-9_]*)`)
	workgroupSizePattern = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?(?:,\s*(\d+)\s*)?\)`)
)

// shader is the implementation of the Shader interface.
type shader struct {
	key           string
	source        string
	shaderType    ShaderType
	entryPoint    string
	workGroupSize [3]uint32
}

// Shader is a WGSL program stage. One source may hold several stages; each Shader
// names the stage it represents through its type and entry point.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for caching and lookups.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the WGSL shader source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// ShaderType retrieves the pipeline stage of this shader.
	//
	// Returns:
	//   - ShaderType: vertex, fragment or compute
	ShaderType() ShaderType

	// EntryPoint retrieves the name of the stage's entry point function.
	//
	// Returns:
	//   - string: the entry point name
	EntryPoint() string

	// WorkgroupSize retrieves the @workgroup_size of a compute shader, missing dimensions are 1.
	//
	// Returns:
	//   - [3]uint32: the workgroup size, zero for render shaders
	WorkgroupSize() [3]uint32
}

var _ Shader = &shader{}

// NewShader creates a shader from WGSL source. The entry point is the first function
// annotated with the stage matching shaderType.
//
// Parameters:
//   - key: the unique shader key
//   - shaderType: the pipeline stage
//   - source: the WGSL source
//
// Returns:
//   - Shader: the shader
//   - error: an error if the source has no entry point for the stage
func NewShader(key string, shaderType ShaderType, source string) (Shader, error) {
	s := &shader{
		key:        key,
		source:     source,
		shaderType: shaderType,
	}
	s.entryPoint = parseEntryPoint(source, shaderType)
	if s.entryPoint == "" {
		return nil, fmt.Errorf("shader %q has no @%s entry point", key, shaderType)
	}
	if shaderType == ShaderTypeCompute {
		s.workGroupSize = parseWorkgroupSize(source)
	}
	return s, nil
}

// NewShaderFromFile reads WGSL source from disk and calls NewShader.
//
// Parameters:
//   - key: the unique shader key
//   - shaderType: the pipeline stage
//   - path: the .wgsl file
//
// Returns:
//   - Shader: the shader
//   - error: an error if the file cannot be read or has no entry point
func NewShaderFromFile(key string, shaderType ShaderType, path string) (Shader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shader: failed to read source file %q: %w", path, err)
	}
	return NewShader(key, shaderType, string(data))
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workGroupSize
}

func parseEntryPoint(source string, shaderType ShaderType) string {
	for _, m := range entryPointPattern.FindAllStringSubmatch(source, -1) {
		if m[1] == shaderType.String() {
			return m[2]
		}
	}
	return ""
}

func parseWorkgroupSize(source string) [3]uint32 {
	size := [3]uint32{1, 1, 1}
	m := workgroupSizePattern.FindStringSubmatch(source)
	if m == nil {
		return size
	}
	for i := 0; i < 3; i++ {
		if m[i+1] == "" {
			continue
		}
		if v, err := strconv.ParseUint(m[i+1], 10, 32); err == nil {
			size[i] = uint32(v)
		}
	}
	return size
}
