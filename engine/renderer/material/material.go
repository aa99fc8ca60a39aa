// Package material describes how a renderable is shaded: its shader stages, an ordered
// set of named uniforms, the vertex attributes it consumes, and the fixed-function
// state of its pipeline.
//
// Bindings follow one convention shared by every backend and shader in the engine.
// Group 0 holds the material: binding 0 is the packed uniform block, textures follow
// in declaration order, then a filtering sampler when any texture is filterable, and,
// for compute materials, the storage texture written by the pass. Render materials
// also use group 1, binding 0 for the object block (model, view and projection matrices).
package material

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-valley/engine/texture"
)

// Kind distinguishes render materials from compute materials.
type Kind int

const (
	KindRender Kind = iota
	KindCompute
)

// Topology selects how vertices are assembled.
type Topology int

const (
	// TopologyTriangles draws indexed or non-indexed triangle lists.
	TopologyTriangles Topology = iota
	// TopologyPointSprites draws one camera-facing quad per vertex. Vertex attributes
	// advance per instance and the vertex shader expands each quad from vertex_index 0..5.
	TopologyPointSprites
)

// Blending selects the color blend equation.
type Blending int

const (
	BlendingNone Blending = iota
	// BlendingNormal is straight alpha blending.
	BlendingNormal
	// BlendingAdditive adds the source color weighted by its alpha.
	BlendingAdditive
)

// VertexAttribute maps a geometry attribute to a shader input location, assigned in order.
type VertexAttribute struct {
	Name       string
	Components int
}

// BindingType is the resource type of a group 0 binding.
type BindingType int

const (
	BindingUniformBlock BindingType = iota
	BindingTexture
	BindingFloatTexture
	BindingSampler
	BindingStorageTexture
)

// Binding is one entry of the material's bind group.
type Binding struct {
	Index int
	Type  BindingType
	Name  string
}

// ObjectBlockSize is the size of the group 1 object block: model, view and projection matrices.
const ObjectBlockSize = 3 * 64

var materialCount atomic.Uint64

type uniformSlot struct {
	kind  UniformKind
	value any
}

// material is the implementation of the Material interface.
type material struct {
	mu *sync.Mutex

	id    uint64
	label string
	kind  Kind

	vertexShader, fragmentShader, computeShader shader.Shader

	names    []string
	uniforms map[string]*uniformSlot

	attributes []VertexAttribute

	topology    Topology
	blending    Blending
	transparent bool
	doubleSided bool
	depthTest   bool
	depthWrite  bool

	version uint64
	err     error
}

// Material defines the interface for a shader material with an ordered set of uniforms.
//
// The uniform set and its order are fixed at construction, which keeps the bind group
// layout stable; values, texture bindings included, may change every frame.
type Material interface {
	// ID returns the process-unique material id.
	//
	// Returns:
	//   - uint64: the material id
	ID() uint64

	// Label returns the debug label.
	//
	// Returns:
	//   - string: the label
	Label() string

	// Kind returns whether this is a render or a compute material.
	//
	// Returns:
	//   - Kind: KindRender or KindCompute
	Kind() Kind

	// Shader returns the shader for a stage, or nil.
	//
	// Parameters:
	//   - shaderType: the stage
	//
	// Returns:
	//   - shader.Shader: the stage's shader or nil
	Shader(shaderType shader.ShaderType) shader.Shader

	// SetUniform updates a declared uniform. Texture uniforms accept nil.
	//
	// Parameters:
	//   - name: the uniform name
	//   - value: a float32, [2]float32, [3]float32, [4]float32, [16]float32 or texture.Texture
	//
	// Returns:
	//   - error: an error if the uniform is undeclared or the value type does not match
	SetUniform(name string, value any) error

	// Uniform returns the current value of a declared uniform.
	//
	// Parameters:
	//   - name: the uniform name
	//
	// Returns:
	//   - any: the value
	//   - bool: false if the uniform is undeclared
	Uniform(name string) (any, bool)

	// Uniforms returns every declared uniform in declaration order.
	//
	// Returns:
	//   - []Uniform: the uniforms
	Uniforms() []Uniform

	// Bindings returns the group 0 binding layout.
	//
	// Returns:
	//   - []Binding: bindings in index order
	Bindings() []Binding

	// Attributes returns the vertex attributes consumed by the vertex stage.
	//
	// Returns:
	//   - []VertexAttribute: attributes in shader location order
	Attributes() []VertexAttribute

	// Topology returns the primitive assembly mode.
	Topology() Topology

	// Blending returns the blend equation.
	Blending() Blending

	// Transparent reports whether the material is drawn with blending after opaque objects.
	Transparent() bool

	// DoubleSided reports whether back faces are drawn.
	DoubleSided() bool

	// DepthTest reports whether fragments are depth tested.
	DepthTest() bool

	// DepthWrite reports whether fragments write depth.
	DepthWrite() bool

	// Version returns a counter that changes whenever a uniform value changes.
	Version() uint64

	// Err returns the first error raised while applying builder options, or nil.
	Err() error
}

var _ Material = &material{}

// NewMaterial creates a render material from a vertex and a fragment shader.
//
// Parameters:
//   - label: debug label
//   - vertex: the vertex stage
//   - fragment: the fragment stage
//   - options: functional options applied in order
//
// Returns:
//   - Material: the new material
//   - error: an error if a stage is missing or an option was invalid
func NewMaterial(label string, vertex, fragment shader.Shader, options ...MaterialBuilderOption) (Material, error) {
	if vertex == nil || fragment == nil {
		return nil, fmt.Errorf("material %q: both vertex and fragment shaders must be set", label)
	}
	m := newMaterial(label, KindRender)
	m.vertexShader = vertex
	m.fragmentShader = fragment
	return m.apply(options)
}

// NewComputeMaterial creates a compute material.
//
// Parameters:
//   - label: debug label
//   - compute: the compute stage
//   - options: functional options applied in order
//
// Returns:
//   - Material: the new material
//   - error: an error if the stage is missing or an option was invalid
func NewComputeMaterial(label string, compute shader.Shader, options ...MaterialBuilderOption) (Material, error) {
	if compute == nil {
		return nil, fmt.Errorf("material %q: compute shader must be set", label)
	}
	m := newMaterial(label, KindCompute)
	m.computeShader = compute
	return m.apply(options)
}

func newMaterial(label string, kind Kind) *material {
	return &material{
		mu:         &sync.Mutex{},
		id:         materialCount.Add(1),
		label:      label,
		kind:       kind,
		uniforms:   make(map[string]*uniformSlot),
		depthTest:  true,
		depthWrite: true,
	}
}

func (m *material) apply(options []MaterialBuilderOption) (Material, error) {
	for _, opt := range options {
		opt(m)
	}
	if m.err != nil {
		return nil, fmt.Errorf("material %q: %w", m.label, m.err)
	}
	return m, nil
}

// declare registers a uniform, recording the first error on the material.
func (m *material) declare(name string, kind UniformKind, value any) {
	if m.err != nil {
		return
	}
	if name == "" {
		m.err = fmt.Errorf("uniform name is empty")
		return
	}
	if _, ok := m.uniforms[name]; ok {
		m.err = fmt.Errorf("uniform %q declared twice", name)
		return
	}
	m.names = append(m.names, name)
	m.uniforms[name] = &uniformSlot{kind: kind, value: value}
}

func (m *material) ID() uint64 {
	return m.id
}

func (m *material) Label() string {
	return m.label
}

func (m *material) Kind() Kind {
	return m.kind
}

func (m *material) Shader(shaderType shader.ShaderType) shader.Shader {
	switch shaderType {
	case shader.ShaderTypeVertex:
		return m.vertexShader
	case shader.ShaderTypeFragment:
		return m.fragmentShader
	case shader.ShaderTypeCompute:
		return m.computeShader
	default:
		return nil
	}
}

func (m *material) SetUniform(name string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, ok := m.uniforms[name]
	if !ok {
		return fmt.Errorf("material %q has no uniform %q", m.label, name)
	}
	if slot.kind.IsTexture() {
		if value == nil {
			slot.value = nil
			m.version++
			return nil
		}
		if _, ok := value.(texture.Texture); !ok {
			return fmt.Errorf("material %q uniform %q expects a texture, got %T", m.label, name, value)
		}
		slot.value = value
		m.version++
		return nil
	}

	kind, err := kindOf(value)
	if err != nil {
		return fmt.Errorf("material %q uniform %q: %w", m.label, name, err)
	}
	if kind != slot.kind {
		return fmt.Errorf("material %q uniform %q expects %s, got %s", m.label, name, slot.kind, kind)
	}
	slot.value = value
	m.version++
	return nil
}

func (m *material) Uniform(name string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.uniforms[name]
	if !ok {
		return nil, false
	}
	return slot.value, true
}

func (m *material) Uniforms() []Uniform {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Uniform, 0, len(m.names))
	for _, name := range m.names {
		slot := m.uniforms[name]
		out = append(out, Uniform{Name: name, Kind: slot.kind, Value: slot.value})
	}
	return out
}

func (m *material) Bindings() []Binding {
	m.mu.Lock()
	defer m.mu.Unlock()

	bindings := []Binding{{Index: 0, Type: BindingUniformBlock, Name: "uniforms"}}
	filterable := false
	for _, name := range m.names {
		switch m.uniforms[name].kind {
		case UniformTexture:
			filterable = true
			bindings = append(bindings, Binding{Index: len(bindings), Type: BindingTexture, Name: name})
		case UniformFloatTexture:
			bindings = append(bindings, Binding{Index: len(bindings), Type: BindingFloatTexture, Name: name})
		}
	}
	if filterable {
		bindings = append(bindings, Binding{Index: len(bindings), Type: BindingSampler, Name: "sampler"})
	}
	if m.kind == KindCompute {
		bindings = append(bindings, Binding{Index: len(bindings), Type: BindingStorageTexture, Name: "output"})
	}
	return bindings
}

func (m *material) Attributes() []VertexAttribute {
	out := make([]VertexAttribute, len(m.attributes))
	copy(out, m.attributes)
	return out
}

func (m *material) Topology() Topology {
	return m.topology
}

func (m *material) Blending() Blending {
	return m.blending
}

func (m *material) Transparent() bool {
	return m.transparent
}

func (m *material) DoubleSided() bool {
	return m.doubleSided
}

func (m *material) DepthTest() bool {
	return m.depthTest
}

func (m *material) DepthWrite() bool {
	return m.depthWrite
}

func (m *material) Version() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

func (m *material) Err() error {
	return m.err
}
