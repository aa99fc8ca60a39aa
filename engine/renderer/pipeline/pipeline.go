// Package pipeline describes the fixed-function and shader state of a GPU pipeline
// independently of the backend that realizes it.
package pipeline

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-valley/engine/texture"
)

// PipelineType identifies whether a pipeline is a compute pipeline or a render pipeline.
type PipelineType int

const (
	// PipelineTypeCompute indicates a compute pipeline with a single compute shader entry point.
	PipelineTypeCompute PipelineType = iota

	// PipelineTypeRender indicates a render pipeline with vertex and fragment shader entry points.
	PipelineTypeRender
)

// CullMode selects which triangle faces are discarded.
type CullMode int

const (
	CullNone CullMode = iota
	CullBack
)

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	mu *sync.Mutex

	pipelineType PipelineType
	pipelineKey  string

	vertexShader, fragmentShader, computeShader shader.Shader

	// The following properties describe render state. Compute pipelines keep the defaults.

	depthTestEnabled  bool
	depthWriteEnabled bool
	blending          material.Blending
	cullMode          CullMode
	topology          material.Topology
	attributes        []material.VertexAttribute
	bindings          []material.Binding
	colorFormat       texture.Format
	sampleCount       uint32

	handle    any
	onRelease func()
}

// Pipeline defines the interface for a GPU pipeline description, encapsulating either a render
// pipeline (vertex + fragment shaders) or a compute pipeline (compute shader). Backends attach
// the realized GPU object with SetHandle.
type Pipeline interface {
	// Type returns the type of the pipeline
	//
	// Returns:
	//   - PipelineType: the type of the pipeline (render or compute)
	Type() PipelineType

	// PipelineKey returns the unique key associated with this pipeline, used for caching and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Shader retrieves the shader associated with the specified type if it exists, nil otherwise.
	//
	// Parameters:
	//   - shaderType: the type of shader to retrieve (vertex, fragment, or compute)
	//
	// Returns:
	//   - shader.Shader: the shader associated with the specified type, or nil if not set
	Shader(shaderType shader.ShaderType) shader.Shader

	// DepthTestEnabled returns whether depth testing is enabled for this pipeline.
	DepthTestEnabled() bool

	// DepthWriteEnabled returns whether depth writing is enabled for this pipeline.
	DepthWriteEnabled() bool

	// Blending returns the color blend equation.
	Blending() material.Blending

	// CullMode returns the face culling mode.
	CullMode() CullMode

	// Topology returns the primitive assembly mode.
	Topology() material.Topology

	// Attributes returns the vertex attributes in shader location order.
	Attributes() []material.VertexAttribute

	// Bindings returns the group 0 binding layout.
	Bindings() []material.Binding

	// ColorFormat returns the format of the color attachment the pipeline renders into.
	ColorFormat() texture.Format

	// SampleCount returns the multisample count of the color attachment.
	SampleCount() uint32

	// Handle returns the backend pipeline object, or nil before the pipeline is realized.
	// The caller is responsible for type asserting the returned value.
	//
	// Returns:
	//   - any: the underlying pipeline object
	Handle() any

	// SetHandle attaches the backend pipeline object and the function that frees it.
	//
	// Parameters:
	//   - handle: the backend pipeline object
	//   - release: called once on Release, may be nil
	SetHandle(handle any, release func())

	// Release frees the backend pipeline object.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new Pipeline interface. A PipelineType must be specified and provided upon creation.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - pipelineType: the type of pipeline to create (render or compute)
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified type and configuration
func NewPipeline(pipelineKey string, pipelineType PipelineType, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		mu:                &sync.Mutex{},
		pipelineKey:       pipelineKey,
		pipelineType:      pipelineType,
		depthTestEnabled:  true,
		depthWriteEnabled: true,
		cullMode:          CullBack,
		topology:          material.TopologyTriangles,
		colorFormat:       texture.FormatRGBA8Unorm,
		sampleCount:       1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Key returns the cache key of the pipeline a material needs for a color attachment.
//
// Parameters:
//   - m: the material
//   - colorFormat: the attachment format, ignored for compute materials
//   - sampleCount: the attachment sample count, ignored for compute materials
//
// Returns:
//   - string: the cache key
func Key(m material.Material, colorFormat texture.Format, sampleCount uint32) string {
	if m.Kind() == material.KindCompute {
		return fmt.Sprintf("compute/%d", m.ID())
	}
	return fmt.Sprintf("render/%d/%s/%dx", m.ID(), colorFormat, sampleCount)
}

// FromMaterial describes the pipeline a material needs when drawn into an attachment.
//
// Parameters:
//   - m: the material
//   - colorFormat: the attachment format
//   - sampleCount: the attachment sample count
//
// Returns:
//   - Pipeline: the pipeline description keyed by Key
func FromMaterial(m material.Material, colorFormat texture.Format, sampleCount uint32) Pipeline {
	if m.Kind() == material.KindCompute {
		return NewPipeline(Key(m, colorFormat, sampleCount), PipelineTypeCompute,
			WithComputeShader(m.Shader(shader.ShaderTypeCompute)),
			WithBindings(m.Bindings()),
		)
	}

	cull := CullBack
	if m.DoubleSided() || m.Topology() == material.TopologyPointSprites {
		cull = CullNone
	}
	return NewPipeline(Key(m, colorFormat, sampleCount), PipelineTypeRender,
		WithVertexShader(m.Shader(shader.ShaderTypeVertex)),
		WithFragmentShader(m.Shader(shader.ShaderTypeFragment)),
		WithDepthTestEnabled(m.DepthTest()),
		WithDepthWriteEnabled(m.DepthWrite()),
		WithBlending(m.Blending()),
		WithCullMode(cull),
		WithTopology(m.Topology()),
		WithAttributes(m.Attributes()),
		WithBindings(m.Bindings()),
		WithColorFormat(colorFormat),
		WithSampleCount(sampleCount),
	)
}

func (p *pipeline) Type() PipelineType {
	return p.pipelineType
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Shader(shaderType shader.ShaderType) shader.Shader {
	switch shaderType {
	case shader.ShaderTypeVertex:
		return p.vertexShader
	case shader.ShaderTypeFragment:
		return p.fragmentShader
	case shader.ShaderTypeCompute:
		return p.computeShader
	default:
		return nil
	}
}

func (p *pipeline) DepthTestEnabled() bool {
	return p.depthTestEnabled
}

func (p *pipeline) DepthWriteEnabled() bool {
	return p.depthWriteEnabled
}

func (p *pipeline) Blending() material.Blending {
	return p.blending
}

func (p *pipeline) CullMode() CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() material.Topology {
	return p.topology
}

func (p *pipeline) Attributes() []material.VertexAttribute {
	return p.attributes
}

func (p *pipeline) Bindings() []material.Binding {
	return p.bindings
}

func (p *pipeline) ColorFormat() texture.Format {
	return p.colorFormat
}

func (p *pipeline) SampleCount() uint32 {
	return p.sampleCount
}

func (p *pipeline) Handle() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle
}

func (p *pipeline) SetHandle(handle any, release func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handle = handle
	p.onRelease = release
}

func (p *pipeline) Release() {
	p.mu.Lock()
	release := p.onRelease
	p.handle = nil
	p.onRelease = nil
	p.mu.Unlock()
	if release != nil {
		release()
	}
}
