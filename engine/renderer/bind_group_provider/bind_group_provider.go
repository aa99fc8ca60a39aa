// Package bind_group_provider holds the WebGPU resources the renderer allocates on behalf
// of a material, an object or a geometry.
package bind_group_provider

import (
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	mu *sync.Mutex

	// label is a debug label added for convenience.
	label string

	// The following fields are GPU allocated resources and must be released when no longer needed.
	// They are populated by the renderer backend, not by user-creation.

	bindGroup *wgpu.BindGroup
	// signature identifies the resources bindGroup was built from. The backend rebuilds
	// the bind group whenever the signature of the current resources differs.
	signature string
	buffers   map[int]*wgpu.Buffer
	samplers  map[int]*wgpu.Sampler

	// The following fields are used by geometry providers.

	vertexBuffers map[int]*wgpu.Buffer
	indexBuffer   *wgpu.Buffer
	indexCount    int
	version       uint64
}

// BindGroupProvider defines the interface for holders of GPU bind group and buffer resources.
//
// Usage pattern:
//  1. The backend creates a provider the first time it sees a material, object or geometry
//  2. The backend creates buffers and samplers and stores them by binding or slot
//  3. Each frame the backend compares the resource signature and rebuilds the bind group on change
//  4. Draw calls read BindGroup, VertexBuffer and IndexBuffer
type BindGroupProvider interface {
	// Release releases any GPU resources held by this provider.
	Release()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// BindGroup returns the created bind group for shader binding.
	// Returns nil if GPU resources have not been initialized.
	//
	// Returns:
	//   - *wgpu.BindGroup: the bind group or nil
	BindGroup() *wgpu.BindGroup

	// Signature returns the resource signature the bind group was built from.
	//
	// Returns:
	//   - string: the signature, empty before the first bind group
	Signature() string

	// SetBindGroup replaces the bind group, releasing the previous one.
	//
	// Parameters:
	//   - bg: the new bind group
	//   - signature: the resource signature bg was built from
	SetBindGroup(bg *wgpu.BindGroup, signature string)

	// Buffer returns the buffer bound at a binding index, or nil.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer or nil
	Buffer(binding int) *wgpu.Buffer

	// SetBuffer stores a buffer at a binding index, releasing any previous buffer there.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the buffer
	SetBuffer(binding int, buf *wgpu.Buffer)

	// Sampler returns the sampler bound at a binding index, or nil.
	Sampler(binding int) *wgpu.Sampler

	// SetSampler stores a sampler at a binding index, releasing any previous sampler there.
	SetSampler(binding int, s *wgpu.Sampler)

	// VertexBuffer returns the vertex buffer for a vertex slot, or nil.
	//
	// Parameters:
	//   - slot: the vertex buffer slot, equal to the shader location
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer or nil
	VertexBuffer(slot int) *wgpu.Buffer

	// SetVertexBuffer stores a vertex buffer for a slot, releasing any previous buffer there.
	SetVertexBuffer(slot int, buf *wgpu.Buffer)

	// IndexBuffer returns the index buffer, or nil for non-indexed geometry.
	IndexBuffer() *wgpu.Buffer

	// SetIndexBuffer stores the index buffer, releasing any previous one.
	SetIndexBuffer(buf *wgpu.Buffer)

	// IndexCount returns the number of uploaded indices.
	IndexCount() int

	// SetIndexCount sets the number of uploaded indices.
	SetIndexCount(count int)

	// Version returns the source version the geometry buffers were uploaded from.
	Version() uint64

	// SetVersion records the source version the geometry buffers were uploaded from.
	SetVersion(version uint64)
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates an empty provider.
//
// Parameters:
//   - label: the debug label
//   - options: functional options applied in order
//
// Returns:
//   - BindGroupProvider: the new provider
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		mu:            &sync.Mutex{},
		label:         label,
		buffers:       make(map[int]*wgpu.Buffer),
		samplers:      make(map[int]*wgpu.Sampler),
		vertexBuffers: make(map[int]*wgpu.Buffer),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) BindGroup() *wgpu.BindGroup {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bindGroup
}

func (p *bindGroupProvider) Signature() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signature
}

func (p *bindGroupProvider) SetBindGroup(bg *wgpu.BindGroup, signature string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bindGroup != nil && p.bindGroup != bg {
		p.bindGroup.Release()
	}
	p.bindGroup = bg
	p.signature = signature
}

func (p *bindGroupProvider) Buffer(binding int) *wgpu.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffers[binding]
}

func (p *bindGroupProvider) SetBuffer(binding int, buf *wgpu.Buffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prev := p.buffers[binding]; prev != nil && prev != buf {
		prev.Release()
	}
	p.buffers[binding] = buf
}

func (p *bindGroupProvider) Sampler(binding int) *wgpu.Sampler {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.samplers[binding]
}

func (p *bindGroupProvider) SetSampler(binding int, s *wgpu.Sampler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prev := p.samplers[binding]; prev != nil && prev != s {
		prev.Release()
	}
	p.samplers[binding] = s
}

func (p *bindGroupProvider) VertexBuffer(slot int) *wgpu.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.vertexBuffers[slot]
}

func (p *bindGroupProvider) SetVertexBuffer(slot int, buf *wgpu.Buffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prev := p.vertexBuffers[slot]; prev != nil && prev != buf {
		prev.Release()
	}
	p.vertexBuffers[slot] = buf
}

func (p *bindGroupProvider) IndexBuffer() *wgpu.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.indexBuffer
}

func (p *bindGroupProvider) SetIndexBuffer(buf *wgpu.Buffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.indexBuffer != nil && p.indexBuffer != buf {
		p.indexBuffer.Release()
	}
	p.indexBuffer = buf
}

func (p *bindGroupProvider) IndexCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.indexCount
}

func (p *bindGroupProvider) SetIndexCount(count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.indexCount = count
}

func (p *bindGroupProvider) Version() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.version
}

func (p *bindGroupProvider) SetVersion(version uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.version = version
}

func (p *bindGroupProvider) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, s := range p.samplers {
		if s != nil {
			s.Release()
		}
		delete(p.samplers, i)
	}
	for i, buf := range p.buffers {
		if buf != nil {
			buf.Release()
		}
		delete(p.buffers, i)
	}
	for i, buf := range p.vertexBuffers {
		if buf != nil {
			buf.Release()
		}
		delete(p.vertexBuffers, i)
	}

	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
	if p.indexBuffer != nil {
		p.indexBuffer.Release()
		p.indexBuffer = nil
	}
	p.signature = ""
	p.indexCount = 0
	p.version = 0
}
