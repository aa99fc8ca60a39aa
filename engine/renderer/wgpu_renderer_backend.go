package renderer

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-valley/common"
	"github.com/Carmen-Shannon/oxy-valley/engine/geometry"
	"github.com/Carmen-Shannon/oxy-valley/engine/logger"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-valley/engine/texture"
	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuTexture is the handle the WebGPU backend attaches to a texture.
type wgpuTexture struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView

	width, height int
	format        texture.Format

	uploaded   bool
	version    uint64
	generation uint64
}

func (t *wgpuTexture) release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
}

// wgpuPipeline is the handle the WebGPU backend attaches to a pipeline.
type wgpuPipeline struct {
	render  *wgpu.RenderPipeline
	compute *wgpu.ComputePipeline
	layouts []*wgpu.BindGroupLayout
}

func (p *wgpuPipeline) release() {
	if p.render != nil {
		p.render.Release()
		p.render = nil
	}
	if p.compute != nil {
		p.compute.Release()
		p.compute = nil
	}
	for _, l := range p.layouts {
		if l != nil {
			l.Release()
		}
	}
	p.layouts = nil
}

// depthAttachment is the depth buffer paired with an off-screen render target.
type depthAttachment struct {
	texture       *wgpu.Texture
	view          *wgpu.TextureView
	width, height int
}

func (d *depthAttachment) release() {
	if d.view != nil {
		d.view.Release()
	}
	if d.texture != nil {
		d.texture.Release()
	}
}

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat    wgpu.TextureFormat
	width, height    int
	msaaTexture      *wgpu.Texture
	msaaTextureView  *wgpu.TextureView
	depthTexture     *wgpu.Texture
	depthTextureView *wgpu.TextureView

	presentMode wgpu.PresentMode // defaults to PresentModeImmediate (Uncapped)
	sampleCount MSAASampleCount  // MSAA sample count for the on-screen pass

	// Surface texture acquired by the first on-screen pass of a frame, released by Present.
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView

	targetDepth map[uint64]*depthAttachment
	materials   map[uint64]bind_group_provider.BindGroupProvider
	objects     map[uint64]bind_group_provider.BindGroupProvider
	geometries  map[string]bind_group_provider.BindGroupProvider

	// generation increments for every GPU texture allocation so bind groups notice re-allocations.
	generation uint64
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool, sampleCount MSAASampleCount) (*wgpuRendererBackendImpl, error) {
	runtime.LockOSThread()
	w := &wgpuRendererBackendImpl{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
		sampleCount: max(sampleCount, MSAAOff),
		targetDepth: make(map[uint64]*depthAttachment),
		materials:   make(map[uint64]bind_group_provider.BindGroupProvider),
		objects:     make(map[uint64]bind_group_provider.BindGroupProvider),
		geometries:  make(map[string]bind_group_provider.BindGroupProvider),
	}
	w.surface = w.instance.CreateSurface(surfaceDescriptor)

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	w.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	w.device = d
	w.queue = d.GetQueue()

	return w, nil
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	capabilities := b.surface.GetCapabilities(b.adapter)
	if len(capabilities.Formats) == 0 || len(capabilities.AlphaModes) == 0 {
		return errors.New("surface reports no supported formats")
	}
	b.surfaceFormat = capabilities.Formats[0]
	for _, f := range capabilities.Formats {
		if f == wgpu.TextureFormatBGRA8UnormSrgb || f == wgpu.TextureFormatRGBA8UnormSrgb {
			b.surfaceFormat = f
			break
		}
	}

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	b.width, b.height = width, height

	b.releaseSurfaceAttachmentsLocked()
	count := uint32(b.sampleCount)

	if count > 1 {
		// The render pass draws into the MSAA texture; the resolved
		// result is written to the swapchain view as the ResolveTarget.
		msaaTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
			Label: "MSAA Texture",
			Size: wgpu.Extent3D{
				Width:              uint32(width),
				Height:             uint32(height),
				DepthOrArrayLayers: 1,
			},
			MipLevelCount: 1,
			SampleCount:   count,
			Dimension:     wgpu.TextureDimension2D,
			Format:        b.surfaceFormat,
			Usage:         wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			return fmt.Errorf("failed to create msaa texture: %w", err)
		}
		b.msaaTexture = msaaTexture
		b.msaaTextureView, err = msaaTexture.CreateView(nil)
		if err != nil {
			return fmt.Errorf("failed to create msaa texture view: %w", err)
		}
	}

	depth, err := b.createDepthLocked("Depth Texture", width, height, count)
	if err != nil {
		return err
	}
	b.depthTexture, b.depthTextureView = depth.texture, depth.view

	logger.Logger().Info("surface configured", "width", width, "height", height,
		"format", b.surfaceFormat.String(), "samples", count)
	return nil
}

func (b *wgpuRendererBackendImpl) releaseSurfaceAttachmentsLocked() {
	if b.msaaTextureView != nil {
		b.msaaTextureView.Release()
		b.msaaTextureView = nil
	}
	if b.msaaTexture != nil {
		b.msaaTexture.Release()
		b.msaaTexture = nil
	}
	if b.depthTextureView != nil {
		b.depthTextureView.Release()
		b.depthTextureView = nil
	}
	if b.depthTexture != nil {
		b.depthTexture.Release()
		b.depthTexture = nil
	}
}

// createDepthLocked creates a Depth24Plus attachment. Its sample count must match the color attachment.
func (b *wgpuRendererBackendImpl) createDepthLocked(label string, width, height int, samples uint32) (*depthAttachment, error) {
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   samples,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth24Plus,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create depth texture: %w", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("failed to create depth texture view: %w", err)
	}
	return &depthAttachment{texture: tex, view: view, width: width, height: height}, nil
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

func (b *wgpuRendererBackendImpl) SurfaceFormat() texture.Format {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fromWGPUFormat(b.surfaceFormat)
}

func (b *wgpuRendererBackendImpl) SampleCount() uint32 {
	return uint32(b.sampleCount)
}

func (b *wgpuRendererBackendImpl) PrepareTexture(tex texture.Texture) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.prepareTextureLocked(tex)
}

func (b *wgpuRendererBackendImpl) prepareTextureLocked(tex texture.Texture) error {
	if tex.Released() {
		return fmt.Errorf("texture %q has been released", tex.Label())
	}
	desc := tex.Descriptor()
	handle, _ := tex.Handle().(*wgpuTexture)

	if handle == nil || handle.width != desc.Width || handle.height != desc.Height || handle.format != desc.Format {
		if handle != nil {
			handle.release()
		}
		usage := wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst
		if desc.Usage&texture.UsageRenderTarget != 0 {
			usage |= wgpu.TextureUsageRenderAttachment
		}
		if desc.Usage&texture.UsageStorage != 0 {
			usage |= wgpu.TextureUsageStorageBinding
		}
		created, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
			Label:     desc.Label,
			Usage:     usage,
			Dimension: wgpu.TextureDimension2D,
			Size: wgpu.Extent3D{
				Width:              uint32(desc.Width),
				Height:             uint32(desc.Height),
				DepthOrArrayLayers: 1,
			},
			Format:        toWGPUFormat(desc.Format),
			MipLevelCount: 1,
			SampleCount:   1,
		})
		if err != nil {
			return fmt.Errorf("failed to create texture %q: %w", desc.Label, err)
		}
		view, err := created.CreateView(nil)
		if err != nil {
			created.Release()
			return fmt.Errorf("failed to create view of texture %q: %w", desc.Label, err)
		}
		b.generation++
		handle = &wgpuTexture{
			texture:    created,
			view:       view,
			width:      desc.Width,
			height:     desc.Height,
			format:     desc.Format,
			generation: b.generation,
		}
		tex.SetHandle(handle, handle.release)
	}

	if data := tex.Data(); data != nil && (!handle.uploaded || handle.version != tex.Version()) {
		b.queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture:  handle.texture,
				MipLevel: 0,
				Origin:   wgpu.Origin3D{},
				Aspect:   wgpu.TextureAspectAll,
			},
			data,
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  uint32(desc.Width * desc.Format.BytesPerTexel()),
				RowsPerImage: uint32(desc.Height),
			},
			&wgpu.Extent3D{
				Width:              uint32(desc.Width),
				Height:             uint32(desc.Height),
				DepthOrArrayLayers: 1,
			},
		)
		handle.uploaded = true
		handle.version = tex.Version()
	}
	return nil
}

func (b *wgpuRendererBackendImpl) PreparePipeline(p pipeline.Pipeline) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if p.Handle() != nil {
		return nil
	}
	switch p.Type() {
	case pipeline.PipelineTypeRender:
		return b.registerRenderPipelineLocked(p)
	case pipeline.PipelineTypeCompute:
		return b.registerComputePipelineLocked(p)
	default:
		return fmt.Errorf("unknown pipeline type %d", p.Type())
	}
}

func (b *wgpuRendererBackendImpl) createShaderModuleLocked(s shader.Shader) (*wgpu.ShaderModule, error) {
	return b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: s.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: s.Source(),
		},
	})
}

// materialLayoutEntries converts a material binding layout into bind group layout entries.
func materialLayoutEntries(bindings []material.Binding, visibility wgpu.ShaderStage) []wgpu.BindGroupLayoutEntry {
	entries := make([]wgpu.BindGroupLayoutEntry, 0, len(bindings))
	for _, binding := range bindings {
		entry := wgpu.BindGroupLayoutEntry{
			Binding:    uint32(binding.Index),
			Visibility: visibility,
		}
		switch binding.Type {
		case material.BindingUniformBlock:
			entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		case material.BindingTexture:
			entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
			entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
		case material.BindingFloatTexture:
			entry.Texture.SampleType = wgpu.TextureSampleTypeUnfilterableFloat
			entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
		case material.BindingSampler:
			entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
		case material.BindingStorageTexture:
			entry.Visibility = wgpu.ShaderStageCompute
			entry.StorageTexture.Access = wgpu.StorageTextureAccessWriteOnly
			entry.StorageTexture.Format = wgpu.TextureFormatRGBA32Float
			entry.StorageTexture.ViewDimension = wgpu.TextureViewDimension2D
		}
		entries = append(entries, entry)
	}
	return entries
}

func (b *wgpuRendererBackendImpl) registerRenderPipelineLocked(p pipeline.Pipeline) error {
	vertexShader := p.Shader(shader.ShaderTypeVertex)
	fragmentShader := p.Shader(shader.ShaderTypeFragment)
	if vertexShader == nil || fragmentShader == nil {
		return errors.New("both vertex and fragment shaders must be set to create a render pipeline")
	}

	vs, err := b.createShaderModuleLocked(vertexShader)
	if err != nil {
		return err
	}
	defer vs.Release()
	fs, err := b.createShaderModuleLocked(fragmentShader)
	if err != nil {
		return err
	}
	defer fs.Release()

	handle := &wgpuPipeline{}
	materialLayout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   p.PipelineKey() + " Material Layout",
		Entries: materialLayoutEntries(p.Bindings(), wgpu.ShaderStageVertex|wgpu.ShaderStageFragment),
	})
	if err != nil {
		return fmt.Errorf("failed to create bind group layout for group 0: %w", err)
	}
	handle.layouts = append(handle.layouts, materialLayout)

	objectLayout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: p.PipelineKey() + " Object Layout",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
			Buffer: wgpu.BufferBindingLayout{
				Type:           wgpu.BufferBindingTypeUniform,
				MinBindingSize: material.ObjectBlockSize,
			},
		}},
	})
	if err != nil {
		handle.release()
		return fmt.Errorf("failed to create bind group layout for group 1: %w", err)
	}
	handle.layouts = append(handle.layouts, objectLayout)

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: handle.layouts,
	})
	if err != nil {
		handle.release()
		return err
	}
	defer pipelineLayout.Release()

	stepMode := wgpu.VertexStepModeVertex
	if p.Topology() == material.TopologyPointSprites {
		stepMode = wgpu.VertexStepModeInstance
	}
	vertexLayouts := make([]wgpu.VertexBufferLayout, 0, len(p.Attributes()))
	for location, attr := range p.Attributes() {
		vertexLayouts = append(vertexLayouts, wgpu.VertexBufferLayout{
			ArrayStride: uint64(4 * attr.Components),
			StepMode:    stepMode,
			Attributes: []wgpu.VertexAttribute{{
				Format:         floatVertexFormat(attr.Components),
				Offset:         0,
				ShaderLocation: uint32(location),
			}},
		})
	}

	colorTarget := wgpu.ColorTargetState{
		Format:    toWGPUFormat(p.ColorFormat()),
		WriteMask: wgpu.ColorWriteMaskAll,
		Blend:     blendState(p.Blending()),
	}
	if p.ColorFormat() == fromWGPUFormat(b.surfaceFormat) {
		colorTarget.Format = b.surfaceFormat
	}

	cullMode := wgpu.CullModeNone
	if p.CullMode() == pipeline.CullBack {
		cullMode = wgpu.CullModeBack
	}
	depthCompare := wgpu.CompareFunctionLess
	if !p.DepthTestEnabled() {
		depthCompare = wgpu.CompareFunctionAlways
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: vertexShader.EntryPoint(),
			Buffers:    vertexLayouts,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: fragmentShader.EntryPoint(),
			Targets:    []wgpu.ColorTargetState{colorTarget},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  cullMode,
		},
		Multisample: wgpu.MultisampleState{
			Count: p.SampleCount(),
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: p.DepthWriteEnabled(),
			DepthCompare:      depthCompare,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	})
	if err != nil {
		handle.release()
		return err
	}
	handle.render = created
	p.SetHandle(handle, handle.release)
	return nil
}

func (b *wgpuRendererBackendImpl) registerComputePipelineLocked(p pipeline.Pipeline) error {
	computeShader := p.Shader(shader.ShaderTypeCompute)
	if computeShader == nil {
		return errors.New("compute shader must be set to create a compute pipeline")
	}

	s, err := b.createShaderModuleLocked(computeShader)
	if err != nil {
		return err
	}
	defer s.Release()

	layout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   p.PipelineKey() + " Material Layout",
		Entries: materialLayoutEntries(p.Bindings(), wgpu.ShaderStageCompute),
	})
	if err != nil {
		return fmt.Errorf("failed to create bind group layout for group 0: %w", err)
	}
	handle := &wgpuPipeline{layouts: []*wgpu.BindGroupLayout{layout}}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: handle.layouts,
	})
	if err != nil {
		handle.release()
		return err
	}
	defer pipelineLayout.Release()

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.PipelineKey() + " Compute Pipeline",
		Layout: pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     s,
			EntryPoint: computeShader.EntryPoint(),
		},
	})
	if err != nil {
		handle.release()
		return err
	}
	handle.compute = created
	p.SetHandle(handle, handle.release)
	return nil
}

// materialBindGroupLocked writes the uniform block of a material and returns its provider with
// a bind group matching the current textures, rebuilding the bind group when they changed.
func (b *wgpuRendererBackendImpl) materialBindGroupLocked(
	m material.Material,
	layout *wgpu.BindGroupLayout,
	bindings []material.Binding,
	uniforms []byte,
	textures map[int]texture.Texture,
	output texture.Texture,
) (bind_group_provider.BindGroupProvider, error) {
	provider, ok := b.materials[m.ID()]
	if !ok {
		provider = bind_group_provider.NewBindGroupProvider(m.Label())
		b.materials[m.ID()] = provider
	}

	buf := provider.Buffer(0)
	if buf == nil {
		var err error
		buf, err = b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: m.Label() + " Uniform Buffer",
			Size:  uint64(len(uniforms)),
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, err
		}
		provider.SetBuffer(0, buf)
		provider.SetBindGroup(nil, "")
	}
	b.queue.WriteBuffer(buf, 0, uniforms)

	var sig strings.Builder
	for _, binding := range bindings {
		switch binding.Type {
		case material.BindingTexture, material.BindingFloatTexture:
			handle, _ := textures[binding.Index].Handle().(*wgpuTexture)
			if handle == nil {
				return nil, fmt.Errorf("texture %q of %q is not prepared", binding.Name, m.Label())
			}
			fmt.Fprintf(&sig, "%d:%d|", binding.Index, handle.generation)
		case material.BindingStorageTexture:
			handle, _ := output.Handle().(*wgpuTexture)
			if handle == nil {
				return nil, fmt.Errorf("output of %q is not prepared", m.Label())
			}
			fmt.Fprintf(&sig, "%d:%d|", binding.Index, handle.generation)
		}
	}
	if provider.BindGroup() != nil && provider.Signature() == sig.String() {
		return provider, nil
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(bindings))
	for _, binding := range bindings {
		entry := wgpu.BindGroupEntry{Binding: uint32(binding.Index)}
		switch binding.Type {
		case material.BindingUniformBlock:
			entry.Buffer = buf
			entry.Offset = 0
			entry.Size = wgpu.WholeSize
		case material.BindingTexture, material.BindingFloatTexture:
			entry.TextureView = textures[binding.Index].Handle().(*wgpuTexture).view
		case material.BindingStorageTexture:
			entry.TextureView = output.Handle().(*wgpuTexture).view
		case material.BindingSampler:
			samp := provider.Sampler(binding.Index)
			if samp == nil {
				var err error
				samp, err = b.createSamplerLocked(m.Label(), firstFilterable(bindings, textures))
				if err != nil {
					return nil, err
				}
				provider.SetSampler(binding.Index, samp)
			}
			entry.Sampler = samp
		}
		entries = append(entries, entry)
	}

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   m.Label() + " Bind Group",
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	provider.SetBindGroup(bindGroup, sig.String())
	return provider, nil
}

func firstFilterable(bindings []material.Binding, textures map[int]texture.Texture) texture.Descriptor {
	for _, binding := range bindings {
		if binding.Type == material.BindingTexture && textures[binding.Index] != nil {
			return textures[binding.Index].Descriptor()
		}
	}
	return texture.Descriptor{}
}

func (b *wgpuRendererBackendImpl) createSamplerLocked(label string, desc texture.Descriptor) (*wgpu.Sampler, error) {
	return b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         label + " Sampler",
		AddressModeU:  addressMode(desc.WrapS),
		AddressModeV:  addressMode(desc.WrapT),
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     filterMode(desc.MagFilter),
		MinFilter:     filterMode(desc.MinFilter),
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
}

func (b *wgpuRendererBackendImpl) objectBindGroupLocked(draw DrawCommand, layout *wgpu.BindGroupLayout) (bind_group_provider.BindGroupProvider, error) {
	provider, ok := b.objects[draw.Object.ID()]
	if !ok {
		provider = bind_group_provider.NewBindGroupProvider(draw.Object.Label())
		b.objects[draw.Object.ID()] = provider
	}
	buf := provider.Buffer(0)
	if buf == nil {
		var err error
		buf, err = b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: draw.Object.Label() + " Object Buffer",
			Size:  material.ObjectBlockSize,
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, err
		}
		provider.SetBuffer(0, buf)
		bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  draw.Object.Label() + " Object Bind Group",
			Layout: layout,
			Entries: []wgpu.BindGroupEntry{{
				Binding: 0,
				Buffer:  buf,
				Offset:  0,
				Size:    wgpu.WholeSize,
			}},
		})
		if err != nil {
			return nil, err
		}
		provider.SetBindGroup(bindGroup, "object")
	}
	b.queue.WriteBuffer(buf, 0, draw.ObjectBlock)
	return provider, nil
}

// geometryBuffersLocked uploads the attributes a pipeline consumes, one vertex buffer per
// shader location, re-uploading whenever the geometry version changes.
func (b *wgpuRendererBackendImpl) geometryBuffersLocked(geo geometry.Geometry, attributes []material.VertexAttribute) (bind_group_provider.BindGroupProvider, error) {
	names := make([]string, len(attributes))
	for i, attr := range attributes {
		names[i] = attr.Name
	}
	key := fmt.Sprintf("%d/%s", geo.ID(), strings.Join(names, ","))

	provider, ok := b.geometries[key]
	if !ok {
		provider = bind_group_provider.NewBindGroupProvider(geo.Label())
		b.geometries[key] = provider
	}
	if ok && provider.Version() == geo.Version() {
		return provider, nil
	}

	for slot, attr := range attributes {
		data, found := geo.Attribute(attr.Name)
		if !found {
			return nil, fmt.Errorf("geometry %q has no attribute %q", geo.Label(), attr.Name)
		}
		if data.ItemSize != attr.Components {
			return nil, fmt.Errorf("geometry %q attribute %q has %d components, expected %d",
				geo.Label(), attr.Name, data.ItemSize, attr.Components)
		}
		raw := common.SliceToBytes(data.Data)
		if len(raw) == 0 {
			return nil, fmt.Errorf("geometry %q attribute %q is empty", geo.Label(), attr.Name)
		}
		buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: geo.Label() + " " + attr.Name,
			Size:  uint64(len(raw)),
			Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, err
		}
		b.queue.WriteBuffer(buf, 0, raw)
		provider.SetVertexBuffer(slot, buf)
	}

	if index := geo.Index(); len(index) > 0 {
		raw := common.SliceToBytes(index)
		buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: geo.Label() + " Index Buffer",
			Size:  uint64(len(raw)),
			Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, err
		}
		b.queue.WriteBuffer(buf, 0, raw)
		provider.SetIndexBuffer(buf)
		provider.SetIndexCount(len(index))
	} else {
		provider.SetIndexBuffer(nil)
		provider.SetIndexCount(0)
	}
	provider.SetVersion(geo.Version())
	return provider, nil
}

// acquireLocked acquires the surface texture for this frame once; later on-screen passes reuse it.
func (b *wgpuRendererBackendImpl) acquireLocked() error {
	if b.frameSurface != nil {
		return nil
	}
	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}
	b.frameSurface = surfaceTexture
	b.frameView = view
	return nil
}

func (b *wgpuRendererBackendImpl) targetDepthLocked(target texture.RenderTarget) (*wgpu.TextureView, error) {
	w, h := target.Width(), target.Height()
	depth, ok := b.targetDepth[target.ID()]
	if ok && depth.width == w && depth.height == h {
		return depth.view, nil
	}
	if ok {
		depth.release()
	}
	depth, err := b.createDepthLocked(target.Label()+" Depth", w, h, 1)
	if err != nil {
		return nil, err
	}
	b.targetDepth[target.ID()] = depth
	return depth.view, nil
}

func (b *wgpuRendererBackendImpl) ExecutePass(pass RenderPass) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	color := wgpu.RenderPassColorAttachment{
		LoadOp:  wgpu.LoadOpClear,
		StoreOp: wgpu.StoreOpStore,
		ClearValue: wgpu.Color{
			R: pass.ClearColor[0], G: pass.ClearColor[1], B: pass.ClearColor[2], A: pass.ClearColor[3],
		},
	}
	var depthView *wgpu.TextureView

	if pass.Target == nil {
		if err := b.acquireLocked(); err != nil {
			return fmt.Errorf("failed to acquire surface texture: %w", err)
		}
		// When MSAA is enabled, the MSAA texture is the color attachment View and
		// the swapchain view is the ResolveTarget.
		if b.sampleCount > 1 {
			color.View = b.msaaTextureView
			color.ResolveTarget = b.frameView
			color.StoreOp = wgpu.StoreOpDiscard
		} else {
			color.View = b.frameView
		}
		depthView = b.depthTextureView
	} else {
		handle, _ := pass.Target.Handle().(*wgpuTexture)
		if handle == nil {
			return fmt.Errorf("render target %q is not prepared", pass.Target.Label())
		}
		color.View = handle.view
		var err error
		if depthView, err = b.targetDepthLocked(pass.Target); err != nil {
			return err
		}
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	renderPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{color},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            depthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	})
	for _, draw := range pass.Draws {
		if err := b.encodeDrawLocked(renderPass, draw); err != nil {
			renderPass.End()
			return fmt.Errorf("pass %q: %w", pass.Label, err)
		}
	}
	renderPass.End()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}

func (b *wgpuRendererBackendImpl) encodeDrawLocked(pass *wgpu.RenderPassEncoder, draw DrawCommand) error {
	handle, _ := draw.Pipeline.Handle().(*wgpuPipeline)
	if handle == nil || handle.render == nil {
		return fmt.Errorf("pipeline %s is not prepared", draw.Pipeline.PipelineKey())
	}

	materialProvider, err := b.materialBindGroupLocked(draw.Material, handle.layouts[0], draw.Pipeline.Bindings(), draw.Uniforms, draw.Textures, nil)
	if err != nil {
		return err
	}
	objectProvider, err := b.objectBindGroupLocked(draw, handle.layouts[1])
	if err != nil {
		return err
	}
	geometryProvider, err := b.geometryBuffersLocked(draw.Geometry, draw.Pipeline.Attributes())
	if err != nil {
		return err
	}

	pass.SetPipeline(handle.render)
	pass.SetBindGroup(0, materialProvider.BindGroup(), nil)
	pass.SetBindGroup(1, objectProvider.BindGroup(), nil)
	for slot := range draw.Pipeline.Attributes() {
		pass.SetVertexBuffer(uint32(slot), geometryProvider.VertexBuffer(slot), 0, wgpu.WholeSize)
	}

	switch {
	case draw.Instanced:
		pass.Draw(6, uint32(draw.Count), 0, uint32(draw.Start))
	case geometryProvider.IndexBuffer() != nil:
		pass.SetIndexBuffer(geometryProvider.IndexBuffer(), wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		pass.DrawIndexed(uint32(draw.Count), 1, uint32(draw.Start), 0, 0)
	default:
		pass.Draw(uint32(draw.Count), 1, uint32(draw.Start), 0)
	}
	return nil
}

func (b *wgpuRendererBackendImpl) ExecuteCompute(cmd ComputeCommand) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	handle, _ := cmd.Pipeline.Handle().(*wgpuPipeline)
	if handle == nil || handle.compute == nil {
		return fmt.Errorf("pipeline %s is not prepared", cmd.Pipeline.PipelineKey())
	}
	provider, err := b.materialBindGroupLocked(cmd.Material, handle.layouts[0], cmd.Pipeline.Bindings(), cmd.Uniforms, cmd.Textures, cmd.Output)
	if err != nil {
		return err
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(handle.compute)
	pass.SetBindGroup(0, provider.BindGroup(), nil)
	pass.DispatchWorkgroups(cmd.Workgroups[0], cmd.Workgroups[1], cmd.Workgroups[2])
	pass.End()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}

func (b *wgpuRendererBackendImpl) Present() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// If no frame surface is held, nothing to present.
	if b.frameSurface == nil {
		return nil
	}

	b.surface.Present()

	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	b.frameSurface.Release()
	b.frameSurface = nil
	return nil
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, providers := range []map[uint64]bind_group_provider.BindGroupProvider{b.materials, b.objects} {
		for id, p := range providers {
			p.Release()
			delete(providers, id)
		}
	}
	for key, p := range b.geometries {
		p.Release()
		delete(b.geometries, key)
	}
	for id, d := range b.targetDepth {
		d.release()
		delete(b.targetDepth, id)
	}
	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
	b.releaseSurfaceAttachmentsLocked()

	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

func blendState(blending material.Blending) *wgpu.BlendState {
	switch blending {
	case material.BlendingNormal:
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	case material.BlendingAdditive:
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOne,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOne,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	default:
		return nil
	}
}

func floatVertexFormat(components int) wgpu.VertexFormat {
	switch components {
	case 1:
		return wgpu.VertexFormatFloat32
	case 2:
		return wgpu.VertexFormatFloat32x2
	case 3:
		return wgpu.VertexFormatFloat32x3
	default:
		return wgpu.VertexFormatFloat32x4
	}
}

func toWGPUFormat(f texture.Format) wgpu.TextureFormat {
	switch f {
	case texture.FormatRGBA8UnormSrgb:
		return wgpu.TextureFormatRGBA8UnormSrgb
	case texture.FormatRGBA32Float:
		return wgpu.TextureFormatRGBA32Float
	case texture.FormatBGRA8Unorm:
		return wgpu.TextureFormatBGRA8Unorm
	case texture.FormatBGRA8UnormSrgb:
		return wgpu.TextureFormatBGRA8UnormSrgb
	default:
		return wgpu.TextureFormatRGBA8Unorm
	}
}

func fromWGPUFormat(f wgpu.TextureFormat) texture.Format {
	switch f {
	case wgpu.TextureFormatRGBA8UnormSrgb:
		return texture.FormatRGBA8UnormSrgb
	case wgpu.TextureFormatRGBA32Float:
		return texture.FormatRGBA32Float
	case wgpu.TextureFormatBGRA8Unorm:
		return texture.FormatBGRA8Unorm
	case wgpu.TextureFormatBGRA8UnormSrgb:
		return texture.FormatBGRA8UnormSrgb
	default:
		return texture.FormatRGBA8Unorm
	}
}

func addressMode(w texture.Wrap) wgpu.AddressMode {
	if w == texture.WrapRepeat {
		return wgpu.AddressModeRepeat
	}
	return wgpu.AddressModeClampToEdge
}

func filterMode(f texture.Filter) wgpu.FilterMode {
	if f == texture.FilterNearest {
		return wgpu.FilterModeNearest
	}
	return wgpu.FilterModeLinear
}
