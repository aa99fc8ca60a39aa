package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-valley/common"
	"github.com/Carmen-Shannon/oxy-valley/engine/camera"
	"github.com/Carmen-Shannon/oxy-valley/engine/game_object"
	"github.com/Carmen-Shannon/oxy-valley/engine/logger"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-valley/engine/scene"
	"github.com/Carmen-Shannon/oxy-valley/engine/texture"
	"github.com/chewxy/math32"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrReleased is returned by operations on a released renderer.
var ErrReleased = errors.New("renderer has been released")

// Surface is the display surface a WebGPU renderer presents to.
type Surface interface {
	// Width returns the logical width of the surface.
	Width() int

	// Height returns the logical height of the surface.
	Height() int

	// SurfaceDescriptor returns the platform descriptor used to create the WebGPU surface.
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
}

// PassKind classifies the work reported to a PassObserver.
type PassKind int

const (
	PassRender PassKind = iota
	PassCompute
	PassPresent
)

// String returns the pass kind name.
func (k PassKind) String() string {
	switch k {
	case PassRender:
		return "render"
	case PassCompute:
		return "compute"
	case PassPresent:
		return "present"
	default:
		return "unknown"
	}
}

// PassEvent describes one unit of GPU work issued by the renderer.
type PassEvent struct {
	Kind  PassKind
	Label string
	// Target is the texture written by the pass, nil for the display surface.
	Target texture.Texture
	// Draws is the number of draw calls of a render pass.
	Draws int
}

// PassObserver is called after every pass in issue order.
type PassObserver func(event PassEvent)

// Info is a snapshot of the renderer's counters.
type Info struct {
	Backend       string
	Frames        uint64
	RenderPasses  uint64
	ComputePasses uint64
	DrawCalls     uint64
	Pipelines     int
	Textures      int
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backendType RendererBackendType
	backend     RendererBackend

	width, height int
	pixelRatio    float32
	clearColor    [4]float64
	target        texture.RenderTarget

	pipelineCache map[string]pipeline.Pipeline
	textures      []texture.Texture

	placeholder      texture.Texture
	floatPlaceholder texture.Texture

	observers []PassObserver
	info      Info
	released  bool

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	msaa                 MSAASampleCount
}

// Renderer defines the interface for the rendering system.
//
// This is a high-level API that draws scenes through a camera into the display surface or an
// off-screen render target, runs compute materials, and presents. Pipelines are derived from
// materials and cached; textures are uploaded lazily when their version changes. The backend
// does the GPU API specific work, which allows a headless implementation to stand in for tests.
type Renderer interface {
	// BackendType returns the backend in use.
	BackendType() RendererBackendType

	// SetSize sets the logical size of the display surface and reconfigures it.
	//
	// Parameters:
	//   - width: logical width, clamped to at least 1
	//   - height: logical height, clamped to at least 1
	SetSize(width, height int)

	// Size returns the logical size of the display surface.
	Size() (int, int)

	// SetPixelRatio sets the device pixel ratio and reconfigures the surface. Ratios that are
	// not positive are treated as 1.
	//
	// Parameters:
	//   - ratio: device pixels per logical pixel
	SetPixelRatio(ratio float32)

	// PixelRatio returns the device pixel ratio.
	PixelRatio() float32

	// DrawingBufferSize returns the surface size in device pixels.
	//
	// Returns:
	//   - int: width in device pixels
	//   - int: height in device pixels
	DrawingBufferSize() (int, int)

	// SetClearColor sets the color attachments are cleared to.
	//
	// Parameters:
	//   - color: linear RGBA in [0, 1]
	SetClearColor(color [4]float64)

	// ClearColor returns the clear color.
	ClearColor() [4]float64

	// SetRenderTarget directs subsequent Render and Clear calls into target, or into the
	// display surface when target is nil.
	//
	// Parameters:
	//   - target: the off-screen target or nil
	SetRenderTarget(target texture.RenderTarget)

	// RenderTarget returns the active render target, nil for the display surface.
	RenderTarget() texture.RenderTarget

	// NewRenderTarget creates an off-screen render target owned by the renderer.
	//
	// Parameters:
	//   - label: debug label
	//   - width: width in pixels
	//   - height: height in pixels
	//   - options: descriptor options
	//
	// Returns:
	//   - texture.RenderTarget: the new target
	//   - error: an error if the size is invalid
	NewRenderTarget(label string, width, height int, options ...texture.RenderTargetOption) (texture.RenderTarget, error)

	// NewTexture creates a texture owned by the renderer.
	//
	// Parameters:
	//   - desc: the texture descriptor
	//   - data: optional texel data
	//
	// Returns:
	//   - texture.Texture: the new texture
	//   - error: an error if the descriptor or data is invalid
	NewTexture(desc texture.Descriptor, data []byte) (texture.Texture, error)

	// Compile prepares every pipeline and texture a scene needs for the active render target,
	// so the first Render does not stall.
	//
	// Parameters:
	//   - s: the scene
	//   - cam: the camera the scene will be drawn with
	//
	// Returns:
	//   - error: the first preparation error
	Compile(s scene.Scene, cam camera.Camera) error

	// Render draws a scene through a camera into the active render target.
	//
	// Parameters:
	//   - s: the scene
	//   - cam: the camera
	//
	// Returns:
	//   - error: an error if a pipeline or texture could not be prepared or the pass failed
	Render(s scene.Scene, cam camera.Camera) error

	// Clear clears the active render target without drawing anything.
	//
	// Returns:
	//   - error: an error if the pass failed
	Clear() error

	// Compute runs a compute material over a grid of workgroups, writing output.
	//
	// Parameters:
	//   - m: a compute material
	//   - output: the storage texture written by the dispatch
	//   - workgroups: the dispatch size in x, y and z
	//
	// Returns:
	//   - error: an error if the material is not a compute material, output is also read,
	//     or the dispatch failed
	Compute(m material.Material, output texture.Texture, workgroups [3]uint32) error

	// Present shows the frame drawn into the display surface.
	//
	// Returns:
	//   - error: an error if presentation failed
	Present() error

	// Info returns a snapshot of the renderer's counters.
	Info() Info

	// Release frees every pipeline, owned texture and the backend. Further calls are no-ops.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a renderer on the selected backend. The WebGPU backend requires a
// surface; the headless backend ignores it and starts at the size given by WithSize.
//
// Parameters:
//   - backendType: the backend to create
//   - surface: the display surface, may be nil for the headless backend
//   - options: functional options applied in order
//
// Returns:
//   - Renderer: the new renderer
//   - error: an error if the backend could not be created or configured
func NewRenderer(backendType RendererBackendType, surface Surface, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:            &sync.Mutex{},
		backendType:   backendType,
		width:         1,
		height:        1,
		pixelRatio:    1,
		clearColor:    [4]float64{0, 0, 0, 1},
		pipelineCache: make(map[string]pipeline.Pipeline),
		msaa:          MSAA4x,
	}
	if surface != nil {
		r.width, r.height = max(surface.Width(), 1), max(surface.Height(), 1)
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	switch backendType {
	case BackendTypeHeadless:
		r.backend = newHeadlessRendererBackend(r.msaa)
	case BackendTypeWGPU:
		if surface == nil {
			return nil, errors.New("the wgpu backend requires a surface")
		}
		backend, err := newWGPURendererBackend(surface.SurfaceDescriptor(), r.forceFallbackAdapter, r.msaa)
		if err != nil {
			return nil, fmt.Errorf("failed to create wgpu backend: %w", err)
		}
		r.backend = backend
	default:
		return nil, fmt.Errorf("unknown backend type %d", backendType)
	}
	r.info.Backend = backendType.String()

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}
	if err := r.backend.ConfigureSurface(r.drawingBufferSizeLocked()); err != nil {
		r.backend.Release()
		return nil, fmt.Errorf("failed to configure surface: %w", err)
	}

	var err error
	r.placeholder, err = texture.NewTexture(texture.Descriptor{
		Label:  "placeholder",
		Width:  1,
		Height: 1,
		Format: texture.FormatRGBA8Unorm,
		Usage:  texture.UsageSampled | texture.UsageUpload,
	}, []byte{255, 255, 255, 255})
	if err != nil {
		return nil, err
	}
	r.floatPlaceholder, err = texture.NewTexture(texture.Descriptor{
		Label:  "float placeholder",
		Width:  1,
		Height: 1,
		Format: texture.FormatRGBA32Float,
		Usage:  texture.UsageSampled | texture.UsageUpload,
	}, make([]byte, 16))
	if err != nil {
		return nil, err
	}
	r.textures = append(r.textures, r.placeholder, r.floatPlaceholder)

	logger.Logger().Info("renderer created", "backend", backendType.String(), "width", r.width, "height", r.height)
	return r, nil
}

func (r *renderer) BackendType() RendererBackendType {
	return r.backendType
}

func (r *renderer) SetSize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.width, r.height = max(width, 1), max(height, 1)
	r.configureLocked()
}

func (r *renderer) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

func (r *renderer) SetPixelRatio(ratio float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !(ratio > 0) || math32.IsInf(ratio, 0) {
		ratio = 1
	}
	r.pixelRatio = ratio
	r.configureLocked()
}

func (r *renderer) PixelRatio() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pixelRatio
}

func (r *renderer) DrawingBufferSize() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drawingBufferSizeLocked()
}

func (r *renderer) drawingBufferSizeLocked() (int, int) {
	w := int(math32.Round(float32(r.width) * r.pixelRatio))
	h := int(math32.Round(float32(r.height) * r.pixelRatio))
	return max(w, 1), max(h, 1)
}

func (r *renderer) configureLocked() {
	if r.released {
		return
	}
	w, h := r.drawingBufferSizeLocked()
	if err := r.backend.ConfigureSurface(w, h); err != nil {
		logger.Logger().Error("failed to configure surface", "width", w, "height", h, "err", err)
	}
}

func (r *renderer) SetClearColor(color [4]float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearColor = color
}

func (r *renderer) ClearColor() [4]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clearColor
}

func (r *renderer) SetRenderTarget(target texture.RenderTarget) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = target
}

func (r *renderer) RenderTarget() texture.RenderTarget {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target
}

func (r *renderer) NewRenderTarget(label string, width, height int, options ...texture.RenderTargetOption) (texture.RenderTarget, error) {
	rt, err := texture.NewRenderTarget(label, width, height, options...)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.textures = append(r.textures, rt)
	r.mu.Unlock()
	return rt, nil
}

func (r *renderer) NewTexture(desc texture.Descriptor, data []byte) (texture.Texture, error) {
	tex, err := texture.NewTexture(desc, data)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.textures = append(r.textures, tex)
	r.mu.Unlock()
	return tex, nil
}

func (r *renderer) Compile(s scene.Scene, cam camera.Camera) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}

	format, samples := r.attachmentLocked(r.target)
	var errs []error
	for _, obj := range s.DrawList() {
		if _, err := r.pipelineLocked(obj.Material(), format, samples); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := r.texturesLocked(obj.Material(), r.target); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *renderer) Render(s scene.Scene, cam camera.Camera) error {
	if s == nil || cam == nil {
		return errors.New("render requires a scene and a camera")
	}

	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return ErrReleased
	}
	target := r.target
	pass := RenderPass{Label: s.Name(), Target: target, ClearColor: r.clearColor}
	format, samples := r.attachmentLocked(target)

	view := cam.ViewMatrix()
	projection := cam.ProjectionMatrix()

	for _, obj := range s.DrawList() {
		draw, ok, err := r.drawCommandLocked(obj, format, samples, target, view, projection)
		if err != nil {
			r.mu.Unlock()
			return fmt.Errorf("render %q: %w", s.Name(), err)
		}
		if ok {
			pass.Draws = append(pass.Draws, draw)
		}
	}

	err := r.executePassLocked(pass)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("render %q: %w", s.Name(), err)
	}
	r.notify(PassEvent{Kind: PassRender, Label: pass.Label, Target: targetTexture(target), Draws: len(pass.Draws)})
	return nil
}

func (r *renderer) Clear() error {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return ErrReleased
	}
	pass := RenderPass{Label: "clear", Target: r.target, ClearColor: r.clearColor}
	err := r.executePassLocked(pass)
	r.mu.Unlock()
	if err != nil {
		return err
	}
	r.notify(PassEvent{Kind: PassRender, Label: pass.Label, Target: targetTexture(pass.Target)})
	return nil
}

func (r *renderer) Compute(m material.Material, output texture.Texture, workgroups [3]uint32) error {
	if m == nil || m.Kind() != material.KindCompute {
		return errors.New("compute requires a compute material")
	}
	if output == nil {
		return fmt.Errorf("compute %q: output texture is nil", m.Label())
	}

	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return ErrReleased
	}

	p, err := r.pipelineLocked(m, output.Descriptor().Format, 1)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	textures, err := r.texturesLocked(m, nil)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	for binding, tex := range textures {
		if tex.ID() == output.ID() {
			r.mu.Unlock()
			return fmt.Errorf("compute %q: binding %d reads the output texture %q", m.Label(), binding, output.Label())
		}
	}
	if err := r.backend.PrepareTexture(output); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("compute %q: %w", m.Label(), err)
	}

	outputBinding := 0
	for _, b := range m.Bindings() {
		if b.Type == material.BindingStorageTexture {
			outputBinding = b.Index
		}
	}

	cmd := ComputeCommand{
		Label:         m.Label(),
		Pipeline:      p,
		Material:      m,
		Uniforms:      material.PackBlock(m.Uniforms()),
		Textures:      textures,
		OutputBinding: outputBinding,
		Output:        output,
		Workgroups:    workgroups,
	}
	err = r.backend.ExecuteCompute(cmd)
	if err == nil {
		r.info.ComputePasses++
	}
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("compute %q: %w", m.Label(), err)
	}
	r.notify(PassEvent{Kind: PassCompute, Label: m.Label(), Target: output})
	return nil
}

func (r *renderer) Present() error {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return ErrReleased
	}
	err := r.backend.Present()
	if err == nil {
		r.info.Frames++
	}
	r.mu.Unlock()
	if err != nil {
		return err
	}
	r.notify(PassEvent{Kind: PassPresent, Label: "present"})
	return nil
}

func (r *renderer) Info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	info := r.info
	info.Pipelines = len(r.pipelineCache)
	info.Textures = len(r.textures)
	return info
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.released = true

	for key, p := range r.pipelineCache {
		p.Release()
		delete(r.pipelineCache, key)
	}
	for _, tex := range r.textures {
		tex.Release()
	}
	r.textures = nil
	r.backend.Release()
	logger.Logger().Info("renderer released", "backend", r.backendType.String())
}

// attachmentLocked returns the color format and sample count of the attachment a pass into
// target writes.
func (r *renderer) attachmentLocked(target texture.RenderTarget) (texture.Format, uint32) {
	if target == nil {
		return r.backend.SurfaceFormat(), r.backend.SampleCount()
	}
	return target.Descriptor().Format, 1
}

func (r *renderer) pipelineLocked(m material.Material, format texture.Format, samples uint32) (pipeline.Pipeline, error) {
	key := pipeline.Key(m, format, samples)
	if p, ok := r.pipelineCache[key]; ok {
		return p, nil
	}
	p := pipeline.FromMaterial(m, format, samples)
	if err := r.backend.PreparePipeline(p); err != nil {
		return nil, fmt.Errorf("failed to prepare pipeline for %q: %w", m.Label(), err)
	}
	r.pipelineCache[key] = p
	logger.Logger().Debug("pipeline prepared", "key", key, "material", m.Label())
	return p, nil
}

// texturesLocked resolves and prepares every texture binding of a material. Unset textures
// and textures that are also the pass's attachment are replaced by placeholders.
func (r *renderer) texturesLocked(m material.Material, target texture.RenderTarget) (map[int]texture.Texture, error) {
	textures := make(map[int]texture.Texture)
	for _, b := range m.Bindings() {
		if b.Type != material.BindingTexture && b.Type != material.BindingFloatTexture {
			continue
		}
		value, _ := m.Uniform(b.Name)
		tex, _ := value.(texture.Texture)
		if tex != nil && target != nil && tex.ID() == target.ID() {
			logger.Logger().Warn("texture is also the render target, binding a placeholder",
				"material", m.Label(), "uniform", b.Name, "target", target.Label())
			tex = nil
		}
		if tex == nil || tex.Released() {
			tex = r.placeholder
			if b.Type == material.BindingFloatTexture {
				tex = r.floatPlaceholder
			}
		}
		if err := r.backend.PrepareTexture(tex); err != nil {
			return nil, fmt.Errorf("failed to prepare texture %q of %q: %w", b.Name, m.Label(), err)
		}
		textures[b.Index] = tex
	}
	return textures, nil
}

func (r *renderer) drawCommandLocked(
	obj game_object.GameObject,
	format texture.Format,
	samples uint32,
	target texture.RenderTarget,
	view, projection [16]float32,
) (DrawCommand, bool, error) {
	m := obj.Material()
	geo := obj.Geometry()
	if m.Kind() != material.KindRender {
		return DrawCommand{}, false, fmt.Errorf("object %q uses compute material %q", obj.Label(), m.Label())
	}

	start, count := geo.DrawCount()
	if count <= 0 {
		return DrawCommand{}, false, nil
	}

	p, err := r.pipelineLocked(m, format, samples)
	if err != nil {
		return DrawCommand{}, false, err
	}
	textures, err := r.texturesLocked(m, target)
	if err != nil {
		return DrawCommand{}, false, err
	}

	var block [48]float32
	model := obj.ModelMatrix()
	copy(block[0:16], model[:])
	copy(block[16:32], view[:])
	copy(block[32:48], projection[:])

	return DrawCommand{
		Pipeline:    p,
		Material:    m,
		Object:      obj,
		Geometry:    geo,
		Uniforms:    material.PackBlock(m.Uniforms()),
		Textures:    textures,
		ObjectBlock: append([]byte(nil), common.SliceToBytes(block[:])...),
		Start:       start,
		Count:       count,
		Instanced:   obj.Kind() == game_object.KindPoints || m.Topology() == material.TopologyPointSprites,
	}, true, nil
}

func (r *renderer) executePassLocked(pass RenderPass) error {
	if pass.Target != nil {
		if err := r.backend.PrepareTexture(pass.Target); err != nil {
			return err
		}
	}
	if err := r.backend.ExecutePass(pass); err != nil {
		return err
	}
	r.info.RenderPasses++
	r.info.DrawCalls += uint64(len(pass.Draws))
	return nil
}

func (r *renderer) notify(event PassEvent) {
	r.mu.Lock()
	observers := r.observers
	r.mu.Unlock()
	for _, observe := range observers {
		observe(event)
	}
}

func targetTexture(target texture.RenderTarget) texture.Texture {
	if target == nil {
		return nil
	}
	return target.Texture()
}
