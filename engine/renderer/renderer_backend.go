package renderer

import (
	"github.com/Carmen-Shannon/oxy-valley/engine/game_object"
	"github.com/Carmen-Shannon/oxy-valley/engine/geometry"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-valley/engine/texture"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeHeadless selects a backend that records work without a GPU or a display.
	BackendTypeHeadless
)

// String returns the backend name.
func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeHeadless:
		return "headless"
	default:
		return "unknown"
	}
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing (MSAA)
// of the on-screen pass. Off-screen render targets are always single sampled.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1).
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4× multisample anti-aliasing. This is the default.
	MSAA4x MSAASampleCount = 4
)

// DrawCommand is one draw issued inside a render pass.
type DrawCommand struct {
	Pipeline pipeline.Pipeline
	Material material.Material
	Object   game_object.GameObject
	Geometry geometry.Geometry

	// Uniforms is the packed material uniform block for group 0, binding 0.
	Uniforms []byte
	// Textures maps group 0 binding indices to the texture bound there.
	Textures map[int]texture.Texture
	// ObjectBlock is the packed model, view and projection matrices for group 1, binding 0.
	ObjectBlock []byte

	// Start and Count select the drawn range: indices for indexed meshes, vertices otherwise,
	// and sprite instances for point sprites.
	Start, Count int
	// Instanced draws one six-vertex quad per element of the range.
	Instanced bool
}

// RenderPass is a list of draws into one color attachment.
type RenderPass struct {
	Label string
	// Target is the off-screen attachment, or nil for the display surface.
	Target     texture.RenderTarget
	ClearColor [4]float64
	Draws      []DrawCommand
}

// ComputeCommand is one compute dispatch writing a storage texture.
type ComputeCommand struct {
	Label    string
	Pipeline pipeline.Pipeline
	Material material.Material
	Uniforms []byte
	Textures map[int]texture.Texture
	// OutputBinding is the group 0 binding index of Output.
	OutputBinding int
	Output        texture.Texture
	Workgroups    [3]uint32
}

// RendererBackend is the contract a GPU API implementation fulfils for the Renderer.
// Backends are driven from the thread that created them.
type RendererBackend interface {
	// ConfigureSurface sizes the display surface and its attachments.
	//
	// Parameters:
	//   - width: the drawing buffer width in pixels
	//   - height: the drawing buffer height in pixels
	//
	// Returns:
	//   - error: an error if the surface could not be configured
	ConfigureSurface(width, height int) error

	// SetPresentMode sets the surface present mode used on the next ConfigureSurface.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)

	// SurfaceFormat returns the color format of the display surface.
	SurfaceFormat() texture.Format

	// SampleCount returns the multisample count of the display surface pass.
	SampleCount() uint32

	// PrepareTexture allocates the texture's GPU resource and uploads pending data when its
	// version changed since the last call.
	//
	// Parameters:
	//   - tex: the texture
	//
	// Returns:
	//   - error: an error if allocation or upload fails
	PrepareTexture(tex texture.Texture) error

	// PreparePipeline realizes a pipeline description and attaches the GPU object to it.
	//
	// Parameters:
	//   - p: the pipeline description
	//
	// Returns:
	//   - error: an error if shader compilation or pipeline creation fails
	PreparePipeline(p pipeline.Pipeline) error

	// ExecutePass clears the pass's attachment, encodes every draw and submits the pass.
	//
	// Parameters:
	//   - pass: the render pass
	//
	// Returns:
	//   - error: an error if the pass could not be encoded
	ExecutePass(pass RenderPass) error

	// ExecuteCompute encodes and submits a compute dispatch.
	//
	// Parameters:
	//   - cmd: the compute command
	//
	// Returns:
	//   - error: an error if the dispatch could not be encoded
	ExecuteCompute(cmd ComputeCommand) error

	// Present shows the surface texture rendered this frame, if any.
	//
	// Returns:
	//   - error: an error if presentation fails
	Present() error

	// Release frees every GPU resource held by the backend.
	Release()
}
