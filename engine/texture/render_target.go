package texture

import "fmt"

type renderTarget struct {
	*texture
}

// RenderTarget is an off-screen color buffer a scene can be drawn into and later sampled.
// The target keeps its identity across resizes; only the underlying allocation changes.
type RenderTarget interface {
	Texture

	// Texture returns the color texture to bind as a sampled uniform.
	Texture() Texture

	// SetSize resizes the color buffer.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	SetSize(width, height int)
}

var _ RenderTarget = &renderTarget{}

// NewRenderTarget creates a render target. Unless overridden by options the target is
// RGBA8, linearly filtered, clamped, and has no mipmaps.
//
// Parameters:
//   - label: debug label
//   - width: width in pixels
//   - height: height in pixels
//   - options: functional options applied to the descriptor
//
// Returns:
//   - RenderTarget: the new render target
//   - error: an error if the size is invalid
func NewRenderTarget(label string, width, height int, options ...RenderTargetOption) (RenderTarget, error) {
	desc := Descriptor{
		Label:     label,
		Width:     width,
		Height:    height,
		Format:    FormatRGBA8Unorm,
		MinFilter: FilterLinear,
		MagFilter: FilterLinear,
		WrapS:     WrapClamp,
		WrapT:     WrapClamp,
		Usage:     UsageSampled | UsageRenderTarget,
	}
	for _, opt := range options {
		opt(&desc)
	}
	desc.Usage |= UsageRenderTarget

	tex, err := newTexture(desc, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create render target: %w", err)
	}
	return &renderTarget{texture: tex}, nil
}

func (r *renderTarget) Texture() Texture {
	return r.texture
}

func (r *renderTarget) SetSize(width, height int) {
	r.Resize(width, height)
}
