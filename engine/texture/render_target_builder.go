package texture

// RenderTargetOption is a functional option applied to a render target's descriptor during NewRenderTarget.
type RenderTargetOption func(*Descriptor)

// WithFormat sets the color format.
func WithFormat(format Format) RenderTargetOption {
	return func(d *Descriptor) {
		d.Format = format
	}
}

// WithFilter sets the minification and magnification filters.
func WithFilter(minFilter, magFilter Filter) RenderTargetOption {
	return func(d *Descriptor) {
		d.MinFilter = minFilter
		d.MagFilter = magFilter
	}
}

// WithWrap sets the address modes.
func WithWrap(s, t Wrap) RenderTargetOption {
	return func(d *Descriptor) {
		d.WrapS = s
		d.WrapT = t
	}
}

// WithMipmaps toggles mipmap generation.
func WithMipmaps(enabled bool) RenderTargetOption {
	return func(d *Descriptor) {
		d.GenerateMipmaps = enabled
	}
}

// WithUsage adds usage flags on top of the render target defaults.
func WithUsage(usage Usage) RenderTargetOption {
	return func(d *Descriptor) {
		d.Usage |= usage
	}
}
