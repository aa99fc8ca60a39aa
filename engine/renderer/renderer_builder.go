package renderer

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingPresentMode = &mode
	}
}

// WithMSAA sets the multisample anti-aliasing sample count of the on-screen pass.
// When not specified, the default is MSAA4x. Use MSAAOff to disable MSAA entirely.
//
// Parameters:
//   - count: the MSAASampleCount to use (MSAAOff or MSAA4x)
//
// Returns:
//   - RendererBuilderOption: a function that applies the MSAA option to a renderer
func WithMSAA(count MSAASampleCount) RendererBuilderOption {
	return func(r *renderer) {
		r.msaa = count
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithSize sets the initial logical size, overriding the surface's.
func WithSize(width, height int) RendererBuilderOption {
	return func(r *renderer) {
		r.width, r.height = max(width, 1), max(height, 1)
	}
}

// WithPixelRatio sets the initial device pixel ratio. Ratios that are not positive are ignored.
func WithPixelRatio(ratio float32) RendererBuilderOption {
	return func(r *renderer) {
		if ratio > 0 {
			r.pixelRatio = ratio
		}
	}
}

// WithClearColor sets the initial clear color.
//
// Parameters:
//   - color: linear RGBA in [0, 1]
//
// Returns:
//   - RendererBuilderOption: a function that applies the clear color to a renderer
func WithClearColor(color [4]float64) RendererBuilderOption {
	return func(r *renderer) {
		r.clearColor = color
	}
}

// WithPassObserver registers a function called after every render, compute and present pass.
//
// Parameters:
//   - observer: the observer
//
// Returns:
//   - RendererBuilderOption: a function that registers the observer on a renderer
func WithPassObserver(observer PassObserver) RendererBuilderOption {
	return func(r *renderer) {
		if observer != nil {
			r.observers = append(r.observers, observer)
		}
	}
}
