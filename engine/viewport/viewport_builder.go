package viewport

// ViewportMonitorBuilderOption is a functional option applied to a ViewportMonitor during construction via NewViewportMonitor.
type ViewportMonitorBuilderOption func(*viewportMonitor)

// WithMaxPixelRatio lowers the pixel ratio cap. Non-positive values are ignored and the
// cap never rises above DefaultMaxPixelRatio.
//
// Parameters:
//   - ratio: the largest pixel ratio the monitor reports
//
// Returns:
//   - ViewportMonitorBuilderOption: a function that applies the cap to a monitor
func WithMaxPixelRatio(ratio float32) ViewportMonitorBuilderOption {
	return func(v *viewportMonitor) {
		if ratio > 0 {
			v.maxPixelRatio = min(ratio, DefaultMaxPixelRatio)
		}
	}
}

// WithInitialSize seeds the state used when no Surface is attached.
//
// Parameters:
//   - width: the logical width
//   - height: the logical height
//   - pixelRatio: the device pixel ratio before clamping
//
// Returns:
//   - ViewportMonitorBuilderOption: a function that seeds the monitor's state
func WithInitialSize(width, height int, pixelRatio float32) ViewportMonitorBuilderOption {
	return func(v *viewportMonitor) {
		v.initial = State{Width: width, Height: height, PixelRatio: pixelRatio}
	}
}
