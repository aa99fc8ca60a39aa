// Package viewport tracks the drawing surface's logical size and pixel ratio and
// publishes a resize event whenever they change.
package viewport

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-valley/engine/events"
	"github.com/Carmen-Shannon/oxy-valley/engine/logger"
	"github.com/chewxy/math32"
)

// TopicResize is published after every surface resize notification.
const TopicResize events.Topic = "resize"

// DefaultMaxPixelRatio caps the device pixel ratio used for drawing buffers. No option raises it.
const DefaultMaxPixelRatio float32 = 2

// Surface is the display surface a ViewportMonitor samples.
type Surface interface {
	// Width returns the surface's logical width.
	Width() int
	// Height returns the surface's logical height.
	Height() int
	// PixelRatio returns the device pixel ratio (physical pixels per logical pixel).
	PixelRatio() float32
	// SetResizeCallback registers fn to be called on every native resize.
	SetResizeCallback(fn func(width, height int))
}

// State is a viewport snapshot, passed as the argument of TopicResize.
type State struct {
	Width      int
	Height     int
	PixelRatio float32
	Aspect     float32
}

// DrawingBufferSize returns the physical size of a buffer covering the viewport.
func (s State) DrawingBufferSize() (int, int) {
	return int(math32.Round(float32(s.Width) * s.PixelRatio)), int(math32.Round(float32(s.Height) * s.PixelRatio))
}

type viewportMonitor struct {
	mu *sync.Mutex

	bus     events.EventBus
	surface Surface

	maxPixelRatio float32
	initial       State
	state         State
}

// ViewportMonitor tracks a surface's size and pixel ratio.
type ViewportMonitor interface {
	// State returns the current viewport snapshot.
	//
	// Returns:
	//   - State: width, height, clamped pixel ratio and aspect ratio
	State() State

	// Width returns the logical width.
	Width() int

	// Height returns the logical height.
	Height() int

	// PixelRatio returns the device pixel ratio clamped to the configured maximum.
	PixelRatio() float32

	// AspectRatio returns width / height. A zero height keeps the last valid ratio.
	AspectRatio() float32

	// DrawingBufferSize returns the logical size scaled by the pixel ratio.
	//
	// Returns:
	//   - int: the physical width
	//   - int: the physical height
	DrawingBufferSize() (int, int)

	// Resize replaces the tracked state and publishes TopicResize. Surface notifications
	// call it with freshly sampled values; it is exported so hosts without a Surface can inject sizes.
	//
	// Parameters:
	//   - width: the logical width
	//   - height: the logical height
	//   - pixelRatio: the device pixel ratio before clamping
	Resize(width, height int, pixelRatio float32)
}

var _ ViewportMonitor = &viewportMonitor{}

// NewViewportMonitor samples the surface and subscribes to its resize notification.
// Every notification resamples the surface and publishes TopicResize, without debouncing.
//
// Parameters:
//   - bus: the event bus resize is published on
//   - surface: the surface to sample, may be nil when sizes are injected with Resize
//   - options: functional options applied in order
//
// Returns:
//   - ViewportMonitor: the new monitor
func NewViewportMonitor(bus events.EventBus, surface Surface, options ...ViewportMonitorBuilderOption) ViewportMonitor {
	v := &viewportMonitor{
		mu:            &sync.Mutex{},
		bus:           bus,
		surface:       surface,
		maxPixelRatio: DefaultMaxPixelRatio,
		initial:       State{Width: 1, Height: 1, PixelRatio: 1},
		state:         State{Aspect: 1},
	}
	for _, opt := range options {
		opt(v)
	}

	v.apply(v.initial.Width, v.initial.Height, v.initial.PixelRatio)
	if surface != nil {
		v.apply(surface.Width(), surface.Height(), surface.PixelRatio())
		surface.SetResizeCallback(func(width, height int) {
			v.Resize(width, height, surface.PixelRatio())
		})
	}
	return v
}

func (v *viewportMonitor) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *viewportMonitor) Width() int {
	return v.State().Width
}

func (v *viewportMonitor) Height() int {
	return v.State().Height
}

func (v *viewportMonitor) PixelRatio() float32 {
	return v.State().PixelRatio
}

func (v *viewportMonitor) AspectRatio() float32 {
	return v.State().Aspect
}

func (v *viewportMonitor) DrawingBufferSize() (int, int) {
	return v.State().DrawingBufferSize()
}

func (v *viewportMonitor) Resize(width, height int, pixelRatio float32) {
	state := v.apply(width, height, pixelRatio)
	logger.Logger().Debug("viewport resized", "width", state.Width, "height", state.Height, "pixel_ratio", state.PixelRatio)
	if v.bus != nil {
		v.bus.TriggerAll(TopicResize, state)
	}
}

func (v *viewportMonitor) apply(width, height int, pixelRatio float32) State {
	v.mu.Lock()
	defer v.mu.Unlock()

	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	if pixelRatio <= 0 || math32.IsNaN(pixelRatio) {
		pixelRatio = 1
	}
	v.state.Width = width
	v.state.Height = height
	v.state.PixelRatio = math32.Min(pixelRatio, v.maxPixelRatio)
	if height > 0 {
		v.state.Aspect = float32(width) / float32(height)
	}
	return v.state
}
