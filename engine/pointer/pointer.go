// Package pointer converts raw pointer and touch positions into normalized device
// coordinates and maintains a smoothed trail and speed for effects that follow the cursor.
package pointer

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-valley/common"
	"github.com/Carmen-Shannon/oxy-valley/engine/clock"
	"github.com/Carmen-Shannon/oxy-valley/engine/events"
	"github.com/Carmen-Shannon/oxy-valley/engine/viewport"
)

// DefaultSmoothing is the default easing factor of the trail and target velocity.
const DefaultSmoothing float32 = 0.0125

// Namespace is the event namespace the tracker subscribes under.
const Namespace events.Namespace = "pointer"

// Touch is one active contact point in surface pixel coordinates.
type Touch struct {
	X, Y float32
}

// MoveSource delivers raw cursor positions in surface pixel coordinates.
type MoveSource interface {
	SetMouseMoveCallback(fn func(x, y float32))
}

type pointerTracker struct {
	mu *sync.Mutex

	viewport viewport.ViewportMonitor

	smoothing float32

	coords         common.Vec2
	previous       common.Vec2
	trail          common.Vec2
	velocity       float32
	targetVelocity float32
}

// PointerTracker tracks the cursor in normalized device coordinates.
type PointerTracker interface {
	// HandleMove records a cursor position given in surface pixels.
	//
	// Parameters:
	//   - x: horizontal position, 0 at the left edge
	//   - y: vertical position, 0 at the top edge
	HandleMove(x, y float32)

	// HandleTouchStart records the position of a single new touch. Multi-touch is ignored.
	//
	// Parameters:
	//   - touches: every active contact point
	HandleTouchStart(touches []Touch)

	// HandleTouchMove records the position of a single moving touch. Multi-touch is ignored.
	//
	// Parameters:
	//   - touches: every active contact point
	HandleTouchMove(touches []Touch)

	// Bind forwards a source's cursor moves to HandleMove.
	//
	// Parameters:
	//   - source: the raw cursor source, typically the window
	Bind(source MoveSource)

	// Update advances the smoothing by one frame. It is subscribed to the clock's tick.
	Update()

	// Coords returns the latest raw position in normalized device coordinates.
	Coords() common.Vec2

	// Previous returns the raw position captured at the end of the last Update.
	Previous() common.Vec2

	// Trail returns the smoothed position that lags Coords.
	Trail() common.Vec2

	// Velocity returns the distance the raw position moved during the last frame.
	Velocity() float32

	// TargetVelocity returns the smoothed velocity.
	TargetVelocity() float32

	// Smoothing returns the easing factor.
	Smoothing() float32
}

var _ PointerTracker = &pointerTracker{}

// NewPointerTracker creates a tracker that converts positions with the viewport's
// current size and updates on every tick of the bus.
//
// Parameters:
//   - bus: the bus whose tick drives Update, may be nil to drive Update manually
//   - vp: supplies the dimensions used for normalization
//   - options: functional options applied in order
//
// Returns:
//   - PointerTracker: the new tracker
func NewPointerTracker(bus events.EventBus, vp viewport.ViewportMonitor, options ...PointerTrackerBuilderOption) PointerTracker {
	p := &pointerTracker{
		mu:        &sync.Mutex{},
		viewport:  vp,
		smoothing: DefaultSmoothing,
	}
	for _, opt := range options {
		opt(p)
	}

	if bus != nil {
		_ = bus.Subscribe(events.Key{Topic: clock.TopicTick, Namespace: Namespace}, func(args ...any) any {
			p.Update()
			return nil
		})
	}
	return p
}

func (p *pointerTracker) HandleMove(x, y float32) {
	width, height := p.viewport.Width(), p.viewport.Height()
	if width <= 0 || height <= 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.coords = common.Vec2{
		X: (x/float32(width))*2 - 1,
		Y: -(y/float32(height))*2 + 1,
	}
}

func (p *pointerTracker) HandleTouchStart(touches []Touch) {
	if len(touches) != 1 {
		return
	}
	p.HandleMove(touches[0].X, touches[0].Y)
}

func (p *pointerTracker) HandleTouchMove(touches []Touch) {
	if len(touches) != 1 {
		return
	}
	p.HandleMove(touches[0].X, touches[0].Y)
}

func (p *pointerTracker) Bind(source MoveSource) {
	source.SetMouseMoveCallback(p.HandleMove)
}

func (p *pointerTracker) Update() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.velocity = p.previous.Distance(p.coords)
	p.targetVelocity -= p.smoothing * (p.targetVelocity - p.velocity)
	p.trail = p.trail.Lerp(p.coords, p.smoothing)
	p.previous = p.coords
}

func (p *pointerTracker) Coords() common.Vec2 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.coords
}

func (p *pointerTracker) Previous() common.Vec2 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.previous
}

func (p *pointerTracker) Trail() common.Vec2 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.trail
}

func (p *pointerTracker) Velocity() float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.velocity
}

func (p *pointerTracker) TargetVelocity() float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.targetVelocity
}

func (p *pointerTracker) Smoothing() float32 {
	return p.smoothing
}
