// Package clock drives the frame loop: every step recomputes the frame time and
// publishes it on the event bus, first as a tick for state updates and then as a
// render for drawing.
package clock

import (
	"context"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-valley/engine/events"
	"github.com/Carmen-Shannon/oxy-valley/engine/logger"
)

const (
	// TopicTick is published once per frame for state updates.
	TopicTick events.Topic = "tick"
	// TopicRender is published once per frame after TopicTick, for drawing.
	TopicRender events.Topic = "render"
)

// State is the lifecycle stage of a Clock.
type State int

const (
	// StateCreated is a clock that has not stepped yet.
	StateCreated State = iota
	// StateRunning is a clock that has stepped at least once. A clock never leaves it.
	StateRunning
)

// String returns the state's name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

type clock struct {
	mu *sync.Mutex

	bus events.EventBus
	now func() time.Time

	frame    FrameTime
	frames   uint64
	state    State
	stepping bool
}

// Clock is the process-wide frame clock.
type Clock interface {
	// Step advances one frame: it samples the time source, updates the frame time and
	// synchronously publishes TopicTick and then TopicRender with the new FrameTime as
	// the only argument. A Step issued while a previous Step is still dispatching is
	// rejected and returns the unchanged frame time.
	//
	// Returns:
	//   - FrameTime: the frame time published this step
	Step() FrameTime

	// Run steps the clock whenever the scheduler releases the next frame, until the
	// context is cancelled or the scheduler reports it is done.
	//
	// Parameters:
	//   - ctx: cancels the loop
	//   - scheduler: paces the frames
	//
	// Returns:
	//   - error: ctx.Err() when cancelled, nil when the scheduler finished
	Run(ctx context.Context, scheduler Scheduler) error

	// Frame returns the most recent frame time.
	//
	// Returns:
	//   - FrameTime: the last published frame time, or the zero FrameTime before any step
	Frame() FrameTime

	// Frames returns the number of completed steps.
	//
	// Returns:
	//   - uint64: the step count
	Frames() uint64

	// State returns the clock's lifecycle stage.
	//
	// Returns:
	//   - State: StateCreated before the first step, StateRunning afterwards
	State() State
}

var _ Clock = &clock{}

// NewClock creates a clock bound to bus. The start time is captured by the first Step,
// so that step reports zero elapsed and zero delta.
//
// Parameters:
//   - bus: the event bus ticks are published on
//   - options: functional options applied in order
//
// Returns:
//   - Clock: the new clock
func NewClock(bus events.EventBus, options ...ClockBuilderOption) Clock {
	c := &clock{
		mu:  &sync.Mutex{},
		bus: bus,
		now: time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *clock) Step() FrameTime {
	c.mu.Lock()
	if c.stepping {
		frame := c.frame
		c.mu.Unlock()
		logger.Logger().Warn("clock step rejected", "err", events.ErrReentrantTrigger)
		return frame
	}
	c.stepping = true

	now := c.now()
	if c.state == StateCreated {
		// setup time before the first frame is not part of the run
		c.frame = FrameTime{Start: now, Previous: now, Current: now}
	}
	// a time source running backwards yields a zero delta rather than rewinding the frame
	if now.Before(c.frame.Current) {
		now = c.frame.Current
	}
	c.frame.Previous = c.frame.Current
	c.frame.Current = now
	c.frame.Delta = now.Sub(c.frame.Previous)
	c.frame.Elapsed = now.Sub(c.frame.Start)
	c.state = StateRunning
	frame := c.frame
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.stepping = false
		c.frames++
		c.mu.Unlock()
	}()

	if c.bus != nil {
		c.bus.TriggerAll(TopicTick, frame)
		c.bus.TriggerAll(TopicRender, frame)
	}
	return frame
}

func (c *clock) Run(ctx context.Context, scheduler Scheduler) error {
	defer scheduler.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !scheduler.Wait(ctx) {
			return ctx.Err()
		}
		c.Step()
	}
}

func (c *clock) Frame() FrameTime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

func (c *clock) Frames() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

func (c *clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
