package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-valley/engine/clock"
	"github.com/Carmen-Shannon/oxy-valley/engine/events"
	"github.com/Carmen-Shannon/oxy-valley/engine/profiler"
	"github.com/Carmen-Shannon/oxy-valley/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables per-frame profiling.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithProfiler replaces the default profiler, e.g. with one labelled by session.
func WithProfiler(p *profiler.Profiler) EngineBuilderOption {
	return func(e *engine) {
		e.profiler = p
	}
}

// WithTickRate sets the headless frame rate in frames per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target frames per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps int) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60
		}
		e.tickRate = fps
	}
}

// WithMaxFrames stops Run after n frames. Zero means unbounded.
func WithMaxFrames(n uint64) EngineBuilderOption {
	return func(e *engine) {
		e.maxFrames = n
	}
}

// WithScheduler replaces the headless ticker. Tests pass clock.Immediate{}.
func WithScheduler(s clock.Scheduler) EngineBuilderOption {
	return func(e *engine) {
		e.scheduler = s
	}
}

// WithWindow attaches a window. Run then pumps its message loop instead of a ticker.
//
// Parameters:
//   - w: a spawned Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithBus sets the event bus shared with the rest of the application.
func WithBus(bus events.EventBus) EngineBuilderOption {
	return func(e *engine) {
		e.bus = bus
	}
}

// WithClock sets the frame clock. It should publish on the engine's bus.
func WithClock(c clock.Clock) EngineBuilderOption {
	return func(e *engine) {
		e.clock = c
	}
}

// WithRenderFrameLimit sets an optional frame rate cap for the windowed loop.
// Pass 0 to uncap it (default).
//
// Parameters:
//   - fps: maximum frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
	}
}
