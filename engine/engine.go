// Package engine drives the frame loop: it pumps the window's message loop or a
// headless ticker and steps the clock once per iteration, so every frame runs its tick
// and render subscribers on a single goroutine.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-valley/engine/clock"
	"github.com/Carmen-Shannon/oxy-valley/engine/events"
	"github.com/Carmen-Shannon/oxy-valley/engine/logger"
	"github.com/Carmen-Shannon/oxy-valley/engine/profiler"
	"github.com/Carmen-Shannon/oxy-valley/engine/window"
)

// ProfilerNamespace is the namespace the profiler is subscribed under on the render topic.
const ProfilerNamespace events.Namespace = "profiler"

// engine implements the Engine interface.
type engine struct {
	mu *sync.Mutex

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window window.Window
	bus    events.EventBus
	clock  clock.Clock

	profiler         *profiler.Profiler
	profilingEnabled bool

	tickRate         int
	maxFrames        uint64
	renderFrameLimit time.Duration // minimum frame duration in windowed mode; 0 = uncapped
	scheduler        clock.Scheduler
}

// Engine is the main entry point for the engine.
// It owns the event bus and the clock and paces frames from the window or a ticker.
type Engine interface {
	// Window returns the underlying window, or nil in headless mode.
	Window() window.Window

	// Bus returns the event bus every subsystem subscribes to.
	Bus() events.EventBus

	// Clock returns the frame clock.
	Clock() clock.Clock

	// Profiler returns the frame profiler.
	Profiler() *profiler.Profiler

	// EnableProfiler enables per-frame profiling.
	EnableProfiler()

	// DisableProfiler disables per-frame profiling.
	DisableProfiler()

	// SetTickRate sets the headless frame rate in frames per second.
	// Takes effect on the next Run.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps int)

	// SetMaxFrames bounds the number of frames Run steps. Zero means unbounded.
	SetMaxFrames(n uint64)

	// SetRenderFrameLimit sets an optional frame rate cap for the windowed loop.
	// Pass 0 to uncap it (default).
	//
	// Parameters:
	//   - fps: maximum frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run steps frames until the window closes, ctx is cancelled, Quit is called or the
	// frame budget is spent. It must be called from the main goroutine when a window
	// is attached.
	//
	// Parameters:
	//   - ctx: cancels the loop
	//
	// Returns:
	//   - error: nil on a normal stop, or the context error
	Run(ctx context.Context) error

	// Quit signals the loop to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()

	// Done is closed once Quit has been called.
	Done() <-chan struct{}
}

var _ Engine = &engine{}

// NewEngine creates a new Engine instance with the provided options.
// Without WithBus or WithClock a fresh bus and a wall-clock Clock are created.
//
// Parameters:
//   - options: functional options for engine configuration (window, profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		mu:          &sync.Mutex{},
		quitChannel: make(chan struct{}),
		tickRate:    60,
	}
	for _, opt := range options {
		opt(e)
	}

	if e.bus == nil {
		e.bus = events.NewEventBus(events.WithLabel("engine"))
	}
	if e.clock == nil {
		e.clock = clock.NewClock(e.bus)
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler()
	}

	e.bus.On(string(clock.TopicRender)+"."+string(ProfilerNamespace), func(...any) any {
		e.mu.Lock()
		enabled := e.profilingEnabled
		e.mu.Unlock()
		if enabled {
			e.profiler.Tick()
		}
		return nil
	})
	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Bus() events.EventBus {
	return e.bus
}

func (e *engine) Clock() clock.Clock {
	return e.clock
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	go func() {
		select {
		case <-e.quitChannel:
			cancel()
		case <-ctx.Done():
		}
	}()

	e.mu.Lock()
	maxFrames := e.maxFrames
	tickRate := e.tickRate
	scheduler := e.scheduler
	e.mu.Unlock()

	if e.window == nil {
		if scheduler == nil {
			scheduler = clock.NewTickerScheduler(tickRate)
		}
		if maxFrames > 0 {
			scheduler = clock.MaxFrames(maxFrames, scheduler)
		}
		logger.Logger().Info("engine running headless", "fps", tickRate, "max_frames", maxFrames)
		err := e.clock.Run(ctx, scheduler)
		e.Quit()
		if err != nil && parent.Err() == nil && ctx.Err() != nil {
			// stopped by Quit
			return nil
		}
		return err
	}

	logger.Logger().Info("engine running windowed", "max_frames", maxFrames)
	var frames uint64
	e.window.SetUpdateCallback(func() {
		start := time.Now()
		e.clock.Step()
		frames++
		if maxFrames > 0 && frames >= maxFrames {
			e.Quit()
		}

		e.mu.Lock()
		limit := e.renderFrameLimit
		e.mu.Unlock()
		if limit > 0 {
			if remaining := limit - time.Since(start); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	})
	e.window.ProcessMessages(func() bool {
		return ctx.Err() != nil
	})
	e.Quit()
	return parent.Err()
}

// Quit signals the loop to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

func (e *engine) Done() <-chan struct{} {
	return e.quitChannel
}

func (e *engine) EnableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = false
}

func (e *engine) SetTickRate(fps int) {
	if fps <= 0 {
		fps = 60
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickRate = fps
}

func (e *engine) SetMaxFrames(n uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.maxFrames = n
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}
