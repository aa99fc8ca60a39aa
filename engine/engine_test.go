package engine

import (
	"context"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-valley/engine/clock"
	"github.com/Carmen-Shannon/oxy-valley/engine/events"
	"github.com/Carmen-Shannon/oxy-valley/engine/profiler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadlessRunStopsAfterMaxFrames(t *testing.T) {
	e := NewEngine(WithScheduler(clock.Immediate{}), WithMaxFrames(5))

	var ticks, renders int
	e.Bus().On("tick", func(...any) any {
		ticks++
		return nil
	})
	e.Bus().On("render", func(...any) any {
		assert.Equal(t, renders+1, ticks, "render runs after the tick of its frame")
		renders++
		return nil
	})

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 5, ticks)
	assert.Equal(t, 5, renders)
	assert.Equal(t, uint64(5), e.Clock().Frames())

	select {
	case <-e.Done():
	default:
		t.Fatal("engine did not quit")
	}
}

func TestQuitStopsRun(t *testing.T) {
	e := NewEngine(WithScheduler(clock.Immediate{}))
	e.Bus().On("tick", func(...any) any {
		if e.Clock().Frames() >= 2 {
			e.Quit()
		}
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
	e.Quit()
}

func TestCancelledContext(t *testing.T) {
	e := NewEngine(WithTickRate(1000))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Run(ctx), context.Canceled)
}

func TestProfilerCountsRenderedFrames(t *testing.T) {
	bus := events.NewEventBus()
	now := time.Unix(0, 0)
	p := profiler.NewProfiler(profiler.WithTimeSource(func() time.Time { return now }))
	e := NewEngine(
		WithBus(bus),
		WithClock(clock.NewClock(bus)),
		WithProfiler(p),
		WithScheduler(clock.Immediate{}),
		WithMaxFrames(3),
	)
	require.NoError(t, e.Run(context.Background()))
	assert.Zero(t, p.Stats().Frames)

	e = NewEngine(
		WithBus(events.NewEventBus()),
		WithProfiler(p),
		WithProfiling(true),
		WithScheduler(clock.Immediate{}),
		WithMaxFrames(3),
	)
	now = now.Add(2 * time.Second)
	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, uint64(1), p.Stats().Frames)
}
