package pointer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-valley/common"
	"github.com/Carmen-Shannon/oxy-valley/engine/clock"
	"github.com/Carmen-Shannon/oxy-valley/engine/events"
	"github.com/Carmen-Shannon/oxy-valley/engine/viewport"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	fn func(x, y float32)
}

func (f *fakeSource) SetMouseMoveCallback(fn func(x, y float32)) { f.fn = fn }

func newTracker(options ...PointerTrackerBuilderOption) (events.EventBus, PointerTracker) {
	bus := events.NewEventBus()
	vp := viewport.NewViewportMonitor(bus, nil, viewport.WithInitialSize(800, 600, 1))
	return bus, NewPointerTracker(bus, vp, options...)
}

func TestHandleMoveNormalizes(t *testing.T) {
	_, p := newTracker()
	tests := []struct {
		x, y     float32
		expected common.Vec2
	}{
		{0, 0, common.Vec2{X: -1, Y: 1}},
		{800, 600, common.Vec2{X: 1, Y: -1}},
		{400, 300, common.Vec2{X: 0, Y: 0}},
		{200, 450, common.Vec2{X: -0.5, Y: -0.5}},
	}
	for _, tt := range tests {
		p.HandleMove(tt.x, tt.y)
		assert.Equal(t, tt.expected, p.Coords())
	}
}

func TestTouchSingleContactOnly(t *testing.T) {
	_, p := newTracker()
	p.HandleTouchStart([]Touch{{X: 800, Y: 0}})
	assert.Equal(t, common.Vec2{X: 1, Y: 1}, p.Coords())

	p.HandleTouchMove([]Touch{{X: 0, Y: 0}, {X: 400, Y: 300}})
	assert.Equal(t, common.Vec2{X: 1, Y: 1}, p.Coords())

	p.HandleTouchMove(nil)
	assert.Equal(t, common.Vec2{X: 1, Y: 1}, p.Coords())

	p.HandleTouchMove([]Touch{{X: 400, Y: 300}})
	assert.Equal(t, common.Vec2{}, p.Coords())
}

func TestBind(t *testing.T) {
	_, p := newTracker()
	src := &fakeSource{}
	p.Bind(src)
	require.NotNil(t, src.fn)
	src.fn(800, 600)
	assert.Equal(t, common.Vec2{X: 1, Y: -1}, p.Coords())
}

func TestUpdateOnTick(t *testing.T) {
	bus, p := newTracker()
	p.HandleMove(800, 300)

	bus.TriggerAll(clock.TopicTick)
	assert.Equal(t, float32(1), p.Velocity())
	assert.InDelta(t, 0.0125, p.TargetVelocity(), 1e-7)
	assert.InDelta(t, 0.0125, p.Trail().X, 1e-7)
	assert.Equal(t, p.Coords(), p.Previous())

	bus.TriggerAll(clock.TopicTick)
	assert.Zero(t, p.Velocity())
}

func TestTrailConvergesWithoutOvershoot(t *testing.T) {
	for _, k := range []float32{0.0125, 0.1, 0.5, 0.9} {
		_, p := newTracker(WithSmoothing(k))
		p.HandleMove(800, 0)
		target := p.Coords()

		lastDist := target.Distance(p.Trail())
		for i := 0; i < 200; i++ {
			p.Update()
			trail := p.Trail()
			require.LessOrEqual(t, trail.X, target.X, "k=%v", k)
			require.LessOrEqual(t, trail.Y, target.Y, "k=%v", k)
			dist := target.Distance(trail)
			require.LessOrEqual(t, dist, lastDist, "k=%v", k)
			lastDist = dist
		}
		expected := target.X * (1 - math32.Pow(1-k, 200))
		assert.InDelta(t, expected, p.Trail().X, 1e-4, "k=%v", k)
	}
}

func TestTargetVelocitySettlesWithoutMovement(t *testing.T) {
	_, p := newTracker()
	for i := 0; i < 100; i++ {
		p.Update()
	}
	assert.InDelta(t, 0, p.TargetVelocity(), 1e-6)
}

func TestWithSmoothingRejectsOutOfRange(t *testing.T) {
	for _, k := range []float32{0, 1, -0.5, 2} {
		_, p := newTracker(WithSmoothing(k))
		assert.Equal(t, DefaultSmoothing, p.Smoothing())
	}
	_, p := newTracker(WithSmoothing(0.25))
	assert.Equal(t, float32(0.25), p.Smoothing())
}
