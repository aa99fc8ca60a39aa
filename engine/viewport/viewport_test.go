package viewport

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-valley/engine/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSurface struct {
	width, height int
	ratio         float32
	onResize      func(width, height int)
}

func (f *fakeSurface) Width() int                          { return f.width }
func (f *fakeSurface) Height() int                         { return f.height }
func (f *fakeSurface) PixelRatio() float32                 { return f.ratio }
func (f *fakeSurface) SetResizeCallback(fn func(int, int)) { f.onResize = fn }

func (f *fakeSurface) resize(width, height int, ratio float32) {
	f.width, f.height, f.ratio = width, height, ratio
	f.onResize(width, height)
}

func TestSamplesSurface(t *testing.T) {
	surface := &fakeSurface{width: 1280, height: 720, ratio: 1.5}
	v := NewViewportMonitor(events.NewEventBus(), surface)

	assert.Equal(t, 1280, v.Width())
	assert.Equal(t, 720, v.Height())
	assert.Equal(t, float32(1.5), v.PixelRatio())
	assert.InDelta(t, 16.0/9.0, v.AspectRatio(), 1e-6)
	w, h := v.DrawingBufferSize()
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)
	require.NotNil(t, surface.onResize)
}

func TestEveryNotificationPublishesResize(t *testing.T) {
	bus := events.NewEventBus()
	surface := &fakeSurface{width: 800, height: 600, ratio: 1}
	v := NewViewportMonitor(bus, surface)

	var got []State
	bus.On("resize.test", func(args ...any) any {
		got = append(got, args[0].(State))
		return nil
	})

	surface.resize(1024, 768, 1)
	surface.resize(1024, 768, 1)
	surface.resize(640, 480, 3)

	require.Len(t, got, 3)
	assert.Equal(t, State{Width: 640, Height: 480, PixelRatio: 2, Aspect: 640.0 / 480.0}, got[2])
	assert.Equal(t, got[2], v.State())
}

func TestPixelRatioClamped(t *testing.T) {
	for _, ratio := range []float32{0.5, 1, 2, 2.5, 3, 4, 10} {
		v := NewViewportMonitor(nil, &fakeSurface{width: 10, height: 10, ratio: ratio})
		assert.LessOrEqual(t, v.PixelRatio(), float32(2))
		assert.Greater(t, v.PixelRatio(), float32(0))
	}

	v := NewViewportMonitor(nil, nil, WithMaxPixelRatio(1.25), WithInitialSize(100, 50, 3))
	assert.Equal(t, float32(1.25), v.PixelRatio())
}

func TestMaxPixelRatioNeverExceedsTwo(t *testing.T) {
	v := NewViewportMonitor(nil, nil, WithMaxPixelRatio(4), WithInitialSize(100, 50, 3))
	assert.Equal(t, float32(2), v.PixelRatio())

	v.Resize(100, 50, 8)
	assert.Equal(t, float32(2), v.PixelRatio())
	w, h := v.DrawingBufferSize()
	assert.Equal(t, 200, w)
	assert.Equal(t, 100, h)
}

func TestZeroHeightKeepsAspect(t *testing.T) {
	v := NewViewportMonitor(nil, nil, WithInitialSize(400, 200, 1))
	v.Resize(400, 0, 1)
	assert.Equal(t, float32(2), v.AspectRatio())
	assert.Equal(t, 0, v.Height())
}

func TestInvalidPixelRatioFallsBack(t *testing.T) {
	v := NewViewportMonitor(nil, nil)
	v.Resize(-5, 100, 0)
	assert.Equal(t, float32(1), v.PixelRatio())
	assert.Equal(t, 0, v.Width())
}
