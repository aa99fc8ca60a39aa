package profiler

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTime struct {
	now time.Time
}

func (f *fakeTime) Now() time.Time {
	return f.now
}

func TestTickReportsAfterInterval(t *testing.T) {
	clock := &fakeTime{now: time.Unix(100, 0)}
	p := NewProfiler(WithTimeSource(clock.Now), WithUpdateInterval(time.Second))

	for range 59 {
		clock.now = clock.now.Add(10 * time.Millisecond)
		assert.False(t, p.Tick())
	}
	clock.now = time.Unix(102, 0)
	require.True(t, p.Tick())

	stats := p.Stats()
	assert.InDelta(t, 30.0, stats.FPS, 0.001)
	assert.Equal(t, uint64(60), stats.Frames)
	assert.Greater(t, stats.SysMB, 0.0)

	assert.InDelta(t, 60.0, testutil.ToFloat64(p.framesTotal), 0)
	assert.InDelta(t, 30.0, testutil.ToFloat64(p.fps), 0.001)

	assert.False(t, p.Tick())
}

func TestSessionLabelAndHandler(t *testing.T) {
	clock := &fakeTime{now: time.Unix(0, 0)}
	p := NewProfiler(WithTimeSource(clock.Now), WithSession("abc"))
	clock.now = clock.now.Add(2 * time.Second)
	require.True(t, p.Tick())

	count, err := testutil.GatherAndCount(p.Registry(), "oxy_valley_fps", "oxy_valley_frames_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	expected := `
# HELP oxy_valley_frames_total Frames rendered since start.
# TYPE oxy_valley_frames_total counter
oxy_valley_frames_total{session="abc"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(p.Registry(), strings.NewReader(expected), "oxy_valley_frames_total"))

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `oxy_valley_fps{session="abc"} 0.5`)
}

func TestSharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewProfiler(WithRegistry(reg))
	assert.Same(t, reg, p.Registry())

	count, err := testutil.GatherAndCount(reg, "oxy_valley_frames_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
