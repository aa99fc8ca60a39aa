package gpgpu

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-valley/common"
	"github.com/Carmen-Shannon/oxy-valley/engine/clock"
	"github.com/Carmen-Shannon/oxy-valley/engine/events"
	"github.com/Carmen-Shannon/oxy-valley/engine/geometry"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-valley/engine/texture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCompute = `@compute @workgroup_size(8, 8) fn cs_main() {}`

func newHeadless(t *testing.T) renderer.Renderer {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeHeadless, nil)
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

func newComputeShader(t *testing.T) shader.Shader {
	t.Helper()
	cs, err := shader.NewShader("particles", shader.ShaderTypeCompute, testCompute)
	require.NoError(t, err)
	return cs
}

func pointGeometry(t *testing.T, n int) geometry.Geometry {
	t.Helper()
	geo := geometry.NewGeometry("points")
	data := make([]float32, n*3)
	for i := range data {
		data[i] = float32(i)
	}
	require.NoError(t, geo.SetAttribute(geometry.AttributePosition, geometry.Attribute{Data: data, ItemSize: 3}))
	return geo
}

func floatsOf(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24)
	}
	return out
}

func TestSimulationSize(t *testing.T) {
	r := newHeadless(t)
	tests := []struct {
		particles int
		size      int
	}{
		{particles: 1, size: 1},
		{particles: 4, size: 2},
		{particles: 5, size: 3},
		{particles: 10000, size: 100},
		{particles: 10001, size: 101},
	}
	for _, tt := range tests {
		sim, err := NewSimulation(r, pointGeometry(t, tt.particles), newComputeShader(t), WithDebugPlane(false))
		require.NoError(t, err)
		assert.Equal(t, tt.particles, sim.Count())
		assert.Equal(t, tt.size, sim.Size())
		assert.Equal(t, tt.size, sim.CurrentTexture().Width())
		sim.Release()
	}
}

func TestSimulationBaseTexture(t *testing.T) {
	r := newHeadless(t)
	sim, err := NewSimulation(r, pointGeometry(t, 3), newComputeShader(t), WithSeed(7))
	require.NoError(t, err)

	data := floatsOf(sim.BaseTexture().Data())
	require.Len(t, data, 2*2*4)
	for i := range 3 {
		assert.Equal(t, []float32{float32(i * 3), float32(i*3 + 1), float32(i*3 + 2)}, data[i*4:i*4+3])
		assert.GreaterOrEqual(t, data[i*4+3], float32(0))
		assert.Less(t, data[i*4+3], float32(1))
	}
	assert.Equal(t, []float32{0, 0, 0, 0}, data[12:16])

	again, err := NewSimulation(r, pointGeometry(t, 3), newComputeShader(t), WithSeed(7))
	require.NoError(t, err)
	assert.Equal(t, data, floatsOf(again.BaseTexture().Data()))
}

func TestSimulationRejectsEmptyGeometry(t *testing.T) {
	r := newHeadless(t)

	_, err := NewSimulation(r, geometry.NewGeometry("empty"), newComputeShader(t))
	assert.ErrorIs(t, err, ErrMissingPosition)

	_, err = NewSimulation(r, pointGeometry(t, 0), newComputeShader(t))
	assert.ErrorIs(t, err, ErrNoParticles)
}

func TestComputeSwapsCurrentTexture(t *testing.T) {
	r := newHeadless(t)
	sim, err := NewSimulation(r, pointGeometry(t, 4), newComputeShader(t))
	require.NoError(t, err)

	initial := sim.CurrentTexture()
	frame := clock.FrameTime{Elapsed: time.Second, Delta: 16 * time.Millisecond}
	require.NoError(t, sim.Update(frame, common.Vec2{X: 0.5, Y: -0.5}, 0.25))

	current := sim.CurrentTexture()
	assert.NotEqual(t, initial.ID(), current.ID())

	m := sim.Variable().Material()
	got, _ := m.Uniform(VariableParticles)
	assert.Equal(t, initial.ID(), got.(interface{ ID() uint64 }).ID())
	mouse, _ := m.Uniform("uMouse")
	assert.Equal(t, [2]float32{0.5, -0.5}, mouse)
	elapsed, _ := m.Uniform("uTime")
	assert.Equal(t, float32(1), elapsed)

	shown, _ := sim.DebugObject().Material().Uniform("uTexture")
	assert.Equal(t, current.ID(), shown.(interface{ ID() uint64 }).ID())

	require.NoError(t, sim.Update(frame, common.Vec2{}, 0))
	assert.Equal(t, initial.ID(), sim.CurrentTexture().ID())
	assert.Equal(t, uint64(2), r.Info().ComputePasses)
}

func TestDebugObjectIsHidden(t *testing.T) {
	r := newHeadless(t)
	sim, err := NewSimulation(r, pointGeometry(t, 4), newComputeShader(t))
	require.NoError(t, err)
	require.NotNil(t, sim.DebugObject())
	assert.False(t, sim.DebugObject().Enabled())
}

func TestAttachRunsOnTick(t *testing.T) {
	r := newHeadless(t)
	sim, err := NewSimulation(r, pointGeometry(t, 4), newComputeShader(t), WithDebugPlane(false))
	require.NoError(t, err)

	bus := events.NewEventBus()
	now := time.Unix(0, 0)
	c := clock.NewClock(bus, clock.WithTimeSource(func() time.Time {
		now = now.Add(10 * time.Millisecond)
		return now
	}))
	require.NoError(t, sim.Attach(bus, c, nil))

	sim.SetCoefficients(Coefficients{FlowFieldInfluence: 1, FlowFieldStrength: 2, FlowFieldFrequency: 3})
	c.Step()
	c.Step()

	assert.Equal(t, uint64(2), r.Info().ComputePasses)
	strength, _ := sim.Variable().Material().Uniform("uFlowFieldStrength")
	assert.Equal(t, float32(2), strength)
	mouse, _ := sim.Variable().Material().Uniform("uMouse")
	assert.Equal(t, [2]float32{-10, 10}, mouse)
}

func TestComputationRendererLifecycle(t *testing.T) {
	r := newHeadless(t)
	c := NewComputationRenderer(3, r)
	assert.Len(t, c.CreateTexture(), 36)

	assert.ErrorIs(t, c.Compute(), ErrNotInitialized)

	_, err := c.AddVariable("bad", newComputeShader(t), make([]float32, 4))
	assert.Error(t, err)

	v, err := c.AddVariable("state", newComputeShader(t), nil)
	require.NoError(t, err)
	other := NewComputationRenderer(3, r)
	foreign, err := other.AddVariable("foreign", newComputeShader(t), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, c.SetVariableDependencies(v, foreign), ErrUnknownVariable)
	require.NoError(t, c.SetVariableDependencies(v, v))

	require.NoError(t, c.Init())
	assert.ErrorIs(t, c.Init(), ErrInitialized)
	_, err = c.AddVariable("late", newComputeShader(t), nil)
	assert.ErrorIs(t, err, ErrInitialized)

	alternate := c.AlternateTexture(v)
	require.NoError(t, c.Compute())
	assert.Equal(t, alternate.ID(), c.CurrentTexture(v).ID())
	assert.Equal(t, uint64(1), c.Passes())
	assert.Nil(t, c.CurrentTexture(foreign))

	c.Release()
	assert.ErrorIs(t, c.Compute(), ErrNotInitialized)
}

// recordingRenderer records every texture it creates and fails creation once limit is reached.
type recordingRenderer struct {
	renderer.Renderer
	textures []texture.Texture
	limit    int
}

var errTextureLimit = errors.New("texture limit reached")

func (r *recordingRenderer) NewTexture(desc texture.Descriptor, data []byte) (texture.Texture, error) {
	if r.limit > 0 && len(r.textures) >= r.limit {
		return nil, errTextureLimit
	}
	tex, err := r.Renderer.NewTexture(desc, data)
	if err == nil {
		r.textures = append(r.textures, tex)
	}
	return tex, err
}

func TestSimulationFailureReleasesTextures(t *testing.T) {
	vertexOnly, err := shader.NewShader("vs", shader.ShaderTypeVertex, `@vertex fn vs_main() -> @builtin(position) vec4<f32> { return vec4<f32>(); }`)
	require.NoError(t, err)

	tests := []struct {
		name    string
		compute shader.Shader
		limit   int
		want    error
	}{
		{name: "variable rejected", compute: vertexOnly},
		{name: "init fails after one target", compute: newComputeShader(t), limit: 2, want: errTextureLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recordingRenderer{Renderer: newHeadless(t), limit: tt.limit}
			_, err := NewSimulation(r, pointGeometry(t, 4), tt.compute, WithDebugPlane(false))
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
			require.NotEmpty(t, r.textures)
			for _, tex := range r.textures {
				assert.True(t, tex.Released(), "texture %q leaked", tex.Label())
			}
		})
	}
}
