package camera

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-valley/common"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

func TestPerspectiveCamera(t *testing.T) {
	c := NewCamera(
		WithFov(35*math32.Pi/180),
		WithAspect(16.0/9.0),
		WithNear(0.1),
		WithFar(1000),
		WithPosition(common.Vec3{Z: 5.375}),
	)
	assert.Equal(t, ProjectionPerspective, c.Projection())

	view := c.ViewMatrix()
	assert.InDelta(t, -5.375, view[14], 1e-6)

	proj := c.ProjectionMatrix()
	f := 1 / math32.Tan(35*math32.Pi/360)
	assert.InDelta(t, f/(16.0/9.0), proj[0], 1e-5)
	assert.InDelta(t, f, proj[5], 1e-5)

	c.SetAspect(1)
	assert.InDelta(t, f, c.ProjectionMatrix()[0], 1e-5)

	// invalid aspect ratios are ignored
	c.SetAspect(0)
	assert.Equal(t, float32(1), c.Aspect())
}

func TestOrthographicCamera(t *testing.T) {
	c := NewOrthographicCamera(Bounds{Left: -0.5, Right: 0.5, Top: 0.5, Bottom: -0.5}, -1000, 1000)
	assert.Equal(t, ProjectionOrthographic, c.Projection())

	proj := c.ProjectionMatrix()
	assert.InDelta(t, 2, proj[0], 1e-6)
	assert.InDelta(t, 2, proj[5], 1e-6)

	before := c.ProjectionMatrix()
	c.SetAspect(2)
	assert.Equal(t, before, c.ProjectionMatrix())

	view := c.ViewMatrix()
	assert.InDelta(t, 1, view[0], 1e-6)
	assert.InDelta(t, 1, view[10], 1e-6)
}

func TestCameraIDsUnique(t *testing.T) {
	assert.NotEqual(t, NewCamera().ID(), NewCamera().ID())
}

func TestLookAt(t *testing.T) {
	c := NewCamera(WithPosition(common.Vec3{X: 3}))
	c.LookAt(common.Vec3{})
	assert.Equal(t, common.Vec3{}, c.Target())
	view := c.ViewMatrix()
	assert.InDelta(t, -3, view[14], 1e-6)
}

func TestUpVector(t *testing.T) {
	def := NewCamera(WithPosition(common.Vec3{Z: 5}))
	tilted := NewCamera(WithPosition(common.Vec3{Z: 5}), WithUp(common.Vec3{X: 1}))
	assert.NotEqual(t, def.ViewMatrix(), tilted.ViewMatrix())
}
