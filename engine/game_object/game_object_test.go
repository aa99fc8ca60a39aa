package game_object

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-valley/engine/geometry"
	"github.com/stretchr/testify/assert"
)

func TestNewGameObjectDefaults(t *testing.T) {
	geo := geometry.NewGeometry("g")
	a := NewGameObject(geo, nil)
	b := NewGameObject(geo, nil, WithLabel("points"), WithKind(KindPoints), WithFrustumCulled(false), WithRenderOrder(3))

	assert.NotEqual(t, a.ID(), b.ID())
	assert.True(t, a.Enabled())
	assert.True(t, a.FrustumCulled())
	assert.Equal(t, KindMesh, a.Kind())

	sx, sy, sz := a.Scale()
	assert.Equal(t, [3]float32{1, 1, 1}, [3]float32{sx, sy, sz})

	assert.Equal(t, "points", b.Label())
	assert.Equal(t, KindPoints, b.Kind())
	assert.False(t, b.FrustumCulled())
	assert.Equal(t, 3, b.RenderOrder())
	assert.Equal(t, geo, b.Geometry())
}

func TestModelMatrix(t *testing.T) {
	obj := NewGameObject(nil, nil, WithPosition(1, 2, 3), WithScale(2, 2, 2))
	m := obj.ModelMatrix()
	assert.Equal(t, float32(2), m[0])
	assert.Equal(t, float32(2), m[5])
	assert.Equal(t, float32(2), m[10])
	assert.Equal(t, [3]float32{1, 2, 3}, [3]float32{m[12], m[13], m[14]})

	obj.SetPosition(0, 0, 0)
	obj.SetScale(1, 1, 1)
	m = obj.ModelMatrix()
	assert.Equal(t, [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}, m)
}

func TestSetEnabled(t *testing.T) {
	obj := NewGameObject(nil, nil, WithEnabled(false))
	assert.False(t, obj.Enabled())
	obj.SetEnabled(true)
	assert.True(t, obj.Enabled())
}
