package common

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

func transform(m []float32, v [4]float32) [4]float32 {
	var out [4]float32
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			out[row] += m[col*4+row] * v[col]
		}
	}
	return out
}

func TestIdentityAndMul(t *testing.T) {
	a := make([]float32, 16)
	Identity(a)
	b := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	out := make([]float32, 16)
	Mul4(out, a, b)
	assert.Equal(t, b, out)

	Mul4(b, b, a)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}, b)
}

func TestOrthographicMapsVolume(t *testing.T) {
	m := make([]float32, 16)
	Orthographic(m, -0.5, 0.5, 0.5, -0.5, -1000, 1000)

	corner := transform(m, [4]float32{0.5, 0.5, -1000, 1})
	assert.InDelta(t, 1, corner[0], 1e-6)
	assert.InDelta(t, 1, corner[1], 1e-6)
	assert.InDelta(t, 1, corner[2], 1e-6)

	corner = transform(m, [4]float32{-0.5, -0.5, 1000, 1})
	assert.InDelta(t, -1, corner[0], 1e-6)
	assert.InDelta(t, -1, corner[1], 1e-6)
	assert.InDelta(t, 0, corner[2], 1e-6)
}

func TestPerspectiveDepthRange(t *testing.T) {
	m := make([]float32, 16)
	Perspective(m, math32.Pi/2, 1, 0.1, 100)

	near := transform(m, [4]float32{0, 0, -0.1, 1})
	far := transform(m, [4]float32{0, 0, -100, 1})
	assert.InDelta(t, 0, near[2]/near[3], 1e-5)
	assert.InDelta(t, 1, far[2]/far[3], 1e-5)
}

func TestLookAtMovesEyeToOrigin(t *testing.T) {
	m := make([]float32, 16)
	LookAt(m, Vec3{0, 0, 5.375}, Vec3{}, Vec3{0, 1, 0})

	eye := transform(m, [4]float32{0, 0, 5.375, 1})
	assert.InDelta(t, 0, eye[0], 1e-6)
	assert.InDelta(t, 0, eye[1], 1e-6)
	assert.InDelta(t, 0, eye[2], 1e-6)

	target := transform(m, [4]float32{0, 0, 0, 1})
	assert.InDelta(t, -5.375, target[2], 1e-6)
}

func TestBuildModelMatrix(t *testing.T) {
	m := make([]float32, 16)
	BuildModelMatrix(m, Vec3{1, 2, 3}, Vec3{}, Vec3{2, 2, 2})
	p := transform(m, [4]float32{1, 1, 1, 1})
	assert.Equal(t, [4]float32{3, 4, 5, 1}, p)

	// -pi/2 about X lays a plane facing +Z onto the XZ ground plane
	BuildModelMatrix(m, Vec3{}, Vec3{X: -math32.Pi / 2}, Vec3{1, 1, 1})
	p = transform(m, [4]float32{0, 1, 0, 1})
	assert.InDelta(t, 0, p[1], 1e-6)
	assert.InDelta(t, -1, p[2], 1e-6)
}

func TestScalarHelpers(t *testing.T) {
	assert.Equal(t, float32(5), Lerp(0, 10, 0.5))
	assert.Equal(t, float32(1), Clamp(3, -1, 1))
	assert.Equal(t, float32(-1), Clamp(-3, -1, 1))
}

func TestVec2(t *testing.T) {
	a := Vec2{3, 4}
	assert.Equal(t, float32(5), a.Length())
	assert.Equal(t, float32(5), a.Distance(Vec2{}))
	assert.Equal(t, Vec2{1.5, 2}, Vec2{}.Lerp(a, 0.5))
	assert.Equal(t, [2]float32{3, 4}, a.Array())
}
