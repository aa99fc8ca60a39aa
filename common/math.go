package common

import (
	"unsafe"

	"github.com/chewxy/math32"
)

// Identity resets a 4x4 matrix (flat slice) to the identity matrix.
// The matrix is stored in column-major order.
//
// Parameters:
//   - m: destination slice (must be at least 16 elements)
func Identity(m []float32) {
	for i := range m {
		m[i] = 0
	}
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
}

// SliceToBytes reinterprets a slice as raw bytes for GPU uploads.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any fixed-size element type
//
// Returns:
//   - []byte: byte view of the input, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), int(unsafe.Sizeof(zero))*len(data))
}

// Mul4 multiplies two column-major 4x4 matrices: out = a * b.
// out may alias a or b.
func Mul4(out, a, b []float32) {
	var buf [16]float32
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += a[k*4+row] * b[col*4+k]
			}
			buf[col*4+row] = sum
		}
	}
	copy(out, buf[:])
}

// Perspective writes a perspective projection for WebGPU clip space (depth in [0, 1]).
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near plane distance (must be > 0)
//   - far: far plane distance (must be > near)
func Perspective(out []float32, fovY, aspect, near, far float32) {
	f := 1 / math32.Tan(fovY/2)
	Identity(out)

	out[0] = f / aspect
	out[5] = f
	out[10] = far / (near - far)
	out[11] = -1
	out[14] = (near * far) / (near - far)
	out[15] = 0
}

// Orthographic writes an orthographic projection for WebGPU clip space (depth in [0, 1]).
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - left, right, top, bottom: the view volume's side planes
//   - near, far: the view volume's depth planes
func Orthographic(out []float32, left, right, top, bottom, near, far float32) {
	Identity(out)

	out[0] = 2 / (right - left)
	out[5] = 2 / (top - bottom)
	out[10] = -1 / (far - near)
	out[12] = -(right + left) / (right - left)
	out[13] = -(top + bottom) / (top - bottom)
	out[14] = -near / (far - near)
}

// BuildModelMatrix composes translation, Euler rotation and scale into a column-major
// model matrix. The rotation is R = Rx * Ry * Rz, the "XYZ" Euler order.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - pos: translation
//   - rot: rotation angles in radians about X, Y and Z
//   - scale: scale factors
func BuildModelMatrix(out []float32, pos, rot, scale Vec3) {
	cx, sx := math32.Cos(rot.X), math32.Sin(rot.X)
	cy, sy := math32.Cos(rot.Y), math32.Sin(rot.Y)
	cz, sz := math32.Cos(rot.Z), math32.Sin(rot.Z)

	out[0] = cy * cz * scale.X
	out[1] = (cx*sz + sx*sy*cz) * scale.X
	out[2] = (sx*sz - cx*sy*cz) * scale.X
	out[3] = 0

	out[4] = -cy * sz * scale.Y
	out[5] = (cx*cz - sx*sy*sz) * scale.Y
	out[6] = (sx*cz + cx*sy*sz) * scale.Y
	out[7] = 0

	out[8] = sy * scale.Z
	out[9] = -sx * cy * scale.Z
	out[10] = cx * cy * scale.Z
	out[11] = 0

	out[12] = pos.X
	out[13] = pos.Y
	out[14] = pos.Z
	out[15] = 1
}

// LookAt writes a view matrix for a camera at eye looking at center.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - eye: camera position
//   - center: point the camera looks at
//   - up: up direction, typically (0, 1, 0)
func LookAt(out []float32, eye, center, up Vec3) {
	z := eye.Sub(center).Normalize()
	x := up.Cross(z).Normalize()
	y := z.Cross(x)

	out[0], out[4], out[8], out[12] = x.X, x.Y, x.Z, -x.Dot(eye)
	out[1], out[5], out[9], out[13] = y.X, y.Y, y.Z, -y.Dot(eye)
	out[2], out[6], out[10], out[14] = z.X, z.Y, z.Z, -z.Dot(eye)
	out[3], out[7], out[11], out[15] = 0, 0, 0, 1
}

// Lerp linearly interpolates from a to b by t.
func Lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(hi, v))
}
