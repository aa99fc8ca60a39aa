package camera

import "github.com/Carmen-Shannon/oxy-valley/common"

// CameraBuilderOption is a functional option applied to a camera during construction via NewCamera.
type CameraBuilderOption func(*cameraImpl)

// WithProjection sets the projection type.
//
// Parameters:
//   - projection: perspective or orthographic
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's projection type
func WithProjection(projection ProjectionType) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.projection = projection
	}
}

// WithPosition sets the camera's eye position.
//
// Parameters:
//   - position: the eye position in world space
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's position
func WithPosition(position common.Vec3) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.position = position
	}
}

// WithTarget sets the point the camera looks at.
//
// Parameters:
//   - target: the look-at point in world space
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's target
func WithTarget(target common.Vec3) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.target = target
	}
}

// WithUp sets the camera's up vector.
//
// Parameters:
//   - up: the up direction
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's up vector
func WithUp(up common.Vec3) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.up = up
	}
}

// WithFov sets the camera's field of view in radians.
//
// Parameters:
//   - fov: field of view in radians
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's field of view
func WithFov(fov float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.fov = fov
	}
}

// WithAspect sets the camera's aspect ratio (width / height).
//
// Parameters:
//   - aspect: the aspect ratio to set
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's aspect ratio
func WithAspect(aspect float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		if aspect > 0 {
			c.aspect = aspect
		}
	}
}

// WithNear sets the near clipping plane distance.
func WithNear(near float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.near = near
	}
}

// WithFar sets the far clipping plane distance.
func WithFar(far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.far = far
	}
}

// WithBounds sets the orthographic view volume bounds.
func WithBounds(bounds Bounds) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.bounds = bounds
	}
}
