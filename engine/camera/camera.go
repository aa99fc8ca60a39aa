package camera

import (
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-valley/common"
	"github.com/chewxy/math32"
)

// cameraCount is an atomic counter used to generate unique camera ids.
var cameraCount atomic.Uint64

// ProjectionType selects how a camera projects view space onto clip space.
type ProjectionType int

const (
	// ProjectionPerspective is a perspective projection driven by fov and aspect.
	ProjectionPerspective ProjectionType = iota
	// ProjectionOrthographic is a parallel projection driven by the view volume bounds.
	ProjectionOrthographic
)

// Bounds are the side planes of an orthographic view volume.
type Bounds struct {
	Left, Right, Top, Bottom float32
}

type cameraImpl struct {
	mu *sync.Mutex

	id         uint64
	projection ProjectionType

	position common.Vec3
	target   common.Vec3
	up       common.Vec3

	fov    float32
	aspect float32
	near   float32
	far    float32
	bounds Bounds

	viewMatrix       [16]float32
	projectionMatrix [16]float32
}

// Camera defines the interface for the camera system.
// The camera holds its projection settings and a position / target pair and keeps
// its view and projection matrices current after every setter.
type Camera interface {
	// ID returns the process-unique camera id.
	//
	// Returns:
	//   - uint64: the camera id
	ID() uint64

	// Projection returns the projection type.
	//
	// Returns:
	//   - ProjectionType: perspective or orthographic
	Projection() ProjectionType

	// Position returns the camera position.
	//
	// Returns:
	//   - common.Vec3: the eye position in world space
	Position() common.Vec3

	// Target returns the point the camera looks at.
	//
	// Returns:
	//   - common.Vec3: the look-at target in world space
	Target() common.Vec3

	// Fov returns the vertical field of view in radians.
	//
	// Returns:
	//   - float32: field of view in radians
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Near returns the near clipping plane distance.
	//
	// Returns:
	//   - float32: near plane distance
	Near() float32

	// Far returns the far clipping plane distance.
	//
	// Returns:
	//   - float32: far plane distance
	Far() float32

	// Bounds returns the orthographic view volume bounds.
	//
	// Returns:
	//   - Bounds: left, right, top and bottom planes
	Bounds() Bounds

	// ViewMatrix returns the current 4x4 view matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float32: the view matrix
	ViewMatrix() [16]float32

	// ProjectionMatrix returns the current 4x4 projection matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float32: the projection matrix
	ProjectionMatrix() [16]float32

	// SetPosition moves the camera and recomputes the view matrix.
	//
	// Parameters:
	//   - position: the eye position in world space
	SetPosition(position common.Vec3)

	// LookAt points the camera at target and recomputes the view matrix.
	//
	// Parameters:
	//   - target: the look-at point in world space
	LookAt(target common.Vec3)

	// SetAspect sets the aspect ratio (width / height) and recomputes the projection.
	// Orthographic cameras keep their bounds and ignore the aspect ratio.
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)

	// SetFov sets the field of view in radians and recomputes the projection.
	//
	// Parameters:
	//   - fov: field of view in radians
	SetFov(fov float32)

	// SetBounds sets the orthographic view volume bounds and recomputes the projection.
	//
	// Parameters:
	//   - bounds: the side planes
	SetBounds(bounds Bounds)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a perspective camera at (0, 0, 5) looking at the origin with a
// 45° field of view.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:         &sync.Mutex{},
		id:         cameraCount.Add(1),
		projection: ProjectionPerspective,
		position:   common.Vec3{Z: 5},
		up:         common.Vec3{Y: 1},
		fov:        45 * math32.Pi / 180,
		aspect:     1,
		near:       0.1,
		far:        100,
		bounds:     Bounds{Left: -1, Right: 1, Top: 1, Bottom: -1},
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

// NewOrthographicCamera creates an orthographic camera at the origin looking down -Z.
//
// Parameters:
//   - bounds: the view volume side planes
//   - near: near plane
//   - far: far plane
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewOrthographicCamera(bounds Bounds, near, far float32, options ...CameraBuilderOption) Camera {
	opts := append([]CameraBuilderOption{
		WithProjection(ProjectionOrthographic),
		WithBounds(bounds),
		WithNear(near),
		WithFar(far),
		WithPosition(common.Vec3{}),
		WithTarget(common.Vec3{Z: -1}),
	}, options...)
	return NewCamera(opts...)
}

func (c *cameraImpl) ID() uint64 {
	return c.id
}

func (c *cameraImpl) Projection() ProjectionType {
	return c.projection
}

func (c *cameraImpl) Position() common.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) Target() common.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) Bounds() Bounds {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bounds
}

func (c *cameraImpl) ViewMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) SetPosition(position common.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = position
	c.updateMatricesLocked()
}

func (c *cameraImpl) LookAt(target common.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = target
	c.updateMatricesLocked()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	if aspect <= 0 || math32.IsNaN(aspect) || math32.IsInf(aspect, 0) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.updateMatricesLocked()
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.updateMatricesLocked()
}

func (c *cameraImpl) SetBounds(bounds Bounds) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bounds = bounds
	c.updateMatricesLocked()
}

func (c *cameraImpl) updateMatrices() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateMatricesLocked()
}

func (c *cameraImpl) updateMatricesLocked() {
	common.LookAt(c.viewMatrix[:], c.position, c.target, c.up)
	switch c.projection {
	case ProjectionOrthographic:
		common.Orthographic(c.projectionMatrix[:], c.bounds.Left, c.bounds.Right, c.bounds.Top, c.bounds.Bottom, c.near, c.far)
	default:
		common.Perspective(c.projectionMatrix[:], c.fov, c.aspect, c.near, c.far)
	}
}
