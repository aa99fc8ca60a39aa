package experience

import (
	"github.com/Carmen-Shannon/oxy-valley/common"
	"github.com/Carmen-Shannon/oxy-valley/engine/camera"
	"github.com/Carmen-Shannon/oxy-valley/engine/events"
	"github.com/Carmen-Shannon/oxy-valley/engine/viewport"
	"github.com/chewxy/math32"
)

// Shared camera placement.
const (
	CameraFov  float32 = 35
	CameraNear float32 = 0.1
	CameraFar  float32 = 1000
	CameraZ    float32 = 5.375
)

// NewSceneCamera creates the perspective camera every off-screen pass renders through and
// keeps its aspect in step with the viewport.
//
// Parameters:
//   - bus: the bus resize events arrive on, may be nil
//   - aspect: the initial aspect ratio
//
// Returns:
//   - camera.Camera: the camera
//   - error: an error if the resize subscription failed
func NewSceneCamera(bus events.EventBus, aspect float32) (camera.Camera, error) {
	cam := camera.NewCamera(
		camera.WithFov(CameraFov*math32.Pi/180),
		camera.WithAspect(aspect),
		camera.WithNear(CameraNear),
		camera.WithFar(CameraFar),
		camera.WithPosition(common.Vec3{Z: CameraZ}),
		camera.WithTarget(common.Vec3{}),
	)
	if bus == nil {
		return cam, nil
	}
	err := bus.Subscribe(events.Key{Topic: viewport.TopicResize, Namespace: "camera"}, func(args ...any) any {
		if state, ok := stateArg(args); ok {
			cam.SetAspect(state.Aspect)
		}
		return nil
	})
	return cam, err
}

// NewCompositeCamera creates the orthographic camera framing the unit compositing quad.
func NewCompositeCamera() camera.Camera {
	return camera.NewOrthographicCamera(camera.Bounds{Left: -0.5, Right: 0.5, Top: 0.5, Bottom: -0.5}, -1000, 1000)
}

func stateArg(args []any) (viewport.State, bool) {
	if len(args) == 0 {
		return viewport.State{}, false
	}
	state, ok := args[0].(viewport.State)
	return state, ok
}
