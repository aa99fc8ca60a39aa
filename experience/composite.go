package experience

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-valley/common"
	"github.com/Carmen-Shannon/oxy-valley/engine/camera"
	"github.com/Carmen-Shannon/oxy-valley/engine/clock"
	"github.com/Carmen-Shannon/oxy-valley/engine/events"
	"github.com/Carmen-Shannon/oxy-valley/engine/game_object"
	"github.com/Carmen-Shannon/oxy-valley/engine/geometry"
	"github.com/Carmen-Shannon/oxy-valley/engine/logger"
	"github.com/Carmen-Shannon/oxy-valley/engine/pointer"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-valley/engine/scene"
	"github.com/Carmen-Shannon/oxy-valley/engine/viewport"
)

// Compositing texture slots, in sampling order.
const (
	UniformTexture1 = "uTexture1"
	UniformTexture2 = "uTexture2"
)

// NamespaceComposite is the namespace the compositing pass subscribes under.
const NamespaceComposite events.Namespace = "composite"

type composite struct {
	scene    scene.Scene
	camera   camera.Camera
	material material.Material
	quad     game_object.GameObject
}

// Composite is the final full-screen pass. It samples the off-screen passes through
// uTexture1 and uTexture2 and reveals the second one in a circle around the cursor.
type Composite interface {
	// Scene returns the scene holding the quad.
	Scene() scene.Scene

	// Camera returns the orthographic camera framing the quad.
	Camera() camera.Camera

	// Material returns the compositing material.
	Material() material.Material

	// Update pushes the cursor and elapsed time.
	//
	// Parameters:
	//   - frame: the frame being drawn
	//   - trail: the smoothed pointer position
	//
	// Returns:
	//   - error: an error if a uniform could not be set
	Update(frame clock.FrameTime, trail common.Vec2) error

	// Resize updates the resolution uniform to the drawing buffer size.
	Resize(state viewport.State) error

	// Attach subscribes Update to the tick topic.
	Attach(bus events.EventBus, c clock.Clock, p pointer.PointerTracker) error

	// SetRadius sets the reveal radius.
	SetRadius(radius float32) error
}

var _ Composite = &composite{}

// NewComposite builds the compositing quad, material and camera.
//
// Parameters:
//   - state: the current viewport
//   - radius: the cursor reveal radius
//   - cursor: the initial cursor uniform, off screen until the pointer moves
//
// Returns:
//   - Composite: the compositing pass
//   - error: an error if the material could not be created
func NewComposite(state viewport.State, radius float32, cursor [2]float32) (Composite, error) {
	vs, fs, err := RenderShaders(ShaderComposite)
	if err != nil {
		return nil, err
	}
	w, h := state.DrawingBufferSize()
	m, err := material.NewMaterial("composite", vs, fs,
		material.WithUniform("uTime", float32(0)),
		material.WithUniform("uMouse", cursor),
		material.WithUniform("uTransitionProgress", float32(0)),
		material.WithUniform("uHoverProgress", float32(0)),
		material.WithTexture(UniformTexture1, nil),
		material.WithTexture(UniformTexture2, nil),
		material.WithUniform("uResolution", [2]float32{float32(w), float32(h)}),
		material.WithUniform("uRadius", radius),
		material.WithAttributes(
			material.VertexAttribute{Name: geometry.AttributePosition, Components: 3},
			material.VertexAttribute{Name: geometry.AttributeUV, Components: 2},
		),
		material.WithDepth(false, false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create composite material: %w", err)
	}

	quad := game_object.NewGameObject(geometry.NewPlane(1, 1, 1, 1), m, game_object.WithLabel("composite quad"))
	return &composite{
		scene:    scene.NewScene("composite", scene.WithObjects(quad)),
		camera:   NewCompositeCamera(),
		material: m,
		quad:     quad,
	}, nil
}

func (c *composite) Scene() scene.Scene {
	return c.scene
}

func (c *composite) Camera() camera.Camera {
	return c.camera
}

func (c *composite) Material() material.Material {
	return c.material
}

func (c *composite) Update(frame clock.FrameTime, trail common.Vec2) error {
	if err := c.material.SetUniform("uMouse", trail.Array()); err != nil {
		return err
	}
	return c.material.SetUniform("uTime", frame.ElapsedSeconds())
}

func (c *composite) Resize(state viewport.State) error {
	w, h := state.DrawingBufferSize()
	return c.material.SetUniform("uResolution", [2]float32{float32(w), float32(h)})
}

func (c *composite) Attach(bus events.EventBus, clk clock.Clock, p pointer.PointerTracker) error {
	return bus.Subscribe(events.Key{Topic: clock.TopicTick, Namespace: NamespaceComposite}, func(args ...any) any {
		frame, ok := frameArg(args)
		if !ok && clk != nil {
			frame = clk.Frame()
		}
		if p == nil {
			return c.material.SetUniform("uTime", frame.ElapsedSeconds())
		}
		if err := c.Update(frame, p.Trail()); err != nil {
			logger.Logger().Warn("composite update failed", "err", err)
			return err
		}
		return nil
	})
}

func (c *composite) SetRadius(radius float32) error {
	return c.material.SetUniform("uRadius", radius)
}
