package game_object

// GameObjectBuilderOption is a functional option for configuring a GameObject during construction.
type GameObjectBuilderOption func(*gameObject)

// WithLabel sets the debug label of the GameObject.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the label
func WithLabel(label string) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.label = label
	}
}

// WithKind sets whether the GameObject is drawn as a mesh or as points.
func WithKind(kind Kind) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.kind = kind
	}
}

// WithEnabled sets whether the GameObject is enabled for rendering.
//
// Parameters:
//   - enabled: true to render the object, false to skip it
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the Enabled state
func WithEnabled(enabled bool) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.enabled.Store(enabled)
	}
}

// WithFrustumCulled sets whether the renderer may cull the object.
func WithFrustumCulled(culled bool) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.frustumCulled = culled
	}
}

// WithRenderOrder sets the draw sort key.
func WithRenderOrder(order int) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.renderOrder = order
	}
}

// WithPosition sets the initial position.
func WithPosition(x, y, z float32) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.position = [3]float32{x, y, z}
	}
}

// WithRotation sets the initial Euler rotation in radians.
func WithRotation(rx, ry, rz float32) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.rotation = [3]float32{rx, ry, rz}
	}
}

// WithScale sets the initial scale.
//
// Parameters:
//   - sx: scale on X
//   - sy: scale on Y
//   - sz: scale on Z
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the scale
func WithScale(sx, sy, sz float32) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.scale = [3]float32{sx, sy, sz}
	}
}
