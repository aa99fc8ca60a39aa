package pointer

import "github.com/Carmen-Shannon/oxy-valley/engine/logger"

// PointerTrackerBuilderOption is a functional option applied to a PointerTracker during construction via NewPointerTracker.
type PointerTrackerBuilderOption func(*pointerTracker)

// WithSmoothing sets the easing factor shared by the trail and the target velocity.
// Values outside (0, 1) are rejected with a warning and the default is kept.
//
// Parameters:
//   - k: the easing factor
//
// Returns:
//   - PointerTrackerBuilderOption: a function that applies the smoothing option to a tracker
func WithSmoothing(k float32) PointerTrackerBuilderOption {
	return func(p *pointerTracker) {
		if k <= 0 || k >= 1 {
			logger.Logger().Warn("pointer smoothing out of range, keeping default", "smoothing", k, "default", p.smoothing)
			return
		}
		p.smoothing = k
	}
}
