package clock

import "time"

// FrameTime is the timing snapshot carried by one tick.
type FrameTime struct {
	Start    time.Time
	Previous time.Time
	Current  time.Time

	Elapsed time.Duration
	Delta   time.Duration
}

// ElapsedSeconds returns Elapsed in seconds, ready to be pushed as a shader uniform.
func (f FrameTime) ElapsedSeconds() float32 {
	return float32(f.Elapsed.Seconds())
}

// DeltaSeconds returns Delta in seconds, ready to be pushed as a shader uniform.
func (f FrameTime) DeltaSeconds() float32 {
	return float32(f.Delta.Seconds())
}
