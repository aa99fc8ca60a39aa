package clock

import "time"

// ClockBuilderOption is a functional option applied to a Clock during construction via NewClock.
type ClockBuilderOption func(*clock)

// WithTimeSource replaces time.Now as the clock's time source. Tests use it to drive
// the clock deterministically.
//
// Parameters:
//   - now: the time source
//
// Returns:
//   - ClockBuilderOption: a function that applies the time source option to a clock
func WithTimeSource(now func() time.Time) ClockBuilderOption {
	return func(c *clock) {
		if now != nil {
			c.now = now
		}
	}
}
