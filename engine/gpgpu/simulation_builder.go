package gpgpu

import (
	"math/rand/v2"

	"github.com/Carmen-Shannon/oxy-valley/common"
)

// SimulationBuilderOption is a functional option applied by NewSimulation.
type SimulationBuilderOption func(*simulation)

// WithCoefficients sets the initial flow field parameters.
//
// Parameters:
//   - c: the coefficients
//
// Returns:
//   - SimulationBuilderOption: a function that applies the coefficients to a simulation
func WithCoefficients(c Coefficients) SimulationBuilderOption {
	return func(s *simulation) {
		s.coefficients = c
	}
}

// WithCursor sets the pointer position used until the first Update, (-10, 10) by default
// so the flow field starts undisturbed.
func WithCursor(cursor common.Vec2) SimulationBuilderOption {
	return func(s *simulation) {
		s.cursor = cursor
	}
}

// WithSeed makes the per-particle life values reproducible.
//
// Parameters:
//   - seed: the random seed
//
// Returns:
//   - SimulationBuilderOption: a function that seeds the simulation's random source
func WithSeed(seed uint64) SimulationBuilderOption {
	return func(s *simulation) {
		s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithDebugPlane toggles creation of the debug plane returned by DebugObject.
func WithDebugPlane(enabled bool) SimulationBuilderOption {
	return func(s *simulation) {
		s.debugPlane = enabled
	}
}
