package experience

import (
	"github.com/Carmen-Shannon/oxy-valley/engine/gpgpu"
	"github.com/Carmen-Shannon/oxy-valley/engine/pointer"
)

// ExperienceBuilderOption is a functional option applied by NewExperience.
type ExperienceBuilderOption func(*experience)

// WithPointer supplies the pointer tracker instead of creating one.
//
// Parameters:
//   - p: the pointer tracker
//
// Returns:
//   - ExperienceBuilderOption: a function that sets the pointer tracker
func WithPointer(p pointer.PointerTracker) ExperienceBuilderOption {
	return func(e *experience) {
		e.pointer = p
	}
}

// WithExtraSimulationOptions appends options to those derived from the config.
func WithExtraSimulationOptions(options ...gpgpu.SimulationBuilderOption) ExperienceBuilderOption {
	return func(e *experience) {
		e.simulationOptions = append(e.simulationOptions, options...)
	}
}

// WithParticleOptions appends particle system options to those derived from the config.
func WithParticleOptions(options ...ParticleSystemBuilderOption) ExperienceBuilderOption {
	return func(e *experience) {
		e.particleOptions = append(e.particleOptions, options...)
	}
}
