package experience

import (
	"math/rand/v2"

	"github.com/Carmen-Shannon/oxy-valley/config"
	"github.com/Carmen-Shannon/oxy-valley/engine/gpgpu"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/shader"
)

// ParticleSystemBuilderOption is a functional option applied by NewParticleSystem.
type ParticleSystemBuilderOption func(*particleSystem)

// WithParticlesConfig sets the presentation settings.
//
// Parameters:
//   - cfg: the particle settings
//
// Returns:
//   - ParticleSystemBuilderOption: a function that applies the settings
func WithParticlesConfig(cfg config.ParticlesConfig) ParticleSystemBuilderOption {
	return func(p *particleSystem) {
		p.config = cfg
	}
}

// WithSimulationOptions forwards options to the underlying simulation.
func WithSimulationOptions(options ...gpgpu.SimulationBuilderOption) ParticleSystemBuilderOption {
	return func(p *particleSystem) {
		p.simulationOptions = append(p.simulationOptions, options...)
	}
}

// WithComputeShader replaces the library flow field program.
func WithComputeShader(cs shader.Shader) ParticleSystemBuilderOption {
	return func(p *particleSystem) {
		p.computeShader = cs
	}
}

// WithSizeSeed makes the per-particle sizes reproducible. Zero keeps them random.
func WithSizeSeed(seed uint64) ParticleSystemBuilderOption {
	return func(p *particleSystem) {
		if seed != 0 {
			p.rng = rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
		}
	}
}
