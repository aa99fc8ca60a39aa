package profiler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ProfilerBuilderOption is a functional option applied by NewProfiler.
type ProfilerBuilderOption func(*Profiler)

// WithUpdateInterval sets how often statistics are computed. Non-positive values are ignored.
func WithUpdateInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// WithSession adds a constant session label to every metric.
//
// Parameters:
//   - id: the session id
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the session label
func WithSession(id string) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.session = id
	}
}

// WithRegistry registers the metrics with reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.registry = reg
	}
}

// WithTimeSource replaces time.Now. Tests use it to cross update intervals deterministically.
func WithTimeSource(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		if now != nil {
			p.now = now
		}
	}
}
