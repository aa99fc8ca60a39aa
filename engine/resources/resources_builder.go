package resources

import (
	"time"

	"github.com/Carmen-Shannon/oxy-valley/engine/loader"
)

// ResourceProviderBuilderOption is a functional option applied by NewResourceProvider.
type ResourceProviderBuilderOption func(*resourceProvider)

// WithWorkers sets the maximum number of concurrent loads. Values below 1 are ignored.
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - ResourceProviderBuilderOption: a function that applies the worker count
func WithWorkers(n int) ResourceProviderBuilderOption {
	return func(p *resourceProvider) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithIdleTimeout sets how long an idle load worker lingers before exiting.
func WithIdleTimeout(d time.Duration) ResourceProviderBuilderOption {
	return func(p *resourceProvider) {
		if d > 0 {
			p.idleTimeout = d
		}
	}
}

// WithDecoder registers the decoder used for sources of type t, replacing any default.
//
// Parameters:
//   - t: the source type
//   - d: the decoder
//
// Returns:
//   - ResourceProviderBuilderOption: a function that registers the decoder
func WithDecoder(t SourceType, d Decoder) ResourceProviderBuilderOption {
	return func(p *resourceProvider) {
		if d != nil {
			p.decoders[t] = d
		}
	}
}

// WithLoader sets the model loader used by the default glTF decoder.
func WithLoader(l loader.Loader) ResourceProviderBuilderOption {
	return func(p *resourceProvider) {
		p.loader = l
	}
}
