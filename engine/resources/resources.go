// Package resources loads the declared assets concurrently and publishes the outcome on
// the event bus from the main loop: one ready event when every source decoded, or one
// load-failed event carrying the failures.
package resources

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-valley/common"
	"github.com/Carmen-Shannon/oxy-valley/engine/events"
	"github.com/Carmen-Shannon/oxy-valley/engine/geometry"
	"github.com/Carmen-Shannon/oxy-valley/engine/loader"
	"github.com/Carmen-Shannon/oxy-valley/engine/logger"
)

const (
	// TopicReady is published once when every source loaded. It carries no arguments.
	TopicReady events.Topic = "ready"
	// TopicLoadFailed is published once when any source failed. Its argument is []LoadError.
	TopicLoadFailed events.Topic = "load-failed"

	// Namespace is the namespace Poll is subscribed under on the tick topic.
	Namespace events.Namespace = "resources"
)

var (
	// ErrUnknownSourceType is the load error of a source without a decoder.
	ErrUnknownSourceType = errors.New("unknown source type")
	// ErrMissingAsset is returned by typed lookups of an absent or mistyped asset.
	ErrMissingAsset = errors.New("asset is not loaded")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("resource loading already started")
)

// State is the lifecycle stage of a ResourceProvider.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type resourceProvider struct {
	mu *sync.Mutex

	bus      events.EventBus
	sources  []Source
	decoders map[SourceType]Decoder
	loader   loader.Loader

	workers     int
	idleTimeout time.Duration

	state     State
	items     map[string]any
	failures  []LoadError
	done      chan struct{}
	published bool
}

// ResourceProvider loads named assets and reports when all of them are available.
type ResourceProvider interface {
	// Start submits every source to the worker pool and returns immediately. With no
	// sources the provider is ready at once and publishes TopicReady before returning.
	//
	// Parameters:
	//   - ctx: passed to every decoder
	//
	// Returns:
	//   - error: ErrAlreadyStarted on a second call
	Start(ctx context.Context) error

	// Poll publishes the outcome once the barrier has closed. It is a no-op before then
	// and after the outcome was published, and is meant to run on the main loop.
	Poll()

	// Load is the blocking form of Start: it waits for every source, publishes the
	// outcome and returns the failures joined.
	//
	// Parameters:
	//   - ctx: passed to every decoder; cancelling it stops the wait
	//
	// Returns:
	//   - error: nil when ready, the joined LoadErrors otherwise, or ctx.Err()
	Load(ctx context.Context) error

	// Done is closed when every source has finished loading.
	Done() <-chan struct{}

	// State returns the lifecycle stage.
	State() State

	// Sources returns the declared sources.
	Sources() []Source

	// Items returns a copy of the decoded assets keyed by source name. It is empty until
	// the provider is ready.
	Items() map[string]any

	// Item returns one decoded asset.
	Item(name string) (any, bool)

	// Geometry returns the geometry of a loaded model.
	//
	// Parameters:
	//   - name: the source name
	//
	// Returns:
	//   - geometry.Geometry: the first mesh geometry of the model
	//   - error: ErrMissingAsset if absent, loader.ErrNoMesh if the model has no mesh
	Geometry(name string) (geometry.Geometry, error)

	// Texture returns a loaded image.
	//
	// Parameters:
	//   - name: the source name
	//
	// Returns:
	//   - *common.Image: the decoded image
	//   - error: ErrMissingAsset if absent
	Texture(name string) (*common.Image, error)

	// Failures returns the load errors, in source order.
	Failures() []LoadError
}

var _ ResourceProvider = &resourceProvider{}

// NewResourceProvider creates a provider for sources and subscribes Poll to the tick
// topic. glTF models and textures have default decoders; WithDecoder adds or replaces one.
//
// Parameters:
//   - bus: the bus ready and load-failed are published on
//   - sources: the assets to load
//   - options: functional options applied in order
//
// Returns:
//   - ResourceProvider: the provider, in StateIdle
func NewResourceProvider(bus events.EventBus, sources []Source, options ...ResourceProviderBuilderOption) ResourceProvider {
	p := &resourceProvider{
		mu:          &sync.Mutex{},
		bus:         bus,
		sources:     append([]Source(nil), sources...),
		decoders:    make(map[SourceType]Decoder),
		workers:     max(runtime.NumCPU()-1, 1),
		idleTimeout: time.Second,
		items:       make(map[string]any),
		done:        make(chan struct{}),
	}
	for _, opt := range options {
		opt(p)
	}
	if p.loader == nil {
		p.loader = loader.NewLoader(loader.BackendTypeGLTF)
	}
	if _, ok := p.decoders[SourceGLTFModel]; !ok {
		p.decoders[SourceGLTFModel] = modelDecoder(p.loader)
	}
	if _, ok := p.decoders[SourceTexture]; !ok {
		p.decoders[SourceTexture] = textureDecoder()
	}

	bus.On(string("tick."+Namespace), func(...any) any {
		p.Poll()
		return nil
	})
	return p
}

func (p *resourceProvider) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.state = StateLoading
	sources := p.sources
	p.mu.Unlock()

	logger.Logger().Info("loading resources", "sources", len(sources))
	if len(sources) == 0 {
		close(p.done)
		p.Poll()
		return nil
	}

	// Each source records its own outcome; the pool only runs them. The WaitGroup is the
	// all-complete barrier.
	pool := worker.NewDynamicWorkerPool(min(p.workers, len(sources)), max(len(sources), 1), p.idleTimeout)
	var wg sync.WaitGroup
	wg.Add(len(sources))
	go func() {
		for i, src := range sources {
			pool.SubmitTask(worker.Task{
				ID: i,
				Do: func() (any, error) {
					defer wg.Done()
					p.load(ctx, src)
					return nil, nil
				},
			})
		}
	}()
	go func() {
		wg.Wait()
		close(p.done)
	}()
	return nil
}

func (p *resourceProvider) load(ctx context.Context, src Source) {
	var (
		asset any
		err   error
	)
	decoder, ok := p.decoders[src.Type]
	if !ok {
		err = fmt.Errorf("%w %q", ErrUnknownSourceType, src.Type)
	} else {
		asset, err = p.decode(ctx, decoder, src)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		logger.Logger().Error("failed to load resource", "asset", src.Name, "type", string(src.Type), "path", src.Path, "err", err)
		p.failures = append(p.failures, LoadError{Source: src, Err: err})
		return
	}
	logger.Logger().Debug("resource loaded", "asset", src.Name, "type", string(src.Type))
	p.items[src.Name] = asset
}

// decode runs a decoder, turning a panic into a load error so the barrier always closes.
func (p *resourceProvider) decode(ctx context.Context, decoder Decoder, src Source) (asset any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decoder panicked: %v", r)
		}
	}()
	return decoder.Decode(ctx, src)
}

func (p *resourceProvider) Poll() {
	select {
	case <-p.done:
	default:
		return
	}

	p.mu.Lock()
	if p.published {
		p.mu.Unlock()
		return
	}
	p.published = true
	failures := p.sortedFailuresLocked()
	p.failures = failures
	if len(failures) == 0 {
		p.state = StateReady
	} else {
		p.state = StateFailed
	}
	p.mu.Unlock()

	if len(failures) == 0 {
		logger.Logger().Info("resources ready", "sources", len(p.sources))
		p.bus.TriggerAll(TopicReady)
		return
	}
	logger.Logger().Error("resources failed to load", "failed", len(failures), "sources", len(p.sources))
	p.bus.TriggerAll(TopicLoadFailed, failures)
}

func (p *resourceProvider) sortedFailuresLocked() []LoadError {
	index := make(map[string]int, len(p.sources))
	for i, s := range p.sources {
		index[s.Name] = i
	}
	out := append([]LoadError(nil), p.failures...)
	slices.SortStableFunc(out, func(a, b LoadError) int {
		return cmp.Compare(index[a.Source.Name], index[b.Source.Name])
	})
	return out
}

func (p *resourceProvider) Load(ctx context.Context) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
	}
	p.Poll()

	failures := p.Failures()
	if len(failures) == 0 {
		return nil
	}
	errs := make([]error, len(failures))
	for i, f := range failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

func (p *resourceProvider) Done() <-chan struct{} {
	return p.done
}

func (p *resourceProvider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *resourceProvider) Sources() []Source {
	return append([]Source(nil), p.sources...)
}

func (p *resourceProvider) Items() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]any, len(p.items))
	if p.state != StateReady {
		return out
	}
	for k, v := range p.items {
		out[k] = v
	}
	return out
}

func (p *resourceProvider) Item(name string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateReady {
		return nil, false
	}
	v, ok := p.items[name]
	return v, ok
}

func (p *resourceProvider) Geometry(name string) (geometry.Geometry, error) {
	item, _ := p.Item(name)
	asset, ok := item.(*ModelAsset)
	if !ok {
		return nil, fmt.Errorf("%w: model %q", ErrMissingAsset, name)
	}
	if asset.Geometry == nil {
		return nil, fmt.Errorf("model %q: %w", name, loader.ErrNoMesh)
	}
	return asset.Geometry, nil
}

func (p *resourceProvider) Texture(name string) (*common.Image, error) {
	item, _ := p.Item(name)
	asset, ok := item.(*TextureAsset)
	if !ok || asset.Image == nil {
		return nil, fmt.Errorf("%w: texture %q", ErrMissingAsset, name)
	}
	return asset.Image, nil
}

func (p *resourceProvider) Failures() []LoadError {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]LoadError(nil), p.failures...)
}
