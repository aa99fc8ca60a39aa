// Package profiler tracks frame rate and memory statistics. Every update interval it
// logs a summary and refreshes a set of Prometheus gauges, which can be served over HTTP.
package profiler

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-valley/engine/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "oxy_valley"

// Stats is the summary computed at the end of an update interval.
type Stats struct {
	FPS         float64
	HeapMB      float64
	AllocRateMB float64
	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64
	SysMB       float64
	Frames      uint64
}

// Profiler tracks frame rate and memory statistics for performance monitoring.
// Outputs stats to the log and to its metrics registry at a configurable interval.
type Profiler struct {
	mu *sync.Mutex

	frameCount     int
	frames         uint64
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	stats          Stats
	now            func() time.Time

	session  string
	registry *prometheus.Registry

	framesTotal prometheus.Counter
	fps         prometheus.Gauge
	heap        *prometheus.GaugeVec
	gc          *prometheus.GaugeVec
}

// NewProfiler creates a new Profiler with its own metrics registry.
// Update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options applied in order
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		mu:             &sync.Mutex{},
		updateInterval: time.Second,
		now:            time.Now,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()

	if p.registry == nil {
		p.registry = prometheus.NewRegistry()
	}
	labels := prometheus.Labels{}
	if p.session != "" {
		labels["session"] = p.session
	}
	factory := promauto.With(p.registry)
	p.framesTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "frames_total",
		Help:        "Frames rendered since start.",
		ConstLabels: labels,
	})
	p.fps = factory.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "fps",
		Help:        "Frames per second over the last update interval.",
		ConstLabels: labels,
	})
	p.heap = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "memory_megabytes",
		Help:        "Heap, allocation rate and process memory in megabytes.",
		ConstLabels: labels,
	}, []string{"type"})
	p.gc = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "gc_stats",
		Help:        "Garbage collection count and pause times in microseconds.",
		ConstLabels: labels,
	}, []string{"type"})
	return p
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, heap usage, allocation rate, GC count/pause times, total memory.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	p.frames++
	p.framesTotal.Inc()
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval || elapsed <= 0 {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	// Alloc is live heap, TotalAlloc only grows and tracks churn, Sys is the process footprint
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	p.stats = Stats{
		FPS:         fps,
		HeapMB:      allocMB,
		AllocRateMB: allocRateMB,
		GCCount:     gcCount,
		LastPauseUs: lastPauseUs,
		MaxPauseUs:  maxPauseUs,
		SysMB:       sysMB,
		Frames:      p.frames,
	}
	p.fps.Set(fps)
	p.heap.WithLabelValues("heap").Set(allocMB)
	p.heap.WithLabelValues("alloc_rate").Set(allocRateMB)
	p.heap.WithLabelValues("sys").Set(sysMB)
	p.gc.WithLabelValues("count").Set(float64(gcCount))
	p.gc.WithLabelValues("last_pause_us").Set(float64(lastPauseUs))
	p.gc.WithLabelValues("max_pause_us").Set(float64(maxPauseUs))

	logger.Logger().Info("profiler",
		"fps", fps,
		"heap_mb", allocMB,
		"alloc_rate_mb", allocRateMB,
		"gc", gcCount,
		"gc_last_us", lastPauseUs,
		"gc_max_us", maxPauseUs,
		"sys_mb", sysMB,
	)

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// Stats returns the summary of the last completed update interval.
func (p *Profiler) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Registry returns the registry the profiler's metrics are registered with.
func (p *Profiler) Registry() *prometheus.Registry {
	return p.registry
}

// Handler returns an HTTP handler exposing the profiler's registry.
func (p *Profiler) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled.
//
// Parameters:
//   - ctx: stops the server when done
//   - addr: the listen address, e.g. ":9090"
//
// Returns:
//   - error: the listen error, or nil after a clean shutdown
func (p *Profiler) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Logger().Info("metrics server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
