// Command valley renders the particle valley in a window, or headless for a fixed number
// of frames when no display is available.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Carmen-Shannon/oxy-valley/config"
	"github.com/Carmen-Shannon/oxy-valley/engine"
	"github.com/Carmen-Shannon/oxy-valley/engine/clock"
	"github.com/Carmen-Shannon/oxy-valley/engine/events"
	"github.com/Carmen-Shannon/oxy-valley/engine/logger"
	"github.com/Carmen-Shannon/oxy-valley/engine/profiler"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer"
	"github.com/Carmen-Shannon/oxy-valley/engine/resources"
	"github.com/Carmen-Shannon/oxy-valley/engine/viewport"
	"github.com/Carmen-Shannon/oxy-valley/engine/window"
	"github.com/Carmen-Shannon/oxy-valley/experience"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/google/uuid"
)

type options struct {
	configPath  string
	headless    bool
	maxTicks    uint64
	metricsAddr string
	logLevel    string
	logFormat   string
	profile     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to a YAML config file layered over the defaults")
	flag.BoolVar(&opts.headless, "headless", false, "run without a window on the headless renderer")
	flag.Uint64Var(&opts.maxTicks, "max-ticks", 0, "stop after this many frames, 0 runs until closed")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, overrides metrics.addr")
	flag.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	flag.StringVar(&opts.logFormat, "log-format", "text", "text or json")
	flag.BoolVar(&opts.profile, "profile", false, "log frame rate and memory statistics")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "valley:", err)
		os.Exit(1)
	}
}

func newLogger(level, format, session string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	handlerOpts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	switch strings.ToLower(format) {
	case "json":
		h = slog.NewJSONHandler(os.Stderr, handlerOpts)
	case "text":
		h = slog.NewTextHandler(os.Stderr, handlerOpts)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return slog.New(h).With("session", session), nil
}

// keyHandler maps key presses to experience actions. Escape never arrives here, the
// window consumes it and closes, which ends the engine's Run.
func keyHandler(toggleDebug func() bool) func(key uint32) {
	return func(key uint32) {
		if glfw.Key(key) == glfw.KeyD {
			toggleDebug()
		}
	}
}

func run(opts options) error {
	session := uuid.NewString()
	l, err := newLogger(opts.logLevel, opts.logFormat, session)
	if err != nil {
		return err
	}
	logger.SetLogger(l)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.metricsAddr != "" {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	maxFrames := cfg.Clock.MaxFrames
	if opts.maxTicks > 0 {
		maxFrames = opts.maxTicks
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Window ──────────────────────────────────────────────────────────
	var win window.Window
	if !opts.headless {
		win, err = window.NewWindow(
			window.WithTitle(cfg.Window.Title),
			window.WithSize(cfg.Window.Width, cfg.Window.Height),
			window.WithMinSize(cfg.Window.MinWidth, cfg.Window.MinHeight),
			window.WithMaxSize(cfg.Window.MaxWidth, cfg.Window.MaxHeight),
		)
		if err != nil {
			return fmt.Errorf("creating window: %w", err)
		}
		defer win.Close()
	}

	// ── Engine ──────────────────────────────────────────────────────────
	bus := events.NewEventBus(events.WithLabel("valley"))
	prof := profiler.NewProfiler(profiler.WithSession(session))
	engineOptions := []engine.EngineBuilderOption{
		engine.WithBus(bus),
		engine.WithClock(clock.NewClock(bus)),
		engine.WithProfiler(prof),
		engine.WithProfiling(opts.profile || cfg.Metrics.Addr != ""),
		engine.WithTickRate(cfg.Clock.TickRate),
		engine.WithMaxFrames(maxFrames),
		engine.WithRenderFrameLimit(cfg.Renderer.FrameLimit),
	}
	if win != nil {
		engineOptions = append(engineOptions, engine.WithWindow(win))
	}
	eng := engine.NewEngine(engineOptions...)

	// ── Renderer ────────────────────────────────────────────────────────
	presentMode := renderer.PresentModeUncapped
	if cfg.Derived.VSync {
		presentMode = renderer.PresentModeVSync
	}
	rendererOptions := []renderer.RendererBuilderOption{
		renderer.WithPresentMode(presentMode),
		renderer.WithMSAA(renderer.MSAASampleCount(cfg.Renderer.MSAA)),
		renderer.WithForceSoftwareRenderer(cfg.Renderer.SoftwareAdapter),
		renderer.WithClearColor(cfg.Derived.ClearColor),
	}
	var r renderer.Renderer
	if win != nil {
		r, err = renderer.NewRenderer(renderer.BackendTypeWGPU, win, rendererOptions...)
	} else {
		r, err = renderer.NewRenderer(renderer.BackendTypeHeadless, nil,
			append(rendererOptions, renderer.WithSize(cfg.Window.Width, cfg.Window.Height))...)
	}
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}
	defer r.Release()

	// ── Viewport + Resources ────────────────────────────────────────────
	vpOptions := []viewport.ViewportMonitorBuilderOption{
		viewport.WithMaxPixelRatio(cfg.Viewport.MaxPixelRatio),
		viewport.WithInitialSize(cfg.Window.Width, cfg.Window.Height, 1),
	}
	var vp viewport.ViewportMonitor
	if win != nil {
		vp = viewport.NewViewportMonitor(bus, win, vpOptions...)
	} else {
		vp = viewport.NewViewportMonitor(bus, nil, vpOptions...)
	}

	var resOptions []resources.ResourceProviderBuilderOption
	if cfg.Resources.Workers > 0 {
		resOptions = append(resOptions, resources.WithWorkers(cfg.Resources.Workers))
	}
	res := resources.NewResourceProvider(bus, cfg.Resources.Sources, resOptions...)

	// ── Experience ──────────────────────────────────────────────────────
	exp, err := experience.NewExperience(cfg, bus, eng.Clock(), r, vp, res)
	if err != nil {
		return fmt.Errorf("creating experience: %w", err)
	}
	defer exp.Release()

	if win != nil {
		exp.Pointer().Bind(win)
		win.SetKeyDownCallback(keyHandler(exp.ToggleSimulationDebug))
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := prof.Serve(ctx, cfg.Metrics.Addr); err != nil {
				logger.Logger().Error("metrics server stopped", "err", err)
			}
		}()
	}
	if cfg.Debug.WatchConfig && opts.configPath != "" {
		go func() {
			if err := config.Watch(ctx, opts.configPath, exp.ApplyConfig); err != nil {
				logger.Logger().Error("config watcher stopped", "err", err)
			}
		}()
	}

	if err := res.Start(ctx); err != nil {
		return fmt.Errorf("loading resources: %w", err)
	}

	logger.Logger().Info("valley starting", "headless", win == nil, "max_frames", maxFrames, "config", opts.configPath)
	err = eng.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if failures := exp.Failures(); len(failures) > 0 {
		logger.Logger().Warn("valley ran without particles", "failures", len(failures))
	}
	info := r.Info()
	logger.Logger().Info("valley stopped",
		"frames", eng.Clock().Frames(),
		"render_passes", info.RenderPasses,
		"compute_passes", info.ComputePasses,
		"draw_calls", info.DrawCalls,
	)
	return err
}
