package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/codewandler/actorrt/core/actor"
)

type Options struct {
	Context context.Context
	// Config defaults to LoadConfig("").
	Config *Config
	// ConfigPath, if set, is watched and log level changes are applied live.
	ConfigPath string
	// Log defaults to a text logger on stderr whose level follows the config.
	Log          *slog.Logger
	Metrics      actor.RuntimeMetrics
	FaultHandler actor.FaultHandler
}

// App is a configured actor runtime: a System with its pooled threads, an
// optional config watcher and a log level that can change at runtime.
type App struct {
	cfg     *Config
	log     *slog.Logger
	level   *slog.LevelVar
	sys     *actor.System
	watcher *Watcher

	mu      sync.Mutex
	threads []string

	done     chan struct{}
	stopOnce sync.Once
	stopErr  error
}

func New(opts Options) (app *App, err error) {
	cfg := opts.Config
	if cfg == nil {
		if cfg, err = LoadConfig(opts.ConfigPath); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ID == "" {
		cfg.ID = fmt.Sprintf("rt-%s", gonanoid.Must(6))
	}

	app = &App{
		cfg:   cfg,
		level: new(slog.LevelVar),
		done:  make(chan struct{}),
	}
	lvl, _ := cfg.Level()
	app.level.Set(lvl)

	// === logger ===
	log := opts.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: app.level}))
	}
	app.log = log.With(slog.String("app", cfg.ID))

	// === runtime ===
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	app.sys = actor.NewSystem(actor.Options{
		Context:          opts.Context,
		Logger:           log,
		FaultHandler:     opts.FaultHandler,
		Metrics:          opts.Metrics,
		MaxConcurrentOps: cfg.MaxConcurrentOps,
		PulseInterval:    cfg.PulseInterval,
		PlacementSeed:    cfg.PlacementSeed,
		ID:               cfg.ID,
	})
	for _, name := range cfg.ThreadNames() {
		if err := app.sys.CreateThread(name); err != nil {
			_ = app.sys.Close()
			return nil, err
		}
	}
	app.threads = slices.Clone(cfg.ThreadNames())

	// === config watcher ===
	if opts.ConfigPath != "" {
		app.watcher, err = NewWatcher(opts.ConfigPath, app.log, app.applyConfig)
		if err != nil {
			_ = app.sys.Close()
			return nil, err
		}
	}

	app.log.Debug("app created", slog.Any("threads", app.threads), slog.String("log_level", lvl.String()))
	return app, nil
}

// Run is New followed by a startup log line.
func Run(opts Options) (*App, error) {
	app, err := New(opts)
	if err != nil {
		return nil, err
	}
	app.log.Info("app started", slog.Int("threads", len(app.threads)))
	return app, nil
}

// System returns the runtime.
func (a *App) System() *actor.System { return a.sys }

// Config returns the config the app was started with.
func (a *App) Config() *Config { return a.cfg }

// Threads returns the names of the pooled threads.
func (a *App) Threads() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.threads)
}

// LogLevel returns the current level of the app's own logger.
func (a *App) LogLevel() slog.Level { return a.level.Level() }

// SetLogLevel changes the level of the app's own logger.
func (a *App) SetLogLevel(l slog.Level) { a.level.Set(l) }

// applyConfig applies what can change at runtime: the log level and new
// pooled threads. Removing threads or changing other settings needs a restart.
func (a *App) applyConfig(cfg *Config) {
	if lvl, err := cfg.Level(); err == nil && lvl != a.level.Level() {
		a.log.Info("log level changed", slog.String("from", a.level.Level().String()), slog.String("to", lvl.String()))
		a.level.Set(lvl)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, name := range cfg.ThreadNames() {
		if slices.Contains(a.threads, name) {
			continue
		}
		if err := a.sys.CreateThread(name); err != nil {
			a.log.Error("failed to add thread", slog.String("thread", name), slog.Any("error", err))
			continue
		}
		a.threads = append(a.threads, name)
		a.log.Info("thread added", slog.String("thread", name))
	}
}

// Shutdown stops the watcher and the runtime. Done is closed afterwards.
func (a *App) Shutdown(ctx context.Context) error {
	a.stopOnce.Do(func() {
		if a.watcher != nil {
			_ = a.watcher.Close()
		}
		a.stopErr = a.sys.Shutdown(ctx)
		close(a.done)
	})
	return a.stopErr
}

// Stop is Shutdown without a deadline.
func (a *App) Stop() { _ = a.Shutdown(context.Background()) }

// Done is closed once the app has shut down.
func (a *App) Done() <-chan struct{} { return a.done }
