package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/vk/seqcore/internal/config"
	"github.com/vk/seqcore/internal/ctxlog"
	"github.com/vk/seqcore/internal/dag"
	"github.com/vk/seqcore/internal/player"
	"github.com/vk/seqcore/internal/registry"
	"github.com/vk/seqcore/internal/scene"
	"github.com/vk/seqcore/internal/sequence"
	"github.com/vk/seqcore/internal/template"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	registry   *registry.Registry
	modules    []registry.Module
	library    *sequence.Library
	templates  *template.Store
	world      *scene.Scene
	player     *player.Player
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
// Configuration that cannot be loaded or compiled is a fatal startup error
// and panics.
func NewApp(ctx context.Context, outW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	// Load all configuration into the format-agnostic model first.
	model, converter, err := loader.Load(ctx, cfg.Path)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	if err := model.Validate(); err != nil {
		panic(fmt.Errorf("invalid configuration: %w", err))
	}
	logger.Debug("Configuration loaded and translated into unified model.", "sequences", len(model.Sequences))

	reg := registry.New()
	reg.SetConverter(converter)
	if len(modules) == 0 {
		modules = coreModules(outW)
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All Go modules registered.", "count", len(modules))

	// Buckets declared in configuration override module defaults.
	reg.PopulateBucketsFromModel(model)
	if err := reg.Validate(ctx, model); err != nil {
		// This is a mismatch between code and config, so we panic.
		panic(err)
	}
	logger.Debug("Registry validation passed.", "kinds", reg.Kinds())

	lib, err := sequence.FromConfig(model)
	if err != nil {
		panic(fmt.Errorf("failed to build sequences: %w", err))
	}
	if _, err := dag.FromLibrary(lib); err != nil {
		panic(fmt.Errorf("invalid sequence references: %w", err))
	}

	a := &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		registry: reg,
		modules:  modules,
		library:  lib,
		world:    scene.New(),
	}
	a.templates = template.NewStore(lib, template.NewGenerator(reg), template.Params{KeepStaleTracks: true})
	a.populateScene()
	a.player = player.New(lib, a.templates, a.world, a.playerHooks())
	return a
}

// populateScene adds the objects possessable bindings refer to, so a
// headless run has something to animate.
func (a *App) populateScene() {
	for _, name := range a.library.Names() {
		seq, _ := a.library.Get(name)
		for _, b := range seq.Bindings() {
			if b.Spawnable {
				continue
			}
			target := b.Possess
			if target == "" {
				target = b.Name
			}
			if _, ok := a.world.FindByName(target); ok {
				continue
			}
			a.world.Add(target, b.Class, b.Properties)
			a.logger.Debug("Possessable object added to scene.", "name", target, "class", b.Class)
		}
	}
}

func (a *App) playerHooks() player.Hooks {
	return player.Hooks{
		OnPlay: func(ctx context.Context) {
			ctxlog.FromContext(ctx).Debug("Playback started.")
		},
		OnPause: func(ctx context.Context) {
			ctxlog.FromContext(ctx).Debug("Playback paused.")
		},
		OnStop: func(ctx context.Context) {
			ctxlog.FromContext(ctx).Debug("Playback stopped.")
		},
		OnLooped: func(ctx context.Context, loop int) {
			ctxlog.FromContext(ctx).Info("Sequence looped.", "loop", loop)
		},
		OnFinished: func(ctx context.Context) {
			ctxlog.FromContext(ctx).Info("Sequence finished.")
		},
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Player returns the application's player. This is primarily for testing.
func (a *App) Player() *player.Player {
	return a.player
}

// Scene returns the world the sequences animate.
func (a *App) Scene() *scene.Scene {
	return a.world
}
