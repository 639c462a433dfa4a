package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vk/seqcore/internal/ctxlog"
	"github.com/vk/seqcore/internal/player"
	"github.com/vk/seqcore/internal/telemetry"
)

type closer interface {
	Close()
}

// Run plays the root sequence headlessly until it finishes, the configured
// duration elapses or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")
	defer a.closeModules()

	shutdown, err := telemetry.Setup(ctx, a.config.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("Tracing shutdown failed.", "error", err)
		}
	}()

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(ctx, a.config.HealthcheckPort)
		defer a.closeHealthCheckServer(ctx)
	}

	root, err := a.rootSequence()
	if err != nil {
		return err
	}
	a.logger.Info("Compiling sequence.", "sequence", root)
	if _, err := a.templates.GetCompiled(ctx, root); err != nil {
		return fmt.Errorf("failed to compile sequence '%s': %w", root, err)
	}

	settings := player.Settings{
		LoopCount: a.config.LoopCount,
		PlayRate:  float32(a.config.PlayRate),
		Workers:   a.config.WorkerCount,
	}
	if err := a.player.Initialize(ctx, root, settings); err != nil {
		return err
	}
	if err := a.player.Play(ctx); err != nil {
		return err
	}

	a.logger.Info("🚀 Starting playback...", "length", a.player.GetLength(), "tick", a.config.Tick)
	if err := a.tick(ctx); err != nil {
		return fmt.Errorf("playback failed: %w", err)
	}
	a.logger.Info("🏁 Playback finished.", "position", a.player.GetPlaybackPosition(), "loops", a.player.Loops())

	if err := a.player.Stop(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	a.logger.Debug("App.Run method finished.")
	return nil
}

// tick advances the player one fixed delta per frame.
func (a *App) tick(ctx context.Context) error {
	dt := a.config.Tick
	var ticker *time.Ticker
	if a.config.Realtime {
		ticker = time.NewTicker(dt)
		defer ticker.Stop()
	}

	var elapsed time.Duration
	for a.player.IsPlaying() {
		if a.config.Duration > 0 && elapsed >= a.config.Duration {
			a.logger.Debug("Duration elapsed.", "duration", a.config.Duration)
			return nil
		}
		if ticker != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			return nil
		}
		if err := a.player.Update(ctx, float32(dt.Seconds())); err != nil {
			return err
		}
		elapsed += dt
	}
	return nil
}

func (a *App) rootSequence() (string, error) {
	if a.config.Sequence != "" {
		if _, ok := a.library.Get(a.config.Sequence); !ok {
			return "", fmt.Errorf("sequence '%s' is not defined", a.config.Sequence)
		}
		return a.config.Sequence, nil
	}
	names := a.library.Names()
	switch len(names) {
	case 0:
		return "", errors.New("no sequences defined")
	case 1:
		return names[0], nil
	default:
		return "", fmt.Errorf("several sequences are defined, choose one of %v", names)
	}
}

func (a *App) closeModules() {
	for _, mod := range a.modules {
		if c, ok := mod.(closer); ok {
			c.Close()
		}
	}
}
