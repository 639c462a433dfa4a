package app

import (
	"errors"
	"time"
)

// DefaultTick is the frame delta used when none is configured.
const DefaultTick = time.Second / 30

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Path     string // hcl files
	Sequence string // root sequence; may be empty when only one is defined

	// Duration bounds playback time. Zero plays until the player stops.
	Duration time.Duration
	Tick     time.Duration
	// Realtime waits one tick of wall time between frames.
	Realtime  bool
	LoopCount int
	PlayRate  float64

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	WorkerCount     int
	OTelEndpoint    string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.Path == "" {
		return nil, errors.New("Path is a required configuration field and cannot be empty")
	}
	if cfg.Tick < 0 {
		return nil, errors.New("tick must not be negative")
	}
	if cfg.Tick == 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.Duration < 0 {
		return nil, errors.New("duration must not be negative")
	}
	if cfg.PlayRate == 0 {
		cfg.PlayRate = 1
	}
	if cfg.LoopCount < 0 && cfg.Duration == 0 && !cfg.Realtime {
		return nil, errors.New("infinite looping needs a duration or realtime playback")
	}
	return &cfg, nil
}
