package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/vk/seqcore/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// environment holds the SEQCORE_* variables. They become the flag defaults,
// so an explicit flag always wins.
type environment struct {
	Sequence        string        `env:"SEQUENCE"`
	Duration        time.Duration `env:"DURATION"`
	Tick            time.Duration `env:"TICK" envDefault:"33ms"`
	Realtime        bool          `env:"REALTIME"`
	Loops           int           `env:"LOOPS"`
	PlayRate        float64       `env:"PLAY_RATE" envDefault:"1"`
	HealthcheckPort int           `env:"HEALTHCHECK_PORT"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	Workers         int           `env:"WORKERS" envDefault:"1"`
	OTelEndpoint    string        `env:"OTEL_ENDPOINT"`
}

const envPrefix = "SEQCORE_"

// Parse processes command-line arguments on top of the process environment.
// It returns a populated Config, a boolean indicating if the program should
// exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	return parse(args, output, env.Options{Prefix: envPrefix})
}

// ParseWithEnvironment is Parse with an explicit environment instead of the
// process one.
func ParseWithEnvironment(args []string, output io.Writer, environ map[string]string) (*app.Config, bool, error) {
	return parse(args, output, env.Options{Prefix: envPrefix, Environment: environ})
}

func parse(args []string, output io.Writer, opts env.Options) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")

	var e environment
	if err := env.ParseWithOptions(&e, opts); err != nil {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("invalid environment: %v", err)}
	}

	flagSet := flag.NewFlagSet("seqcore", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
seqcore - A headless player for declarative, time-based sequences.

Usage:
  seqcore [options] [PATH]

Arguments:
  PATH
    Path to a single .hcl file or a directory containing .hcl files.

Every option can also be set with a SEQCORE_ environment variable, e.g.
SEQCORE_LOG_LEVEL=debug. Flags take precedence.

Options:
`)
		flagSet.PrintDefaults()
	}

	pathFlag := flagSet.String("path", "", "Path to the sequence file or directory.")
	pFlag := flagSet.String("p", "", "Path to the sequence file or directory (shorthand).")
	sequenceFlag := flagSet.String("sequence", e.Sequence, "Root sequence to play. May be omitted when only one is defined.")
	durationFlag := flagSet.Duration("duration", e.Duration, "Stop playback after this much sequence time. 0 plays until the sequence finishes.")
	tickFlag := flagSet.Duration("tick", e.Tick, "Time advanced per frame.")
	realtimeFlag := flagSet.Bool("realtime", e.Realtime, "Wait one tick of wall time between frames.")
	loopsFlag := flagSet.Int("loops", e.Loops, "Number of loops. -1 loops forever.")
	rateFlag := flagSet.Float64("play-rate", e.PlayRate, "Playback speed multiplier.")
	healthPortFlag := flagSet.Int("healthcheck-port", e.HealthcheckPort, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", e.LogFormat, "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", e.LogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", e.Workers, "Number of concurrent workers evaluating one flush.")
	otelFlag := flagSet.String("otel-endpoint", e.OTelEndpoint, "OTLP/HTTP endpoint for traces. Empty disables tracing.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *pathFlag != "" {
		path = *pathFlag
	} else if *pFlag != "" {
		path = *pFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Sequence path determined.", "path", path)

	if path == "" {
		slog.Debug("No path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	if *rateFlag <= 0 {
		return nil, false, &ExitError{Code: 2, Message: "invalid play-rate: must be positive"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		Path:            path,
		Sequence:        *sequenceFlag,
		Duration:        *durationFlag,
		Tick:            *tickFlag,
		Realtime:        *realtimeFlag,
		LoopCount:       *loopsFlag,
		PlayRate:        *rateFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		HealthcheckPort: *healthPortFlag,
		WorkerCount:     *workersFlag,
		OTelEndpoint:    *otelFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
