// Package logging builds the operator logger. Records go to stderr (or
// a file) so they never mix with command output on stdout.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the operator log destination and verbosity.
type Config struct {
	// Level is debug, info, warn or error. Empty means warn.
	Level string

	// Format is console or json. Empty means console.
	Format string

	// Output is stderr or a file path. Empty means stderr.
	Output string

	// Quiet raises the level to error; Verbose lowers it to debug.
	// Verbose wins when both are set.
	Quiet   bool
	Verbose bool
}

// ParseLevel converts a level name to a zap level. Unknown names fall
// back to warn.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}

// EffectiveLevel applies the quiet and verbose overrides.
func (c Config) EffectiveLevel() zapcore.Level {
	switch {
	case c.Verbose:
		return zapcore.DebugLevel
	case c.Quiet:
		return zapcore.ErrorLevel
	default:
		return ParseLevel(c.Level)
	}
}

// New returns a logger for cfg and a function that flushes and releases
// it. A log file that cannot be opened falls back to stderr with a
// warning.
func New(cfg Config) (*zap.Logger, func(), error) {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""

	var enc zapcore.Encoder
	switch cfg.Format {
	case "", "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		encCfg = zap.NewProductionEncoderConfig()
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	sink := zapcore.Lock(os.Stderr)
	closeSink := func() {}
	var fallback error
	if cfg.Output != "" && cfg.Output != "stderr" {
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			fallback = err
		} else {
			sink = zapcore.Lock(f)
			closeSink = func() { _ = f.Close() }
		}
	}

	log := zap.New(zapcore.NewCore(enc, sink, zap.NewAtomicLevelAt(cfg.EffectiveLevel())))
	if fallback != nil {
		log.Warn("log file unavailable, using stderr", zap.String("path", cfg.Output), zap.Error(fallback))
	}

	return log, func() {
		_ = log.Sync()
		closeSink()
	}, nil
}
