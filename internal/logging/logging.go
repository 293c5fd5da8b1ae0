// Package logging sets up the CLI's global zap logger, with lumberjack
// rotating the log file when one is configured. Grounded on
// SyncdevWu-gokv's main.go (zap.L()/zap.ReplaceGlobals after config load)
// and its go.mod pairing of go.uber.org/zap with
// gopkg.in/natefinch/lumberjack.v2 for rotation.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config is the subset of CLI flags that shape the logger.
type Config struct {
	// Filename is the log file path. Empty means stderr only.
	Filename   string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Debug      bool
}

// Init builds and installs the global zap logger, returning it so the
// caller can defer Sync(). The decoder package itself never logs —
// only the CLI and this package own a logger (SPEC_FULL.md §10).
func Init(cfg Config) *zap.Logger {
	level := zapcore.InfoLevel
	if cfg.Debug {
		level = zapcore.DebugLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var sink zapcore.WriteSyncer = zapcore.AddSync(os.Stderr)
	if cfg.Filename != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSizeMB,
			MaxAge:     cfg.MaxAgeDays,
			MaxBackups: cfg.MaxBackups,
		}
		sink = zapcore.NewMultiWriteSyncer(sink, zapcore.AddSync(rotator))
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), sink, level)
	logger := zap.New(core)
	zap.ReplaceGlobals(logger)
	return logger
}
