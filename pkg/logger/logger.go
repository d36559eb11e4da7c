// Package logger builds the zap loggers used by the migrator and the market bindings.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerConfig holds the configuration for logger creation.
type LoggerConfig struct {
	// Debug enables debug-level logging when true, otherwise uses info level
	Debug bool
}

// NewLogger creates a production (JSON, ISO8601 timestamps) logger. Caller
// annotations are always on; extra options are applied after the defaults.
func NewLogger(cfg *LoggerConfig, options ...zap.Option) (*zap.Logger, error) {
	mergedOptions := append([]zap.Option{zap.WithCaller(true)}, options...)

	c := zap.NewProductionConfig()
	c.EncoderConfig = zap.NewProductionEncoderConfig()
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zap.InfoLevel
	if cfg != nil && cfg.Debug {
		level = zap.DebugLevel
	}
	c.Level = zap.NewAtomicLevelAt(level)

	return c.Build(mergedOptions...)
}
