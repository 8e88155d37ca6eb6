// Package logging builds the zap logger used across stepdiff.
//
// The terminal belongs to the viewer, so log records go to a size-rotated
// JSON file managed by lumberjack rather than to stderr.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures New.
type Options struct {
	File       string // Empty disables logging.
	Level      string // debug, info, warn or error; empty means info.
	MaxSizeMB  int
	MaxBackups int
}

// New returns a logger writing to opts.File and a function that flushes
// and closes it. With an empty File the logger discards everything.
func New(opts Options) (*zap.Logger, func(), error) {
	if opts.File == "" {
		return zap.NewNop(), func() {}, nil
	}

	level := zapcore.InfoLevel
	if opts.Level != "" {
		var err error
		level, err = zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("logging: creating log directory: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotator), level)
	logger := zap.New(core, zap.AddCaller())

	cleanup := func() {
		_ = logger.Sync()
		_ = rotator.Close()
	}
	return logger, cleanup, nil
}
