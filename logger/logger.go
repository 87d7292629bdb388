package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu  sync.Mutex
	log = zap.NewNop()
)

// New builds a zap logger. format "json" selects the production encoder,
// anything else the development console encoder.
func New(levelStr, format string) *zap.Logger {
	level := zapcore.InfoLevel
	switch levelStr {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	l, _ := cfg.Build()
	return l
}

// Setup installs the process-wide logger. Call once from main.
func Setup(levelStr, format string) {
	mu.Lock()
	log = New(levelStr, format)
	mu.Unlock()
}

// L returns the process-wide logger (a no-op logger until Setup runs, so
// tests stay quiet without configuration).
func L() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	return log
}
