// Package logger provides the structured logging facade used across the
// resource-server core. It wraps a zap.SugaredLogger behind a small,
// swappable singleton so packages can log without threading a logger
// through every constructor.
package logger

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global atomic.Pointer[zap.SugaredLogger]

func init() {
	Initialize()
}

// Initialize builds the default production logger (JSON encoding, info
// level) and installs it as the package singleton.
func Initialize() {
	level := zapcore.InfoLevel
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = zapcore.DebugLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		l = zap.NewNop()
	}
	global.Store(l.Sugar())
}

// Set installs a caller-provided logger as the package singleton. Tests use
// this to install an observer core.
func Set(l *zap.SugaredLogger) {
	global.Store(l)
}

// Get returns the current singleton logger.
func Get() *zap.SugaredLogger {
	if l := global.Load(); l != nil {
		return l
	}
	return zap.NewNop().Sugar()
}

// Debugf logs at debug level with printf-style formatting.
func Debugf(template string, args ...any) { Get().Debugf(template, args...) }

// Infof logs at info level with printf-style formatting.
func Infof(template string, args ...any) { Get().Infof(template, args...) }

// Warnf logs at warn level with printf-style formatting.
func Warnf(template string, args ...any) { Get().Warnf(template, args...) }

// Errorf logs at error level with printf-style formatting.
func Errorf(template string, args ...any) { Get().Errorf(template, args...) }

// Infow logs a message with structured key/value pairs.
func Infow(msg string, keysAndValues ...any) { Get().Infow(msg, keysAndValues...) }

// Warnw logs a message with structured key/value pairs.
func Warnw(msg string, keysAndValues ...any) { Get().Warnw(msg, keysAndValues...) }

// Errorw logs a message with structured key/value pairs.
func Errorw(msg string, keysAndValues ...any) { Get().Errorw(msg, keysAndValues...) }

// Debugw logs a message with structured key/value pairs.
func Debugw(msg string, keysAndValues ...any) { Get().Debugw(msg, keysAndValues...) }
