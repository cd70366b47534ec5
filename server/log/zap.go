package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapLogger writes formatted messages to a zap logger at the info level.
type zapLogger struct {
	s *zap.SugaredLogger
}

// NewZap builds a json zap logger that writes to standard output.
// Debug loggers include the caller and debug level messages.
func NewZap(debug bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	cfg := zap.Config{
		Encoding:         "json",
		Level:            zap.NewAtomicLevelAt(level),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		DisableCaller:    !debug,
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
	}
	return cfg.Build()
}

// NewZapLogger adapts the zap logger to the Logger interface.
func NewZapLogger(l *zap.Logger) Logger {
	z := zapLogger{
		s: l.WithOptions(zap.AddCallerSkip(1)).Sugar(),
	}
	return z
}

// Printf implements the Logger interface.
func (z zapLogger) Printf(format string, v ...interface{}) {
	z.s.Infof(format, v...)
}
