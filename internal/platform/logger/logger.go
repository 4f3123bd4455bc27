// Package logger provides the structured logger every long-running loop in
// the engine takes: dispatcher, worker consumer loops, result router,
// autoscaler ticks.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/linkflow-ai/taskengine/internal/platform/config"
)

// Logger is the structured logging interface used throughout the engine.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	With(fields map[string]interface{}) Logger
}

// ZapLogger wraps a zap.SugaredLogger.
type ZapLogger struct {
	logger *zap.SugaredLogger
	fields map[string]interface{}
}

// New builds a Logger at the configured level, writing JSON to stdout.
func New(level config.LogLevel) Logger {
	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.TimeKey = "ts"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	switch level {
	case config.LogDebug:
		zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case config.LogWarning:
		zapConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case config.LogError, config.LogCritical:
		zapConfig.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	zapConfig.OutputPaths = []string{"stdout"}

	built, err := zapConfig.Build(zap.AddCaller(), zap.AddCallerSkip(1))
	if err != nil {
		// Logging can't be constructed; fall back to a no-op build so the
		// engine still starts.
		built = zap.NewNop()
		os.Stderr.WriteString("logger: falling back to noop: " + err.Error() + "\n")
	}

	return &ZapLogger{logger: built.Sugar(), fields: make(map[string]interface{})}
}

func (l *ZapLogger) Debug(msg string, fields ...interface{}) {
	l.logger.With(l.flatten()...).Debugw(msg, fields...)
}

func (l *ZapLogger) Info(msg string, fields ...interface{}) {
	l.logger.With(l.flatten()...).Infow(msg, fields...)
}

func (l *ZapLogger) Warn(msg string, fields ...interface{}) {
	l.logger.With(l.flatten()...).Warnw(msg, fields...)
}

func (l *ZapLogger) Error(msg string, fields ...interface{}) {
	l.logger.With(l.flatten()...).Errorw(msg, fields...)
}

// With returns a derived logger carrying the given fields on every entry.
func (l *ZapLogger) With(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &ZapLogger{logger: l.logger, fields: merged}
}

func (l *ZapLogger) flatten() []interface{} {
	out := make([]interface{}, 0, len(l.fields)*2)
	for k, v := range l.fields {
		out = append(out, k, v)
	}
	return out
}
