// ABOUTME: Structured logging on top of zap's SugaredLogger.
// ABOUTME: Key-value helpers redact credentials before they reach the log sink.
package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps a zap SugaredLogger.
type Logger struct {
	SugaredLogger *zap.SugaredLogger
}

// New builds a logger. mode "prod"/"production" emits JSON at info level;
// anything else is the human-readable development config at debug level.
func New(mode string) (*Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	if isProd(mode) {
		cfg = zap.NewProductionConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &Logger{SugaredLogger: zapLogger.Sugar()}, nil
}

// FileOptions controls rotation of a log file.
type FileOptions struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewWithFile logs like New and also writes JSON lines to a size-rotated
// file at path. An empty path is the same as New.
func NewWithFile(mode, path string, opts FileOptions) (*Logger, error) {
	if path == "" {
		return New(mode)
	}
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 50
	}

	level := zapcore.DebugLevel
	console := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	if isProd(mode) {
		level = zapcore.InfoLevel
		console = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	core := zapcore.NewTee(
		zapcore.NewCore(console, zapcore.Lock(os.Stderr), level),
		zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(rotator), level),
	)
	return &Logger{SugaredLogger: zap.New(core, zap.AddCaller()).Sugar()}, nil
}

func isProd(mode string) bool {
	switch strings.ToLower(mode) {
	case "prod", "production":
		return true
	}
	return false
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...any) {
	l.SugaredLogger.Debugw(msg, sanitizeKVs(keysAndValues)...)
}

func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.SugaredLogger.Infow(msg, sanitizeKVs(keysAndValues)...)
}

func (l *Logger) Warn(msg string, keysAndValues ...any) {
	l.SugaredLogger.Warnw(msg, sanitizeKVs(keysAndValues)...)
}

func (l *Logger) Error(msg string, keysAndValues ...any) {
	l.SugaredLogger.Errorw(msg, sanitizeKVs(keysAndValues)...)
}

// With returns a child logger carrying the given fields.
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(sanitizeKVs(keysAndValues)...)}
}

func sanitizeKVs(kv []any) []any {
	if len(kv) == 0 {
		return kv
	}
	out := make([]any, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		key := fmt.Sprint(kv[i])
		if isRedactKey(strings.ToLower(key)) {
			out = append(out, key, "[REDACTED]")
			continue
		}
		out = append(out, key, kv[i+1])
	}
	return out
}

func isRedactKey(key string) bool {
	for _, s := range []string{"token", "authorization", "secret", "password"} {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}
