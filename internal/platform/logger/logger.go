// Package logger configures the process-wide zap logger (console encoder, optional lumberjack rotation).
package logger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu    sync.RWMutex
	sugar = zap.NewNop().Sugar()
)

// Conf holds logger options.
type Conf struct {
	Output     string // stdout or file
	Path       string
	Filename   string
	Level      string
	MaxAgeDays int
	RotateSize int // MB
	RotateNum  int
}

// Defaults returns the default stdout INFO configuration.
func Defaults() Conf {
	return Conf{
		Output:     "stdout",
		Path:       "./logs",
		Filename:   "tenantdesk.log",
		Level:      "INFO",
		MaxAgeDays: 7,
		RotateSize: 100,
		RotateNum:  10,
	}
}

// New builds a sugared logger from conf without installing it globally.
func New(conf Conf) (*zap.SugaredLogger, error) {
	var ws zapcore.WriteSyncer
	switch strings.ToLower(conf.Output) {
	case "", "stdout":
		ws = zapcore.AddSync(os.Stdout)
	case "file":
		if conf.Path == "" {
			return nil, fmt.Errorf("logger: path is required when output is file")
		}
		ws = fileWriter(conf)
	default:
		return nil, fmt.Errorf("logger: unknown output %q", conf.Output)
	}
	core := zapcore.NewCore(encoder(), ws, ParseLevel(conf.Level))
	return zap.New(core, zap.AddCaller()).Sugar(), nil
}

// Init builds the logger and installs it as the package default returned by L.
func Init(conf Conf) error {
	s, err := New(conf)
	if err != nil {
		return err
	}
	mu.Lock()
	sugar = s
	mu.Unlock()
	s.Debugw("logger initialized", "output", conf.Output, "level", conf.Level)
	return nil
}

// L returns the process logger. It is a no-op logger until Init is called.
func L() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// Set replaces the process logger; tests use it with zaptest/observer.
func Set(s *zap.SugaredLogger) {
	mu.Lock()
	sugar = s
	mu.Unlock()
}

// Sync flushes buffered entries.
func Sync() {
	_ = L().Sync()
}

// Ctx returns L with trace_id/span_id fields when ctx carries a valid span.
func Ctx(ctx context.Context) *zap.SugaredLogger {
	l := L()
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	return l.With("trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
}

// ParseLevel maps DEBUG/INFO/WARN/ERROR (case-insensitive) to a zap level; unknown values are INFO.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func encoder() zapcore.Encoder {
	ec := zap.NewDevelopmentEncoderConfig()
	ec.TimeKey = "time"
	ec.MessageKey = "msg"
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	ec.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format("2006-01-02 15:04:05"))
	}
	ec.EncodeDuration = zapcore.StringDurationEncoder
	ec.EncodeCaller = zapcore.ShortCallerEncoder
	return zapcore.NewConsoleEncoder(ec)
}

func fileWriter(conf Conf) zapcore.WriteSyncer {
	name := conf.Filename
	if name == "" {
		name = Defaults().Filename
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(conf.Path, name),
		MaxSize:    conf.RotateSize,
		MaxBackups: conf.RotateNum,
		MaxAge:     conf.MaxAgeDays,
		Compress:   true,
	})
}
