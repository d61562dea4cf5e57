// Package logger предоставляет единый интерфейс логирования поверх zap.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger — интерфейс логгера, который используется во всех слоях приложения.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(err error, format string, args ...any)
	With(keysAndValues ...any) Logger
	Sync() error
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger создаёт логгер для окружения env.
// prod — JSON-вывод, остальные окружения — консольный вывод для разработки.
// level (если не пустой) переопределяет уровень: debug, info, warn, error.
func NewZapLogger(env string, level string) (Logger, error) {
	var cfg zap.Config
	switch env {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	case "", "local", "dev", "docker", "test":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown environment %q for logger", env)
	}

	if level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := cfg.Build(zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return &zapLogger{sugar: l.Sugar()}, nil
}

// NewFromZap оборачивает готовый *zap.Logger.
func NewFromZap(l *zap.Logger) Logger {
	return &zapLogger{sugar: l.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// NewNop возвращает логгер, который ничего не пишет.
func NewNop() Logger {
	return &zapLogger{sugar: zap.NewNop().Sugar()}
}

func (l *zapLogger) Debugf(format string, args ...any) {
	l.sugar.Debugf(format, args...)
}

func (l *zapLogger) Infof(format string, args ...any) {
	l.sugar.Infof(format, args...)
}

func (l *zapLogger) Warnf(format string, args ...any) {
	l.sugar.Warnf(format, args...)
}

// Errorf пишет сообщение уровня error, прикладывая ошибку отдельным полем.
func (l *zapLogger) Errorf(err error, format string, args ...any) {
	l.sugar.With(zap.Error(err)).Errorf(format, args...)
}

func (l *zapLogger) With(keysAndValues ...any) Logger {
	return &zapLogger{sugar: l.sugar.With(keysAndValues...)}
}

func (l *zapLogger) Sync() error {
	return l.sugar.Sync()
}
