package log

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var defaultLogger *zap.Logger

type Log struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

func init() {
	var err error
	defaultLogger, err = build(zap.InfoLevel, false, "")
	if err != nil {
		panic(fmt.Sprintf("[LOGGER] ERROR: %v\n", err))
	}
}

func build(level zapcore.Level, stack bool, path string) (*zap.Logger, error) {
	outputs := []string{"stdout"}
	if path != "" {
		outputs = append(outputs, path)
	}

	var zc = zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       false,
		DisableCaller:     true,
		DisableStacktrace: !stack,
		Sampling:          nil,
		Encoding:          "json",
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:     "message",
			LevelKey:       "level",
			TimeKey:        "time",
			NameKey:        "name",
			CallerKey:      "caller",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
			EncodeName:     zapcore.FullNameEncoder,
		},
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}
	return zc.Build()
}

// ParseLevel maps the configured level name, falling back to info.
func ParseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func UpdateLogger(l *Log) error {
	defaultLogger.Sync()

	level := ParseLevel(l.Level)
	newLogger, err := build(level, level == zap.DebugLevel, l.Path)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defaultLogger = newLogger
	return nil
}

func CloseLogger() {
	defaultLogger.Sync()
}
func Error(s string, f ...zap.Field) {
	defaultLogger.Error(s, f...)
}
func Warn(s string, f ...zap.Field) {
	defaultLogger.Warn(s, f...)
}
func Info(s string, f ...zap.Field) {
	defaultLogger.Info(s, f...)
}
func Debug(s string, f ...zap.Field) {
	defaultLogger.Debug(s, f...)
}
func Panic(s string, f ...zap.Field) {
	defaultLogger.Panic(s, f...)
}
func Fatal(s string, f ...zap.Field) {
	defaultLogger.Fatal(s, f...)
}
