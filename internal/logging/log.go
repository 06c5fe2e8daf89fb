// Package logging provides the process-wide structured logger for coinshaft.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.SugaredLogger

// Init initializes the global logger with the given level ("debug", "info",
// "warn", "error"), format ("json" or "console"), and optional log file path.
func Init(level, format, file string) error {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	var encoder zapcore.Encoder
	if format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var writeSyncer zapcore.WriteSyncer
	if file != "" {
		f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		writeSyncer = zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout), zapcore.AddSync(f))
	} else {
		writeSyncer = zapcore.AddSync(os.Stdout)
	}

	core := zapcore.NewCore(encoder, writeSyncer, zapLevel)
	zapLogger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	logger = zapLogger.Sugar()

	return nil
}

// Log returns the global logger, lazily defaulting to a development logger
// if Init was never called (e.g. in unit tests).
func Log() *zap.SugaredLogger {
	if logger == nil {
		zapLogger, _ := zap.NewDevelopment()
		logger = zapLogger.Sugar()
	}
	return logger
}

func Debug(args ...interface{})                    { Log().Debug(args...) }
func Debugf(template string, args ...interface{})   { Log().Debugf(template, args...) }
func Info(args ...interface{})                      { Log().Info(args...) }
func Infof(template string, args ...interface{})    { Log().Infof(template, args...) }
func Warn(args ...interface{})                      { Log().Warn(args...) }
func Warnf(template string, args ...interface{})    { Log().Warnf(template, args...) }
func Error(args ...interface{})                      { Log().Error(args...) }
func Errorf(template string, args ...interface{})   { Log().Errorf(template, args...) }
func Fatal(args ...interface{})                      { Log().Fatal(args...) }
func Fatalf(template string, args ...interface{})   { Log().Fatalf(template, args...) }
