// Package logger builds the application-wide zap logger with file rotation.
package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config mirrors the LOGGER_ block of the application configuration.
type Config struct {
	Level      string
	Filename   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
}

// New returns a sugared logger writing to stderr and, when Filename is set,
// a size-rotated file. Env "prod" switches the console encoder to JSON.
func New(cfg Config, env string) (*zap.SugaredLogger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logger.New: parse level %q: %w", cfg.Level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var consoleEnc zapcore.Encoder
	if env == "prod" {
		consoleEnc = zapcore.NewJSONEncoder(encCfg)
	} else {
		devCfg := zap.NewDevelopmentEncoderConfig()
		devCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleEnc = zapcore.NewConsoleEncoder(devCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEnc, zapcore.AddSync(os.Stderr), level),
	}

	if cfg.Filename != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encCfg),
			zapcore.AddSync(rotated),
			level,
		))
	}

	log := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return log.Sugar(), nil
}
