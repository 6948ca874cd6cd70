// Copyright (c) JerryScript Project. All rights reserved.
// Licensed under the MIT License.

// Package logger builds the logr.Logger used throughout this module on
// top of zap: a human-readable console encoder on stderr, gated by a
// verbosity flag the caller can wire into a cobra command.
package logger

import (
	"os"
	"runtime"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	verbosityFlagName      = "verbosity"
	verbosityFlagShortName = "v"
)

// Logger wraps a logr.Logger with the zap plumbing needed to change its
// level at runtime and flush buffered output before exit.
type Logger struct {
	logr.Logger
	atomicLevel zap.AtomicLevel
	flush       func()
}

// New builds a Logger named name that writes to stderr.
func New(name string) *Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if runtime.GOOS == "windows" {
		encoderConfig.LineEnding = "\r\n"
	}
	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)

	atomicLevel := zap.NewAtomicLevel()
	core := zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), atomicLevel)

	zapLogger := zap.New(core).Named(name)
	log := zapr.NewLogger(zapLogger)

	return &Logger{
		Logger:      log,
		atomicLevel: atomicLevel,
		flush:       func() { _ = zapLogger.Sync() },
	}
}

func (l *Logger) WithName(name string) *Logger {
	l.Logger = l.Logger.WithName(name)
	return l
}

func (l *Logger) SetLevel(level zapcore.Level) {
	l.atomicLevel.SetLevel(level)
}

// Flush blocks until buffered log output has been written out; call it
// once before process exit.
func (l *Logger) Flush() {
	l.flush()
}

// AddLevelFlag registers a -v/--verbosity flag that adjusts this
// Logger's level live, for a cobra command's persistent flag set.
func (l *Logger) AddLevelFlag(fs *pflag.FlagSet) {
	levelVal := NewLevelFlagValue(l.SetLevel)
	fs.VarP(&levelVal, verbosityFlagName, verbosityFlagShortName,
		"Logging verbosity (one of 'debug', 'info', 'error', or a positive integer for increasing debug verbosity)")
}
