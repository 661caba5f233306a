// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapLogger adapts a *zap.Logger to Logger. Levels map onto an atomic zap
// level so SetLevel takes effect without rebuilding the core.
type zapLogger struct {
	level zap.AtomicLevel
	sugar *zap.SugaredLogger
}

// NewZap wraps l. Messages below LevelInfo are dropped until SetLevel says otherwise.
func NewZap(l *zap.Logger) Logger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	core := &levelCore{Core: l.Core(), level: level}
	return &zapLogger{
		level: level,
		sugar: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar(),
	}
}

// levelCore gates an existing core with an extra atomic level. Entries that
// pass the gate are still checked by the wrapped core, so its own sampling
// and filtering apply.
type levelCore struct {
	zapcore.Core
	level zap.AtomicLevel
}

func (c *levelCore) Enabled(lvl zapcore.Level) bool {
	return c.level.Enabled(lvl) && c.Core.Enabled(lvl)
}

func (c *levelCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelCore{Core: c.Core.With(fields), level: c.level}
}

func (c *levelCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.level.Enabled(ent.Level) {
		return c.Core.Check(ent, ce)
	}
	return ce
}

// SetLevel .
func (l *zapLogger) SetLevel(lvl int) {
	switch lvl {
	case LevelAll, LevelDebug:
		l.level.SetLevel(zapcore.DebugLevel)
	case LevelInfo:
		l.level.SetLevel(zapcore.InfoLevel)
	case LevelWarn:
		l.level.SetLevel(zapcore.WarnLevel)
	case LevelError:
		l.level.SetLevel(zapcore.ErrorLevel)
	case LevelNone:
		l.level.SetLevel(zapcore.FatalLevel + 1)
	}
}

// Debug .
func (l *zapLogger) Debug(format string, v ...interface{}) {
	l.sugar.Debugf(format, v...)
}

// Info .
func (l *zapLogger) Info(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

// Warn .
func (l *zapLogger) Warn(format string, v ...interface{}) {
	l.sugar.Warnf(format, v...)
}

// Error .
func (l *zapLogger) Error(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}
