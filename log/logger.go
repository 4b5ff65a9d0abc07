// Copyright 2026 The axus Authors
// This file is part of the axus library.
//
// The axus library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The axus library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the axus library. If not, see <http://www.gnu.org/licenses/>.

package log

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the contextual logger handed out to every package. Key/value
// pairs attached with New or NewWith are carried on each record.
type Logger interface {
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	NewWith(ctx ...interface{}) Logger
}

var (
	rootMu sync.RWMutex
	root   *zap.SugaredLogger
)

func init() {
	l, _ := zap.NewDevelopment()
	root = l.Sugar()
}

// Init replaces the process-wide sink. The daemon calls it exactly once;
// tests and libraries never do.
func Init(level string, json bool) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	if !json {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build()
	if err != nil {
		return err
	}

	rootMu.Lock()
	root = l.Sugar()
	rootMu.Unlock()
	return nil
}

// New returns a logger carrying the given key/value context.
func New(ctx ...interface{}) Logger {
	rootMu.RLock()
	defer rootMu.RUnlock()
	return &zapLogger{sugar: root.With(ctx...)}
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

func (l *zapLogger) Debug(msg string, ctx ...interface{}) { l.sugar.Debugw(msg, ctx...) }
func (l *zapLogger) Info(msg string, ctx ...interface{})  { l.sugar.Infow(msg, ctx...) }
func (l *zapLogger) Warn(msg string, ctx ...interface{})  { l.sugar.Warnw(msg, ctx...) }
func (l *zapLogger) Error(msg string, ctx ...interface{}) { l.sugar.Errorw(msg, ctx...) }

func (l *zapLogger) NewWith(ctx ...interface{}) Logger {
	return &zapLogger{sugar: l.sugar.With(ctx...)}
}
