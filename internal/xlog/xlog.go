// Package xlog wraps go.uber.org/zap behind a narrow interface, matching
// the Infof/Warnf/Errorf/Debugf call shape used throughout the ancestor
// codebase's contrib/log facade (see main.go / server/server.go call
// sites), but built fresh here since that facade's implementation wasn't
// part of the retrieved sources.
package xlog

import (
	"go.uber.org/zap"
)

// Logger is the narrow logging surface the core packages depend on.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	With(args ...any) Logger
}

type sugared struct {
	s *zap.SugaredLogger
}

// New builds a Logger at the given level ("debug", "info", "warn", "error").
// Unrecognized levels fall back to "info".
func New(level string) Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.ConsoleSeparator = " "

	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}

	l, err := cfg.Build()
	if err != nil {
		l = zap.NewExample()
	}
	return &sugared{s: l.Sugar()}
}

// Nop returns a Logger that discards everything, useful in tests.
func Nop() Logger {
	return &sugared{s: zap.NewNop().Sugar()}
}

func (l *sugared) Debugf(format string, args ...any) { l.s.Debugf(format, args...) }
func (l *sugared) Infof(format string, args ...any)  { l.s.Infof(format, args...) }
func (l *sugared) Warnf(format string, args ...any)  { l.s.Warnf(format, args...) }
func (l *sugared) Errorf(format string, args ...any) { l.s.Errorf(format, args...) }

func (l *sugared) With(args ...any) Logger {
	return &sugared{s: l.s.With(args...)}
}
