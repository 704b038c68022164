package tcp

import (
	"context"
	"log/slog"
)

// levelTrace sits below slog's built-in Debug level so PCB/timer chatter can
// be filtered out independently of ordinary debug logging, the way the
// teacher package's internal.LevelTrace does.
const levelTrace slog.Level = slog.LevelDebug - 2

// logger is a small embeddable value carrying an optional *slog.Logger,
// mirroring the teacher package's logger type (internet/basicstack.go):
// every call is a cheap nil check when logging is disabled.
type logger struct {
	log *slog.Logger
}

func (l logger) enabled(lvl slog.Level) bool {
	return l.log != nil && l.log.Handler().Enabled(context.Background(), lvl)
}

func (l logger) logAttrs(lvl slog.Level, msg string, attrs ...slog.Attr) {
	if l.log != nil {
		l.log.LogAttrs(context.Background(), lvl, msg, attrs...)
	}
}

func (l logger) trace(msg string, attrs ...slog.Attr) { l.logAttrs(levelTrace, msg, attrs...) }
func (l logger) debug(msg string, attrs ...slog.Attr)  { l.logAttrs(slog.LevelDebug, msg, attrs...) }
func (l logger) info(msg string, attrs ...slog.Attr)   { l.logAttrs(slog.LevelInfo, msg, attrs...) }
func (l logger) warn(msg string, attrs ...slog.Attr)   { l.logAttrs(slog.LevelWarn, msg, attrs...) }
func (l logger) error(msg string, attrs ...slog.Attr)  { l.logAttrs(slog.LevelError, msg, attrs...) }
