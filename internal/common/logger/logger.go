package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

var level = new(slog.LevelVar)

// SetLevel changes the level of every logger built by New.
func SetLevel(l slog.Level) { level.Set(l) }

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger writes one JSON object per line keyed by action.
type Logger struct {
	service string
	sl      *slog.Logger
}

func New(service string) *Logger { return NewWithWriter(service, os.Stdout, level) }

func NewWithWriter(service string, w io.Writer, lv slog.Leveler) *Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lv,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				a.Key = "timestamp"
				a.Value = slog.StringValue(a.Value.Time().UTC().Format("2006-01-02T15:04:05.000000000Z07:00"))
			}
			if len(groups) == 0 && a.Key == slog.MessageKey {
				a.Key = "action"
			}
			return a
		},
	})
	sl := slog.New(h).With("service", service, "hostname", hostname())
	return &Logger{service: service, sl: sl}
}

// Nop discards everything.
func Nop() *Logger { return NewWithWriter("nop", io.Discard, slog.LevelError+1) }

// With returns a logger that adds fields to every entry.
func (l *Logger) With(fields map[string]any) *Logger {
	return &Logger{service: l.service, sl: l.sl.With(attrs(fields)...)}
}

func (l *Logger) WithRequestID(id string) *Logger {
	return &Logger{service: l.service, sl: l.sl.With("request_id", id)}
}

func (l *Logger) Info(action string, fields map[string]any)  { l.log(slog.LevelInfo, action, fields, nil) }
func (l *Logger) Debug(action string, fields map[string]any) { l.log(slog.LevelDebug, action, fields, nil) }
func (l *Logger) Warn(action string, fields map[string]any)  { l.log(slog.LevelWarn, action, fields, nil) }
func (l *Logger) Error(action string, err error, fields map[string]any) {
	l.log(slog.LevelError, action, fields, err)
}

func (l *Logger) log(lv slog.Level, action string, fields map[string]any, err error) {
	ctx := context.Background()
	if !l.sl.Enabled(ctx, lv) {
		return
	}
	args := attrs(fields)
	if err != nil {
		args = append(args, slog.Group("error", "msg", err.Error(), "type", fmt.Sprintf("%T", err)))
	}
	l.sl.Log(ctx, lv, action, args...)
}

func attrs(fields map[string]any) []any {
	out := make([]any, 0, len(fields))
	for k, v := range fields {
		out = append(out, slog.Any(k, v))
	}
	return out
}

func hostname() string {
	h, _ := os.Hostname()
	return h
}
