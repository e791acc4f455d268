package log

import (
	"context"
	"log/slog"

	"go.uber.org/zap/zapcore"
)

// AsSlog exposes the logger through the standard slog front end, for
// libraries that take a *slog.Logger. Entries flow through the same
// core and hooks.
func (l *Logger) AsSlog() *slog.Logger {
	return slog.New(&slogHandler{logger: l})
}

type slogHandler struct {
	logger *Logger
	prefix string
	attrs  []Field
}

func (h *slogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.level.Enabled(slogToZapLevel(level))
}

func (h *slogHandler) Handle(ctx context.Context, rec slog.Record) error {
	fields := make([]Field, 0, len(h.attrs)+rec.NumAttrs())
	fields = append(fields, h.attrs...)

	rec.Attrs(func(a slog.Attr) bool {
		fields = append(fields, h.field(a))
		return true
	})

	h.logger.log(ctx, slogToZapLevel(rec.Level), rec.Message, fields)

	return nil
}

func (h *slogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	fields := make([]Field, 0, len(h.attrs)+len(attrs))
	fields = append(fields, h.attrs...)

	for _, a := range attrs {
		fields = append(fields, h.field(a))
	}

	return &slogHandler{logger: h.logger, prefix: h.prefix, attrs: fields}
}

func (h *slogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	return &slogHandler{logger: h.logger, prefix: h.prefix + name + ".", attrs: h.attrs}
}

func (h *slogHandler) field(a slog.Attr) Field {
	return Any(h.prefix+a.Key, a.Value.Any())
}

func slogToZapLevel(level slog.Level) zapcore.Level {
	switch {
	case level >= slog.LevelError:
		return zapcore.ErrorLevel
	case level >= slog.LevelWarn:
		return zapcore.WarnLevel
	case level >= slog.LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
