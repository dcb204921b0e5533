package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/coursegrid/coursegrid/internal/platform/middleware"
)

// NewLogger builds the process logger. Records logged with a request context
// carry that request's id, so denials and audit failures can be joined with
// the access log line.
func NewLogger(level, format string, w ...io.Writer) *slog.Logger {
	var writer io.Writer = os.Stderr
	if len(w) > 0 {
		writer = w[0]
	}

	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}

	return slog.New(requestHandler{handler}).With("service", "coursegrid")
}

func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}

// requestHandler adds request_id to records logged inside a request unless
// the caller already set it.
type requestHandler struct {
	slog.Handler
}

func (h requestHandler) Handle(ctx context.Context, rec slog.Record) error {
	if id := middleware.GetRequestID(ctx); id != "" && !hasAttr(rec, "request_id") {
		rec.AddAttrs(slog.String("request_id", id))
	}
	return h.Handler.Handle(ctx, rec)
}

func hasAttr(rec slog.Record, key string) bool {
	found := false
	rec.Attrs(func(a slog.Attr) bool {
		found = a.Key == key
		return !found
	})
	return found
}

func (h requestHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return requestHandler{h.Handler.WithAttrs(attrs)}
}

func (h requestHandler) WithGroup(name string) slog.Handler {
	return requestHandler{h.Handler.WithGroup(name)}
}

func parseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		if strings.EqualFold(level, "warning") {
			return slog.LevelWarn
		}
		return slog.LevelInfo
	}
	return lvl
}
