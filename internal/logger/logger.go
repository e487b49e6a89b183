// README: JSON structured logger carrying service, hostname and request_id.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type ctxKey struct{}

var base = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// Init installs the process-wide logger. Every entry carries the service name
// and hostname; level is one of debug, info, warn, error.
func Init(service, level string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	host, _ := os.Hostname()
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	base = slog.New(h).With("service", service, "hostname", host)
	slog.SetDefault(base)
	return base
}

// WithRequestID returns a context whose logger tags entries with request_id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, base.With("request_id", requestID))
}

// FromContext returns the request-scoped logger, or the base logger.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return base
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
