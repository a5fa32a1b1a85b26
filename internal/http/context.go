package http

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/example/studio-scheduler/internal/logging"
)

// ContextWithLogger returns a derived context carrying the request logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext extracts the request logger if one was attached.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// handlerLogger prefers the request logger over fallback and tags it with the
// handler, the operation and the matched chi route.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = defaultLogger(fallback)
	}

	pairs := append([]any{"handler", handlerName, "operation", operation}, attrs...)
	if rctx := chi.RouteContext(ctx); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			pairs = append(pairs, "route", pattern)
		}
	}
	return logger.With(pairs...)
}
