package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/studio-scheduler/internal/application"
	"github.com/example/studio-scheduler/internal/dragdrop"
)

var (
	errBadRequestBody = errors.New("request body is not valid JSON for this endpoint")
	errMissingRange   = errors.New("query parameter from is required (YYYY-MM-DD)")
	errInvalidRange   = errors.New("query parameters from and to must be dates (YYYY-MM-DD) with to not before from")
	errMissingBefore  = errors.New("query parameter before is required (YYYY-MM-DD)")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var (
		vErr        *application.ValidationError
		conflictErr *application.ConflictError
		concurrency *application.ConcurrencyError
	)
	switch {
	case errors.As(err, &conflictErr):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode:    "SCHEDULING_CONFLICT",
			Message:      conflictErr.Error(),
			Conflicts:    toConflictDTOs(conflictErr.Conflicts),
			Alternatives: toAlternativeDTOs(conflictErr.Alternatives),
		})
	case errors.As(err, &concurrency):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "CONCURRENT_UPDATE",
			Message:   "the session was changed by someone else; reload and try again",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: err.Error()})
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			Message: "request contains invalid values",
			Errors:  vErr.FieldErrors,
		})
	case errors.Is(err, application.ErrTooManyGestures):
		r.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{ErrorCode: "GESTURE_LIMIT", Message: "too many open gestures; try again later"})
	case errors.Is(err, dragdrop.ErrNoGesture), errors.Is(err, dragdrop.ErrGestureActive):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{ErrorCode: "GESTURE_STATE", Message: err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		r.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{Message: "request was cancelled"})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error_kind", application.ErrorKind(err), "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: http.StatusText(http.StatusInternalServerError)})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

type errorResponse struct {
	ErrorCode    string            `json:"error_code,omitempty"`
	Message      string            `json:"message"`
	Errors       map[string]string `json:"errors,omitempty"`
	Conflicts    []conflictDTO     `json:"conflicts,omitempty"`
	Alternatives []alternativeDTO  `json:"alternatives,omitempty"`
}
