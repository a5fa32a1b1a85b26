package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/studio-scheduler/internal/application"
	"github.com/example/studio-scheduler/internal/calendar"
	"github.com/example/studio-scheduler/internal/dragdrop"
)

type gestureService interface {
	Start(ctx context.Context, sessionID string) (string, error)
	Hover(ctx context.Context, gestureID string, target dragdrop.Target, wait bool) (dragdrop.Preview, error)
	Preview(gestureID string) (dragdrop.Preview, error)
	Drop(ctx context.Context, gestureID string, target *dragdrop.Target) (dragdrop.DropResult, error)
	Cancel(gestureID string) error
}

// GestureHandler hosts drag gestures for clients that cannot run the
// coordinator themselves.
type GestureHandler struct {
	service   gestureService
	responder responder
	logger    *slog.Logger
}

// NewGestureHandler wires the gesture endpoints to service.
func NewGestureHandler(service gestureService, logger *slog.Logger) *GestureHandler {
	return &GestureHandler{service: service, responder: newResponder(logger), logger: defaultLogger(logger)}
}

// Start begins dragging a session.
func (h *GestureHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startGestureRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	id, err := h.service.Start(r.Context(), strings.TrimSpace(req.SessionID))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	preview, err := h.service.Preview(id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toPreviewDTO(preview))
}

// Get returns the render state of a gesture.
func (h *GestureHandler) Get(w http.ResponseWriter, r *http.Request) {
	preview, err := h.service.Preview(chi.URLParam(r, "id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toPreviewDTO(preview))
}

// Hover moves the gesture over a target. With wait set the response carries
// the finished check; otherwise it may still be pending.
func (h *GestureHandler) Hover(w http.ResponseWriter, r *http.Request) {
	var req hoverRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	preview, err := h.service.Hover(r.Context(), chi.URLParam(r, "id"), req.Target.toTarget(), req.Wait)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toPreviewDTO(preview))
}

// Drop ends a gesture. A missing target cancels it.
func (h *GestureHandler) Drop(w http.ResponseWriter, r *http.Request) {
	var req dropRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	var target *dragdrop.Target
	if req.Target != nil {
		t := req.Target.toTarget()
		target = &t
	}

	logger := handlerLogger(r.Context(), h.logger, "GestureHandler", "Drop", "gesture_id", chi.URLParam(r, "id"))
	result, err := h.service.Drop(r.Context(), chi.URLParam(r, "id"), target)
	if err != nil {
		if result.Outcome == dragdrop.OutcomeCommitted {
			logger.Warn("drop accepted but commit failed", "error_kind", application.ErrorKind(err))
		}
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toDropDTO(result))
}

// Cancel abandons a gesture.
func (h *GestureHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Cancel(chi.URLParam(r, "id")); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type startGestureRequest struct {
	SessionID string `json:"session_id"`
}

type targetDTO struct {
	Date      calendar.Date      `json:"date"`
	Start     calendar.TimeOfDay `json:"start"`
	TrainerID string             `json:"trainer_id,omitempty"`
}

func (t targetDTO) toTarget() dragdrop.Target {
	return dragdrop.Target{Date: t.Date, Start: t.Start, TrainerID: strings.TrimSpace(t.TrainerID)}
}

type hoverRequest struct {
	Target targetDTO `json:"target"`
	Wait   bool      `json:"wait"`
}

type dropRequest struct {
	Target *targetDTO `json:"target"`
}

type previewDTO struct {
	Dragging       bool             `json:"dragging"`
	GestureID      string           `json:"gesture_id,omitempty"`
	SessionID      string           `json:"session_id,omitempty"`
	Target         *targetDTO       `json:"target,omitempty"`
	Ghost          *sessionDTO      `json:"ghost,omitempty"`
	Pending        bool             `json:"pending"`
	IsValidDrop    bool             `json:"is_valid_drop"`
	Affordance     string           `json:"affordance"`
	Conflicts      []conflictDTO    `json:"conflicts,omitempty"`
	Alternatives   []alternativeDTO `json:"alternatives,omitempty"`
	NoAlternatives bool             `json:"no_alternatives"`
	BufferZones    []bufferZoneDTO  `json:"buffer_zones,omitempty"`
	Error          string           `json:"error,omitempty"`
}

type dropDTO struct {
	Outcome  string         `json:"outcome"`
	Check    checkResultDTO `json:"check"`
	IntentID string         `json:"intent_id,omitempty"`
	Session  *sessionDTO    `json:"session,omitempty"`
}

func toPreviewDTO(p dragdrop.Preview) previewDTO {
	dto := previewDTO{
		Dragging:       p.Dragging,
		GestureID:      p.GestureID,
		SessionID:      p.SessionID,
		Pending:        p.Pending,
		IsValidDrop:    p.IsValidDrop,
		Affordance:     string(p.Affordance),
		Conflicts:      toConflictDTOs(p.Conflicts),
		Alternatives:   toAlternativeDTOs(p.Alternatives),
		NoAlternatives: p.NoAlternatives,
		Error:          p.Error,
	}
	if p.Target != nil {
		dto.Target = &targetDTO{Date: p.Target.Date, Start: p.Target.Start, TrainerID: p.Target.TrainerID}
	}
	if p.Ghost != nil {
		ghost := toSessionDTO(*p.Ghost)
		dto.Ghost = &ghost
	}
	for _, z := range p.BufferZones {
		dto.BufferZones = append(dto.BufferZones, bufferZoneDTO{
			SessionID: z.SessionID,
			TrainerID: z.TrainerID,
			Edge:      string(z.Edge),
			Start:     formatTime(z.Start),
			End:       formatTime(z.End),
		})
	}
	return dto
}

func toDropDTO(result dragdrop.DropResult) dropDTO {
	dto := dropDTO{Outcome: string(result.Outcome), Check: toCheckResultDTO(result.Check)}
	if result.Intent != nil {
		dto.IntentID = result.Intent.ID
	}
	if result.Session != nil {
		session := toSessionDTO(*result.Session)
		dto.Session = &session
	}
	return dto
}
