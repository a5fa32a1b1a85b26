package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/studio-scheduler/internal/application"
	"github.com/example/studio-scheduler/internal/calendar"
	"github.com/example/studio-scheduler/internal/registry"
	"github.com/example/studio-scheduler/internal/scheduler"
)

type sessionService interface {
	Policy() scheduler.Policy
	ListSessions(ctx context.Context, window calendar.Range) ([]registry.Session, error)
	BufferZones(ctx context.Context, window calendar.Range) ([]scheduler.BufferZone, error)
	GetSession(ctx context.Context, id string) (registry.Session, error)
	CreateSession(ctx context.Context, params application.CreateSessionParams) (registry.Session, scheduler.Result, error)
	MoveSession(ctx context.Context, params application.MoveSessionParams) (registry.Session, scheduler.Result, error)
	CheckMove(ctx context.Context, req scheduler.Request) (scheduler.Result, error)
}

// SessionHandler serves session listing, creation, checks and moves.
type SessionHandler struct {
	service   sessionService
	responder responder
	logger    *slog.Logger
}

// NewSessionHandler wires the session endpoints to service.
func NewSessionHandler(service sessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{service: service, responder: newResponder(logger), logger: defaultLogger(logger)}
}

// List returns the sessions intersecting the requested date range.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	window, err := parseRange(r, h.service.Policy().Location)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	sessions, err := h.service.ListSessions(r.Context(), window)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSessionsResponse{Sessions: toSessionDTOs(sessions)})
}

// Buffers returns the buffer zones of the sessions in the requested range.
func (h *SessionHandler) Buffers(w http.ResponseWriter, r *http.Request) {
	window, err := parseRange(r, h.service.Policy().Location)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	zones, err := h.service.BufferZones(r.Context(), window)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]bufferZoneDTO, 0, len(zones))
	for _, z := range zones {
		out = append(out, bufferZoneDTO{
			SessionID: z.SessionID,
			TrainerID: z.TrainerID,
			Edge:      string(z.Edge),
			Start:     formatTime(z.Start),
			End:       formatTime(z.End),
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, buffersResponse{BufferZones: out})
}

// Get returns one session.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(session)})
}

// Create stores a new session. Soft conflicts are returned as warnings.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	session, result, err := h.service.CreateSession(r.Context(), req.toParams())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "SessionHandler", "Create", "session_id", session.ID).Debug("session created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, sessionResponse{
		Session:  toSessionDTO(session),
		Warnings: toConflictDTOs(result.SoftConflicts()),
	})
}

// Check evaluates a placement without writing it.
func (h *SessionHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req placementRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	result, err := h.service.CheckMove(r.Context(), scheduler.Request{
		SessionID:       chi.URLParam(r, "id"),
		Date:            req.Date,
		Start:           req.Start,
		TrainerID:       strings.TrimSpace(req.TrainerID),
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toCheckResultDTO(result))
}

// Move commits a placement when it has no hard conflicts and the expected
// version still matches.
func (h *SessionHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req moveSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	session, result, err := h.service.MoveSession(r.Context(), application.MoveSessionParams{
		SessionID:       chi.URLParam(r, "id"),
		Date:            req.Date,
		Start:           req.Start,
		TrainerID:       strings.TrimSpace(req.TrainerID),
		DurationMinutes: req.DurationMinutes,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{
		Session:  toSessionDTO(session),
		Warnings: toConflictDTOs(result.SoftConflicts()),
	})
}

func parseRange(r *http.Request, loc *time.Location) (calendar.Range, error) {
	from, to, err := parseDates(r)
	if err != nil {
		return calendar.Range{}, err
	}
	return calendar.Range{Start: from.At(0, loc), End: to.AddDays(1).At(0, loc)}, nil
}

// parseDates reads the inclusive from/to query parameters. A missing to
// covers the week starting at from.
func parseDates(r *http.Request) (calendar.Date, calendar.Date, error) {
	query := r.URL.Query()
	fromValue := strings.TrimSpace(query.Get("from"))
	if fromValue == "" {
		return calendar.Date{}, calendar.Date{}, errMissingRange
	}
	from, err := calendar.ParseDate(fromValue)
	if err != nil {
		return calendar.Date{}, calendar.Date{}, errInvalidRange
	}
	to := from.AddDays(6)
	if toValue := strings.TrimSpace(query.Get("to")); toValue != "" {
		if to, err = calendar.ParseDate(toValue); err != nil || to.Before(from) {
			return calendar.Date{}, calendar.Date{}, errInvalidRange
		}
	}
	return from, to, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

type placementRequest struct {
	Date            calendar.Date      `json:"date"`
	Start           calendar.TimeOfDay `json:"start"`
	TrainerID       string             `json:"trainer_id"`
	DurationMinutes int                `json:"duration_minutes"`
}

type moveSessionRequest struct {
	placementRequest
	ExpectedVersion int `json:"expected_version"`
}

type createSessionRequest struct {
	TrainerID       string             `json:"trainer_id"`
	ClientID        string             `json:"client_id"`
	Date            calendar.Date      `json:"date"`
	Start           calendar.TimeOfDay `json:"start"`
	DurationMinutes int                `json:"duration_minutes"`
	Status          string             `json:"status"`
	Location        string             `json:"location"`
	Package         *packageDTO        `json:"package"`
}

func (r createSessionRequest) toParams() application.CreateSessionParams {
	params := application.CreateSessionParams{
		TrainerID:       strings.TrimSpace(r.TrainerID),
		ClientID:        strings.TrimSpace(r.ClientID),
		Date:            r.Date,
		Start:           r.Start,
		DurationMinutes: r.DurationMinutes,
		Status:          registry.Status(strings.TrimSpace(r.Status)),
		Location:        strings.TrimSpace(r.Location),
	}
	if r.Package != nil {
		params.Package = &registry.PackageInfo{
			Name:              r.Package.Name,
			SessionsRemaining: r.Package.SessionsRemaining,
			TotalSessions:     r.Package.TotalSessions,
			Unlimited:         r.Package.Unlimited,
		}
	}
	return params
}

type sessionResponse struct {
	Session  sessionDTO    `json:"session"`
	Warnings []conflictDTO `json:"warnings,omitempty"`
}

type listSessionsResponse struct {
	Sessions []sessionDTO `json:"sessions"`
}

type buffersResponse struct {
	BufferZones []bufferZoneDTO `json:"buffer_zones"`
}

type sessionDTO struct {
	ID              string      `json:"id"`
	TrainerID       string      `json:"trainer_id"`
	ClientID        string      `json:"client_id,omitempty"`
	Start           string      `json:"start"`
	End             string      `json:"end"`
	DurationMinutes int         `json:"duration_minutes"`
	Status          string      `json:"status"`
	Location        string      `json:"location,omitempty"`
	Package         *packageDTO `json:"package,omitempty"`
	Version         int         `json:"version"`
}

type packageDTO struct {
	Name              string `json:"name"`
	SessionsRemaining int    `json:"sessions_remaining"`
	TotalSessions     int    `json:"total_sessions"`
	Unlimited         bool   `json:"unlimited,omitempty"`
}

type bufferZoneDTO struct {
	SessionID string `json:"session_id"`
	TrainerID string `json:"trainer_id"`
	Edge      string `json:"edge"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

type conflictDTO struct {
	Severity         string `json:"severity"`
	Reason           string `json:"reason"`
	RelatedSessionID string `json:"related_session_id,omitempty"`
	Message          string `json:"message"`
}

type alternativeDTO struct {
	TrainerID       string             `json:"trainer_id"`
	Date            calendar.Date      `json:"date"`
	Start           calendar.TimeOfDay `json:"start"`
	StartsAt        string             `json:"starts_at"`
	DistanceMinutes int                `json:"distance_minutes"`
}

type checkResultDTO struct {
	SessionID      string           `json:"session_id"`
	TrainerID      string           `json:"trainer_id"`
	Start          string           `json:"start"`
	End            string           `json:"end"`
	Valid          bool             `json:"valid"`
	Conflicts      []conflictDTO    `json:"conflicts"`
	Alternatives   []alternativeDTO `json:"alternatives"`
	NoAlternatives bool             `json:"no_alternatives"`
}

func toSessionDTO(s registry.Session) sessionDTO {
	dto := sessionDTO{
		ID:              s.ID,
		TrainerID:       s.TrainerID,
		ClientID:        s.ClientID,
		Start:           formatTime(s.Start),
		End:             formatTime(s.End()),
		DurationMinutes: s.DurationMinutes,
		Status:          string(s.Status),
		Location:        s.Location,
		Version:         s.Version,
	}
	if s.Package != nil {
		dto.Package = &packageDTO{
			Name:              s.Package.Name,
			SessionsRemaining: s.Package.SessionsRemaining,
			TotalSessions:     s.Package.TotalSessions,
			Unlimited:         s.Package.Unlimited,
		}
	}
	return dto
}

func toSessionDTOs(sessions []registry.Session) []sessionDTO {
	out := make([]sessionDTO, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionDTO(s))
	}
	return out
}

func toConflictDTOs(conflicts []scheduler.Conflict) []conflictDTO {
	if len(conflicts) == 0 {
		return nil
	}
	out := make([]conflictDTO, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, conflictDTO{
			Severity:         string(c.Severity),
			Reason:           string(c.Reason),
			RelatedSessionID: c.RelatedSessionID,
			Message:          c.Message,
		})
	}
	return out
}

func toAlternativeDTOs(alternatives []scheduler.Alternative) []alternativeDTO {
	if len(alternatives) == 0 {
		return nil
	}
	out := make([]alternativeDTO, 0, len(alternatives))
	for _, a := range alternatives {
		out = append(out, alternativeDTO{
			TrainerID:       a.TrainerID,
			Date:            a.Date,
			Start:           a.Start,
			StartsAt:        formatTime(a.StartsAt),
			DistanceMinutes: a.DistanceMinutes,
		})
	}
	return out
}

func toCheckResultDTO(result scheduler.Result) checkResultDTO {
	dto := checkResultDTO{
		SessionID:      result.SessionID,
		TrainerID:      result.TrainerID,
		Start:          formatTime(result.Start),
		End:            formatTime(result.End),
		Valid:          result.Valid(),
		Conflicts:      toConflictDTOs(result.Conflicts),
		Alternatives:   toAlternativeDTOs(result.Alternatives),
		NoAlternatives: result.NoAlternatives(),
	}
	if dto.Conflicts == nil {
		dto.Conflicts = []conflictDTO{}
	}
	if dto.Alternatives == nil {
		dto.Alternatives = []alternativeDTO{}
	}
	return dto
}
