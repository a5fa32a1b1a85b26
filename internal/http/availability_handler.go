package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/studio-scheduler/internal/availability"
	"github.com/example/studio-scheduler/internal/calendar"
	"github.com/example/studio-scheduler/internal/recurrence"
)

type availabilityService interface {
	Entries(ctx context.Context, trainerID string) ([]availability.Entry, error)
	UpdateSchedule(ctx context.Context, trainerID string, entries []availability.Entry) ([]availability.Entry, error)
	Grid(ctx context.Context, trainerID string) (availability.Grid, error)
	SaveGrid(ctx context.Context, trainerID string, grid availability.Grid) ([]availability.Entry, error)
	EditGrid(ctx context.Context, trainerID string, edits []availability.GridEdit, overrides []availability.Entry) (availability.Grid, error)
	AddOverride(ctx context.Context, entry availability.Entry) (availability.Entry, error)
	RemoveOverride(ctx context.Context, trainerID, id string) error
	PruneOverrides(ctx context.Context, before calendar.Date) (int, error)
	Calendar(ctx context.Context, trainerID string, from, to calendar.Date) ([]recurrence.Occurrence, error)
}

// AvailabilityHandler serves trainer schedules, overrides and calendars.
type AvailabilityHandler struct {
	service   availabilityService
	responder responder
	logger    *slog.Logger
}

// NewAvailabilityHandler wires the availability endpoints to service.
func NewAvailabilityHandler(service availabilityService, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{service: service, responder: newResponder(logger), logger: defaultLogger(logger)}
}

// List returns the recurring schedule and overrides of a trainer.
func (h *AvailabilityHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Entries(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, entriesResponse{Entries: toEntryDTOs(entries)})
}

// Replace replaces the recurring schedule of a trainer.
func (h *AvailabilityHandler) Replace(w http.ResponseWriter, r *http.Request) {
	var req entriesRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	trainerID := chi.URLParam(r, "id")
	entries := make([]availability.Entry, 0, len(req.Entries))
	for _, dto := range req.Entries {
		entry := dto.toEntry(trainerID)
		entry.Recurring = true
		entries = append(entries, entry)
	}

	saved, err := h.service.UpdateSchedule(r.Context(), trainerID, entries)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, entriesResponse{Entries: toEntryDTOs(saved)})
}

// GetGrid returns the weekly hour grid of a trainer.
func (h *AvailabilityHandler) GetGrid(w http.ResponseWriter, r *http.Request) {
	grid, err := h.service.Grid(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, gridDTO{Days: grid})
}

// PutGrid replaces the recurring schedule with the runs of an hour grid.
func (h *AvailabilityHandler) PutGrid(w http.ResponseWriter, r *http.Request) {
	var req gridDTO
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	saved, err := h.service.SaveGrid(r.Context(), chi.URLParam(r, "id"), req.Days)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, entriesResponse{Entries: toEntryDTOs(saved)})
}

// PatchGrid applies hour range edits and new overrides to a trainer's grid.
func (h *AvailabilityHandler) PatchGrid(w http.ResponseWriter, r *http.Request) {
	var req gridEditRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	trainerID := chi.URLParam(r, "id")
	edits := make([]availability.GridEdit, 0, len(req.Edits))
	for _, dto := range req.Edits {
		edits = append(edits, availability.GridEdit{Day: time.Weekday(dto.DayOfWeek), From: dto.From, To: dto.To, Available: dto.Available})
	}
	overrides := make([]availability.Entry, 0, len(req.Overrides))
	for _, dto := range req.Overrides {
		overrides = append(overrides, dto.toEntry(trainerID))
	}

	grid, err := h.service.EditGrid(r.Context(), trainerID, edits, overrides)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, gridDTO{Days: grid})
}

// AddOverride stores a one-off entry for a date.
func (h *AvailabilityHandler) AddOverride(w http.ResponseWriter, r *http.Request) {
	var req entryDTO
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	saved, err := h.service.AddOverride(r.Context(), req.toEntry(chi.URLParam(r, "id")))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toEntryDTO(saved))
}

// RemoveOverride deletes a one-off entry.
func (h *AvailabilityHandler) RemoveOverride(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveOverride(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "overrideID")); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// PruneOverrides drops every override dated before the before query parameter.
func (h *AvailabilityHandler) PruneOverrides(w http.ResponseWriter, r *http.Request) {
	value := strings.TrimSpace(r.URL.Query().Get("before"))
	if value == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingBefore)
		return
	}
	before, err := calendar.ParseDate(value)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingBefore)
		return
	}

	removed, err := h.service.PruneOverrides(r.Context(), before)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	handlerLogger(r.Context(), h.logger, "AvailabilityHandler", "PruneOverrides").Debug("overrides pruned", "removed", removed)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, pruneResponse{Removed: removed})
}

// Calendar expands a trainer's availability into dated open windows.
func (h *AvailabilityHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDates(r)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	occurrences, err := h.service.Calendar(r.Context(), chi.URLParam(r, "id"), from, to)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]occurrenceDTO, 0, len(occurrences))
	for _, o := range occurrences {
		out = append(out, occurrenceDTO{
			Date:       o.Date,
			Start:      o.Window.Start,
			End:        o.Window.End,
			StartsAt:   formatTime(o.Start),
			EndsAt:     formatTime(o.End),
			Overridden: o.Overridden,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, calendarResponse{TrainerID: chi.URLParam(r, "id"), Occurrences: out})
}

type entriesRequest struct {
	Entries []entryDTO `json:"entries"`
}

type entriesResponse struct {
	Entries []entryDTO `json:"entries"`
}

type entryDTO struct {
	ID        string             `json:"id,omitempty"`
	DayOfWeek int                `json:"day_of_week"`
	Date      *calendar.Date     `json:"date,omitempty"`
	Start     calendar.TimeOfDay `json:"start_time"`
	End       calendar.TimeOfDay `json:"end_time"`
	Type      string             `json:"type"`
	Recurring bool               `json:"recurring"`
}

func (d entryDTO) toEntry(trainerID string) availability.Entry {
	entryType := availability.EntryType(strings.ToLower(strings.TrimSpace(d.Type)))
	if entryType == "" {
		entryType = availability.TypeAvailable
	}
	return availability.Entry{
		ID:        strings.TrimSpace(d.ID),
		TrainerID: trainerID,
		DayOfWeek: time.Weekday(d.DayOfWeek),
		Date:      d.Date,
		Start:     d.Start,
		End:       d.End,
		Recurring: d.Recurring,
		Type:      entryType,
	}
}

func toEntryDTO(e availability.Entry) entryDTO {
	dto := entryDTO{
		ID:        e.ID,
		Date:      e.Date,
		Start:     e.Start,
		End:       e.End,
		Type:      string(e.Type),
		Recurring: e.Recurring,
	}
	if e.Recurring {
		dto.DayOfWeek = int(e.DayOfWeek)
	} else if e.Date != nil {
		dto.DayOfWeek = int(e.Date.Weekday())
	}
	return dto
}

func toEntryDTOs(entries []availability.Entry) []entryDTO {
	out := make([]entryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryDTO(e))
	}
	return out
}

// gridDTO carries seven rows, Sunday first, of 24 hourly cells.
type gridDTO struct {
	Days availability.Grid `json:"days"`
}

type gridEditRequest struct {
	Edits     []gridEditDTO `json:"edits"`
	Overrides []entryDTO    `json:"overrides"`
}

// gridEditDTO assigns the hours [from, to) of one weekday.
type gridEditDTO struct {
	DayOfWeek int  `json:"day_of_week"`
	From      int  `json:"from"`
	To        int  `json:"to"`
	Available bool `json:"available"`
}

type pruneResponse struct {
	Removed int `json:"removed"`
}

type calendarResponse struct {
	TrainerID   string          `json:"trainer_id"`
	Occurrences []occurrenceDTO `json:"occurrences"`
}

type occurrenceDTO struct {
	Date       calendar.Date      `json:"date"`
	Start      calendar.TimeOfDay `json:"start_time"`
	End        calendar.TimeOfDay `json:"end_time"`
	StartsAt   string             `json:"starts_at"`
	EndsAt     string             `json:"ends_at"`
	Overridden bool               `json:"overridden"`
}
