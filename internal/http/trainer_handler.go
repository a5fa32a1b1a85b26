package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/studio-scheduler/internal/application"
	"github.com/example/studio-scheduler/internal/persistence"
)

type trainerService interface {
	SaveTrainer(ctx context.Context, input application.TrainerInput) (persistence.Trainer, error)
	GetTrainer(ctx context.Context, id string) (persistence.Trainer, error)
	ListTrainers(ctx context.Context) ([]persistence.Trainer, error)
}

// TrainerHandler serves trainer profiles.
type TrainerHandler struct {
	service   trainerService
	responder responder
}

// NewTrainerHandler wires the trainer endpoints to service.
func NewTrainerHandler(service trainerService, logger *slog.Logger) *TrainerHandler {
	return &TrainerHandler{service: service, responder: newResponder(logger)}
}

// List returns every trainer.
func (h *TrainerHandler) List(w http.ResponseWriter, r *http.Request) {
	trainers, err := h.service.ListTrainers(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	out := make([]trainerDTO, 0, len(trainers))
	for _, t := range trainers {
		out = append(out, toTrainerDTO(t))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listTrainersResponse{Trainers: out})
}

// Get returns one trainer.
func (h *TrainerHandler) Get(w http.ResponseWriter, r *http.Request) {
	trainer, err := h.service.GetTrainer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toTrainerDTO(trainer))
}

// Put creates or updates the trainer named in the path.
func (h *TrainerHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req trainerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	trainer, err := h.service.SaveTrainer(r.Context(), application.TrainerInput{
		ID:    chi.URLParam(r, "id"),
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toTrainerDTO(trainer))
}

type trainerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type listTrainersResponse struct {
	Trainers []trainerDTO `json:"trainers"`
}

type trainerDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toTrainerDTO(t persistence.Trainer) trainerDTO {
	return trainerDTO{
		ID:        t.ID,
		Name:      t.Name,
		Email:     t.Email,
		CreatedAt: formatTime(t.CreatedAt),
		UpdatedAt: formatTime(t.UpdatedAt),
	}
}
