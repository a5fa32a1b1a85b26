package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/example/studio-scheduler/internal/persistence"
)

// TrainerInput is the editable part of a trainer profile.
type TrainerInput struct {
	ID    string
	Name  string
	Email string
}

// TrainerService manages the trainer profiles availability and sessions refer to.
type TrainerService struct {
	trainers persistence.TrainerRepository
	newID    func() string
	logger   *slog.Logger
}

// NewTrainerService wires dependencies for the trainer service.
func NewTrainerService(trainers persistence.TrainerRepository, idGenerator func() string, logger *slog.Logger) *TrainerService {
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	return &TrainerService{trainers: trainers, newID: idGenerator, logger: defaultLogger(logger)}
}

// SaveTrainer creates or updates a trainer. An empty ID creates a new trainer.
func (s *TrainerService) SaveTrainer(ctx context.Context, input TrainerInput) (persistence.Trainer, error) {
	normalized := normalizeTrainerInput(input)
	if vErr := validateTrainerInput(normalized); vErr.HasErrors() {
		return persistence.Trainer{}, vErr
	}
	if normalized.ID == "" {
		normalized.ID = s.newID()
	}

	saved, err := s.trainers.UpsertTrainer(ctx, persistence.Trainer{
		ID:    normalized.ID,
		Name:  normalized.Name,
		Email: normalized.Email,
	})
	if err != nil {
		if errors.Is(err, persistence.ErrConstraintViolation) {
			vErr := &ValidationError{}
			vErr.add("trainer", err.Error())
			return persistence.Trainer{}, vErr
		}
		return persistence.Trainer{}, fmt.Errorf("save trainer %s: %w", normalized.ID, err)
	}

	serviceLogger(ctx, s.logger, "TrainerService", "SaveTrainer", "trainer_id", saved.ID).Info("trainer saved")
	return saved, nil
}

// GetTrainer returns a single trainer.
func (s *TrainerService) GetTrainer(ctx context.Context, id string) (persistence.Trainer, error) {
	trainer, err := s.trainers.GetTrainer(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.Trainer{}, &NotFoundError{Kind: "trainer", ID: id}
		}
		return persistence.Trainer{}, err
	}
	return trainer, nil
}

// ListTrainers returns every trainer ordered by name.
func (s *TrainerService) ListTrainers(ctx context.Context) ([]persistence.Trainer, error) {
	return s.trainers.ListTrainers(ctx)
}

func normalizeTrainerInput(input TrainerInput) TrainerInput {
	return TrainerInput{
		ID:    strings.TrimSpace(input.ID),
		Name:  strings.TrimSpace(input.Name),
		Email: strings.ToLower(strings.TrimSpace(input.Email)),
	}
}

func validateTrainerInput(input TrainerInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Name == "" {
		vErr.add("name", "name is required")
	}
	if input.Email != "" {
		if _, err := mail.ParseAddress(input.Email); err != nil {
			vErr.add("email", "email is invalid")
		}
	}

	return vErr
}
