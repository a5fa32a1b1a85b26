package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/studio-scheduler/internal/persistence"
)

// UpsertTrainer creates or updates a trainer profile.
func (s *Store) UpsertTrainer(ctx context.Context, trainer persistence.Trainer) (persistence.Trainer, error) {
	if strings.TrimSpace(trainer.ID) == "" {
		return persistence.Trainer{}, fmt.Errorf("%w: trainer id is required", persistence.ErrConstraintViolation)
	}

	now := formatTime(s.now())
	const query = `
		INSERT INTO trainers (id, name, email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, email = excluded.email, updated_at = excluded.updated_at
	`
	if _, err := s.pool.DB().ExecContext(ctx, query, trainer.ID, trainer.Name, trainer.Email, now, now); err != nil {
		return persistence.Trainer{}, mapError(err)
	}
	return s.GetTrainer(ctx, trainer.ID)
}

// GetTrainer retrieves a trainer by ID.
func (s *Store) GetTrainer(ctx context.Context, id string) (persistence.Trainer, error) {
	row := s.pool.DB().QueryRowContext(ctx, "SELECT id, name, email, created_at, updated_at FROM trainers WHERE id = ?", id)
	return scanTrainer(row)
}

// ListTrainers returns all trainers ordered by name.
func (s *Store) ListTrainers(ctx context.Context) ([]persistence.Trainer, error) {
	rows, err := s.pool.DB().QueryContext(ctx, "SELECT id, name, email, created_at, updated_at FROM trainers ORDER BY name ASC, id ASC")
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	trainers := make([]persistence.Trainer, 0)
	for rows.Next() {
		trainer, err := scanTrainer(rows)
		if err != nil {
			return nil, err
		}
		trainers = append(trainers, trainer)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return trainers, nil
}

func scanTrainer(row rowScanner) (persistence.Trainer, error) {
	var (
		trainer              persistence.Trainer
		createdAt, updatedAt string
	)
	if err := row.Scan(&trainer.ID, &trainer.Name, &trainer.Email, &createdAt, &updatedAt); err != nil {
		return persistence.Trainer{}, mapError(err)
	}
	var err error
	if trainer.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Trainer{}, err
	}
	if trainer.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Trainer{}, err
	}
	return trainer, nil
}
