package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/studio-scheduler/internal/calendar"
	"github.com/example/studio-scheduler/internal/persistence"
	"github.com/example/studio-scheduler/internal/registry"
)

const sessionColumns = `id, trainer_id, client_id, starts_at, duration_minutes, status, location,
	package_name, package_remaining, package_total, package_unlimited, version`

type rowScanner interface {
	Scan(dest ...any) error
}

// LoadSessions returns the sessions intersecting window ordered by start.
func (s *Store) LoadSessions(ctx context.Context, window calendar.Range) ([]registry.Session, error) {
	var (
		conditions []string
		args       []any
	)
	if !window.Start.IsZero() {
		conditions = append(conditions, "ends_at > ?")
		args = append(args, formatTime(window.Start))
	}
	if !window.End.IsZero() {
		conditions = append(conditions, "starts_at < ?")
		args = append(args, formatTime(window.End))
	}

	query := "SELECT " + sessionColumns + " FROM sessions"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY starts_at ASC, id ASC"

	rows, err := s.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	sessions := make([]registry.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return sessions, nil
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (registry.Session, error) {
	row := s.pool.DB().QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	return scanSession(row)
}

// CreateSession stores a new session at version 1.
func (s *Store) CreateSession(ctx context.Context, session registry.Session) (registry.Session, error) {
	if session.ID == "" {
		session.ID = s.newID()
	}
	if err := session.Validate(); err != nil {
		return registry.Session{}, fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	}
	session.Version = 1

	var (
		pkgName                sql.NullString
		pkgRemaining, pkgTotal sql.NullInt64
		pkgUnlimited           bool
	)
	if p := session.Package; p != nil {
		pkgName = sql.NullString{String: p.Name, Valid: true}
		pkgRemaining = sql.NullInt64{Int64: int64(p.SessionsRemaining), Valid: true}
		pkgTotal = sql.NullInt64{Int64: int64(p.TotalSessions), Valid: true}
		pkgUnlimited = p.Unlimited
	}

	now := formatTime(s.now())
	const query = `
		INSERT INTO sessions (id, trainer_id, client_id, starts_at, ends_at, duration_minutes, status, location,
			package_name, package_remaining, package_total, package_unlimited, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.pool.DB().ExecContext(ctx, query,
		session.ID,
		session.TrainerID,
		session.ClientID,
		formatTime(session.Start),
		formatTime(session.End()),
		session.DurationMinutes,
		string(session.Status),
		session.Location,
		pkgName,
		pkgRemaining,
		pkgTotal,
		pkgUnlimited,
		session.Version,
		now,
		now,
	)
	if err != nil {
		return registry.Session{}, mapError(err)
	}
	return session.Clone(), nil
}

// ApplyMove relocates a session if it is still at the expected version.
func (s *Store) ApplyMove(ctx context.Context, move persistence.Move) (registry.Session, error) {
	if err := move.Validate(); err != nil {
		return registry.Session{}, err
	}

	var moved registry.Session
	err := s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", move.SessionID)
		current, err := scanSession(row)
		if err != nil {
			return err
		}
		next, err := move.Apply(current)
		if err != nil {
			return err
		}

		const query = `
			UPDATE sessions
			SET trainer_id = ?, starts_at = ?, ends_at = ?, duration_minutes = ?, version = ?, updated_at = ?
			WHERE id = ? AND version = ?
		`
		result, err := tx.ExecContext(ctx, query,
			next.TrainerID,
			formatTime(next.Start),
			formatTime(next.End()),
			next.DurationMinutes,
			next.Version,
			formatTime(s.now()),
			next.ID,
			current.Version,
		)
		if err != nil {
			return mapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return mapError(err)
		}
		if affected != 1 {
			return &persistence.StaleWriteError{SessionID: current.ID, Expected: move.ExpectedVersion, Actual: current.Version}
		}
		moved = next
		return nil
	})
	if err != nil {
		return registry.Session{}, err
	}
	return moved, nil
}

func scanSession(row rowScanner) (registry.Session, error) {
	var (
		session                registry.Session
		startsAt, status       string
		pkgName                sql.NullString
		pkgRemaining, pkgTotal sql.NullInt64
		pkgUnlimited           bool
	)
	err := row.Scan(
		&session.ID,
		&session.TrainerID,
		&session.ClientID,
		&startsAt,
		&session.DurationMinutes,
		&status,
		&session.Location,
		&pkgName,
		&pkgRemaining,
		&pkgTotal,
		&pkgUnlimited,
		&session.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return registry.Session{}, persistence.ErrNotFound
		}
		return registry.Session{}, mapError(err)
	}

	if session.Start, err = parseTime(startsAt); err != nil {
		return registry.Session{}, err
	}
	if session.Status, err = registry.ParseStatus(status); err != nil {
		return registry.Session{}, fmt.Errorf("sqlite: session %s: %w", session.ID, err)
	}
	if pkgName.Valid {
		session.Package = &registry.PackageInfo{
			Name:              pkgName.String,
			SessionsRemaining: int(pkgRemaining.Int64),
			TotalSessions:     int(pkgTotal.Int64),
			Unlimited:         pkgUnlimited,
		}
	}
	return session, nil
}
