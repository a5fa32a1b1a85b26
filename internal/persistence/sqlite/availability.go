package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/studio-scheduler/internal/availability"
	"github.com/example/studio-scheduler/internal/calendar"
	"github.com/example/studio-scheduler/internal/persistence"
)

const entryColumns = `id, trainer_id, recurring, day_of_week, entry_date, start_minute, end_minute, entry_type`

// LoadAvailability returns the recurring entries and overrides of a trainer.
func (s *Store) LoadAvailability(ctx context.Context, trainerID string) ([]availability.Entry, error) {
	return s.queryEntries(ctx, "SELECT "+entryColumns+" FROM availability_entries WHERE trainer_id = ?", trainerID)
}

// LoadAllAvailability returns the entries of every trainer.
func (s *Store) LoadAllAvailability(ctx context.Context) ([]availability.Entry, error) {
	return s.queryEntries(ctx, "SELECT "+entryColumns+" FROM availability_entries")
}

// SaveAvailability replaces the recurring schedule of a trainer. Overrides are kept.
func (s *Store) SaveAvailability(ctx context.Context, trainerID string, entries []availability.Entry) ([]availability.Entry, error) {
	normalized, err := availability.PrepareSchedule(trainerID, entries, s.newID)
	if err != nil {
		return nil, err
	}

	err = s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM availability_entries WHERE trainer_id = ? AND recurring = 1", trainerID); err != nil {
			return mapError(err)
		}
		for _, entry := range normalized {
			if err := insertEntry(ctx, tx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return normalized, nil
}

// AddOverride stores a one-off entry.
func (s *Store) AddOverride(ctx context.Context, entry availability.Entry) (availability.Entry, error) {
	entry, err := availability.PrepareOverride(entry, s.newID)
	if err != nil {
		return availability.Entry{}, err
	}
	err = s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		return insertEntry(ctx, tx, entry)
	})
	if err != nil {
		return availability.Entry{}, err
	}
	return entry, nil
}

// RemoveOverride deletes an override.
func (s *Store) RemoveOverride(ctx context.Context, trainerID, id string) error {
	result, err := s.pool.DB().ExecContext(ctx,
		"DELETE FROM availability_entries WHERE id = ? AND trainer_id = ? AND recurring = 0", id, trainerID)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// PruneOverrides drops overrides dated before the given date.
func (s *Store) PruneOverrides(ctx context.Context, before calendar.Date) (int, error) {
	result, err := s.pool.DB().ExecContext(ctx,
		"DELETE FROM availability_entries WHERE recurring = 0 AND entry_date < ?", before.String())
	if err != nil {
		return 0, mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, mapError(err)
	}
	return int(affected), nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, entry availability.Entry) error {
	var date sql.NullString
	if entry.Date != nil {
		date = sql.NullString{String: entry.Date.String(), Valid: true}
	}
	const query = `
		INSERT INTO availability_entries (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := tx.ExecContext(ctx, query,
		entry.ID,
		entry.TrainerID,
		entry.Recurring,
		int(entry.DayOfWeek),
		date,
		int(entry.Start),
		int(entry.End),
		string(entry.Type),
	)
	return mapError(err)
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]availability.Entry, error) {
	rows, err := s.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	entries := make([]availability.Entry, 0)
	for rows.Next() {
		var (
			entry      availability.Entry
			day        int
			date       sql.NullString
			start, end int
			kind       string
		)
		if err := rows.Scan(&entry.ID, &entry.TrainerID, &entry.Recurring, &day, &date, &start, &end, &kind); err != nil {
			return nil, mapError(err)
		}
		entry.DayOfWeek = time.Weekday(day)
		entry.Start = calendar.TimeOfDay(start)
		entry.End = calendar.TimeOfDay(end)
		entry.Type = availability.EntryType(kind)
		if date.Valid {
			d, err := calendar.ParseDate(date.String)
			if err != nil {
				return nil, err
			}
			entry.Date = &d
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	availability.SortEntries(entries)
	return entries, nil
}
