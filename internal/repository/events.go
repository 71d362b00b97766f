package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rongwang/checkin-server/internal/models"
)

// Event repository methods
func (r *SQLRepository) CreateEvent(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (name, description, location, start_date, end_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	event.CreatedAt = time.Now().UTC()

	return r.db.QueryRowxContext(ctx, r.q(query),
		event.Name, event.Description, event.Location,
		event.StartDate.UTC(), event.EndDate.UTC(), event.CreatedAt).Scan(&event.ID)
}

func (r *SQLRepository) GetEvent(ctx context.Context, eventID int64) (*models.Event, error) {
	query := `SELECT * FROM events WHERE id = ?`

	var event models.Event
	err := r.db.GetContext(ctx, &event, r.q(query), eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Event not found
		}
		return nil, err
	}

	return &event, nil
}

func (r *SQLRepository) ListEvents(ctx context.Context) ([]models.Event, error) {
	query := `SELECT * FROM events ORDER BY start_date DESC, id DESC`

	events := []models.Event{}
	if err := r.db.SelectContext(ctx, &events, query); err != nil {
		return nil, err
	}

	return events, nil
}

func (r *SQLRepository) EventExists(ctx context.Context, eventID int64) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.q(`SELECT COUNT(*) FROM events WHERE id = ?`), eventID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteEvent removes an event, its ledger entries and links, and every
// registration linked to this event and no other.
func (r *SQLRepository) DeleteEvent(ctx context.Context, eventID int64) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	var n int
	if err = tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM events WHERE id = ?`), eventID); err != nil {
		return err
	}
	if n == 0 {
		err = ErrEventNotFound
		return err
	}

	// Registrations exclusive to this event go first, together with their
	// ledger entries for any event.
	exclusive := `
		SELECT er.registration_id FROM event_registrations er
		WHERE er.event_id = ?
		AND NOT EXISTS (
			SELECT 1 FROM event_registrations o
			WHERE o.registration_id = er.registration_id AND o.event_id <> ?
		)
	`
	var ids []int64
	if err = tx.SelectContext(ctx, &ids, tx.Rebind(exclusive), eventID, eventID); err != nil {
		return err
	}

	for _, id := range ids {
		if err = deleteRegistrationTx(ctx, tx, id); err != nil {
			return err
		}
	}

	stmts := []string{
		`DELETE FROM check_in_logs WHERE event_id = ?`,
		`DELETE FROM event_registrations WHERE event_id = ?`,
		`DELETE FROM events WHERE id = ?`,
	}
	for _, stmt := range stmts {
		if _, err = tx.ExecContext(ctx, tx.Rebind(stmt), eventID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// UpdateEvent overwrites the editable fields of an existing event
func (r *SQLRepository) UpdateEvent(ctx context.Context, event *models.Event) error {
	query := `
		UPDATE events
		SET name = ?, description = ?, location = ?, start_date = ?, end_date = ?
		WHERE id = ?
	`

	res, err := r.db.ExecContext(ctx, r.q(query),
		event.Name, event.Description, event.Location,
		event.StartDate.UTC(), event.EndDate.UTC(), event.ID)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEventNotFound
	}

	return nil
}
