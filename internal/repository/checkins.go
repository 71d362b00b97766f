package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rongwang/checkin-server/internal/models"
)

// Check-in ledger repository methods
func (r *SQLRepository) HasCheckInForDay(ctx context.Context, registrationID, eventID int64, day string) (bool, error) {
	query := `
		SELECT COUNT(*) FROM check_in_logs
		WHERE registration_id = ? AND event_id = ? AND check_in_date = ?
	`

	var n int
	if err := r.db.GetContext(ctx, &n, r.q(query), registrationID, eventID, day); err != nil {
		return false, err
	}

	return n > 0, nil
}

// RecordCheckIn appends a ledger entry and, in the same transaction, marks
// the registration as checked in if it never was. It reports whether this
// was the registration's first check-in. A second entry for the same
// (registration, event, day) yields ErrDuplicateCheckIn and changes nothing.
func (r *SQLRepository) RecordCheckIn(ctx context.Context, entry *models.CheckInLog) (first bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	if entry.CheckInTime.IsZero() {
		entry.CheckInTime = time.Now().UTC()
	}

	// The unique (registration_id, event_id, check_in_date) index decides
	// concurrent attempts: the loser inserts nothing and gets no row back.
	insert := `
		INSERT INTO check_in_logs (registration_id, event_id, check_in_date, check_in_time, checked_in_by, method, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (registration_id, event_id, check_in_date) DO NOTHING
		RETURNING id
	`
	err = tx.QueryRowxContext(ctx, tx.Rebind(insert),
		entry.RegistrationID, entry.EventID, entry.CheckInDate, entry.CheckInTime,
		entry.CheckedInBy, entry.Method, entry.Notes).Scan(&entry.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			err = ErrDuplicateCheckIn
		}
		return false, err
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE registrations
		SET checked_in = TRUE, check_in_time = ?, updated_at = ?
		WHERE id = ? AND checked_in = FALSE
	`), entry.CheckInTime, entry.CheckInTime, entry.RegistrationID)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	if err = tx.Commit(); err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (r *SQLRepository) GetCheckIns(ctx context.Context, registrationID, eventID int64) ([]models.CheckInLog, error) {
	query := `
		SELECT * FROM check_in_logs
		WHERE registration_id = ? AND event_id = ?
		ORDER BY check_in_date ASC, id ASC
	`

	logs := []models.CheckInLog{}
	if err := r.db.SelectContext(ctx, &logs, r.q(query), registrationID, eventID); err != nil {
		return nil, err
	}

	return logs, nil
}

func (r *SQLRepository) GetRecentCheckIns(ctx context.Context, limit int) ([]models.RecentCheckIn, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT
			cl.id,
			cl.check_in_time,
			cl.check_in_date,
			cl.method,
			r.full_name,
			r.email,
			r.company,
			r.table_number,
			e.name AS event_name,
			u.name AS checked_in_by_name
		FROM check_in_logs cl
		JOIN registrations r ON cl.registration_id = r.id
		JOIN events e ON cl.event_id = e.id
		LEFT JOIN users u ON cl.checked_in_by = u.id
		ORDER BY cl.check_in_time DESC, cl.id DESC
		LIMIT ?
	`

	rows := []models.RecentCheckIn{}
	if err := r.db.SelectContext(ctx, &rows, r.q(query), limit); err != nil {
		return nil, err
	}

	return rows, nil
}

// GetCheckInStats counts registrations and how many have ever checked in,
// optionally restricted to registrations linked to one event.
func (r *SQLRepository) GetCheckInStats(ctx context.Context, eventID *int64) (*models.CheckInStats, error) {
	var (
		stats models.CheckInStats
		err   error
	)

	if eventID != nil {
		query := `
			SELECT
				COUNT(*) AS total_registrations,
				COALESCE(SUM(CASE WHEN r.checked_in THEN 1 ELSE 0 END), 0) AS checked_in_count
			FROM registrations r
			JOIN event_registrations er ON r.id = er.registration_id
			WHERE er.event_id = ?
		`
		err = r.db.GetContext(ctx, &stats, r.q(query), *eventID)
	} else {
		query := `
			SELECT
				COUNT(*) AS total_registrations,
				COALESCE(SUM(CASE WHEN checked_in THEN 1 ELSE 0 END), 0) AS checked_in_count
			FROM registrations
		`
		err = r.db.GetContext(ctx, &stats, query)
	}
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

// PurgeAll deletes the ledger, registrations and events and resets the
// simulation setting. Staff accounts are kept.
func (r *SQLRepository) PurgeAll(ctx context.Context) (deletedCheckIns int64, deletedRegistrations int64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM check_in_logs`)
	if err != nil {
		return 0, 0, err
	}
	if deletedCheckIns, err = res.RowsAffected(); err != nil {
		return 0, 0, err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM event_registrations`); err != nil {
		return 0, 0, err
	}

	res, err = tx.ExecContext(ctx, `DELETE FROM registrations`)
	if err != nil {
		return 0, 0, err
	}
	if deletedRegistrations, err = res.RowsAffected(); err != nil {
		return 0, 0, err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM events`); err != nil {
		return 0, 0, err
	}

	if err = saveSimulationSettingTx(ctx, tx, models.SimulationSetting{}); err != nil {
		return 0, 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, err
	}

	return deletedCheckIns, deletedRegistrations, nil
}
