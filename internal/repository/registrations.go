package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rongwang/checkin-server/internal/models"
)

// Registration repository methods
func (r *SQLRepository) CreateRegistration(ctx context.Context, reg *models.Registration, eventIDs []int64) (err error) {
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

	query := `
		INSERT INTO registrations (full_name, email, company, roles, table_number, qr_code, checked_in, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, FALSE, ?, ?)
		RETURNING id
	`

	now := time.Now().UTC()
	reg.CreatedAt = now
	reg.UpdatedAt = now
	reg.CheckedIn = false
	reg.CheckInTime = nil

	err = tx.QueryRowxContext(ctx, tx.Rebind(query),
		reg.FullName, reg.Email, reg.Company, reg.Roles, reg.TableNumber, reg.QRCode,
		reg.CreatedAt, reg.UpdatedAt).Scan(&reg.ID)
	if err != nil {
		switch {
		case uniqueViolationOn(err, "email"):
			err = ErrDuplicateEmail
		case uniqueViolationOn(err, "qr_code"):
			err = ErrDuplicateQRCode
		}
		return err
	}

	for _, eventID := range eventIDs {
		var n int
		if err = tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM events WHERE id = ?`), eventID); err != nil {
			return err
		}
		if n == 0 {
			err = ErrEventNotFound
			return err
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO event_registrations (event_id, registration_id, created_at)
			VALUES (?, ?, ?)
			ON CONFLICT (event_id, registration_id) DO NOTHING
		`), eventID, reg.ID, now)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *SQLRepository) GetRegistrationByID(ctx context.Context, id int64) (*models.Registration, error) {
	return r.getRegistration(ctx, `SELECT * FROM registrations WHERE id = ?`, id)
}

// GetRegistrationByQRCode matches the stored credential exactly
func (r *SQLRepository) GetRegistrationByQRCode(ctx context.Context, qrCode string) (*models.Registration, error) {
	return r.getRegistration(ctx, `SELECT * FROM registrations WHERE qr_code = ? LIMIT 1`, qrCode)
}

// GetRegistrationByQRCodeFold matches the stored credential ignoring case.
// The lowest id wins if folding makes two credentials collide.
func (r *SQLRepository) GetRegistrationByQRCodeFold(ctx context.Context, qrCode string) (*models.Registration, error) {
	return r.getRegistration(ctx,
		`SELECT * FROM registrations WHERE LOWER(qr_code) = LOWER(?) ORDER BY id LIMIT 1`, qrCode)
}

func (r *SQLRepository) getRegistration(ctx context.Context, query string, arg any) (*models.Registration, error) {
	var reg models.Registration
	err := r.db.GetContext(ctx, &reg, r.q(query), arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Registration not found
		}
		return nil, err
	}

	return &reg, nil
}

func (r *SQLRepository) GetRegistrationEventIDs(ctx context.Context, id int64) ([]int64, error) {
	query := `SELECT event_id FROM event_registrations WHERE registration_id = ? ORDER BY event_id`

	ids := []int64{}
	if err := r.db.SelectContext(ctx, &ids, r.q(query), id); err != nil {
		return nil, err
	}

	return ids, nil
}

// SearchRegistrations does a case-insensitive substring match on name,
// email and company.
func (r *SQLRepository) SearchRegistrations(ctx context.Context, query string, limit int) ([]models.Registration, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"

	stmt := `
		SELECT * FROM registrations
		WHERE LOWER(full_name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(company) LIKE ?
		ORDER BY full_name
		LIMIT ?
	`

	regs := []models.Registration{}
	if err := r.db.SelectContext(ctx, &regs, r.q(stmt), pattern, pattern, pattern, limit); err != nil {
		return nil, err
	}

	return regs, nil
}

func (r *SQLRepository) DeleteRegistration(ctx context.Context, id int64) (err error) {
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

	if err = deleteRegistrationTx(ctx, tx, id); err != nil {
		return err
	}

	return tx.Commit()
}

// deleteRegistrationTx removes a registration with its ledger entries and
// event links. Must be called inside an existing transaction.
func deleteRegistrationTx(ctx context.Context, tx *sqlx.Tx, id int64) error {
	stmts := []string{
		`DELETE FROM check_in_logs WHERE registration_id = ?`,
		`DELETE FROM event_registrations WHERE registration_id = ?`,
		`DELETE FROM registrations WHERE id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, tx.Rebind(stmt), id); err != nil {
			return err
		}
	}
	return nil
}

// ListRegistrations pages through the roll, newest first
func (r *SQLRepository) ListRegistrations(ctx context.Context, limit, offset int) ([]models.Registration, error) {
	query := `SELECT * FROM registrations ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

	regs := []models.Registration{}
	if err := r.db.SelectContext(ctx, &regs, r.q(query), limit, offset); err != nil {
		return nil, err
	}

	return regs, nil
}

func (r *SQLRepository) CountRegistrations(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM registrations`); err != nil {
		return 0, err
	}
	return n, nil
}

// UpdateRegistration overwrites the registrant's contact and credential
// fields. The first check-in flag and time are owned by the ledger and are
// left untouched.
func (r *SQLRepository) UpdateRegistration(ctx context.Context, reg *models.Registration) error {
	query := `
		UPDATE registrations
		SET full_name = ?, email = ?, company = ?, roles = ?, table_number = ?, qr_code = ?, updated_at = ?
		WHERE id = ?
	`

	reg.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, r.q(query),
		reg.FullName, reg.Email, reg.Company, reg.Roles, reg.TableNumber, reg.QRCode,
		reg.UpdatedAt, reg.ID)
	if err != nil {
		switch {
		case uniqueViolationOn(err, "email"):
			return ErrDuplicateEmail
		case uniqueViolationOn(err, "qr_code"):
			return ErrDuplicateQRCode
		}
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRegistrationNotFound
	}

	return nil
}
