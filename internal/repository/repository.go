package repository

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/rongwang/checkin-server/internal/models"
)

var (
	// ErrDuplicateCheckIn is returned when a ledger entry already exists
	// for the same registration, event and day.
	ErrDuplicateCheckIn = errors.New("check-in already recorded for this day")
	ErrDuplicateEmail   = errors.New("email already registered")
	ErrDuplicateQRCode  = errors.New("qr code already assigned")
	ErrEventNotFound    = errors.New("event not found")

	// ErrRegistrationNotFound is returned by updates that match no row.
	ErrRegistrationNotFound = errors.New("registration not found")
)

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// Event operations
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, eventID int64) (*models.Event, error)
	ListEvents(ctx context.Context) ([]models.Event, error)
	EventExists(ctx context.Context, eventID int64) (bool, error)
	UpdateEvent(ctx context.Context, event *models.Event) error
	DeleteEvent(ctx context.Context, eventID int64) error

	// Registration operations
	CreateRegistration(ctx context.Context, reg *models.Registration, eventIDs []int64) error
	GetRegistrationByID(ctx context.Context, id int64) (*models.Registration, error)
	GetRegistrationByQRCode(ctx context.Context, qrCode string) (*models.Registration, error)
	GetRegistrationByQRCodeFold(ctx context.Context, qrCode string) (*models.Registration, error)
	GetRegistrationEventIDs(ctx context.Context, id int64) ([]int64, error)
	ListRegistrations(ctx context.Context, limit, offset int) ([]models.Registration, error)
	CountRegistrations(ctx context.Context) (int64, error)
	SearchRegistrations(ctx context.Context, query string, limit int) ([]models.Registration, error)
	UpdateRegistration(ctx context.Context, reg *models.Registration) error
	DeleteRegistration(ctx context.Context, id int64) error

	// Check-in ledger operations
	HasCheckInForDay(ctx context.Context, registrationID, eventID int64, day string) (bool, error)
	RecordCheckIn(ctx context.Context, entry *models.CheckInLog) (bool, error)
	GetCheckIns(ctx context.Context, registrationID, eventID int64) ([]models.CheckInLog, error)
	GetRecentCheckIns(ctx context.Context, limit int) ([]models.RecentCheckIn, error)
	GetCheckInStats(ctx context.Context, eventID *int64) (*models.CheckInStats, error)

	// Settings operations
	GetSimulationSetting(ctx context.Context) (models.SimulationSetting, error)
	SaveSimulationSetting(ctx context.Context, setting models.SimulationSetting) error

	// Administrative purge of everything except staff accounts
	PurgeAll(ctx context.Context) (deletedCheckIns int64, deletedRegistrations int64, err error)
}

// SQLRepository implements the Repository interface on PostgreSQL or SQLite.
// Queries are written with "?" placeholders and rebound for the driver.
type SQLRepository struct {
	db *sqlx.DB
}

// NewSQLRepository creates a new repository over an open connection
func NewSQLRepository(db *sqlx.DB) *SQLRepository {
	return &SQLRepository{
		db: db,
	}
}

// GetDB returns the underlying database connection
func (r *SQLRepository) GetDB() *sqlx.DB {
	return r.db
}

func (r *SQLRepository) q(query string) string {
	return r.db.Rebind(query)
}
