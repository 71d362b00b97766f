// Package checkin decides and records check-in attempts.
//
// Each attempt is bucketed into the calendar day reported by the clock
// provider. A registrant may check into a given event once per day; the
// first accepted check-in across all events also sets the registrant's
// checked_in flag, which is never cleared.
package checkin

import (
	"context"
	"errors"
	"strings"

	"github.com/rongwang/checkin-server/internal/clock"
	"github.com/rongwang/checkin-server/internal/models"
	"github.com/rongwang/checkin-server/internal/repository"
	"github.com/rongwang/checkin-server/internal/utils"
)

// Status is the decision for one attempt.
type Status string

const (
	StatusAllowed        Status = "ALLOWED"
	StatusDuplicateToday Status = "DUPLICATE_TODAY"
	StatusNotFound       Status = "NOT_FOUND"
)

// Ledger is the append-only check-in log. RecordCheckIn must return
// repository.ErrDuplicateCheckIn when the (registration, event, day) entry
// already exists, and must apply the entry and the first-check-in flag
// atomically.
type Ledger interface {
	EventExists(ctx context.Context, eventID int64) (bool, error)
	HasCheckInForDay(ctx context.Context, registrationID, eventID int64, day string) (bool, error)
	RecordCheckIn(ctx context.Context, entry *models.CheckInLog) (bool, error)
}

// Attempt is one scan or manual action. Exactly one of Credential and
// RegistrationID identifies the registrant, according to Method.
type Attempt struct {
	Credential     string
	RegistrationID int64
	EventID        int64
	Method         string
	OperatorID     *string
	Notes          string
}

// Outcome is the result of an attempt. Registration is nil for NOT_FOUND.
type Outcome struct {
	Status       Status
	Registration *models.Registration
	Entry        *models.CheckInLog
	Day          clock.Date
	// FirstCheckIn is true when this attempt set the checked_in flag.
	FirstCheckIn bool
	// MatchedBy names the credential lookup strategy that matched.
	MatchedBy string
}

// Engine orchestrates the clock, the directory and the ledger.
type Engine struct {
	clock     clock.Provider
	directory *Directory
	ledger    Ledger
	logger    *utils.Logger
}

// NewEngine creates a check-in engine
func NewEngine(c clock.Provider, dir *Directory, ledger Ledger, logger *utils.Logger) *Engine {
	if logger == nil {
		logger = utils.NopLogger()
	}
	return &Engine{clock: c, directory: dir, ledger: ledger, logger: logger}
}

// AttemptCheckIn resolves the registrant, buckets the attempt into today
// and records it unless an entry for today already exists.
func (e *Engine) AttemptCheckIn(ctx context.Context, a Attempt) (*Outcome, error) {
	if err := validate(a); err != nil {
		return nil, err
	}

	ok, err := e.ledger.EventExists(ctx, a.EventID)
	if err != nil {
		return nil, storageErr("event lookup", err)
	}
	if !ok {
		return nil, ErrUnknownEvent
	}

	reg, matchedBy, err := e.resolve(ctx, a)
	if err != nil {
		return nil, storageErr("registrant lookup", err)
	}
	if reg == nil {
		e.logger.Info("check-in not found", "method", a.Method, "event_id", a.EventID)
		return &Outcome{Status: StatusNotFound}, nil
	}

	// Resolved once; every decision below uses the same day.
	today := e.clock.CurrentDate(ctx)
	day := today.String()

	out := &Outcome{Registration: reg, Day: today, MatchedBy: matchedBy}

	exists, err := e.ledger.HasCheckInForDay(ctx, reg.ID, a.EventID, day)
	if err != nil {
		return nil, storageErr("ledger lookup", err)
	}
	if exists {
		out.Status = StatusDuplicateToday
		e.logger.Info("check-in duplicate",
			"registration_id", reg.ID, "event_id", a.EventID, "day", day)
		return out, nil
	}

	entry := &models.CheckInLog{
		RegistrationID: reg.ID,
		EventID:        a.EventID,
		CheckInDate:    day,
		CheckInTime:    e.clock.Now(),
		CheckedInBy:    a.OperatorID,
		Method:         a.Method,
		Notes:          notesFor(a),
	}

	first, err := e.ledger.RecordCheckIn(ctx, entry)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateCheckIn) {
			// Lost a race with a concurrent attempt for the same day.
			out.Status = StatusDuplicateToday
			e.logger.Info("check-in duplicate (concurrent)",
				"registration_id", reg.ID, "event_id", a.EventID, "day", day)
			return out, nil
		}
		return nil, storageErr("append", err)
	}

	if first {
		reg.CheckedIn = true
		t := entry.CheckInTime
		reg.CheckInTime = &t
	}

	out.Status = StatusAllowed
	out.Entry = entry
	out.FirstCheckIn = first

	e.logger.Info("check-in allowed",
		"registration_id", reg.ID, "event_id", a.EventID, "day", day,
		"method", a.Method, "first", first)

	return out, nil
}

func (e *Engine) resolve(ctx context.Context, a Attempt) (*models.Registration, string, error) {
	if a.Method == models.MethodQR {
		return e.directory.FindByCredential(ctx, a.Credential)
	}
	reg, err := e.directory.FindByID(ctx, a.RegistrationID)
	return reg, "id", err
}

func validate(a Attempt) error {
	if a.EventID <= 0 {
		return ErrEventRequired
	}
	switch a.Method {
	case models.MethodQR:
		if strings.TrimSpace(a.Credential) == "" {
			return ErrCredentialRequired
		}
	case models.MethodManual:
		if a.RegistrationID <= 0 {
			return ErrRegistrantRequired
		}
	default:
		return ErrInvalidMethod
	}
	return nil
}

func notesFor(a Attempt) string {
	if n := strings.TrimSpace(a.Notes); n != "" {
		return n
	}
	if a.Method == models.MethodQR {
		return "Check-in via QR code"
	}
	return "Manual check-in by staff"
}
