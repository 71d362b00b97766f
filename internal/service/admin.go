package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rongwang/checkin-server/internal/models"
	"github.com/rongwang/checkin-server/internal/repository"
)

// Event operations
func (s *DefaultService) CreateEvent(ctx context.Context, req models.CreateEventRequest) (*models.EventResponse, error) {
	start, err := parseDay(req.StartDate)
	if err != nil {
		return nil, fmt.Errorf("%w: start_date: %v", ErrInvalidInput, err)
	}
	end, err := parseDay(req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("%w: end_date: %v", ErrInvalidInput, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end_date is before start_date", ErrInvalidInput)
	}

	event := &models.Event{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Location:    req.Location,
		StartDate:   start,
		EndDate:     end,
	}

	if err := s.repo.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("error creating event: %w", err)
	}

	s.logger.Info("event created", "event_id", event.ID, "name", event.Name)

	return &models.EventResponse{Status: "success", Event: event}, nil
}

func (s *DefaultService) GetEvent(ctx context.Context, eventID int64) (*models.EventResponse, error) {
	event, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("error getting event: %w", err)
	}
	if event == nil {
		return nil, ErrEventNotFound
	}

	return &models.EventResponse{Status: "success", Event: event}, nil
}

func (s *DefaultService) ListEvents(ctx context.Context) (*models.EventListResponse, error) {
	events, err := s.repo.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing events: %w", err)
	}

	return &models.EventListResponse{Status: "success", Events: events}, nil
}

func (s *DefaultService) UpdateEvent(
	ctx context.Context,
	eventID int64,
	req models.UpdateEventRequest,
) (*models.EventResponse, error) {
	event, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("error getting event: %w", err)
	}
	if event == nil {
		return nil, ErrEventNotFound
	}

	start, err := parseDay(req.StartDate)
	if err != nil {
		return nil, fmt.Errorf("%w: start_date: %v", ErrInvalidInput, err)
	}
	end, err := parseDay(req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("%w: end_date: %v", ErrInvalidInput, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end_date is before start_date", ErrInvalidInput)
	}

	event.Name = strings.TrimSpace(req.Name)
	event.Description = req.Description
	event.Location = req.Location
	event.StartDate = start
	event.EndDate = end

	if err := s.repo.UpdateEvent(ctx, event); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("error updating event: %w", err)
	}

	s.logger.Info("event updated", "event_id", event.ID)

	return &models.EventResponse{Status: "success", Event: event}, nil
}

func (s *DefaultService) DeleteEvent(ctx context.Context, eventID int64) error {
	if err := s.repo.DeleteEvent(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return ErrEventNotFound
		}
		return fmt.Errorf("error deleting event: %w", err)
	}

	s.logger.Info("event deleted", "event_id", eventID)
	return nil
}

// Registration operations
func (s *DefaultService) CreateRegistration(
	ctx context.Context,
	req models.CreateRegistrationRequest,
) (*models.RegistrationResponse, error) {
	reg := &models.Registration{
		FullName:    strings.TrimSpace(req.FullName),
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		Company:     strings.TrimSpace(req.Company),
		Roles:       req.Roles,
		TableNumber: strings.TrimSpace(req.TableNumber),
	}

	eventIDs := req.EventIDs
	if eventIDs == nil {
		eventIDs = []int64{}
	}

	// A freshly generated credential colliding is unlikely; retry a few
	// times rather than fail the registration.
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		reg.QRCode = newQRCode(reg.Email)
		err = s.repo.CreateRegistration(ctx, reg, eventIDs)
		if !errors.Is(err, repository.ErrDuplicateQRCode) {
			break
		}
	}
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, ErrEmailTaken
		case errors.Is(err, repository.ErrEventNotFound):
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("error creating registration: %w", err)
	}

	s.logger.Info("registration created", "registration_id", reg.ID, "events", eventIDs)

	return &models.RegistrationResponse{Status: "success", Registration: reg, EventIDs: eventIDs}, nil
}

func (s *DefaultService) GetRegistration(ctx context.Context, id int64) (*models.RegistrationResponse, error) {
	reg, err := s.repo.GetRegistrationByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting registration: %w", err)
	}
	if reg == nil {
		return nil, ErrRegistrationNotFound
	}

	eventIDs, err := s.repo.GetRegistrationEventIDs(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting registration events: %w", err)
	}

	return &models.RegistrationResponse{Status: "success", Registration: reg, EventIDs: eventIDs}, nil
}

// ListRegistrations returns one page of the roll. Pages start at 1 and
// limit is clamped to 1..100.
func (s *DefaultService) ListRegistrations(ctx context.Context, page, limit int) (*models.RegistrationListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	regs, err := s.repo.ListRegistrations(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("error listing registrations: %w", err)
	}

	total, err := s.repo.CountRegistrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("error counting registrations: %w", err)
	}

	return &models.RegistrationListResponse{
		Status:        "success",
		Registrations: regs,
		Page:          page,
		Limit:         limit,
		Total:         total,
		TotalPages:    int((total + int64(limit) - 1) / int64(limit)),
	}, nil
}

func (s *DefaultService) SearchRegistrations(ctx context.Context, query string) (*models.RegistrationListResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: search query is required", ErrInvalidInput)
	}

	regs, err := s.repo.SearchRegistrations(ctx, query, 20)
	if err != nil {
		return nil, fmt.Errorf("error searching registrations: %w", err)
	}

	return &models.RegistrationListResponse{Status: "success", Registrations: regs}, nil
}

// UpdateRegistration edits a registrant's details. The first check-in
// flag is never changed here; an empty qr_code keeps the current one.
func (s *DefaultService) UpdateRegistration(
	ctx context.Context,
	id int64,
	req models.UpdateRegistrationRequest,
) (*models.RegistrationResponse, error) {
	reg, err := s.repo.GetRegistrationByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting registration: %w", err)
	}
	if reg == nil {
		return nil, ErrRegistrationNotFound
	}

	reg.FullName = strings.TrimSpace(req.FullName)
	reg.Email = strings.ToLower(strings.TrimSpace(req.Email))
	reg.Company = strings.TrimSpace(req.Company)
	reg.Roles = req.Roles
	reg.TableNumber = strings.TrimSpace(req.TableNumber)
	if code := strings.TrimSpace(req.QRCode); code != "" {
		reg.QRCode = code
	}

	if err := s.repo.UpdateRegistration(ctx, reg); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, ErrEmailTaken
		case errors.Is(err, repository.ErrDuplicateQRCode):
			return nil, ErrQRCodeTaken
		case errors.Is(err, repository.ErrRegistrationNotFound):
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("error updating registration: %w", err)
	}

	eventIDs, err := s.repo.GetRegistrationEventIDs(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting registration events: %w", err)
	}

	s.logger.Info("registration updated", "registration_id", id)

	return &models.RegistrationResponse{Status: "success", Registration: reg, EventIDs: eventIDs}, nil
}

func (s *DefaultService) DeleteRegistration(ctx context.Context, id int64) error {
	reg, err := s.repo.GetRegistrationByID(ctx, id)
	if err != nil {
		return fmt.Errorf("error getting registration: %w", err)
	}
	if reg == nil {
		return ErrRegistrationNotFound
	}

	if err := s.repo.DeleteRegistration(ctx, id); err != nil {
		return fmt.Errorf("error deleting registration: %w", err)
	}

	s.logger.Info("registration deleted", "registration_id", id)
	return nil
}

// Reports
func (s *DefaultService) RecentCheckIns(ctx context.Context, limit int) (*models.RecentCheckInsResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	rows, err := s.repo.GetRecentCheckIns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("error fetching recent check-ins: %w", err)
	}

	return &models.RecentCheckInsResponse{Success: true, CheckIns: rows}, nil
}

func (s *DefaultService) CheckInStats(ctx context.Context, eventID *int64) (*models.CheckInStatsResponse, error) {
	stats, err := s.repo.GetCheckInStats(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("error fetching check-in stats: %w", err)
	}

	rate := "0%"
	if stats.TotalRegistrations > 0 {
		rate = fmt.Sprintf("%.1f%%", float64(stats.CheckedIn)/float64(stats.TotalRegistrations)*100)
	}

	return &models.CheckInStatsResponse{
		Success: true,
		Stats: models.StatsBody{
			TotalRegistrations: stats.TotalRegistrations,
			CheckedIn:          stats.CheckedIn,
			PendingCheckIn:     stats.TotalRegistrations - stats.CheckedIn,
			CheckInRate:        rate,
		},
	}, nil
}

// Purge clears everything ("full") or one event and its exclusive
// registrations ("event").
func (s *DefaultService) Purge(ctx context.Context, req models.PurgeRequest) (*models.PurgeResponse, error) {
	switch req.Type {
	case "full":
		checkIns, regs, err := s.repo.PurgeAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("error purging data: %w", err)
		}
		s.logger.Warn("full purge completed", "check_ins", checkIns, "registrations", regs)
		return &models.PurgeResponse{Status: "success", DeletedCheckIns: checkIns, DeletedRegistrations: regs}, nil
	case "event":
		if req.EventID <= 0 {
			return nil, fmt.Errorf("%w: event_id is required", ErrInvalidInput)
		}
		if err := s.DeleteEvent(ctx, req.EventID); err != nil {
			return nil, err
		}
		return &models.PurgeResponse{Status: "success"}, nil
	default:
		return nil, fmt.Errorf("%w: unknown purge type %q", ErrInvalidInput, req.Type)
	}
}

// newQRCode derives an opaque credential from the email and a random uuid.
func newQRCode(email string) string {
	sum := sha256.Sum256([]byte(email + "|" + uuid.New().String()))
	return base64.RawURLEncoding.EncodeToString(sum[:12])
}

// parseDay accepts a YYYY-MM-DD date or an RFC3339 timestamp.
func parseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD or RFC3339, got %q", s)
	}
	return t.UTC(), nil
}
