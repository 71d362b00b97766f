package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rongwang/checkin-server/internal/checkin"
	"github.com/rongwang/checkin-server/internal/clock"
	"github.com/rongwang/checkin-server/internal/models"
)

// Messages shown by the kiosk and counter screens
const (
	MsgCheckInSuccessful = "Check-in successful"
	MsgAlreadyCheckedIn  = "Already checked in today. Please come back tomorrow for next check-in."
	MsgInvalidQRCode     = "Invalid QR code. Registration not found."
	MsgRegistrationGone  = "Registration not found"
)

// CheckIn handles a QR scan. A missing event id falls back to the
// configured default event. Unknown credentials return the not-found body
// together with ErrRegistrationNotFound.
func (s *DefaultService) CheckIn(ctx context.Context, req models.CheckInRequest) (*models.CheckInResponse, error) {
	out, err := s.engine.AttemptCheckIn(ctx, checkin.Attempt{
		Credential: req.QRCode,
		EventID:    s.eventID(req.EventID),
		Method:     models.MethodQR,
	})
	if err != nil {
		return nil, s.translate(err)
	}

	return s.checkInResponse(out, MsgInvalidQRCode)
}

// ManualCheckIn handles a staff check-in by registration id. operatorID
// may be empty when no staff session is present. A session whose account
// no longer exists checks in anonymously.
func (s *DefaultService) ManualCheckIn(
	ctx context.Context,
	operatorID string,
	req models.ManualCheckInRequest,
) (*models.CheckInResponse, error) {
	operator, err := s.operator(ctx, operatorID)
	if err != nil {
		return nil, err
	}

	out, err := s.engine.AttemptCheckIn(ctx, checkin.Attempt{
		RegistrationID: req.RegistrationID,
		EventID:        s.eventID(req.EventID),
		Method:         models.MethodManual,
		OperatorID:     operator,
		Notes:          req.Notes,
	})
	if err != nil {
		return nil, s.translate(err)
	}

	return s.checkInResponse(out, MsgRegistrationGone)
}

// operator resolves the staff account recorded against a manual check-in.
func (s *DefaultService) operator(ctx context.Context, userID string) (*string, error) {
	if userID == "" {
		return nil, nil
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting operator: %w", err)
	}
	if user == nil {
		s.logger.Warn("manual check-in operator not found, recording anonymously", "user_id", userID)
		return nil, nil
	}

	return &user.ID, nil
}

func (s *DefaultService) eventID(requested *int64) int64 {
	if requested != nil {
		return *requested
	}
	return s.defaultEventID
}

func (s *DefaultService) checkInResponse(out *checkin.Outcome, notFoundMsg string) (*models.CheckInResponse, error) {
	switch out.Status {
	case checkin.StatusAllowed:
		return &models.CheckInResponse{
			Success:      true,
			Message:      MsgCheckInSuccessful,
			Registration: summarize(out.Registration),
		}, nil
	case checkin.StatusDuplicateToday:
		return &models.CheckInResponse{
			Success:      false,
			Message:      MsgAlreadyCheckedIn,
			Registration: summarize(out.Registration),
		}, nil
	default:
		return &models.CheckInResponse{
			Success: false,
			Message: notFoundMsg,
		}, ErrRegistrationNotFound
	}
}

// translate maps engine errors onto service errors. Storage errors keep
// their type so the caller can tell them apart.
func (s *DefaultService) translate(err error) error {
	switch {
	case errors.Is(err, checkin.ErrUnknownEvent):
		return ErrEventNotFound
	case errors.Is(err, checkin.ErrEventRequired),
		errors.Is(err, checkin.ErrCredentialRequired),
		errors.Is(err, checkin.ErrRegistrantRequired),
		errors.Is(err, checkin.ErrInvalidMethod):
		return fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	default:
		s.logger.Error("check-in failed", "error", err)
		return err
	}
}

func summarize(reg *models.Registration) *models.RegistrationSummary {
	if reg == nil {
		return nil
	}
	return &models.RegistrationSummary{
		FullName:    reg.FullName,
		Company:     reg.Company,
		TableNumber: reg.TableNumber,
	}
}

// Simulation settings
func (s *DefaultService) GetSimulationSettings(ctx context.Context) (*models.SimulationSettingsResponse, error) {
	setting, err := s.repo.GetSimulationSetting(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting simulation settings: %w", err)
	}

	return s.settingsResponse(setting, ""), nil
}

func (s *DefaultService) UpdateSimulationSettings(
	ctx context.Context,
	req models.SimulationSettingsRequest,
) (*models.SimulationSettingsResponse, error) {
	if req.Enabled == nil || req.DateOffset == nil {
		return nil, fmt.Errorf("%w: enabled and dateOffset are required", ErrInvalidInput)
	}
	if *req.DateOffset < models.MinSimulationOffset || *req.DateOffset > models.MaxSimulationOffset {
		return nil, fmt.Errorf("%w: date offset must be a number between %d and %d",
			ErrInvalidInput, models.MinSimulationOffset, models.MaxSimulationOffset)
	}

	setting := models.SimulationSetting{Enabled: *req.Enabled, OffsetDays: *req.DateOffset}
	if err := s.repo.SaveSimulationSetting(ctx, setting); err != nil {
		return nil, fmt.Errorf("error saving simulation settings: %w", err)
	}

	s.logger.Info("simulation settings updated", "enabled", setting.Enabled, "offset_days", setting.OffsetDays)

	return s.settingsResponse(setting, "Simulation settings updated successfully"), nil
}

func (s *DefaultService) ResetSimulationSettings(ctx context.Context) (*models.SimulationSettingsResponse, error) {
	if err := s.repo.SaveSimulationSetting(ctx, models.SimulationSetting{}); err != nil {
		return nil, fmt.Errorf("error resetting simulation settings: %w", err)
	}

	s.logger.Info("simulation settings reset")

	return s.settingsResponse(models.SimulationSetting{}, "Simulation settings reset"), nil
}

// settingsResponse echoes setting with the simulated and real dates it
// produces.
func (s *DefaultService) settingsResponse(setting models.SimulationSetting, message string) *models.SimulationSettingsResponse {
	actual := s.clock.ActualDate()
	current := actual
	if setting.Enabled {
		current = actual.AddDays(clock.ClampOffset(setting.OffsetDays))
	}

	return &models.SimulationSettingsResponse{
		Success:     true,
		Message:     message,
		Settings:    setting,
		CurrentDate: current.String(),
		ActualDate:  actual.String(),
	}
}
