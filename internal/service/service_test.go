package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rongwang/checkin-server/internal/clock"
	"github.com/rongwang/checkin-server/internal/config"
	"github.com/rongwang/checkin-server/internal/models"
	"github.com/rongwang/checkin-server/internal/repository"
	"github.com/rongwang/checkin-server/internal/service"
)

const secret = "service-test-secret"

type fixture struct {
	svc     service.Service
	repo    *repository.SQLRepository
	clock   *clock.FixedClock
	eventID int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:svc_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		uuid.New().String(),
	)
	conn, err := sqlx.Connect(config.DriverSQLite, dsn)
	require.NoError(t, err)
	config.ConfigurePool(conn)
	require.NoError(t, config.PrepareSchema(context.Background(), conn, config.SimulationConfig{}))
	t.Cleanup(func() { conn.Close() })

	repo := repository.NewSQLRepository(conn)
	event := &models.Event{Name: "Annual Summit", StartDate: time.Now(), EndDate: time.Now()}
	require.NoError(t, repo.CreateEvent(context.Background(), event))

	c := clock.NewFixedClock(clock.Date{Year: 2024, Month: time.June, Day: 1})
	svc := service.NewDefaultService(repo, c, service.Options{
		JWTSecret:      secret,
		TokenDuration:  time.Hour,
		DefaultEventID: event.ID,
	})

	return &fixture{svc: svc, repo: repo, clock: c, eventID: event.ID}
}

func (f *fixture) register(t *testing.T, name, qr string) *models.Registration {
	reg := &models.Registration{FullName: name, Email: qr + "@example.com", QRCode: qr, TableNumber: "4"}
	require.NoError(t, f.repo.CreateRegistration(context.Background(), reg, []int64{f.eventID}))
	return reg
}

func TestCheckInScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "Ada Lovelace", "Zx9Q=")

	resp, err := f.svc.CheckIn(ctx, models.CheckInRequest{QRCode: "Zx9Q="})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, service.MsgCheckInSuccessful, resp.Message)
	assert.Equal(t, &models.RegistrationSummary{FullName: "Ada Lovelace", TableNumber: "4"}, resp.Registration)

	resp, err = f.svc.CheckIn(ctx, models.CheckInRequest{QRCode: "Zx9Q="})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, service.MsgAlreadyCheckedIn, resp.Message)

	f.clock.Advance(1)

	resp, err = f.svc.CheckIn(ctx, models.CheckInRequest{QRCode: "Zx9Q="})
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestCheckInErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.CheckIn(ctx, models.CheckInRequest{QRCode: "missing"})
	assert.ErrorIs(t, err, service.ErrRegistrationNotFound)
	require.NotNil(t, resp)
	assert.Equal(t, service.MsgInvalidQRCode, resp.Message)
	assert.Nil(t, resp.Registration)

	resp, err = f.svc.ManualCheckIn(ctx, "", models.ManualCheckInRequest{RegistrationID: 77})
	assert.ErrorIs(t, err, service.ErrRegistrationNotFound)
	assert.Equal(t, service.MsgRegistrationGone, resp.Message)

	missing := int64(404)
	_, err = f.svc.CheckIn(ctx, models.CheckInRequest{QRCode: "x", EventID: &missing})
	assert.ErrorIs(t, err, service.ErrEventNotFound)

	_, err = f.svc.CheckIn(ctx, models.CheckInRequest{QRCode: " "})
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestSimulationSettingsService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	enabled, offset := true, -1
	resp, err := f.svc.UpdateSimulationSettings(ctx, models.SimulationSettingsRequest{Enabled: &enabled, DateOffset: &offset})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-31", resp.CurrentDate)
	assert.Equal(t, "2024-06-01", resp.ActualDate)

	got, err := f.svc.GetSimulationSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SimulationSetting{Enabled: true, OffsetDays: -1}, got.Settings)

	offset = 400
	_, err = f.svc.UpdateSimulationSettings(ctx, models.SimulationSettingsRequest{Enabled: &enabled, DateOffset: &offset})
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	_, err = f.svc.UpdateSimulationSettings(ctx, models.SimulationSettingsRequest{Enabled: &enabled})
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	resp, err = f.svc.ResetSimulationSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, resp.ActualDate, resp.CurrentDate)
}

func TestLoginIssuesRoleClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.CreateStaffUser(ctx, "boss@example.com", "Boss", "correct-horse", models.RoleAdmin)
	require.NoError(t, err)

	_, err = f.svc.CreateStaffUser(ctx, "boss@example.com", "Boss", "correct-horse", models.RoleAdmin)
	assert.ErrorIs(t, err, service.ErrEmailTaken)

	_, err = f.svc.CreateStaffUser(ctx, "short@example.com", "Short", "abc", models.RoleStaff)
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	_, err = f.svc.CreateStaffUser(ctx, "root@example.com", "Root", "correct-horse", "root")
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	auth, err := f.svc.Login(ctx, models.LoginRequest{Email: "boss@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, 3600, auth.ExpiresIn)

	token, err := jwt.Parse(auth.Token, func(*jwt.Token) (interface{}, error) { return []byte(secret), nil })
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, user.ID, claims["sub"])
	assert.Equal(t, models.RoleAdmin, claims["role"])

	_, err = f.svc.Login(ctx, models.LoginRequest{Email: "boss@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestCreateRegistrationGeneratesCredential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.CreateRegistration(ctx, models.CreateRegistrationRequest{FullName: "A", Email: "a@example.com"})
	require.NoError(t, err)
	b, err := f.svc.CreateRegistration(ctx, models.CreateRegistrationRequest{FullName: "B", Email: "b@example.com"})
	require.NoError(t, err)

	assert.Len(t, a.Registration.QRCode, 16)
	assert.NotEqual(t, a.Registration.QRCode, b.Registration.QRCode)
	assert.Empty(t, a.EventIDs)

	_, err = f.svc.CreateEvent(ctx, models.CreateEventRequest{Name: "Bad", StartDate: "June 1", EndDate: "2024-06-01"})
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}
