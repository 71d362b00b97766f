package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/rongwang/checkin-server/internal/api/testutils"
	"github.com/rongwang/checkin-server/internal/models"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestCheckInResponses(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	testutils.CreateRegistration(t, testCtx, "Ada Lovelace", "Zx9Q=")
	g := newGoldie(t)

	// Test case 1: First scan of the day
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/check-in",
		models.CheckInRequest{QRCode: "Zx9Q="},
		nil,
	)

	assert.Equal(t, http.StatusOK, w.Code)
	g.Assert(t, "checkin_allowed", w.Body.Bytes())

	// Test case 2: Same registrant, same day
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/check-in",
		models.CheckInRequest{QRCode: "Zx9Q="},
		nil,
	)

	assert.Equal(t, http.StatusOK, w.Code)
	g.Assert(t, "checkin_duplicate", w.Body.Bytes())

	// Test case 3: Unknown credential
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/check-in",
		models.CheckInRequest{QRCode: "nonexistent-credential"},
		nil,
	)

	assert.Equal(t, http.StatusNotFound, w.Code)
	g.Assert(t, "checkin_not_found", w.Body.Bytes())
}

func TestCheckInDayRollover(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	reg := testutils.CreateRegistration(t, testCtx, "Ada Lovelace", "Zx9Q=")
	eventID := testCtx.DefaultEventID
	checkIn := models.CheckInRequest{QRCode: "Zx9Q=", EventID: &eventID}

	settings := func(enabled bool, offset int) {
		w := testutils.PerformRequest(
			testCtx.Router,
			http.MethodPost,
			"/settings/simulation",
			models.SimulationSettingsRequest{Enabled: &enabled, DateOffset: &offset},
			testutils.AuthHeaders(testCtx.AdminJWT),
		)
		require.Equal(t, http.StatusOK, w.Code)
	}

	// Simulation on, offset 0: the day is 2024-06-01
	settings(true, 0)

	var resp models.CheckInResponse
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/check-in", checkIn, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/check-in", checkIn, nil)
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "Already checked in today. Please come back tomorrow for next check-in.", resp.Message)

	// Move to 2024-06-02
	settings(true, 1)

	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/check-in", checkIn, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	logs, err := testCtx.Repository.GetCheckIns(context.Background(), reg.ID, eventID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "2024-06-01", logs[0].CheckInDate)
	assert.Equal(t, "2024-06-02", logs[1].CheckInDate)

	// Stored times are the real clock, not the simulated day
	assert.Equal(t, testutils.TestNow, logs[1].CheckInTime.UTC())
}

func TestCheckInEventScoping(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	workshopID := testutils.CreateEvent(t, testCtx, "Workshop")
	testutils.CreateRegistration(t, testCtx, "Ada Lovelace", "Zx9Q=", testCtx.DefaultEventID, workshopID)

	for _, eventID := range []int64{testCtx.DefaultEventID, workshopID} {
		id := eventID
		w := testutils.PerformRequest(
			testCtx.Router,
			http.MethodPost,
			"/check-in",
			models.CheckInRequest{QRCode: "Zx9Q=", EventID: &id},
			nil,
		)

		var resp models.CheckInResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success, "check-in for event %d should be allowed", id)
	}
}

func TestCheckInCredentialTolerance(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	reg := testutils.CreateRegistration(t, testCtx, "Ada Lovelace", "AbC123")
	otherID := testutils.CreateEvent(t, testCtx, "Dinner")
	thirdID := testutils.CreateEvent(t, testCtx, "Closing")

	// Each variant targets its own event so every scan is a fresh decision
	cases := []struct {
		credential string
		eventID    int64
	}{
		{"AbC123", testCtx.DefaultEventID},
		{" AbC123 ", otherID},
		{"abc123", thirdID},
	}

	for _, tc := range cases {
		id := tc.eventID
		w := testutils.PerformRequest(
			testCtx.Router,
			http.MethodPost,
			"/check-in",
			models.CheckInRequest{QRCode: tc.credential, EventID: &id},
			nil,
		)

		var resp models.CheckInResponse
		assert.Equal(t, http.StatusOK, w.Code, "credential %q", tc.credential)
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success, "credential %q", tc.credential)
		assert.Equal(t, "Ada Lovelace", resp.Registration.FullName)
	}

	// Still a single registrant
	regs, err := testCtx.Repository.SearchRegistrations(context.Background(), "Ada", 10)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, reg.ID, regs[0].ID)
}

func TestCheckInNotFoundCreatesNothing(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/check-in",
		models.CheckInRequest{QRCode: "nonexistent-credential"},
		nil,
	)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var n int
	require.NoError(t, testCtx.DB.Get(&n, "SELECT COUNT(*) FROM check_in_logs"))
	assert.Equal(t, 0, n)
}

func TestCheckInFirstCheckInFlag(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	reg := testutils.CreateRegistration(t, testCtx, "Ada Lovelace", "Zx9Q=")

	before, err := testCtx.Repository.GetRegistrationByID(context.Background(), reg.ID)
	require.NoError(t, err)
	assert.False(t, before.CheckedIn)
	assert.Nil(t, before.CheckInTime)

	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/check-in",
		models.CheckInRequest{QRCode: "Zx9Q="}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	after, err := testCtx.Repository.GetRegistrationByID(context.Background(), reg.ID)
	require.NoError(t, err)
	assert.True(t, after.CheckedIn)
	require.NotNil(t, after.CheckInTime)
	assert.Equal(t, testutils.TestNow, after.CheckInTime.UTC())
}

func TestCheckInValidation(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	// Test case 1: Missing qr_code
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/check-in", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Test case 2: Whitespace-only qr_code
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/check-in",
		models.CheckInRequest{QRCode: "   "}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Test case 3: Unknown event
	missing := int64(9999)
	testutils.CreateRegistration(t, testCtx, "Ada Lovelace", "Zx9Q=")
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/check-in",
		models.CheckInRequest{QRCode: "Zx9Q=", EventID: &missing}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp models.CheckInResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Event not found", resp.Message)

	// Test case 4: Missing qr_code reports the credential
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/check-in",
		map[string]any{"event_id": testCtx.DefaultEventID}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "QR code is required", resp.Message)

	// Test case 5: Non-positive event_id reports the event
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/check-in",
		map[string]any{"qr_code": "Zx9Q=", "event_id": 0}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Invalid event ID", resp.Message)

	// Test case 6: Non-numeric event_id reports the event
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/check-in",
		map[string]any{"qr_code": "Zx9Q=", "event_id": "summit"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Invalid event ID", resp.Message)
}
