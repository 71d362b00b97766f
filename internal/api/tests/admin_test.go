package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/rongwang/checkin-server/internal/api/testutils"
	"github.com/rongwang/checkin-server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvents(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	staff := testutils.AuthHeaders(testCtx.StaffJWT)

	// Test case 1: Successful event creation
	createReq := models.CreateEventRequest{
		Name:      "Gala Dinner",
		Location:  "Ballroom",
		StartDate: "2024-06-02",
		EndDate:   "2024-06-02",
	}

	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/events", createReq, staff)
	assert.Equal(t, http.StatusCreated, w.Code)

	var created models.EventResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotNil(t, created.Event)
	assert.NotZero(t, created.Event.ID)

	// Test case 2: End before start
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/events", models.CreateEventRequest{
		Name:      "Backwards",
		StartDate: "2024-06-02",
		EndDate:   "2024-06-01",
	}, staff)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Test case 3: Missing name
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/events", models.CreateEventRequest{
		StartDate: "2024-06-02",
		EndDate:   "2024-06-02",
	}, staff)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// List includes the default event
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/events", nil, staff)
	assert.Equal(t, http.StatusOK, w.Code)

	var list models.EventListResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Events, 2)

	// Get and delete
	path := fmt.Sprintf("/events/%d", created.Event.ID)
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, path, nil, staff)
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodDelete, path, nil, staff)
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, path, nil, staff)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/events/abc", nil, staff)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegistrations(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	staff := testutils.AuthHeaders(testCtx.StaffJWT)

	// Test case 1: Create and check in with the generated credential
	createReq := models.CreateRegistrationRequest{
		FullName:    "Grace Hopper",
		Email:       "Grace@Example.com",
		Company:     "Navy",
		TableNumber: "12",
		EventIDs:    []int64{testCtx.DefaultEventID},
	}

	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/registrations", createReq, staff)
	assert.Equal(t, http.StatusCreated, w.Code)

	var created models.RegistrationResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotNil(t, created.Registration)
	assert.Equal(t, "grace@example.com", created.Registration.Email)
	assert.NotEmpty(t, created.Registration.QRCode)
	assert.Equal(t, []int64{testCtx.DefaultEventID}, created.EventIDs)

	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/check-in",
		models.CheckInRequest{QRCode: created.Registration.QRCode}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Test case 2: Duplicate email
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/registrations", createReq, staff)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Test case 3: Unknown event
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/registrations", models.CreateRegistrationRequest{
		FullName: "Nobody",
		Email:    "nobody@example.com",
		EventIDs: []int64{9999},
	}, staff)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Search is case-insensitive
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/registrations/search?q=HOPPER", nil, staff)
	assert.Equal(t, http.StatusOK, w.Code)

	var list models.RegistrationListResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Registrations, 1)
	assert.True(t, list.Registrations[0].CheckedIn)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/registrations/search", nil, staff)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Get and delete
	path := fmt.Sprintf("/registrations/%d", created.Registration.ID)
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, path, nil, staff)
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodDelete, path, nil, staff)
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodDelete, path, nil, staff)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var n int
	require.NoError(t, testCtx.DB.Get(&n, "SELECT COUNT(*) FROM check_in_logs"))
	assert.Equal(t, 0, n, "ledger entries go with the registration")
}

func TestCheckInStats(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	staff := testutils.AuthHeaders(testCtx.StaffJWT)

	// Test case 1: Empty roll
	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/check-in-stats", nil, staff)
	assert.Equal(t, http.StatusOK, w.Code)

	var stats models.CheckInStatsResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(0), stats.Stats.TotalRegistrations)
	assert.Equal(t, "0%", stats.Stats.CheckInRate)

	// Test case 2: One of three checked in
	for i, code := range []string{"A1", "B2", "C3"} {
		testutils.CreateRegistration(t, testCtx, fmt.Sprintf("Guest %d", i), code)
	}
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/check-in",
		models.CheckInRequest{QRCode: "B2"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	path := fmt.Sprintf("/check-in-stats?event_id=%d", testCtx.DefaultEventID)
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, path, nil, staff)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(3), stats.Stats.TotalRegistrations)
	assert.Equal(t, int64(1), stats.Stats.CheckedIn)
	assert.Equal(t, int64(2), stats.Stats.PendingCheckIn)
	assert.Equal(t, "33.3%", stats.Stats.CheckInRate)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/check-in-stats?event_id=x", nil, staff)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPurge(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	admin := testutils.AuthHeaders(testCtx.AdminJWT)

	workshopID := testutils.CreateEvent(t, testCtx, "Workshop")
	testutils.CreateRegistration(t, testCtx, "Ada Lovelace", "Zx9Q=")
	shared := testutils.CreateRegistration(t, testCtx, "Grace Hopper", "Hop1", testCtx.DefaultEventID, workshopID)
	testutils.CreateRegistration(t, testCtx, "Alan Turing", "Tur1", workshopID)

	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/check-in",
		models.CheckInRequest{QRCode: "Tur1", EventID: &workshopID}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Test case 1: Staff may not purge
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/admin/purge",
		models.PurgeRequest{Type: "full"}, testutils.AuthHeaders(testCtx.StaffJWT))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Test case 2: Unknown purge type
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/admin/purge",
		models.PurgeRequest{Type: "everything"}, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Test case 3: Event purge keeps registrants linked elsewhere
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/admin/purge",
		models.PurgeRequest{Type: "event", EventID: workshopID}, admin)
	assert.Equal(t, http.StatusOK, w.Code)

	reg, err := testCtx.Repository.GetRegistrationByID(context.Background(), shared.ID)
	require.NoError(t, err)
	require.NotNil(t, reg)

	turing, err := testCtx.Repository.GetRegistrationByQRCode(context.Background(), "Tur1")
	require.NoError(t, err)
	assert.Nil(t, turing)

	// Test case 4: Full purge
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/admin/purge",
		models.PurgeRequest{Type: "full"}, admin)
	assert.Equal(t, http.StatusOK, w.Code)

	var purge models.PurgeResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &purge))
	assert.Equal(t, int64(2), purge.DeletedRegistrations)

	exists, err := testCtx.Repository.EventExists(context.Background(), testCtx.DefaultEventID)
	require.NoError(t, err)
	assert.False(t, exists)

	// Staff accounts survive
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/login",
		models.LoginRequest{Email: "admin@example.com", Password: "testpassword"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
