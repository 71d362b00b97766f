package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rongwang/checkin-server/internal/api"
	"github.com/rongwang/checkin-server/internal/clock"
	"github.com/rongwang/checkin-server/internal/config"
	"github.com/rongwang/checkin-server/internal/models"
	"github.com/rongwang/checkin-server/internal/repository"
	"github.com/rongwang/checkin-server/internal/service"
	"github.com/rongwang/checkin-server/internal/utils"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// TestNow is the wall clock every test context runs at: 2024-06-01 10:00 UTC.
var TestNow = time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC)

const testJWTSecret = "test-secret-key"

// TestContext holds all dependencies for tests
type TestContext struct {
	Router     *gin.Engine
	Repository *repository.SQLRepository
	Service    service.Service
	Clock      *clock.SimulatedClock
	JWTSecret  []byte
	DB         *sqlx.DB

	// DefaultEventID is the event used when a check-in omits event_id
	DefaultEventID int64

	StaffUserID string
	StaffJWT    string
	AdminUserID string
	AdminJWT    string
}

// SetupTestContext creates a new test context with initialized dependencies.
// It runs on a private in-memory SQLite database unless TEST_DB_DRIVER is
// set to "postgres", in which case the configured test database is used and
// emptied first.
func SetupTestContext(t *testing.T) *TestContext {
	t.Helper()

	db := openTestDB(t)
	repo := repository.NewSQLRepository(db)

	c := clock.NewSimulatedClock(repo, time.UTC, clock.WithNow(func() time.Time { return TestNow }))

	event := &models.Event{
		Name:      "Annual Summit",
		Location:  "Main Hall",
		StartDate: time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.CreateEvent(context.Background(), event), "Failed to create default event")

	// Create service
	svc := service.NewDefaultService(repo, c, service.Options{
		JWTSecret:      testJWTSecret,
		DefaultEventID: event.ID,
		Logger:         utils.NopLogger(),
	})

	// Create API handler
	handler := api.NewHandler(svc, utils.NopLogger())

	// Set up Gin router
	gin.SetMode(gin.TestMode)
	router := gin.New()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(testJWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	staffID, staffJWT := createTestUser(t, repo, "staff@example.com", "Front Desk", models.RoleStaff)
	adminID, adminJWT := createTestUser(t, repo, "admin@example.com", "Event Admin", models.RoleAdmin)

	return &TestContext{
		Router:         router,
		Repository:     repo,
		Service:        svc,
		Clock:          c,
		JWTSecret:      []byte(testJWTSecret),
		DB:             db,
		DefaultEventID: event.ID,
		StaffUserID:    staffID,
		StaffJWT:       staffJWT,
		AdminUserID:    adminID,
		AdminJWT:       adminJWT,
	}
}

// CleanupTestContext cleans up test resources
func CleanupTestContext(t *TestContext) {
	if t.DB != nil {
		if t.DB.DriverName() == config.DriverPostgres {
			cleanupTestDatabase(nil, t.DB)
		}
		t.DB.Close()
	}
}

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	if os.Getenv("TEST_DB_DRIVER") == config.DriverPostgres {
		cfg := config.LoadConfig()
		cfg.Database.Driver = config.DriverPostgres
		cfg.Database.DBName = cfg.Database.TestDBName

		db, err := config.SetupDatabase(cfg)
		require.NoError(t, err, "Failed to set up test database")
		cleanupTestDatabase(t, db)
		return db
	}

	// Each context gets its own named in-memory database. Shared cache keeps
	// it alive as long as the pool holds a connection.
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		uuid.New().String(),
	)

	db, err := sqlx.Connect(config.DriverSQLite, dsn)
	require.NoError(t, err, "Failed to open test database")

	config.ConfigurePool(db)

	err = config.PrepareSchema(context.Background(), db, config.SimulationConfig{})
	require.NoError(t, err, "Failed to migrate test database")

	return db
}

// cleanupTestDatabase removes any data left by earlier runs
func cleanupTestDatabase(t *testing.T, db *sqlx.DB) {
	tables := []string{
		"check_in_logs",
		"event_registrations",
		"registrations",
		"events",
		"users",
	}
	for _, table := range tables {
		if _, err := db.Exec("DELETE FROM " + table); err != nil && t != nil {
			t.Logf("Warning: Failed to clean %s: %v", table, err)
		}
	}

	_, err := db.Exec(`UPDATE settings SET value = 'false' WHERE key = 'simulation_enabled'`)
	if err != nil && t != nil {
		t.Logf("Warning: Failed to reset settings: %v", err)
	}
	_, err = db.Exec(`UPDATE settings SET value = '0' WHERE key = 'simulation_date_offset'`)
	if err != nil && t != nil {
		t.Logf("Warning: Failed to reset settings: %v", err)
	}
}

// Helper functions
func createTestUser(t *testing.T, repo repository.Repository, email, name, role string) (string, string) {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("testpassword"), bcrypt.MinCost)

	user := &models.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      name,
		Password:  string(hashedPassword),
		Role:      role,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	err := repo.CreateUser(context.Background(), user)
	require.NoError(t, err, "Failed to create test user")

	return user.ID, SignToken(t, user.ID, role)
}

// SignToken issues a JWT the way the login endpoint does
func SignToken(t *testing.T, userID, role string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
		"iat":  time.Now().Unix(),
	})

	tokenString, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err, "Failed to generate JWT token")

	return tokenString
}

// CreateRegistration stores a registrant with a known credential and links
// it to the given events.
func CreateRegistration(t *testing.T, tc *TestContext, name, qrCode string, eventIDs ...int64) *models.Registration {
	reg := &models.Registration{
		FullName:    name,
		Email:       fmt.Sprintf("%s@example.com", uuid.New().String()[:8]),
		Company:     "Analytical Engines",
		TableNumber: "7",
		QRCode:      qrCode,
	}
	if eventIDs == nil {
		eventIDs = []int64{tc.DefaultEventID}
	}

	err := tc.Repository.CreateRegistration(context.Background(), reg, eventIDs)
	require.NoError(t, err, "Failed to create registration")
	return reg
}

// CreateEvent stores an extra event and returns its id
func CreateEvent(t *testing.T, tc *TestContext, name string) int64 {
	event := &models.Event{
		Name:      name,
		StartDate: time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, tc.Repository.CreateEvent(context.Background(), event))
	return event.ID
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}
