package cli

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rongwang/checkin-server/internal/config"
	"github.com/rongwang/checkin-server/internal/repository"
	"github.com/rongwang/checkin-server/internal/utils"
)

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"serve", "migrate", "seed", "create-staff"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)

	seedCmd, _, err := cmd.Find([]string{"seed"})
	require.NoError(t, err)
	fileFlag := seedCmd.Flags().Lookup("file")
	require.NotNil(t, fileFlag)
	assert.Equal(t, "f", fileFlag.Shorthand)
}

func TestLoadSeedFile(t *testing.T) {
	seed, err := LoadSeedFile("testdata/seed.yaml")
	require.NoError(t, err)
	assert.Len(t, seed.Events, 2)
	assert.Len(t, seed.Registrations, 3)
	assert.Equal(t, "2024-06-01", seed.Events[0].StartDate)
	assert.Equal(t, []string{"speaker", "vip"}, seed.Registrations[0].Roles)

	_, err = LoadSeedFile("testdata/seed_bad.yaml")
	assert.ErrorContains(t, err, `unknown event "gala"`)

	_, err = LoadSeedFile("testdata/missing.yaml")
	assert.Error(t, err)
}

func TestApplySeed(t *testing.T) {
	dsn := fmt.Sprintf("file:cli_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.New().String())
	conn, err := sqlx.Connect(config.DriverSQLite, dsn)
	require.NoError(t, err)
	defer conn.Close()
	config.ConfigurePool(conn)
	require.NoError(t, config.PrepareSchema(context.Background(), conn, config.SimulationConfig{}))

	repo := repository.NewSQLRepository(conn)
	seed, err := LoadSeedFile("testdata/seed.yaml")
	require.NoError(t, err)

	ctx := context.Background()
	res, err := ApplySeed(ctx, repo, seed, utils.NopLogger())
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Events: 2, Registrations: 2, Skipped: 1}, res)

	ada, err := repo.GetRegistrationByQRCode(ctx, "Zx9Q=")
	require.NoError(t, err)
	require.NotNil(t, ada)
	assert.Equal(t, "ada@example.com", ada.Email)
	assert.Equal(t, []string{"speaker", "vip"}, ada.RoleTags())

	ids, err := repo.GetRegistrationEventIDs(ctx, ada.ID)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestNewRouterLogsRequests(t *testing.T) {
	var buf bytes.Buffer
	router := NewRouter(nil, "secret", utils.NewLoggerTo(&buf, slog.LevelInfo))

	// Test case 1: successful request logs at info
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	out := buf.String()
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, "component=http")
	assert.Contains(t, out, "method=GET")
	assert.Contains(t, out, "path=/health")
	assert.Contains(t, out, "status=200")

	// Test case 2: rejected request logs at warn
	buf.Reset()
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "status=401")
}
