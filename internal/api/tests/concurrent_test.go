package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/rongwang/checkin-server/internal/api/testutils"
	"github.com/rongwang/checkin-server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentCheckIns(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	reg := testutils.CreateRegistration(t, testCtx, "Ada Lovelace", "Zx9Q=")

	const numGoroutines = 10

	// Channel to collect responses
	responsesChan := make(chan models.CheckInResponse, numGoroutines)
	var wg sync.WaitGroup

	// Start multiple goroutines scanning the same badge simultaneously
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			// Kiosk scans and counter staff race for the same registrant
			path, body := "/check-in", any(models.CheckInRequest{QRCode: "Zx9Q="})
			if i%2 == 1 {
				path, body = "/manual-check-in", any(models.ManualCheckInRequest{RegistrationID: reg.ID})
			}

			w := testutils.PerformRequest(testCtx.Router, http.MethodPost, path, body, nil)

			assert.Equal(t, http.StatusOK, w.Code)

			var resp models.CheckInResponse
			assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			responsesChan <- resp
		}(i)
	}

	// Wait for all goroutines to complete
	wg.Wait()
	close(responsesChan)

	allowed := 0
	for resp := range responsesChan {
		if resp.Success {
			allowed++
		}
	}
	assert.Equal(t, 1, allowed, "exactly one attempt should win")

	logs, err := testCtx.Repository.GetCheckIns(context.Background(), reg.ID, testCtx.DefaultEventID)
	require.NoError(t, err)
	assert.Len(t, logs, 1, "exactly one ledger row for the day")
}
