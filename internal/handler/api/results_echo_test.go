package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuantGate/internal/domain/models"
	"QuantGate/internal/repository"
	"QuantGate/internal/usecase"
	xhttp "QuantGate/pkg/http"
)

func seededHandler(t *testing.T) (*echo.Echo, string) {
	t.Helper()
	store, err := repository.NewFileEvidenceStore(t.TempDir())
	require.NoError(t, err)

	const runID = "abc123"
	ctx := context.Background()
	_, err = store.Append(ctx, runID+"/aggregate", models.AggregateSummary{RunID: runID, WinRate: 0.55, PromotionEligible: true})
	require.NoError(t, err)
	_, err = store.Append(ctx, runID+"/folds", []models.FoldResult{
		{FoldIndex: 0, Status: models.FoldPass},
		{FoldIndex: 1, Status: models.FoldWarn},
	})
	require.NoError(t, err)
	_, err = store.Append(ctx, runID+"/gate", models.GateDecision{RunID: runID, Verdict: models.VerdictPass})
	require.NoError(t, err)

	reader := usecase.NewResultsReader(store, repository.NoopSummaryCache{}, 0, nil)
	e := echo.New()
	NewResultsEchoHandler(nil, reader).RegisterRoutes(e)
	return e, runID
}

func doGet(e *echo.Echo, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSummaryEndpoint(t *testing.T) {
	e, runID := seededHandler(t)
	rec := doGet(e, "/api/runs/"+runID+"/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status int                     `json:"status"`
		Data   models.AggregateSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, runID, resp.Data.RunID)
	assert.True(t, resp.Data.PromotionEligible)
}

func TestFoldsEndpoint(t *testing.T) {
	e, runID := seededHandler(t)
	rec := doGet(e, "/api/runs/"+runID+"/folds")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Rows  []models.FoldResult `json:"rows"`
			Total int64               `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Data.Total)
	assert.Equal(t, models.FoldWarn, resp.Data.Rows[1].Status)
}

func TestDecisionsEndpoint(t *testing.T) {
	e, runID := seededHandler(t)
	rec := doGet(e, "/api/runs/"+runID+"/decisions")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Rows []models.GateDecision `json:"rows"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Rows, 1)
	assert.Equal(t, models.VerdictPass, resp.Data.Rows[0].Verdict)
}

func TestUnknownRunIsNotFound(t *testing.T) {
	e, _ := seededHandler(t)
	rec := doGet(e, "/api/runs/nope/summary")
	require.Equal(t, http.StatusOK, rec.Code) // envelope carries the status

	var resp xhttp.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusNotFound, resp.Status)
}
