package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FredericoPerimLopes/StratCap-sub001/internal/engine"
	"github.com/FredericoPerimLopes/StratCap-sub001/internal/model"
	"github.com/FredericoPerimLopes/StratCap-sub001/internal/service"
	"github.com/FredericoPerimLopes/StratCap-sub001/internal/store"
)

const serveScenario = `
calculation:
  name: Q1 2026 Distribution
  fund_id: fund-1
  gp_id: gp-sponsor
  total_distributable: "1500000"
  allocation_basis: pro_rata
tiers:
  - level: 1
    name: Return of Capital
    type: return_of_capital
    lp_allocation: "100"
    gp_allocation: "0"
    target_amount: "1000000"
  - level: 2
    name: Carried Interest
    type: carried_interest
    lp_allocation: "80"
    gp_allocation: "20"
    rate: "20"
commitments:
  - commitment_id: com-1
    investor_id: inv-1
    investor_name: Meridian Pension Trust
    commitment_amount: "600000"
    contributed_capital: "600000"
  - commitment_id: com-2
    investor_id: inv-2
    investor_name: Harbor Endowment
    commitment_amount: "400000"
    contributed_capital: "400000"
`

func newServerFixture(t *testing.T) (*service.Service, store.Store, *chi.Mux) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "waterfall.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	svc := service.New(st, engine.New(engine.DefaultPolicy()))

	r := chi.NewRouter()
	r.Post("/runs", handleRun(context.Background(), svc))
	r.Get("/calculations", handleList(st))
	r.Get("/calculations/{id}", handleShow(st))
	r.Get("/calculations/{id}/audit", handleAudit(st))
	r.Post("/calculations/{id}/post", handlePost(svc))
	r.Post("/calculations/{id}/reverse", handleReverse(svc))
	return svc, st, r
}

func postRun(t *testing.T, r http.Handler) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(serveScenario))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		Status        string `json:"status"`
		CalculationID string `json:"calculation_id"`
	}
	require.NoError(t, decodeBody(rec, &resp))
	require.Equal(t, "accepted", resp.Status)
	require.NotEmpty(t, resp.CalculationID)
	return resp.CalculationID
}

func waitForStatus(t *testing.T, st store.Store, id string, want model.CalculationStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		calc, err := st.GetCalculation(context.Background(), id)
		return err == nil && calc.Status == want
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServeRunAndShow(t *testing.T) {
	_, st, r := newServerFixture(t)

	calcID := postRun(t, r)
	waitForStatus(t, st, calcID, model.CalcStatusValidated)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calculations/"+calcID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var show struct {
		Calculation model.Calculation         `json:"calculation"`
		Events      []model.DistributionEvent `json:"events"`
	}
	require.NoError(t, decodeBody(rec, &show))
	assert.Equal(t, model.CalcStatusValidated, show.Calculation.Status)
	// 1 LP event per investor per funded tier, plus the GP carry event.
	assert.Len(t, show.Events, 5)
}

func TestServeRunRejectsBadScenario(t *testing.T) {
	_, _, r := newServerFixture(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader("tiers: [")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeListFiltersByFund(t *testing.T) {
	_, st, r := newServerFixture(t)
	calcID := postRun(t, r)
	waitForStatus(t, st, calcID, model.CalcStatusValidated)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calculations?fund=fund-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var calcs []model.Calculation
	require.NoError(t, decodeBody(rec, &calcs))
	require.Len(t, calcs, 1)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calculations?fund=fund-other", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, decodeBody(rec, &calcs))
	assert.Empty(t, calcs)
}

func TestServeAudit(t *testing.T) {
	_, st, r := newServerFixture(t)
	calcID := postRun(t, r)
	waitForStatus(t, st, calcID, model.CalcStatusValidated)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calculations/"+calcID+"/audit", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var audit struct {
		Steps   []model.TierAuditStep   `json:"steps"`
		Summary model.ValidationSummary `json:"summary"`
	}
	require.NoError(t, decodeBody(rec, &audit))
	assert.Len(t, audit.Steps, 10) // 5 steps per tier
	assert.True(t, audit.Summary.Valid())
}

func TestServeAuditNotFound(t *testing.T) {
	_, _, r := newServerFixture(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calculations/missing/audit", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServePostAndReverse(t *testing.T) {
	_, st, r := newServerFixture(t)
	calcID := postRun(t, r)
	waitForStatus(t, st, calcID, model.CalcStatusValidated)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/calculations/"+calcID+"/post", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/calculations/"+calcID+"/reverse", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ReversalID string `json:"reversal_id"`
	}
	require.NoError(t, decodeBody(rec, &resp))
	require.NotEmpty(t, resp.ReversalID)

	calc, err := st.GetCalculation(context.Background(), calcID)
	require.NoError(t, err)
	assert.Equal(t, model.CalcStatusReversed, calc.Status)
}

func TestServePostRequiresValidated(t *testing.T) {
	svc, _, r := newServerFixture(t)

	calc, err := svc.CreateCalculation(context.Background(), service.CreateRequest{
		FundID: "fund-1", Name: "draft only", TotalDistributable: decimalFrom(t, "100"),
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/calculations/"+calc.ID+"/post", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
