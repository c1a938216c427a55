package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yearend/internal/domain/auth"
	"yearend/internal/domain/yearend"
	"yearend/internal/platform/config"
)

type journey struct {
	t        *testing.T
	app      *App
	srv      *httptest.Server
	tenantID string
}

func startJourney(t *testing.T) *journey {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := config.Config{
		DatabaseURL:       dbURL,
		JWTSecret:         "test-secret",
		DataEncryptionKey: "0123456789abcdef0123456789abcdef",
		Environment:       "test",
		RunMigrations:     true,
		MigrationsDir:     filepath.Join("..", "..", "..", "migrations"),
		RunSeed:           true,
		SeedTenantName:    "Journey " + uuid.NewString(),
		ReconcileWorkers:  4,
		SlipStorageDir:    t.TempDir(),
		MetricsEnabled:    true,
		MaxBodyBytes:      1048576,
		RateLimitPerMin:   1000,
	}
	app, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(app.Close)

	var tenantID string
	require.NoError(t, app.DB.QueryRow(context.Background(), "SELECT id::text FROM tenants WHERE name = $1", cfg.SeedTenantName).Scan(&tenantID))

	srv := httptest.NewServer(app.Router)
	t.Cleanup(srv.Close)
	return &journey{t: t, app: app, srv: srv, tenantID: tenantID}
}

func (j *journey) token(userID, role string) string {
	j.t.Helper()
	roleID, err := auth.NewStore(j.app.DB).RoleID(context.Background(), j.tenantID, role)
	require.NoError(j.t, err)
	tok, err := auth.GenerateToken(j.app.Config.JWTSecret, auth.Claims{UserID: userID, TenantID: j.tenantID, RoleID: roleID, RoleName: role}, time.Hour)
	require.NoError(j.t, err)
	return tok
}

func (j *journey) exec(sql string, args ...any) {
	j.t.Helper()
	_, err := j.app.DB.Exec(context.Background(), sql, args...)
	require.NoError(j.t, err)
}

func (j *journey) call(method, path, token string, body any, out any) int {
	j.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(j.t, err)
	}
	req, err := http.NewRequest(method, j.srv.URL+path, bytes.NewReader(payload))
	require.NoError(j.t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := j.srv.Client().Do(req)
	require.NoError(j.t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		require.NoError(j.t, json.NewDecoder(resp.Body).Decode(&env))
		require.NoError(j.t, json.Unmarshal(env.Data, out))
	}
	return resp.StatusCode
}

func TestYearEndJourney(t *testing.T) {
	j := startJourney(t)
	withSlips := uuid.NewString()
	withoutSlips := uuid.NewString()

	j.exec("INSERT INTO employees (tenant_id, user_id, status) VALUES ($1,$2,'active'), ($1,$3,'active')", j.tenantID, withSlips, withoutSlips)
	j.exec(`INSERT INTO salary_slips (tenant_id, user_id, pay_period, status, gross_pay, income_tax)
    VALUES ($1,$2,'2024-06','confirmed',2000000,150000), ($1,$2,'2024-12','paid',2000000,150000), ($1,$2,'2024-11','draft',999999,1)`,
		j.tenantID, withSlips)

	hr := j.token(uuid.NewString(), auth.RoleHR)
	payroll := j.token(uuid.NewString(), auth.RolePayroll)

	var summary yearend.BatchSummary
	require.Equal(t, http.StatusOK, j.call(http.MethodPost, "/api/v1/year-end/runs", payroll, map[string]any{"fiscalYear": 2024}, &summary))
	assert.Equal(t, yearend.RunCounts{Total: 2, Success: 1, Error: 1, FiscalYear: 2024}, summary.Summary)

	var result *yearend.Result
	for _, outcome := range summary.Results {
		switch outcome.UserID {
		case withSlips:
			require.True(t, outcome.Success, outcome.Error)
			result = outcome.Result
		case withoutSlips:
			assert.Equal(t, "no earnings data", outcome.Error)
		}
	}
	require.NotNil(t, result)
	assert.Equal(t, int64(4_000_000), result.TotalSalary)
	assert.Equal(t, int64(133_240), result.FinalTax)
	assert.Equal(t, int64(166_760), result.AdjustmentAmount)
	assert.True(t, result.IsRefund)

	var again yearend.BatchSummary
	require.Equal(t, http.StatusOK, j.call(http.MethodPost, "/api/v1/year-end/runs", payroll, map[string]any{"fiscalYear": 2024, "userIds": []string{withSlips}}, &again))
	require.Len(t, again.Results, 1)
	assert.Equal(t, result.ID, again.Results[0].Result.ID)

	var confirmed yearend.Result
	require.Equal(t, http.StatusOK, j.call(http.MethodPost, "/api/v1/year-end/results/"+result.ID+"/confirm", hr, nil, &confirmed))
	assert.Equal(t, yearend.ResultStatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)

	require.Equal(t, http.StatusOK, j.call(http.MethodPost, "/api/v1/year-end/results/"+result.ID+"/pay", payroll, nil, nil))
	assert.Equal(t, http.StatusConflict, j.call(http.MethodPost, "/api/v1/year-end/results/"+result.ID+"/pay", payroll, nil, nil))

	var locked yearend.BatchSummary
	require.Equal(t, http.StatusOK, j.call(http.MethodPost, "/api/v1/year-end/runs", payroll, map[string]any{"fiscalYear": 2024, "userIds": []string{withSlips}}, &locked))
	assert.Equal(t, "result already finalized", locked.Results[0].Error)

	var stored yearend.Result
	require.Equal(t, http.StatusOK, j.call(http.MethodGet, "/api/v1/year-end/results/"+result.ID, hr, nil, &stored))
	assert.Equal(t, yearend.ResultStatusPaid, stored.Status)
	assert.Equal(t, int64(166_760), stored.AdjustmentAmount)

	var events struct {
		Total int `json:"total"`
	}
	require.Equal(t, http.StatusOK, j.call(http.MethodGet, "/api/v1/year-end/audit?entityId="+result.ID, hr, nil, &events))
	assert.Equal(t, 2, events.Total)

	var notices struct {
		Total int `json:"total"`
	}
	require.Equal(t, http.StatusOK, j.call(http.MethodGet, "/api/v1/notifications", j.token(withSlips, auth.RoleEmployee), nil, &notices))
	assert.Equal(t, 2, notices.Total)

	slip, err := j.app.Service.WithholdingSlip(context.Background(), j.tenantID, result.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(slip, []byte("%PDF")))
}
