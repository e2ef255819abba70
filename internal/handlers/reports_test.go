package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/diewo77/go-honoraires/internal/config"
	"github.com/diewo77/go-honoraires/internal/db"
	"github.com/diewo77/go-honoraires/internal/fees"
	"github.com/diewo77/go-honoraires/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
	}, nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	return conn
}

func seedMixedClient(t *testing.T, conn *gorm.DB) models.Client {
	t.Helper()
	c := models.Client{Name: "Mixte", Cabinet: "paris"}
	require.NoError(t, conn.Create(&c).Error)
	line := func(label, family string, qty, unit int64) models.InvoiceLine {
		q, u := decimal.NewFromInt(qty), decimal.NewFromInt(unit)
		return models.InvoiceLine{Label: label, Family: family, Quantity: q, UnitPrice: u, AmountHT: q.Mul(u)}
	}
	sub := models.Subscription{
		ExternalID: 1, ClientID: c.ID, Label: "Abonnement", Status: fees.StatusInProgress,
		Frequency: fees.FrequencyMonthly, Interval: 1,
		Lines: []models.InvoiceLine{
			line("Mission comptable mensuelle", "comptabilite", 1, 200),
			line("Forfait social", "social", 1, 150),
			line("Bulletin de salaire", "social", 10, 20),
		},
	}
	require.NoError(t, conn.Create(&sub).Error)
	return c
}

func newTestRouter(t *testing.T) (http.Handler, *gorm.DB, models.Client) {
	conn := setupTestDB(t)
	c := seedMixedClient(t, conn)
	return NewRouter(conn, nil, fees.NewClassifier(fees.DefaultBulletinThreshold), nil), conn, c
}

func do(t *testing.T, h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst), w.Body.String())
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestRouter(t)
	w := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAxes(t *testing.T) {
	h, _, _ := newTestRouter(t)

	var payload struct {
		Items []axeView `json:"items"`
	}
	w := do(t, h, http.MethodGet, "/api/axes", "", "Accept-Language", "en-GB,en;q=0.9")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &payload)
	require.Len(t, payload.Items, len(fees.Axes()))
	labels := map[fees.Axe]string{}
	for _, a := range payload.Items {
		labels[a.Code] = a.Label
	}
	assert.Equal(t, "Payroll per payslip", labels[fees.SocialBulletin])

	w = do(t, h, http.MethodGet, "/api/axes?lang=fr", "", "Accept-Language", "en")
	decode(t, w, &payload)
	for _, a := range payload.Items {
		if a.Code == fees.SocialBulletin {
			assert.Equal(t, "Social au bulletin", a.Label)
			assert.True(t, a.Variable)
		}
	}
}

func TestAnomalies(t *testing.T) {
	h, _, c := newTestRouter(t)

	var report struct {
		Items []struct {
			Type          string `json:"type"`
			Severity      string `json:"severity"`
			ClientID      uint   `json:"client_id"`
			TypeLabel     string `json:"type_label"`
			SeverityLabel string `json:"severity_label"`
		} `json:"items"`
		Counts map[string]int `json:"counts"`
	}
	w := do(t, h, http.MethodGet, "/api/anomalies?severity=error", "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &report)
	require.Len(t, report.Items, 1)
	assert.Equal(t, "social_conflict", report.Items[0].Type)
	assert.Equal(t, "Conflit forfait / bulletin", report.Items[0].TypeLabel)
	assert.Equal(t, "Erreur", report.Items[0].SeverityLabel)
	assert.Equal(t, c.ID, report.Items[0].ClientID)
	assert.Equal(t, 1, report.Counts["error"])

	w = do(t, h, http.MethodGet, fmt.Sprintf("/api/clients/%d/anomalies", c.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &report)
	assert.NotEmpty(t, report.Items)

	w = do(t, h, http.MethodGet, "/api/anomalies?cabinet=lyon", "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &report)
	assert.Empty(t, report.Items)
}

func TestClientRoutes_Errors(t *testing.T) {
	h, _, _ := newTestRouter(t)
	tests := []struct {
		path   string
		status int
		code   string
	}{
		{"/api/clients/abc/anomalies", http.StatusBadRequest, "invalid_id"},
		{"/api/clients/0/restructuring", http.StatusBadRequest, "invalid_id"},
		{"/api/clients/999/anomalies", http.StatusNotFound, "client_not_found"},
		{"/api/clients/999/restructuring", http.StatusNotFound, "client_not_found"},
	}
	for _, tt := range tests {
		w := do(t, h, http.MethodGet, tt.path, "", "Accept-Language", "en")
		assert.Equal(t, tt.status, w.Code, tt.path)
		var e struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		decode(t, w, &e)
		assert.Equal(t, tt.code, e.Error, tt.path)
		assert.NotEmpty(t, e.Message, tt.path)
	}
}

func TestRestructuring(t *testing.T) {
	h, _, c := newTestRouter(t)
	w := do(t, h, http.MethodGet, fmt.Sprintf("/api/clients/%d/restructuring", c.ID), "")
	require.Equal(t, http.StatusOK, w.Code)

	var plan struct {
		Subscriptions []struct {
			Action   string            `json:"action"`
			Fixed    []json.RawMessage `json:"fixed"`
			Variable []json.RawMessage `json:"variable"`
		} `json:"subscriptions"`
		Counts map[string]int `json:"counts"`
	}
	decode(t, w, &plan)
	require.Len(t, plan.Subscriptions, 1)
	assert.Equal(t, "modify", plan.Subscriptions[0].Action)
	assert.Len(t, plan.Subscriptions[0].Fixed, 2)
	assert.Len(t, plan.Subscriptions[0].Variable, 1)
	assert.Equal(t, 1, plan.Counts["modify"])
}

func TestSimulate(t *testing.T) {
	h, conn, _ := newTestRouter(t)

	w := do(t, h, http.MethodPost, "/api/simulations", `{"parameters":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/simulations", `{"parameters":{"axes":{"nope":{"active":true,"value":3}}}}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	var e struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}
	decode(t, w, &e)
	assert.Equal(t, "invalid_parameters", e.Error)
	assert.Equal(t, "unknown_axe", e.Details["axes.nope"])

	body := `{"parameters":{"axes":{"compta_mensuelle":{"active":true,"mode":"percentage","value":10}}}}`
	w = do(t, h, http.MethodPost, "/api/simulations", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res struct {
		Summary struct {
			Clients int `json:"clients"`
			Global  struct {
				Delta string `json:"delta"`
			} `json:"global"`
		} `json:"summary"`
		RunID string `json:"run_id"`
	}
	decode(t, w, &res)
	assert.Equal(t, 1, res.Summary.Clients)
	assert.True(t, decimal.RequireFromString(res.Summary.Global.Delta).Equal(decimal.NewFromInt(240)), res.Summary.Global.Delta)
	assert.Empty(t, res.RunID)

	save := `{"parameters":{"axes":{"compta_mensuelle":{"active":true,"value":10}}},"save_tariffs":true}`
	w = do(t, h, http.MethodPost, "/api/simulations", save)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &res)
	assert.NotEmpty(t, res.RunID)

	var tariffs []models.TariffReference
	require.NoError(t, conn.Find(&tariffs).Error)
	assert.NotEmpty(t, tariffs)
	for _, tr := range tariffs {
		assert.Equal(t, res.RunID, tr.RunID)
	}
}
