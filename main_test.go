package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hospital-billing/audit"
	"hospital-billing/config"
	"hospital-billing/database"
	"hospital-billing/middlewares"
	"hospital-billing/models"
	"hospital-billing/services"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

type apiClient struct {
	t     *testing.T
	app   *fiber.App
	db    *gorm.DB
	token string
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	db, err := database.OpenSQLite("file:"+t.Name()+"?mode=memory&cache=shared", nil)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	cfg := config.Config{
		JWTSecret:       testSecret,
		TaxRate:         decimal.NewFromInt(10),
		AllowedOrigins:  "*",
		BodyLimitBytes:  4 * 1024 * 1024,
		RateLimitMax:    1000,
		RateLimitWindow: 60,
	}
	log := zap.NewNop()
	app := newApp(cfg, log, db, audit.NewLogSink(log))

	token, err := middlewares.GenerateJWT([]byte(testSecret), services.Actor{ID: "u-1", Name: "Front Desk", Role: "receptionist"}, time.Hour)
	require.NoError(t, err)
	return &apiClient{t: t, app: app, db: db, token: token}
}

func (a *apiClient) do(method, path string, body any, headers ...string) (int, map[string]any, http.Header) {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	if len(raw) > 0 {
		require.NoError(a.t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out, resp.Header
}

func TestHealthIsPublic(t *testing.T) {
	api := newAPI(t)
	api.token = ""
	status, body, _ := api.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestAPIRequiresBearerToken(t *testing.T) {
	api := newAPI(t)
	api.token = ""
	status, _, _ := api.do(http.MethodPost, "/api/patients", map[string]any{"first_name": "A", "last_name": "B"})
	assert.Equal(t, http.StatusUnauthorized, status)

	api.token = "not-a-jwt"
	status, _, _ = api.do(http.MethodGet, "/api/invoices", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestInvoicePaymentFlow(t *testing.T) {
	api := newAPI(t)

	status, patient, _ := api.do(http.MethodPost, "/api/patients", map[string]any{"first_name": " Ada ", "last_name": "Lovelace"})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Ada", patient["first_name"])

	status, inv, _ := api.do(http.MethodPost, "/api/invoices", map[string]any{
		"patient_id": patient["id"],
		"items":      []map[string]any{{"description": "Surgery", "quantity": 1, "unit_price": 200}},
		"discount":   "20.00",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.EqualValues(t, 200, inv["total"])
	assert.Equal(t, "unpaid", inv["status"])

	path := "/api/invoices/" + inv["id"].(string) + "/payments"
	status, paid, _ := api.do(http.MethodPost, path, map[string]any{"paid_amount": 100, "payment_method": "cash"}, "Idempotency-Key", "pay-1")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "partial", paid["status"])

	status, replay, headers := api.do(http.MethodPost, path, map[string]any{"paid_amount": 100, "payment_method": "cash"}, "Idempotency-Key", "pay-1")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "true", headers.Get("Idempotent-Replayed"))
	assert.Equal(t, paid["paid_amount"], replay["paid_amount"])

	status, _, _ = api.do(http.MethodPost, path, map[string]any{"paid_amount": 150}, "Idempotency-Key", "pay-1")
	assert.Equal(t, http.StatusConflict, status)

	status, body, _ := api.do(http.MethodPost, path, map[string]any{"paid_amount": 200})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["message"], "idempotency key")

	var n int64
	require.NoError(t, api.db.Model(&models.CashEntry{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)

	status, _, _ = api.do(http.MethodDelete, "/api/invoices/"+inv["id"].(string), nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestErrorMapping(t *testing.T) {
	api := newAPI(t)

	status, body, _ := api.do(http.MethodPost, "/api/invoices", map[string]any{"patient_id": "p"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation failed", body["message"])
	assert.Contains(t, body["errors"], "items")

	status, _, _ = api.do(http.MethodGet, "/api/invoices/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _, _ = api.do(http.MethodPost, "/api/invoices", map[string]any{
		"patient_id": "ghost",
		"items":      []map[string]any{{"description": "x", "quantity": 1, "unit_price": 1}},
	})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDispenseInsufficientStockNamesMedicine(t *testing.T) {
	api := newAPI(t)

	_, patient, _ := api.do(http.MethodPost, "/api/patients", map[string]any{"first_name": "Alan", "last_name": "Turing"})
	status, med, _ := api.do(http.MethodPost, "/api/medicines", map[string]any{
		"name": "Insulin", "quantity": 1, "reorder_level": 2, "selling_price": "9.00",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "low-stock", med["status"])

	status, rx, _ := api.do(http.MethodPost, "/api/prescriptions", map[string]any{
		"patient_id": patient["id"],
		"items":      []map[string]any{{"medicine_id": med["id"], "quantity": 3}},
	})
	require.Equal(t, http.StatusCreated, status)

	status, body, _ := api.do(http.MethodPost, "/api/prescriptions/"+rx["id"].(string)+"/dispense", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Insulin", body["medicine"])
	assert.EqualValues(t, 1, body["available"])
	assert.EqualValues(t, 3, body["requested"])
}
