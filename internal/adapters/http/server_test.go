package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiporbit/shiporbit/internal/adapters/sqlstore"
	"github.com/shiporbit/shiporbit/internal/core/domain"
	"github.com/shiporbit/shiporbit/internal/core/ports"
	"github.com/shiporbit/shiporbit/internal/core/services"
)

type stubGeo struct {
	cities []json.RawMessage
	err    error
}

func (g *stubGeo) Cities(context.Context, string) ([]json.RawMessage, error) { return g.cities, g.err }

func (g *stubGeo) Regions(_ context.Context, country, _ string) ([]json.RawMessage, error) {
	return []json.RawMessage{json.RawMessage(`{"isoCode":"IL","countryCode":"` + country + `"}`)}, g.err
}

type stubMailer struct{ sent []ports.Email }

func (m *stubMailer) Send(_ context.Context, msg ports.Email) error {
	m.sent = append(m.sent, msg)
	return nil
}

type stubGateway struct {
	n        int
	status   string
	eventErr error
}

func (g *stubGateway) CreateCustomer(context.Context, string, string) (string, error) {
	return "cus_1", nil
}

func (g *stubGateway) CreateIntent(context.Context, ports.IntentRequest) (*domain.PaymentIntent, error) {
	g.n++
	id := fmt.Sprintf("pi_%d", g.n)
	return &domain.PaymentIntent{ID: id, Status: g.status, ClientSecret: id + "_secret"}, nil
}

func (g *stubGateway) ConfirmIntent(_ context.Context, id string) (*domain.PaymentIntent, error) {
	return &domain.PaymentIntent{ID: id, Status: "succeeded"}, nil
}

func (g *stubGateway) GetIntent(_ context.Context, id string) (*domain.PaymentIntent, error) {
	return nil, errors.New("No such payment_intent: '" + id + "'")
}

func (g *stubGateway) ParseEvent([]byte, string) (*domain.PaymentEvent, error) {
	if g.eventErr != nil {
		return nil, g.eventErr
	}
	return &domain.PaymentEvent{Type: "charge.refunded"}, nil
}

type testEnv struct {
	app     *fiber.App
	geo     *stubGeo
	mailer  *stubMailer
	gateway *stubGateway
	token   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlstore.Open(context.Background(), sqlstore.Config{
		Driver: sqlstore.SQLite,
		DSN:    filepath.Join(t.TempDir(), "api.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	e := &testEnv{geo: &stubGeo{}, mailer: &stubMailer{}, gateway: &stubGateway{status: "succeeded"}}
	e.app = NewApp(Config{Version: "1.2.3", AllowedHosts: []string{"api.internal"}}, Services{
		Accounts: services.NewAccountService(store, e.mailer, "http://127.0.0.1:5173"),
		Shipper:  services.NewShipperService(store, store, e.geo),
		Billing:  services.NewBillingService(store, store, store, e.gateway, "http://127.0.0.1:5173"),
	})
	return e
}

type response struct {
	status int
	header map[string]string
	body   []byte
}

func (r response) json(t *testing.T) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(r.body, &m), string(r.body))
	return m
}

func (e *testEnv) request(t *testing.T, method, path string, body any, headers ...string) response {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Host = "localhost"
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Token "+e.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		if headers[i] == "Host" {
			req.Host = headers[i+1]
			continue
		}
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{
		status: resp.StatusCode,
		header: map[string]string{"WWW-Authenticate": resp.Header.Get("WWW-Authenticate")},
		body:   raw,
	}
}

func (e *testEnv) register(t *testing.T) map[string]any {
	t.Helper()
	r := e.request(t, "POST", "/api/auth/register/", map[string]any{
		"email":                 "grace@example.com",
		"first_name":            "Grace",
		"last_name":             "Hopper",
		"phone_number":          "+15551234567",
		"password":              "c0bol-Rules!",
		"company_name":          "Navy Freight",
		"primary_ships_country": "US",
	})
	require.Equal(t, fiber.StatusCreated, r.status, string(r.body))
	body := r.json(t)
	e.token = body["token"].(string)
	return body
}

func city(id any, name string, lat, lng float64) map[string]any {
	return map[string]any{"id": id, "name": name, "regionCode": "XX", "countryCode": "US", "latitude": lat, "longitude": lng}
}

// book quotes Chicago to Dallas and books it, returning the shipment id.
func (e *testEnv) book(t *testing.T) string {
	t.Helper()
	r := e.request(t, "POST", "/api/shipper/shipments/calculate/", map[string]any{
		"pickup_location":  city("100", "Chicago", 41.8781, -87.6298),
		"dropoff_location": city(200, "Dallas", 32.7767, -96.7970),
	})
	require.Equal(t, fiber.StatusOK, r.status, string(r.body))

	r = e.request(t, "POST", "/api/shipper/shipments/", map[string]any{
		"equipment": "dryVan",
		"pickup":    map[string]any{"city": 100, "date": "2024-06-10"},
		"dropoff":   map[string]any{"city": "200", "date": "2024-06-12"},
	})
	require.Equal(t, fiber.StatusCreated, r.status, string(r.body))
	return r.json(t)["id"].(string)
}

func TestHealthVersionAndHosts(t *testing.T) {
	e := newTestEnv(t)

	r := e.request(t, "GET", "/healthz", nil)
	assert.Equal(t, fiber.StatusOK, r.status)

	r = e.request(t, "GET", "/api/version", nil)
	assert.Equal(t, "1.2.3", r.json(t)["version"])

	r = e.request(t, "GET", "/api/version/", nil, "Host", "api.internal:8000")
	assert.Equal(t, fiber.StatusOK, r.status, "trailing slash and configured host")

	r = e.request(t, "GET", "/api/version", nil, "Host", "evil.example")
	assert.Equal(t, fiber.StatusBadRequest, r.status)

	r = e.request(t, "GET", "/api/nothing-here", nil)
	assert.Equal(t, fiber.StatusNotFound, r.status)
	assert.Equal(t, "Not found.", r.json(t)["detail"])
}

func TestTokenAuthentication(t *testing.T) {
	e := newTestEnv(t)

	r := e.request(t, "GET", "/api/auth/user/", nil)
	assert.Equal(t, fiber.StatusUnauthorized, r.status)
	assert.Equal(t, "Authentication credentials were not provided.", r.json(t)["detail"])
	assert.Equal(t, "Token", r.header["WWW-Authenticate"])

	e.token = strings.Repeat("0", 40)
	r = e.request(t, "GET", "/api/shipper/dashboard/", nil)
	assert.Equal(t, fiber.StatusUnauthorized, r.status)
	assert.Equal(t, "Invalid token.", r.json(t)["detail"])

	r = e.request(t, "GET", "/api/auth/user/", nil, "Authorization", "Bearer abc")
	assert.Equal(t, "Authentication credentials were not provided.", r.json(t)["detail"])
}

func TestRegisterLoginProfile(t *testing.T) {
	e := newTestEnv(t)
	body := e.register(t)
	assert.Equal(t, "User registered successfully", body["message"])
	assert.Len(t, e.token, 40)
	require.Len(t, e.mailer.sent, 1)

	usr := body["user"].(map[string]any)
	assert.Equal(t, "grace@example.com", usr["email"])
	assert.Equal(t, false, usr["is_email_verified"])
	assert.Equal(t, "Navy Freight", usr["company"].(map[string]any)["name"])
	assert.Nil(t, usr["shipping_needs"])

	r := e.request(t, "POST", "/api/auth/register/", map[string]any{"email": "grace@example.com"})
	assert.Equal(t, fiber.StatusBadRequest, r.status)
	errs := r.json(t)["errors"].(map[string]any)
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "password")

	r = e.request(t, "POST", "/api/auth/login/", map[string]any{"email": "grace@example.com", "password": "wrong-password"})
	assert.Equal(t, fiber.StatusBadRequest, r.status)
	assert.Equal(t, []any{"Invalid email or password."}, r.json(t)["errors"].(map[string]any)[domain.NonFieldErrors])

	r = e.request(t, "POST", "/api/auth/login/", map[string]any{"email": "grace@example.com", "password": "c0bol-Rules!"})
	require.Equal(t, fiber.StatusOK, r.status)
	assert.Equal(t, e.token, r.json(t)["token"], "the token is reused")

	r = e.request(t, "POST", "/api/shipper/shipping-needs/", map[string]any{
		"mode":             []string{"ftl"},
		"trailer_type":     []string{"dryVan"},
		"average_ftl":      "5-10",
		"company_location": "Arlington, VA",
	})
	require.Equal(t, fiber.StatusCreated, r.status, string(r.body))
	assert.Equal(t, true, r.json(t)["redirect_to_verification"])

	r = e.request(t, "GET", "/api/auth/user/", nil)
	require.Equal(t, fiber.StatusOK, r.status)
	profile := r.json(t)
	assert.Equal(t, "Arlington, VA", profile["company"].(map[string]any)["location"])
	assert.Equal(t, "5-10", profile["shipping_needs"].(map[string]any)["average_ftl"])

	r = e.request(t, "POST", "/api/auth/resend-verification/", nil)
	assert.Equal(t, "Verification email sent successfully", r.json(t)["message"])

	r = e.request(t, "POST", "/api/auth/verify-email/", `{"token": "nope"}`)
	assert.Equal(t, fiber.StatusBadRequest, r.status)

	r = e.request(t, "POST", "/api/auth/login/", `{"email": `)
	assert.Equal(t, fiber.StatusBadRequest, r.status)
	assert.Contains(t, r.json(t)["detail"], "JSON parse error")
}

func TestShipmentLifecycle(t *testing.T) {
	e := newTestEnv(t)
	e.register(t)

	r := e.request(t, "POST", "/api/shipper/distance-price/", map[string]any{
		"pickup_location":  city(100, "Chicago", 41.8781, -87.6298),
		"dropoff_location": city(200, "Dallas", 32.7767, -96.7970),
		"equipment":        "dryVan",
	})
	require.Equal(t, fiber.StatusOK, r.status, string(r.body))
	q := r.json(t)
	assert.Equal(t, "Chicago (XX, US)", q["pickup_location"])
	assert.Equal(t, float64(804), q["miles"])
	assert.Equal(t, "2511.65", q["base_price"])
	assert.Equal(t, "2661.65", q["total_price_with_assist"])

	id := e.book(t)

	r = e.request(t, "GET", "/api/shipper/shipments/"+id+"/", nil)
	require.Equal(t, fiber.StatusOK, r.status)
	detail := r.json(t)
	assert.Equal(t, domain.StatusUnfinished, detail["status"])
	assert.Equal(t, "2511.65", detail["total_price"])
	assert.Equal(t, "150.00", detail["driver_assist_fee"])
	pickup := detail["pickup"].(map[string]any)
	assert.Equal(t, "2024-06-10", pickup["date"])
	assert.Equal(t, float64(100), pickup["city"].(map[string]any)["id"])

	r = e.request(t, "PATCH", "/api/shipper/shipments/"+id+"/", map[string]any{"dropoff_date": "2024-06-01"})
	assert.Equal(t, fiber.StatusBadRequest, r.status)

	r = e.request(t, "PUT", "/api/shipper/shipments/"+id+"/appointment/", map[string]any{
		"driver_assist": true,
		"pickup":        map[string]any{"facility_name": "Dock 4", "zip_code": "60601", "phone_number": "312-555-0100"},
	})
	require.Equal(t, fiber.StatusOK, r.status, string(r.body))
	assert.Equal(t, "2661.65", r.json(t)["total_price"])

	r = e.request(t, "PATCH", "/api/shipper/shipments/"+id+"/finalizing/", map[string]any{
		"reference_number": "PO-7", "weight": 40000, "commodity": "Steel", "packaging": 20, "packaging_type": "pallets",
	})
	require.Equal(t, fiber.StatusOK, r.status, string(r.body))
	assert.Equal(t, domain.StatusUpcoming, r.json(t)["status"])

	r = e.request(t, "POST", "/api/shipper/shipments/"+id+"/status/", map[string]any{"status": "lost"})
	assert.Equal(t, fiber.StatusBadRequest, r.status)
	assert.Equal(t, "Invalid status", r.json(t)["error"])

	r = e.request(t, "GET", "/api/shipper/shipments/"+id+"/status-history/", nil)
	require.Equal(t, fiber.StatusOK, r.status)
	history := r.json(t)
	assert.Equal(t, float64(1), history["count"])
	entry := history["results"].([]any)[0].(map[string]any)
	assert.Equal(t, "grace@example.com", entry["changed_by"])
	assert.Equal(t, domain.StatusUpcoming, entry["new_status"])

	r = e.request(t, "GET", "/api/shipper/shipments/"+id+"/locations/", nil)
	assert.Equal(t, float64(2), r.json(t)["count"])

	r = e.request(t, "GET", "/api/shipper/shipments/?status=upcoming", nil)
	list := r.json(t)
	assert.Equal(t, float64(1), list["count"])
	assert.Nil(t, list["next"])
	assert.Nil(t, list["previous"])

	r = e.request(t, "GET", "/api/shipper/shipments/?page=2", nil)
	assert.Equal(t, fiber.StatusNotFound, r.status)
	assert.Equal(t, "Invalid page.", r.json(t)["detail"])

	r = e.request(t, "GET", "/api/shipper/dashboard/", nil)
	dash := r.json(t)
	assert.Equal(t, float64(1), dash["total_shipments"])
	assert.Equal(t, float64(1), dash["status_counts"].(map[string]any)[domain.StatusUpcoming])

	r = e.request(t, "POST", "/api/shipper/shipments/"+id+"/draft/", map[string]any{"commodity": "Copper"})
	assert.Equal(t, "Draft saved successfully", r.json(t)["message"])

	r = e.request(t, "DELETE", "/api/shipper/shipments/"+id+"/", nil)
	assert.Equal(t, fiber.StatusNoContent, r.status)
	r = e.request(t, "GET", "/api/shipper/shipments/"+id+"/", nil)
	assert.Equal(t, fiber.StatusNotFound, r.status)
	r = e.request(t, "GET", "/api/shipper/shipments/not-a-uuid/", nil)
	assert.Equal(t, fiber.StatusNotFound, r.status)
}

func TestPageBounds(t *testing.T) {
	e := newTestEnv(t)
	e.register(t)
	e.book(t)

	for _, q := range []string{"0", "-1", "two", "461168601842738800", "99999999999999999999"} {
		r := e.request(t, "GET", "/api/shipper/shipments/?page="+q, nil)
		assert.Equal(t, fiber.StatusNotFound, r.status, "page=%s", q)
		assert.Equal(t, "Invalid page.", r.json(t)["detail"], "page=%s", q)
	}

	r := e.request(t, "GET", "/api/shipper/shipments/?page=1", nil)
	require.Equal(t, fiber.StatusOK, r.status)
	assert.Equal(t, float64(1), r.json(t)["count"])
}

func TestGeoSearch(t *testing.T) {
	e := newTestEnv(t)
	e.register(t)

	e.geo.cities = []json.RawMessage{json.RawMessage(`{"id":100,"name":"Chicago"}`)}
	r := e.request(t, "GET", "/api/shipper/cities/?name_prefix=Chi", nil)
	require.Equal(t, fiber.StatusOK, r.status)
	assert.JSONEq(t, `[{"id":100,"name":"Chicago"}]`, string(r.body))

	r = e.request(t, "GET", "/api/shipper/country-regions/?name=Il", nil)
	assert.JSONEq(t, `[{"isoCode":"IL","countryCode":"US"}]`, string(r.body))

	e.geo.err = errors.New("429 Too Many Requests for url: https://geo/cities")
	r = e.request(t, "GET", "/api/shipper/cities/?name_prefix=Chi", nil)
	assert.Equal(t, fiber.StatusInternalServerError, r.status)
	assert.Contains(t, r.json(t)["error"], "429")
}

func TestPayments(t *testing.T) {
	e := newTestEnv(t)
	e.register(t)
	id := e.book(t)

	r := e.request(t, "POST", "/api/payments/create-intent/", map[string]any{"shipment_id": id, "payment_method_id": "pm_card_visa"})
	assert.Equal(t, fiber.StatusBadRequest, r.status, "the shipment is not upcoming yet")

	r = e.request(t, "POST", "/api/shipper/shipments/"+id+"/status/", map[string]any{"status": domain.StatusUpcoming, "reason": "ready"})
	require.Equal(t, fiber.StatusOK, r.status, string(r.body))

	r = e.request(t, "POST", "/api/payments/create-intent/", map[string]any{"shipment_id": id, "payment_method_id": "pm_card_visa"})
	require.Equal(t, fiber.StatusCreated, r.status, string(r.body))
	out := r.json(t)
	assert.Equal(t, "pi_1_secret", out["client_secret"])
	assert.Equal(t, false, out["requires_action"])
	assert.Nil(t, out["next_action"])
	assert.Equal(t, domain.PaymentSucceeded, out["payment"].(map[string]any)["status"])

	r = e.request(t, "GET", "/api/invoices/", nil)
	invoices := r.json(t)
	require.Equal(t, float64(1), invoices["count"])
	inv := invoices["results"].([]any)[0].(map[string]any)
	assert.Equal(t, domain.InvoicePaid, inv["status"])
	assert.NotNil(t, inv["paid_at"])

	r = e.request(t, "GET", fmt.Sprintf("/api/invoices/%v/", inv["id"]), nil)
	assert.Equal(t, fiber.StatusOK, r.status)
	r = e.request(t, "GET", "/api/invoices/999/", nil)
	assert.Equal(t, fiber.StatusNotFound, r.status)

	r = e.request(t, "GET", "/api/shipper/shipments/"+id+"/", nil)
	assert.Equal(t, domain.StatusInProgress, r.json(t)["status"])

	r = e.request(t, "GET", "/api/payments/history/", nil)
	var history []map[string]any
	require.NoError(t, json.Unmarshal(r.body, &history))
	require.Len(t, history, 1)
	assert.Equal(t, id, history[0]["shipment_id"])

	r = e.request(t, "GET", "/api/payments/status/pi_missing/", nil)
	assert.Equal(t, fiber.StatusNotFound, r.status)
	assert.Equal(t, "Payment not found", r.json(t)["error"])

	r = e.request(t, "GET", "/api/payments/status/pi_1/", nil)
	assert.Equal(t, fiber.StatusBadRequest, r.status)
	assert.Contains(t, r.json(t)["error"], "No such payment_intent")
}

func TestStripeWebhook(t *testing.T) {
	e := newTestEnv(t)

	r := e.request(t, "POST", "/api/webhooks/stripe/", `{"type":"charge.refunded"}`, "Stripe-Signature", "t=1,v1=abc")
	assert.Equal(t, fiber.StatusOK, r.status, "no token is needed")
	assert.Equal(t, "success", r.json(t)["status"])

	e.gateway.eventErr = ports.ErrInvalidSignature
	r = e.request(t, "POST", "/api/webhooks/stripe/", `{}`)
	assert.Equal(t, fiber.StatusBadRequest, r.status)
	assert.Equal(t, "Invalid signature", r.json(t)["error"])

	e.gateway.eventErr = ports.ErrInvalidPayload
	r = e.request(t, "POST", "/api/webhooks/stripe/", `not json`)
	assert.Equal(t, "Invalid payload", r.json(t)["error"])
}

func TestMetricsCountRoutes(t *testing.T) {
	e := newTestEnv(t)
	e.request(t, "GET", "/api/version", nil)
	e.request(t, "GET", "/api/auth/user/", nil)

	r := e.request(t, "GET", "/metrics", nil, "Host", "10.0.0.7:8000")
	require.Equal(t, fiber.StatusOK, r.status)
	body := string(r.body)
	assert.Contains(t, body, `shiporbit_http_requests_total{method="GET",route="/api/version",status="200"} 1`)
	assert.Contains(t, body, `status="401"`)
}
