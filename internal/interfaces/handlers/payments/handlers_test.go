package payments

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cleanup-backend/internal/application/holds"
	"cleanup-backend/internal/application/payoutaccounts"
	"cleanup-backend/internal/application/reconciliation"
	"cleanup-backend/internal/application/recovery"
	"cleanup-backend/internal/application/requests"
	"cleanup-backend/internal/application/settlement"
	"cleanup-backend/internal/domain"
	"cleanup-backend/internal/middleware"
	"cleanup-backend/internal/payments/paymentstest"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testWebhookSecret = "whsec_handlers_test"

type handlersFixture struct {
	app  *fiber.App
	db   *gorm.DB
	proc *paymentstest.FakeProcessor
	req  domain.CleanupRequest
}

// setupHandlersTest builds the payments routes. The caller identity comes from
// the X-Test-User and X-Test-Role headers in place of a session.
func setupHandlersTest(t *testing.T) handlersFixture {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.CleanupRequest{}, &domain.Hold{}, &domain.Donation{},
		&domain.Payout{}, &domain.PayoutAccount{}, &domain.RecoveryTask{},
	))
	req := domain.CleanupRequest{
		ID:        uuid.New(),
		Cost:      decimal.RequireFromString("40.00"),
		Category:  "river",
		CreatedBy: uuid.New(),
	}
	require.NoError(t, db.Create(&req).Error)

	proc := paymentstest.New()
	reqs := &requests.Service{DB: db}
	queue := &recovery.Queue{DB: db}
	capturer := &holds.Capturer{DB: db, Processor: proc, Recovery: queue}
	accounts := &payoutaccounts.Service{DB: db, Processor: proc}
	h := &Handlers{
		Holds: &holds.Service{
			DB: db, Processor: proc, Requests: reqs, Currency: "usd",
			LedgerFor: func(tx *gorm.DB) holds.ContributionLedger { return reqs.WithTx(tx) },
		},
		Settlement: &settlement.Service{
			DB: db, Processor: proc, Capturer: capturer, Accounts: accounts, Requests: reqs, Currency: "usd",
		},
	}
	wh := &WebhookHandler{
		Reconciler: &reconciliation.Handler{
			DB: db, Capturer: capturer, Accounts: accounts, Recovery: queue,
			LedgerFor: func(tx *gorm.DB) reconciliation.ContributionLedger { return reqs.WithTx(tx) },
		},
		WebhookSecret: testWebhookSecret,
	}

	app := fiber.New()
	app.Post("/payments/webhooks", wh.HandleWebhook)
	g := app.Group("/payments", func(c *fiber.Ctx) error {
		if id := c.Get("X-Test-User"); id != "" {
			c.Locals("user", &middleware.SessionUser{UserID: id, Role: c.Get("X-Test-Role")})
		}
		return c.Next()
	}, middleware.RequireAuth())
	g.Post("/holds", h.CreateHold)
	g.Post("/settle", h.Settle)
	g.Get("/history", h.History)

	return handlersFixture{app: app, db: db, proc: proc, req: req}
}

func doJSON(t *testing.T, app *fiber.App, method, path string, user uuid.UUID, role string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	r := httptest.NewRequest(method, path, rdr)
	r.Header.Set("Content-Type", "application/json")
	if user != uuid.Nil {
		r.Header.Set("X-Test-User", user.String())
		r.Header.Set("X-Test-Role", role)
	}
	resp, err := app.Test(r)
	require.NoError(t, err)
	return resp.StatusCode, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	if len(b) > 0 && b[0] == '{' {
		require.NoError(t, json.Unmarshal(b, &out))
	}
	return out
}

func errorOf(body map[string]interface{}) map[string]interface{} {
	e, _ := body["error"].(map[string]interface{})
	return e
}

func TestCreateHold_Unauthenticated(t *testing.T) {
	f := setupHandlersTest(t)
	status, body := doJSON(t, f.app, "POST", "/payments/holds", uuid.Nil, "", fiber.Map{"requestId": f.req.ID, "amountMinorUnits": 1000, "kind": "donation"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "error", body["status"])
}

func TestCreateHold_Created(t *testing.T) {
	f := setupHandlersTest(t)
	payer := uuid.New()
	status, body := doJSON(t, f.app, "POST", "/payments/holds", payer, "member", fiber.Map{
		"requestId": f.req.ID, "amountMinorUnits": 1000, "kind": "donation",
	})
	require.Equal(t, fiber.StatusCreated, status)
	data := body["data"].(map[string]interface{})
	assert.NotEmpty(t, data["holdId"])
	assert.Equal(t, "pi_test_1_secret", data["clientHandle"])

	var hold domain.Hold
	require.NoError(t, f.db.First(&hold).Error)
	assert.Equal(t, payer, hold.PayerUserID)
	assert.Equal(t, int64(1000), hold.AmountMinorUnits)
}

func TestCreateHold_ErrorMapping(t *testing.T) {
	f := setupHandlersTest(t)
	payer := uuid.New()

	tests := []struct {
		name   string
		body   fiber.Map
		status int
		code   string
	}{
		{"bad request id", fiber.Map{"requestId": "nope", "amountMinorUnits": 1000, "kind": "donation"}, fiber.StatusBadRequest, ""},
		{"unknown kind", fiber.Map{"requestId": f.req.ID, "amountMinorUnits": 1000, "kind": "tip"}, fiber.StatusBadRequest, "invalid_input"},
		{"too small", fiber.Map{"requestId": f.req.ID, "amountMinorUnits": 10, "kind": "donation"}, fiber.StatusBadRequest, "amount_too_small"},
		{"unknown request", fiber.Map{"requestId": uuid.New(), "amountMinorUnits": 1000, "kind": "donation"}, fiber.StatusNotFound, "request_not_found"},
		{"paying for someone else", fiber.Map{"requestId": f.req.ID, "amountMinorUnits": 1000, "kind": "donation", "payerUserId": uuid.New()}, fiber.StatusForbidden, "forbidden"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doJSON(t, f.app, "POST", "/payments/holds", payer, "member", tt.body)
			assert.Equal(t, tt.status, status)
			if tt.code != "" {
				details := errorOf(body)["details"].(map[string]interface{})
				assert.Equal(t, tt.code, details["code"])
			}
		})
	}
	assert.Equal(t, 0, f.proc.CreateHoldCalls)
}

func TestSettle_ForbiddenAndNotFound(t *testing.T) {
	f := setupHandlersTest(t)

	status, _ := doJSON(t, f.app, "POST", "/payments/settle", uuid.New(), "member", fiber.Map{
		"requestId": f.req.ID, "performerUserId": uuid.New(),
	})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = doJSON(t, f.app, "POST", "/payments/settle", uuid.New(), "admin", fiber.Map{
		"requestId": uuid.New(), "performerUserId": uuid.New(),
	})
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = doJSON(t, f.app, "POST", "/payments/settle", uuid.New(), "admin", fiber.Map{"requestId": f.req.ID})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestSettle_NoPayoutAccount(t *testing.T) {
	f := setupHandlersTest(t)
	require.NoError(t, f.db.Create(&domain.Hold{
		ExternalID: "pi_done", PayerUserID: uuid.New(), RequestID: f.req.ID,
		AmountMinorUnits: 5000, Currency: "usd", Kind: domain.HoldKindDonation, Status: domain.HoldStatusSucceeded,
	}).Error)

	status, body := doJSON(t, f.app, "POST", "/payments/settle", f.req.CreatedBy, "member", fiber.Map{
		"requestId": f.req.ID, "performerUserId": uuid.New(),
	})
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "payout_account_not_found", errorOf(body)["details"].(map[string]interface{})["code"])
}

func TestHistory_SelfAndAdmin(t *testing.T) {
	f := setupHandlersTest(t)
	payer := uuid.New()
	for i := 0; i < 3; i++ {
		status, _ := doJSON(t, f.app, "POST", "/payments/holds", payer, "member", fiber.Map{
			"requestId": f.req.ID, "amountMinorUnits": 1000 + i, "kind": "donation",
		})
		require.Equal(t, fiber.StatusCreated, status)
	}

	status, body := doJSON(t, f.app, "GET", "/payments/history?limit=2", payer, "member", nil)
	require.Equal(t, fiber.StatusOK, status)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(3), data["total"])
	assert.Len(t, data["items"], 2)

	status, _ = doJSON(t, f.app, "GET", "/payments/history?userId="+payer.String(), uuid.New(), "member", nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body = doJSON(t, f.app, "GET", "/payments/history?userId="+payer.String(), uuid.New(), "superadmin", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(3), body["data"].(map[string]interface{})["total"])

	status, _ = doJSON(t, f.app, "GET", "/payments/history?userId=abc", payer, "member", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func sign(payload []byte, secret string, at time.Time) string {
	ts := fmt.Sprintf("%d", at.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + string(payload)))
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func postWebhook(t *testing.T, app *fiber.App, payload []byte, sig string) (int, string) {
	t.Helper()
	r := httptest.NewRequest("POST", "/payments/webhooks", bytes.NewReader(payload))
	r.Header.Set("Content-Type", "application/json")
	if sig != "" {
		r.Header.Set("Stripe-Signature", sig)
	}
	resp, err := app.Test(r)
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestWebhook_RejectsUnverifiedOrMalformed(t *testing.T) {
	f := setupHandlersTest(t)
	payload := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_x","object":"payment_intent"}}}`)

	status, _ := postWebhook(t, f.app, nil, "")
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body := postWebhook(t, f.app, payload, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, body, "Webhook Error")

	status, _ = postWebhook(t, f.app, payload, sign(payload, "whsec_wrong", time.Now()))
	assert.Equal(t, fiber.StatusBadRequest, status)

	garbage := []byte(`not json`)
	status, _ = postWebhook(t, f.app, garbage, sign(garbage, testWebhookSecret, time.Now()))
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestWebhook_AcknowledgesVerifiedEvents(t *testing.T) {
	f := setupHandlersTest(t)
	payer := uuid.New()
	holdID := uuid.New()
	payload, err := json.Marshal(fiber.Map{
		"id": "evt_ok", "object": "event", "type": "payment_intent.succeeded",
		"data": fiber.Map{"object": fiber.Map{
			"id": "pi_from_event", "object": "payment_intent", "amount": 2500, "amount_received": 2500,
			"currency": "usd", "status": "succeeded",
			"metadata": fiber.Map{
				"request_id": f.req.ID.String(), "payer_user_id": payer.String(),
				"kind": "request_cost", "hold_id": holdID.String(),
			},
		}},
	})
	require.NoError(t, err)

	status, body := postWebhook(t, f.app, payload, sign(payload, testWebhookSecret, time.Now()))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body)

	var hold domain.Hold
	require.NoError(t, f.db.Where("external_id = ?", "pi_from_event").First(&hold).Error)
	assert.Equal(t, holdID, hold.ID)
	assert.Equal(t, domain.HoldStatusSucceeded, hold.Status)

	unknown := []byte(`{"id":"evt_2","object":"event","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)
	status, _ = postWebhook(t, f.app, unknown, sign(unknown, testWebhookSecret, time.Now()))
	assert.Equal(t, fiber.StatusOK, status)
}

func TestWebhook_HandlingFailureStillAcknowledged(t *testing.T) {
	f := setupHandlersTest(t)
	require.NoError(t, f.db.Migrator().DropTable(&domain.Hold{}))

	payload := []byte(`{"id":"evt_3","object":"event","type":"payment_intent.canceled","data":{"object":{"id":"pi_gone","object":"payment_intent","status":"canceled"}}}`)
	status, _ := postWebhook(t, f.app, payload, sign(payload, testWebhookSecret, time.Now()))
	assert.Equal(t, fiber.StatusOK, status)
}
