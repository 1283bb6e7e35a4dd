package payouts

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"cleanup-backend/internal/application/payoutaccounts"
	"cleanup-backend/internal/application/settlement"
	"cleanup-backend/internal/domain"
	"cleanup-backend/internal/middleware"
	"cleanup-backend/internal/payments"
	"cleanup-backend/internal/payments/paymentstest"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type payoutsFixture struct {
	app  *fiber.App
	db   *gorm.DB
	proc *paymentstest.FakeProcessor
}

func setupPayoutsTest(t *testing.T) payoutsFixture {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Payout{}, &domain.PayoutAccount{}))

	proc := paymentstest.New()
	accounts := &payoutaccounts.Service{DB: db, Processor: proc, RefreshURL: "https://app.example.org/refresh", ReturnURL: "https://app.example.org/done"}
	h := &Handlers{Accounts: accounts, Settlement: &settlement.Service{DB: db, Processor: proc, Accounts: accounts}}

	app := fiber.New()
	g := app.Group("/payouts", func(c *fiber.Ctx) error {
		if id := c.Get("X-Test-User"); id != "" {
			c.Locals("user", &middleware.SessionUser{UserID: id, Role: c.Get("X-Test-Role"), Email: c.Get("X-Test-Email")})
		}
		return c.Next()
	}, middleware.RequireAuth())
	g.Get("/history", h.History)
	g.Post("/accounts/onboard", h.Onboard)
	g.Get("/accounts/me", h.Me)
	return payoutsFixture{app: app, db: db, proc: proc}
}

func call(t *testing.T, app *fiber.App, method, path string, user uuid.UUID, role, email string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-Test-User", user.String())
	req.Header.Set("X-Test-Role", role)
	req.Header.Set("X-Test-Email", email)
	resp, err := app.Test(req)
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	return resp.StatusCode, out
}

func TestOnboard_CreatesAccountOnceAndReturnsLink(t *testing.T) {
	f := setupPayoutsTest(t)
	user := uuid.New()

	status, body := call(t, f.app, "POST", "/payouts/accounts/onboard", user, "volunteer", "crew@example.org")
	require.Equal(t, fiber.StatusOK, status)
	data := body["data"].(map[string]interface{})
	accountID := data["accountId"].(string)
	assert.NotEmpty(t, accountID)
	assert.Contains(t, data["onboardingUrl"], accountID)

	status, body = call(t, f.app, "POST", "/payouts/accounts/onboard", user, "volunteer", "crew@example.org")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, accountID, body["data"].(map[string]interface{})["accountId"])

	var n int64
	require.NoError(t, f.db.Model(&domain.PayoutAccount{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestOnboard_RejectsMalformedSessionEmail(t *testing.T) {
	f := setupPayoutsTest(t)
	status, _ := call(t, f.app, "POST", "/payouts/accounts/onboard", uuid.New(), "volunteer", "not an email")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestMe_NotFoundThenRefreshed(t *testing.T) {
	f := setupPayoutsTest(t)
	user := uuid.New()

	status, _ := call(t, f.app, "GET", "/payouts/accounts/me", user, "volunteer", "")
	assert.Equal(t, fiber.StatusNotFound, status)

	_, body := call(t, f.app, "POST", "/payouts/accounts/onboard", user, "volunteer", "")
	accountID := body["data"].(map[string]interface{})["accountId"].(string)

	status, body = call(t, f.app, "GET", "/payouts/accounts/me", user, "volunteer", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, body["data"].(map[string]interface{})["payouts_enabled"])

	f.proc.SetAccount(payments.AccountDetails{ExternalID: accountID, ChargesEnabled: true, PayoutsEnabled: true, DetailsSubmitted: true})
	status, body = call(t, f.app, "GET", "/payouts/accounts/me?refresh=true", user, "volunteer", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["data"].(map[string]interface{})["payouts_enabled"])
}

func TestHistory_ListsOwnPayouts(t *testing.T) {
	f := setupPayoutsTest(t)
	performer := uuid.New()
	for i := 0; i < 2; i++ {
		require.NoError(t, f.db.Create(&domain.Payout{
			RequestID: uuid.New(), PerformerUserID: performer, NetAmountMinorUnits: 4072,
			PlatformFeeMinorUnits: 350, ProcessorFeeMinorUnits: 578, Currency: "usd", Status: domain.PayoutStatusPaid,
		}).Error)
	}
	require.NoError(t, f.db.Create(&domain.Payout{
		RequestID: uuid.New(), PerformerUserID: uuid.New(), NetAmountMinorUnits: 100, Currency: "usd", Status: domain.PayoutStatusPending,
	}).Error)

	status, body := call(t, f.app, "GET", "/payouts/history", performer, "volunteer", "")
	require.Equal(t, fiber.StatusOK, status)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["total"])

	status, _ = call(t, f.app, "GET", "/payouts/history?userId="+performer.String(), uuid.New(), "member", "")
	assert.Equal(t, fiber.StatusForbidden, status)
}
