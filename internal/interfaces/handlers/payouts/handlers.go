package payouts

import (
	"strings"

	"cleanup-backend/internal/application/payoutaccounts"
	"cleanup-backend/internal/application/settlement"
	"cleanup-backend/internal/interfaces/handlers/payments"
	"cleanup-backend/internal/middleware"
	"cleanup-backend/internal/pkg/pagination"
	"cleanup-backend/internal/pkg/response"
	"cleanup-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Accounts   *payoutaccounts.Service
	Settlement *settlement.Service
}

// History GET /payouts/history
func (h *Handlers) History(c *fiber.Ctx) error {
	userID, err := payments.TargetUser(c)
	if err != nil {
		return response.PaymentError(c, err)
	}
	res, err := h.Settlement.ListPayoutsForPerformer(c.UserContext(), userID, pagination.Parse(c.Query("page"), c.Query("limit")))
	if err != nil {
		return response.PaymentError(c, err)
	}
	return response.Success(c, "Payout history", res, nil)
}

// Onboard POST /payouts/accounts/onboard
func (h *Handlers) Onboard(c *fiber.Ctx) error {
	caller, ok := middleware.GetCaller(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	email := ""
	if u := middleware.GetUser(c); u != nil {
		email = strings.TrimSpace(u.Email)
	}
	if email != "" && !validation.IsValidEmail(email) {
		return response.Error(c, "Session email is not valid", fiber.StatusBadRequest, nil)
	}
	res, err := h.Accounts.StartOnboarding(c.UserContext(), caller.UserID, email)
	if err != nil {
		return response.PaymentError(c, err)
	}
	return response.Success(c, "Onboarding link created", res, nil)
}

// Me GET /payouts/accounts/me
func (h *Handlers) Me(c *fiber.Ctx) error {
	caller, ok := middleware.GetCaller(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	get := h.Accounts.Get
	if c.QueryBool("refresh") {
		get = h.Accounts.Refresh
	}
	acct, err := get(c.UserContext(), caller.UserID)
	if err != nil {
		return response.PaymentError(c, err)
	}
	return response.Success(c, "Payout account", acct, nil)
}
