package payments

import (
	"cleanup-backend/internal/application/holds"
	"cleanup-backend/internal/application/settlement"
	"cleanup-backend/internal/domain"
	"cleanup-backend/internal/middleware"
	"cleanup-backend/internal/payments"
	"cleanup-backend/internal/pkg/pagination"
	"cleanup-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Holds      *holds.Service
	Settlement *settlement.Service
}

type createHoldBody struct {
	RequestID        string `json:"requestId"`
	AmountMinorUnits int64  `json:"amountMinorUnits"`
	Kind             string `json:"kind"`
	PayerUserID      string `json:"payerUserId"`
}

// CreateHold POST /payments/holds
func (h *Handlers) CreateHold(c *fiber.Ctx) error {
	caller, ok := middleware.GetCaller(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var body createHoldBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	requestID, err := uuid.Parse(body.RequestID)
	if err != nil {
		return response.Error(c, "requestId must be a valid id", fiber.StatusBadRequest, nil)
	}
	var payer uuid.UUID
	if body.PayerUserID != "" {
		if payer, err = uuid.Parse(body.PayerUserID); err != nil {
			return response.Error(c, "payerUserId must be a valid id", fiber.StatusBadRequest, nil)
		}
	}

	res, err := h.Holds.CreateHold(c.UserContext(), caller, holds.CreateHoldInput{
		PayerUserID:      payer,
		RequestID:        requestID,
		AmountMinorUnits: body.AmountMinorUnits,
		Kind:             domain.HoldKind(body.Kind),
	})
	if err != nil {
		return response.PaymentError(c, err)
	}
	return response.SuccessCreated(c, "Hold created", res, nil)
}

type settleBody struct {
	RequestID       string `json:"requestId"`
	PerformerUserID string `json:"performerUserId"`
}

// Settle POST /payments/settle
func (h *Handlers) Settle(c *fiber.Ctx) error {
	caller, ok := middleware.GetCaller(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var body settleBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	requestID, err1 := uuid.Parse(body.RequestID)
	performer, err2 := uuid.Parse(body.PerformerUserID)
	if err1 != nil || err2 != nil {
		return response.Error(c, "requestId and performerUserId are required", fiber.StatusBadRequest, nil)
	}

	res, err := h.Settlement.SettleRequest(c.UserContext(), caller, requestID, performer)
	if err != nil {
		return response.PaymentError(c, err)
	}
	return response.Success(c, "Request settled", res, nil)
}

// History GET /payments/history
func (h *Handlers) History(c *fiber.Ctx) error {
	userID, err := TargetUser(c)
	if err != nil {
		return response.PaymentError(c, err)
	}
	res, err := h.Holds.ListForUser(c.UserContext(), userID, pagination.Parse(c.Query("page"), c.Query("limit")))
	if err != nil {
		return response.PaymentError(c, err)
	}
	return response.Success(c, "Payment history", res, nil)
}

// TargetUser resolves the ?userId= a history listing is for. Without it the
// caller's own history is listed; other users are visible to admins only.
func TargetUser(c *fiber.Ctx) (uuid.UUID, error) {
	caller, ok := middleware.GetCaller(c)
	if !ok {
		return uuid.Nil, payments.ErrForbidden
	}
	raw := c.Query("userId")
	if raw == "" {
		return caller.UserID, nil
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, payments.ErrInvalidInput.WithMessage("userId must be a valid id")
	}
	if !caller.CanActFor(userID) {
		return uuid.Nil, payments.ErrForbidden
	}
	return userID, nil
}
