package response

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"cleanup-backend/internal/payments"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	cases := map[payments.Kind]int{
		payments.KindValidation:             400,
		payments.KindSignatureVerification:  400,
		payments.KindNotFound:               404,
		payments.KindForbidden:              403,
		payments.KindProcessor:              502,
		payments.KindProcessorUnavailable:   503,
		payments.KindInsufficientSettlement: 422,
		payments.KindInternal:               500,
	}
	for kind, status := range cases {
		assert.Equal(t, status, StatusFor(kind), kind.String())
	}
}

func TestPaymentError_Body(t *testing.T) {
	app := fiber.New()
	app.Get("/small", func(c *fiber.Ctx) error { return PaymentError(c, payments.ErrAmountTooSmall) })
	app.Get("/internal", func(c *fiber.Ctx) error { return PaymentError(c, errors.New("connection reset")) })

	resp, err := app.Test(httptest.NewRequest("GET", "/small", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var body ErrorBody
	raw, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, 400, body.Error.StatusCode)
	details := body.Error.Details.(map[string]interface{})
	assert.Equal(t, "validation", details["kind"])
	assert.Equal(t, "amount_too_small", details["code"])

	resp, err = app.Test(httptest.NewRequest("GET", "/internal", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	raw, _ = io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "Internal Server Error", body.Error.Message)
	assert.NotContains(t, string(raw), "connection reset")
}
