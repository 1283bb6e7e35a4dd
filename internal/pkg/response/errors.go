package response

import (
	"errors"

	"cleanup-backend/internal/payments"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// StatusFor maps a payment error kind to its HTTP status.
func StatusFor(kind payments.Kind) int {
	switch kind {
	case payments.KindValidation, payments.KindSignatureVerification:
		return fiber.StatusBadRequest
	case payments.KindNotFound:
		return fiber.StatusNotFound
	case payments.KindForbidden:
		return fiber.StatusForbidden
	case payments.KindProcessor:
		return fiber.StatusBadGateway
	case payments.KindProcessorUnavailable:
		return fiber.StatusServiceUnavailable
	case payments.KindInsufficientSettlement:
		return fiber.StatusUnprocessableEntity
	case payments.KindInternal:
		return fiber.StatusInternalServerError
	}
	return fiber.StatusInternalServerError
}

// PaymentError writes err in the standard error format. Unclassified errors
// are logged and reported as a bare 500.
func PaymentError(c *fiber.Ctx, err error) error {
	kind := payments.KindOf(err)
	if kind == payments.KindInternal {
		log.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
		return Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	details := map[string]interface{}{"kind": kind.String()}
	var pe *payments.Error
	if errors.As(err, &pe) && pe.Code != "" {
		details["code"] = pe.Code
	}
	return Error(c, err.Error(), StatusFor(kind), details)
}
