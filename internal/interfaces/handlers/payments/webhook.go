package payments

import (
	"cleanup-backend/internal/application/reconciliation"
	"cleanup-backend/internal/payments"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type WebhookHandler struct {
	Reconciler    *reconciliation.Handler
	WebhookSecret string
}

// HandleWebhook POST /payments/webhooks. Raw body, signature verification,
// then reconciliation. Once the event is authentic it is acknowledged with
// 200 even when handling fails, so the processor does not redeliver
// something a retry cannot fix.
func (wh *WebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	rawBody := c.BodyRaw()
	sig := c.Get("Stripe-Signature")

	if len(rawBody) == 0 {
		log.Warn().Msg("Stripe webhook received empty body")
		return c.Status(fiber.StatusBadRequest).SendString("Webhook Error: empty body")
	}

	if err := payments.VerifyStripeSignature(rawBody, sig, wh.WebhookSecret); err != nil {
		log.Warn().Err(err).Bool("has_sig", sig != "").Bool("has_secret", wh.WebhookSecret != "").Msg("Stripe webhook signature verification failed")
		return c.Status(fiber.StatusBadRequest).SendString("Webhook Error: " + err.Error())
	}

	ev, err := payments.ParseStripeEvent(rawBody)
	if err != nil {
		log.Warn().Err(err).Msg("Stripe webhook parse failed")
		return c.Status(fiber.StatusBadRequest).SendString("Webhook Error: " + err.Error())
	}

	if err := wh.Reconciler.HandleEvent(c.UserContext(), ev); err != nil {
		log.Error().Err(err).Str("event_id", ev.ID).Str("type", ev.Type).Msg("Stripe webhook handling failed")
	}
	return c.Status(fiber.StatusOK).SendString("ok")
}
