package handlers

import (
	"encoding/json"
	"errors"

	"tradepost/internal/gateway"
	applog "tradepost/internal/log"
	"tradepost/internal/repos"
	"tradepost/internal/services"

	"github.com/gofiber/fiber/v2"
)

// WebhookHandler receives provider notifications. These requests carry no
// session auth; trust rests entirely on the signature over the raw body.
type WebhookHandler struct {
	Payments *services.PaymentService
	Gateway  *gateway.Client
}

func (h *WebhookHandler) PaymentEvent(c *fiber.Ctx) error {
	body := c.Body()
	if !h.Gateway.VerifySignature(body, c.Get(gateway.SignatureHeader)) {
		applog.Security(c, "webhook.signature.invalid", nil)
		return fail(c, fiber.StatusUnauthorized, "invalid signature")
	}

	var ev gateway.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fail(c, fiber.StatusBadRequest, "malformed event payload")
	}

	applied, err := h.Payments.HandleEvent(ev)
	if err != nil {
		if errors.Is(err, repos.ErrAmountMismatch) {
			// acknowledge without applying; flagged for investigation
			applog.Security(c, "webhook.amount.mismatch", map[string]any{
				"type": ev.Type, "reference": ev.Data.Reference,
			})
			return okJSON(c, fiber.StatusOK, fiber.Map{"applied": false})
		}
		applog.Error(c, "webhook.payment", err, map[string]any{"type": ev.Type})
		return fail(c, fiber.StatusInternalServerError, "could not process event")
	}

	applog.Audit(c, "webhook.payment", map[string]any{
		"type": ev.Type, "reference": ev.Data.Reference, "applied": applied,
	})
	return okJSON(c, fiber.StatusOK, fiber.Map{"applied": applied})
}
