package httpserver

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/order/service"
	"github.com/Skotchmaster/storefront/internal/payment"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

const (
	SignatureHeader = "Stripe-Signature"
	maxWebhookBody  = 64 << 10
)

type WebhookHTTP struct {
	Svc *service.WebhookService
}

// Stripe receives provider notifications. Anything that verified is
// acknowledged with 200, including events that changed nothing, so the
// provider stops redelivering them.
func (h *WebhookHTTP) Stripe(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "webhook.stripe")

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
	if err != nil {
		l.Warn("webhook_error", "status", 400, "reason", "cannot read body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read body")
	}
	if len(payload) > maxWebhookBody {
		l.Warn("webhook_error", "status", 413, "reason", "body too large")
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "body too large")
	}

	outcome, err := h.Svc.Handle(ctx, payload, c.Request().Header.Get(SignatureHeader))
	if err != nil {
		if errors.Is(err, payment.ErrSignature) {
			l.Warn("webhook_error", "status", 400, "reason", "invalid signature")
			return echo.NewHTTPError(http.StatusBadRequest, "invalid signature")
		}
		l.Error("webhook_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{"received": true, "outcome": outcome})
}
