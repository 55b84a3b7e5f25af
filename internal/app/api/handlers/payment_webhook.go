package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/fatflowers/gympass/internal/app/service/checkout"
	"github.com/fatflowers/gympass/internal/app/service/subscription"
	"github.com/fatflowers/gympass/internal/models"
	"github.com/fatflowers/gympass/pkg/apperr"
	"github.com/fatflowers/gympass/pkg/logctx"
	"github.com/fatflowers/gympass/pkg/response"
	"github.com/fatflowers/gympass/pkg/types"
	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
)

// maxWebhookBody bounds the signed payload. Larger bodies are refused whole
// since a cut body can never verify.
const maxWebhookBody = 1 << 20

type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (stripe.Event, error)
}

type ProviderSessionHandler interface {
	HandleProviderSession(ctx context.Context, ps *checkout.ProviderSession) (*subscription.Result, error)
}

var handledStripeEvents = map[stripe.EventType]bool{
	stripe.EventTypeCheckoutSessionCompleted:             true,
	stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded: true,
}

// webhookStatus picks the HTTP status Stripe sees. Non-2xx makes Stripe
// redeliver, which is what a denied write needs.
func webhookStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, subscription.ErrPaymentNotConfirmed), errors.Is(err, apperr.ErrNotFound), errors.Is(err, subscription.ErrPlanMismatch):
		// nothing a retry would change
		return http.StatusOK
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrConfigurationMissing):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// @Summary      Stripe Webhook
// @Description  Handles Stripe checkout events. Paid sessions commit through the same idempotent path as the browser return.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        Stripe-Signature header string true "Stripe signature"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v2/payment/webhook/stripe [post]
func ApiStripeWebhook(parser WebhookParser, h ProviderSessionHandler, audit NotificationAudit, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logctx.FromGin(c, base)
		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "unreadable body"))
			return
		}
		if len(payload) > maxWebhookBody {
			log.Errorw("webhook_stripe_body_too_large", "limit", maxWebhookBody, "content_length", c.Request.ContentLength)
			c.JSON(http.StatusRequestEntityTooLarge, response.ErrorT[any](response.APIResponseCodeBadRequest, "body too large"))
			return
		}
		event, err := parser.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
		if err != nil {
			log.Warnw("webhook_stripe_rejected", "err", err)
			c.JSON(webhookStatus(err), response.ErrorT[any](codeFor(err), err.Error()))
			return
		}
		log = log.With("event_id", event.ID, "event_type", event.Type)
		log.Infow("webhook_stripe_received")

		if !handledStripeEvents[event.Type] {
			c.JSON(http.StatusOK, response.OKT[any](nil))
			return
		}
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			log.Errorw("webhook_stripe_decode_error", "err", err)
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "invalid checkout session"))
			return
		}

		ctx := c.Request.Context()
		ps := checkout.FromStripeSession(&sess)
		row := audit.Received(ctx, models.PaymentNotificationKindWebhook, string(types.PaymentProviderStripe), nil, ps.Metadata[checkout.MetadataRef], json.RawMessage(payload))
		res, err := h.HandleProviderSession(ctx, ps)
		audit.Finish(ctx, row, res, err)
		if err != nil {
			log.Errorw("webhook_stripe_handle_error", "err", err)
			c.JSON(webhookStatus(err), response.ErrorT[any](codeFor(err), err.Error()))
			return
		}
		log.Infow("webhook_stripe_handled", "outcome", res.Outcome, "ref", res.Ref)
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterPaymentWebhookRoutes(r gin.IRouter, parser WebhookParser, h ProviderSessionHandler, audit NotificationAudit, log *zap.SugaredLogger) {
	r.POST("/webhook/stripe", ApiStripeWebhook(parser, h, audit, log))
}
