package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/fatflowers/gympass/internal/app/service/checkout"
	"github.com/fatflowers/gympass/internal/app/service/subscription"
	"github.com/fatflowers/gympass/internal/models"
	"github.com/fatflowers/gympass/pkg/apperr"
	cfgpkg "github.com/fatflowers/gympass/pkg/config"
	"github.com/fatflowers/gympass/pkg/logctx"
	"github.com/fatflowers/gympass/pkg/response"
	"github.com/fatflowers/gympass/pkg/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PlanCatalog is the read side of catalog.Catalog.
type PlanCatalog interface {
	GetPlan(id string) (*types.Plan, error)
	ListPlans() []*types.Plan
}

type CheckoutCreator interface {
	CreateCheckoutSession(ctx context.Context, memberID, planID, returnBaseURL string) (*checkout.Session, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, ev *subscription.ReturnEvent) (*subscription.Result, error)
}

// NotificationAudit records every payment confirmation we receive.
type NotificationAudit interface {
	Received(ctx context.Context, kind models.PaymentNotificationKind, providerID string, userID *string, ref string, data any) *models.PaymentNotificationLog
	Finish(ctx context.Context, row *models.PaymentNotificationLog, result any, handleErr error)
}

// Return view statuses passed to the plans view.
const (
	ReturnStatusSuccess    = "success"
	ReturnStatusPending    = "pending"
	ReturnStatusNotApplied = "not_applied"
	ReturnStatusError      = "error"
)

type returnQuery struct {
	PlanID         string `form:"plan_id" json:"plan_id"`
	PaymentSuccess string `form:"payment_success" json:"payment_success"`
	Ref            string `form:"ref" json:"ref"`
	SessionID      string `form:"session_id" json:"session_id"`
}

func (q *returnQuery) success() bool {
	return strings.EqualFold(q.PaymentSuccess, "true") && strings.TrimSpace(q.PlanID) != ""
}

func returnStatus(res *subscription.Result, err error) string {
	switch {
	case err == nil && res != nil && res.Outcome != subscription.OutcomeAbandoned:
		return ReturnStatusSuccess
	case errors.Is(err, apperr.ErrPersistenceDenied):
		return ReturnStatusNotApplied
	case errors.Is(err, subscription.ErrPaymentNotConfirmed):
		return ReturnStatusPending
	default:
		return ReturnStatusError
	}
}

func plansViewURL(cfg *cfgpkg.Config, params url.Values) string {
	base := cfg.App.PlansViewURL
	if base == "" {
		base = "/"
	}
	if len(params) == 0 {
		return base
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// @Summary      Payment return
// @Description  Browser return from the hosted checkout. Reconciles the payment server-side, then redirects to the clean plans view so a refresh cannot re-trigger it. Without payment_success=true and plan_id it redirects without side effects.
// @Tags         Payment
// @Param        plan_id          query  string  false  "Plan id"
// @Param        payment_success  query  string  false  "true on success"
// @Param        ref              query  string  false  "Correlation token"
// @Param        session_id       query  string  false  "Provider session id"
// @Success      303
// @Router       /plans [get]
func ApiPaymentReturn(cfg *cfgpkg.Config, rec Reconciler, audit NotificationAudit, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q returnQuery
		_ = c.ShouldBindQuery(&q)
		if !q.success() {
			c.Redirect(http.StatusSeeOther, plansViewURL(cfg, nil))
			return
		}

		log := logctx.FromGin(c, base)
		ctx := c.Request.Context()
		row := audit.Received(ctx, models.PaymentNotificationKindReturn, string(types.PaymentProviderStripe), nil, q.Ref, q)
		res, err := rec.Reconcile(ctx, &subscription.ReturnEvent{
			PlanID:            q.PlanID,
			PaymentSuccess:    true,
			Ref:               q.Ref,
			ProviderSessionID: q.SessionID,
			Source:            types.PurchaseSourceRedirect,
		})
		audit.Finish(ctx, row, res, err)

		status := returnStatus(res, err)
		if err != nil {
			log.Warnw("payment return not applied", "ref", q.Ref, "plan_id", q.PlanID, "status", status, "err", err)
		} else {
			log.Infow("payment return reconciled", "ref", res.Ref, "outcome", res.Outcome)
		}
		c.Redirect(http.StatusSeeOther, plansViewURL(cfg, url.Values{"status": {status}, "plan_id": {q.PlanID}}))
	}
}

// @Summary      List plans
// @Tags         Plans
// @Produce      json
// @Success      200  {object}  handlers.RespPlans
// @Router       /api/v1/plans [get]
func ApiListPlans(cat PlanCatalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, response.OKT(cat.ListPlans()))
	}
}

// @Summary      Get plan
// @Tags         Plans
// @Produce      json
// @Param        id   path  string  true  "Plan id"
// @Success      200  {object}  handlers.RespPlan
// @Router       /api/v1/plans/{id} [get]
func ApiGetPlan(cat PlanCatalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := cat.GetPlan(c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(p))
	}
}

type CreateCheckoutRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
}

// @Summary      Create checkout session
// @Description  Starts a hosted payment for the caller. The response URL is where the browser goes next.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body CreateCheckoutRequest true "Plan to buy"
// @Success      200  {object}  handlers.RespCheckoutSession
// @Router       /api/v1/checkout [post]
func ApiCreateCheckout(svc CheckoutCreator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateCheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		s, err := svc.CreateCheckoutSession(c.Request.Context(), c.GetString(logctx.KeyUserID), req.PlanID, "")
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(s))
	}
}

type ReconcileRequest struct {
	PlanID         string `json:"plan_id"`
	PaymentSuccess bool   `json:"payment_success"`
	Ref            string `json:"ref"`
	SessionID      string `json:"session_id"`
}

// @Summary      Reconcile payment return
// @Description  Same as the browser return but answered as JSON for the member app.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body ReconcileRequest true "Return parameters"
// @Success      200  {object}  handlers.RespReconcile
// @Router       /api/v1/payment/reconcile [post]
func ApiReconcile(rec Reconciler, audit NotificationAudit, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ReconcileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		ctx := c.Request.Context()
		uid := c.GetString(logctx.KeyUserID)
		ev := &subscription.ReturnEvent{
			PlanID:            req.PlanID,
			PaymentSuccess:    req.PaymentSuccess,
			Ref:               req.Ref,
			ProviderSessionID: req.SessionID,
			MemberID:          uid,
			Source:            types.PurchaseSourceRedirect,
		}
		if !req.PaymentSuccess || req.PlanID == "" {
			res, _ := rec.Reconcile(ctx, ev)
			c.JSON(http.StatusOK, response.OKT(res))
			return
		}

		row := audit.Received(ctx, models.PaymentNotificationKindReturn, string(types.PaymentProviderStripe), &uid, req.Ref, req)
		res, err := rec.Reconcile(ctx, ev)
		audit.Finish(ctx, row, res, err)
		if err != nil {
			logctx.FromGin(c, base).Warnw("reconcile failed", "ref", req.Ref, "err", err)
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// RegisterReturnRoutes mounts the unauthenticated browser return.
func RegisterReturnRoutes(r gin.IRouter, cfg *cfgpkg.Config, rec Reconciler, audit NotificationAudit, log *zap.SugaredLogger) {
	r.GET("/plans", ApiPaymentReturn(cfg, rec, audit, log))
}

func RegisterPlanRoutes(r gin.IRouter, cat PlanCatalog) {
	r.GET("/plans", ApiListPlans(cat))
	r.GET("/plans/:id", ApiGetPlan(cat))
}

func RegisterCheckoutRoutes(r gin.IRouter, svc CheckoutCreator, rec Reconciler, audit NotificationAudit, log *zap.SugaredLogger) {
	r.POST("/checkout", ApiCreateCheckout(svc))
	r.POST("/payment/reconcile", ApiReconcile(rec, audit, log))
}
