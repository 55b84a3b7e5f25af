package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/fatflowers/gympass/internal/app/api/middleware"
	"github.com/fatflowers/gympass/internal/app/service/identity"
	"github.com/fatflowers/gympass/internal/app/service/member"
	"github.com/fatflowers/gympass/internal/models"
	"github.com/fatflowers/gympass/pkg/logctx"
	"github.com/fatflowers/gympass/pkg/response"
	"github.com/fatflowers/gympass/pkg/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MemberService interface {
	Get(ctx context.Context, id string) (*models.Member, types.MemberEntitlementInfo, error)
	UpdateProfile(ctx context.Context, id string, upd *member.ProfileUpdate) (*models.Member, error)
	Today() time.Time
}

type IdentityResolver interface {
	Resolve(ctx context.Context, id identity.Identity) (*identity.Resolution, error)
	Onboard(ctx context.Context, id identity.Identity, name string) (*identity.Resolution, error)
}

type ChangeSubscriber interface {
	Subscribe(memberID string) (<-chan *models.Member, func())
}

// MeResponse is a member with its derived entitlement.
type MeResponse struct {
	Member      *models.Member              `json:"member"`
	Entitlement types.MemberEntitlementInfo `json:"entitlement"`
}

func callerIdentity(c *gin.Context) identity.Identity {
	return identity.Identity{ID: c.GetString(logctx.KeyUserID), Phone: c.GetString(middleware.KeyPhone)}
}

// @Summary      Current member
// @Tags         Member
// @Produce      json
// @Success      200  {object}  handlers.RespMe
// @Router       /api/v1/me [get]
func ApiGetMe(svc MemberService) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, info, err := svc.Get(c.Request.Context(), c.GetString(logctx.KeyUserID))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&MeResponse{Member: m, Entitlement: info}))
	}
}

// @Summary      Update profile
// @Description  Edits name, phone and photo only. Entitlement fields are ignored.
// @Tags         Member
// @Accept       json
// @Produce      json
// @Param        request body member.ProfileUpdate true "Profile fields"
// @Success      200  {object}  handlers.RespMe
// @Router       /api/v1/me [patch]
func ApiUpdateMe(svc MemberService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req member.ProfileUpdate
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		m, err := svc.UpdateProfile(c.Request.Context(), c.GetString(logctx.KeyUserID), &req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&MeResponse{Member: m, Entitlement: m.Evaluate(svc.Today())}))
	}
}

// @Summary      Resolve identity
// @Description  Finds the caller's record, migrating a legacy record that matches the verified phone.
// @Tags         Member
// @Produce      json
// @Success      200  {object}  handlers.RespResolution
// @Router       /api/v1/me/resolve [post]
func ApiResolveMe(svc IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.Resolve(c.Request.Context(), callerIdentity(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

type OnboardRequest struct {
	Name string `json:"name" binding:"required,max=128"`
}

// @Summary      Onboard
// @Description  Creates an empty membership record for a first-time member.
// @Tags         Member
// @Accept       json
// @Produce      json
// @Param        request body OnboardRequest true "Display name"
// @Success      200  {object}  handlers.RespResolution
// @Router       /api/v1/me/onboard [post]
func ApiOnboardMe(svc IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req OnboardRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svc.Onboard(c.Request.Context(), callerIdentity(c), req.Name)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

const sseHeartbeat = 25 * time.Second

// @Summary      Live entitlement
// @Description  Server-sent events: one "entitlement" event with the current state, then one per change.
// @Tags         Member
// @Produce      text/event-stream
// @Success      200
// @Router       /api/v1/me/events [get]
func ApiMeEvents(svc MemberService, hub ChangeSubscriber, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(logctx.KeyUserID)
		ctx := c.Request.Context()

		// subscribe first so a change between Get and the loop is not lost
		ch, cancel := hub.Subscribe(uid)
		defer cancel()

		m, info, err := svc.Get(ctx, uid)
		if err != nil {
			fail(c, err)
			return
		}
		log := logctx.FromGin(c, base)
		log.Infow("entitlement stream opened")

		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")
		c.SSEvent("entitlement", &MeResponse{Member: m, Entitlement: info})
		c.Writer.Flush()

		ticker := time.NewTicker(sseHeartbeat)
		defer ticker.Stop()
		c.Stream(func(w io.Writer) bool {
			select {
			case <-ctx.Done():
				return false
			case m, ok := <-ch:
				if !ok {
					return false
				}
				c.SSEvent("entitlement", &MeResponse{Member: m, Entitlement: m.Evaluate(svc.Today())})
				return true
			case <-ticker.C:
				c.SSEvent("ping", time.Now().Unix())
				return true
			}
		})
		log.Infow("entitlement stream closed")
	}
}

func RegisterMemberRoutes(r gin.IRouter, svc MemberService, resolver IdentityResolver, hub ChangeSubscriber, log *zap.SugaredLogger) {
	r.GET("/me", ApiGetMe(svc))
	r.PATCH("/me", ApiUpdateMe(svc))
	r.POST("/me/resolve", ApiResolveMe(resolver))
	r.POST("/me/onboard", ApiOnboardMe(resolver))
	r.GET("/me/events", ApiMeEvents(svc, hub, log))
}
