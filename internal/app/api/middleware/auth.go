package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/fatflowers/gympass/internal/platform/firebase"
	cfgpkg "github.com/fatflowers/gympass/pkg/config"
	"github.com/fatflowers/gympass/pkg/logctx"
	"github.com/fatflowers/gympass/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// KeyPhone holds the verified phone number claim, if any.
const KeyPhone = "phone"

// DevUserHeader and DevPhoneHeader are honored only in the dev environment when token
// verification is not configured.
const (
	DevUserHeader  = "X-User-ID"
	DevPhoneHeader = "X-User-Phone"
)

// TokenVerifier checks a bearer token.
type TokenVerifier interface {
	Configured() bool
	Verify(ctx context.Context, idToken string) (*firebase.Identity, error)
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeUnauthorized, msg))
}

// AuthMiddleware verifies the Firebase ID token and stores the subject
// under logctx.KeyUserID.
func AuthMiddleware(v TokenVerifier, cfg *cfgpkg.Config, base *zap.SugaredLogger) gin.HandlerFunc {
	devFallback := cfg.Env == cfgpkg.EnvDev && (v == nil || !v.Configured())
	return func(c *gin.Context) {
		var id *firebase.Identity

		if devFallback {
			if uid := strings.TrimSpace(c.GetHeader(DevUserHeader)); uid != "" {
				id = &firebase.Identity{UID: uid, Phone: c.GetHeader(DevPhoneHeader)}
			}
		}
		if id == nil {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				unauthorized(c, "Authorization header is missing")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				unauthorized(c, "Authorization header format must be Bearer {token}")
				return
			}
			if v == nil || !v.Configured() {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, response.ErrorT[any](response.APIResponseCodeNotConfigured, "token verification not configured"))
				return
			}
			var err error
			id, err = v.Verify(c.Request.Context(), parts[1])
			if err != nil {
				logctx.FromGin(c, base).Infow("invalid id token", "err", err)
				unauthorized(c, "invalid id token")
				return
			}
		}

		c.Set(logctx.KeyUserID, id.UID)
		c.Set(KeyPhone, id.Phone)
		ctx := context.WithValue(c.Request.Context(), logctx.KeyUserID, id.UID)
		c.Request = c.Request.WithContext(ctx)
		setLogger(c, logctx.FromGin(c, base).With("user_id", id.UID))
		c.Next()
	}
}

// AdminMiddleware admits only the configured admin subjects. In dev with no
// admins configured every authenticated caller is admitted.
func AdminMiddleware(cfg *cfgpkg.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(logctx.KeyUserID)
		if len(cfg.App.AdminIDs) == 0 && cfg.Env == cfgpkg.EnvDev {
			c.Next()
			return
		}
		if uid == "" || !lo.Contains(cfg.App.AdminIDs, uid) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.ErrorT[any](response.APIResponseCodeUnauthorized, "admin only"))
			return
		}
		c.Next()
	}
}
