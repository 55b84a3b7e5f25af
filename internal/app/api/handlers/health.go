package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/fatflowers/gympass/pkg/response"
	"github.com/gin-gonic/gin"
)

// ReadyCheck reports whether a dependency the API cannot serve without is
// reachable.
type ReadyCheck func(ctx context.Context) error

// @Summary      Health check
// @Description  Liveness only
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /healthz [get]
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, response.OKT(map[string]string{"status": "ok"}))
}

// @Summary      Readiness check
// @Description  Pings the database
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /readyz [get]
func Readyz(check ReadyCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if check != nil {
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, response.ErrorT(response.APIResponseCodeError, map[string]string{"status": "unavailable"}))
				return
			}
		}
		c.JSON(http.StatusOK, response.OKT(map[string]string{"status": "ready"}))
	}
}

func RegisterHealthRoutes(r gin.IRouter, check ReadyCheck) {
	r.GET("/healthz", Healthz)
	r.GET("/readyz", Readyz(check))
}
