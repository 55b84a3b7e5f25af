package handlers

import (
	"context"
	"net/http"

	"github.com/fatflowers/gympass/internal/app/service/feedback"
	"github.com/fatflowers/gympass/internal/models"
	"github.com/fatflowers/gympass/pkg/logctx"
	"github.com/fatflowers/gympass/pkg/response"
	"github.com/gin-gonic/gin"
)

type FeedbackSubmitter interface {
	Submit(ctx context.Context, memberID string, in *feedback.Submission) (*models.Feedback, error)
}

// @Summary      Submit feedback
// @Description  Stores a 1-5 rating with an optional comment. The gym is notified by mail in the background.
// @Tags         Member
// @Accept       json
// @Produce      json
// @Param        request body feedback.Submission true "Rating and comment"
// @Success      200  {object}  handlers.RespFeedback
// @Router       /api/v1/feedback [post]
func ApiSubmitFeedback(svc FeedbackSubmitter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req feedback.Submission
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		f, err := svc.Submit(c.Request.Context(), c.GetString(logctx.KeyUserID), &req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(f))
	}
}

func RegisterFeedbackRoutes(r gin.IRouter, svc FeedbackSubmitter) {
	r.POST("/feedback", ApiSubmitFeedback(svc))
}
