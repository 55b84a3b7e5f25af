package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/fatflowers/gympass/internal/app/service/member"
	"github.com/fatflowers/gympass/internal/app/service/statistics"
	"github.com/fatflowers/gympass/internal/app/service/subscription"
	"github.com/fatflowers/gympass/internal/models"
	"github.com/fatflowers/gympass/pkg/logctx"
	"github.com/fatflowers/gympass/pkg/response"
	"github.com/fatflowers/gympass/pkg/types"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type MemberLister interface {
	List(ctx context.Context, q *member.ListQuery) ([]*models.Member, int64, error)
	Today() time.Time
}

type StatisticsProvider interface {
	GetDailyMembershipStatistic(ctx context.Context, request *statistics.MembershipStatisticRequest) (*statistics.MembershipStatisticResponse, error)
}

type PlanGranter interface {
	GrantPlan(ctx context.Context, memberID, planID, operatorID string) (*subscription.Result, error)
}

type ListMembersRequest struct {
	Filters []*types.CommonFilter `json:"filters"`
	From    int                   `json:"from"`
	Size    int                   `json:"size"`
}

type MemberItem struct {
	*models.Member
	DaysRemaining int `json:"days_remaining"`
}

type ListMembersResponse struct {
	Items []*MemberItem `json:"items"`
	Total int64         `json:"total"`
}

// @Summary      List members (Admin)
// @Description  Retrieves a paginated and filterable list of members with derived status.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ListMembersRequest true "Filters and pagination"
// @Success      200  {object}  handlers.RespListMembers
// @Router       /api/v1/admin/list_members [post]
func ApiListMembers(svc MemberLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListMembersRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		items, total, err := svc.List(c.Request.Context(), &member.ListQuery{Filters: req.Filters, Offset: req.From, Limit: req.Size})
		if err != nil {
			fail(c, err)
			return
		}
		today := svc.Today()
		out := lo.Map(items, func(m *models.Member, _ int) *MemberItem {
			return &MemberItem{Member: m, DaysRemaining: m.Evaluate(today).DaysRemaining}
		})
		c.JSON(http.StatusOK, response.OKT(&ListMembersResponse{Items: out, Total: total}))
	}
}

// @Summary      Get Membership Statistics (Admin)
// @Description  Retrieves daily purchase and member statistics.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body statistics.MembershipStatisticRequest true "Statistic request parameters"
// @Success      200  {object}  handlers.RespMembershipStatistic
// @Router       /api/v1/admin/get_membership_statistic [post]
func ApiGetMembershipStatistic(svc StatisticsProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.MembershipStatisticRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svc.GetDailyMembershipStatistic(c.Request.Context(), &req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

type GrantPlanRequest struct {
	MemberID string `json:"member_id" binding:"required"`
	PlanID   string `json:"plan_id" binding:"required"`
}

// @Summary      Grant plan (Admin)
// @Description  Extends a member by a plan's duration without payment.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body GrantPlanRequest true "Member and plan"
// @Success      200  {object}  handlers.RespReconcile
// @Router       /api/v1/admin/grant_plan [post]
func ApiGrantPlan(svc PlanGranter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GrantPlanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svc.GrantPlan(c.Request.Context(), req.MemberID, req.PlanID, c.GetString(logctx.KeyUserID))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminRoutes(r gin.IRouter, members MemberLister, stats StatisticsProvider, granter PlanGranter) {
	r.POST("/list_members", ApiListMembers(members))
	r.POST("/get_membership_statistic", ApiGetMembershipStatistic(stats))
	r.POST("/grant_plan", ApiGrantPlan(granter))
}
