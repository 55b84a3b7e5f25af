package handlers

import (
	"github.com/fatflowers/gympass/internal/app/service/checkout"
	"github.com/fatflowers/gympass/internal/app/service/identity"
	"github.com/fatflowers/gympass/internal/app/service/statistics"
	"github.com/fatflowers/gympass/internal/app/service/subscription"
	"github.com/fatflowers/gympass/internal/models"
	"github.com/fatflowers/gympass/pkg/response"
	"github.com/fatflowers/gympass/pkg/types"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

type RespPlans struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []types.Plan             `json:"data"`
}

type RespPlan struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    types.Plan               `json:"data"`
}

type RespCheckoutSession struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    checkout.Session         `json:"data"`
}

type RespReconcile struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    subscription.Result      `json:"data"`
}

type RespMe struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    MeResponse               `json:"data"`
}

type RespResolution struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    identity.Resolution      `json:"data"`
}

type RespFeedback struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Feedback          `json:"data"`
}

type RespListMembers struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ListMembersResponse      `json:"data"`
}

// RespMembershipStatistic wraps MembershipStatisticResponse in the standard envelope.
type RespMembershipStatistic struct {
	Code    response.APIResponseCode               `json:"code"`
	Message string                                 `json:"message"`
	Data    statistics.MembershipStatisticResponse `json:"data"`
}
