package handlers

import (
	"errors"
	"fmt"
	"testing"

	"github.com/fatflowers/gympass/internal/app/service/checkout"
	"github.com/fatflowers/gympass/internal/app/service/member"
	"github.com/fatflowers/gympass/internal/app/service/subscription"
	"github.com/fatflowers/gympass/pkg/apperr"
	"github.com/fatflowers/gympass/pkg/response"
	"github.com/stretchr/testify/require"
)

func TestCodeFor(t *testing.T) {
	cases := []struct {
		err  error
		want response.APIResponseCode
	}{
		{fmt.Errorf("%w: %w", subscription.ErrPersistenceDenied, member.ErrPermissionDenied), response.APIResponseCodePaymentNotApplied},
		{checkout.ErrProviderNotConfigured, response.APIResponseCodeNotConfigured},
		{&apperr.ProviderError{Provider: "stripe", Message: "No such price"}, response.APIResponseCodeProviderError},
		{checkout.ErrSessionIncomplete, response.APIResponseCodeProviderError},
		{subscription.ErrCheckoutNotFound, response.APIResponseCodeNotFound},
		{subscription.ErrPlanMismatch, response.APIResponseCodeConflict},
		{apperr.New(apperr.ErrValidation, "bad"), response.APIResponseCodeBadRequest},
		{errors.New("boom"), response.APIResponseCodeError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, codeFor(tc.err), tc.err.Error())
	}
}
