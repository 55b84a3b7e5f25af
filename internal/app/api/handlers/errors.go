package handlers

import (
	"errors"
	"net/http"

	"github.com/fatflowers/gympass/pkg/apperr"
	"github.com/fatflowers/gympass/pkg/response"
	"github.com/gin-gonic/gin"
)

// codeFor classifies service errors into envelope codes.
func codeFor(err error) response.APIResponseCode {
	switch {
	case errors.Is(err, apperr.ErrPersistenceDenied):
		return response.APIResponseCodePaymentNotApplied
	case errors.Is(err, apperr.ErrConfigurationMissing):
		return response.APIResponseCodeNotConfigured
	case errors.Is(err, apperr.ErrProvider):
		return response.APIResponseCodeProviderError
	case errors.Is(err, apperr.ErrValidation):
		return response.APIResponseCodeBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return response.APIResponseCodeNotFound
	case errors.Is(err, apperr.ErrConflict):
		return response.APIResponseCodeConflict
	default:
		return response.APIResponseCodeError
	}
}

// fail writes the error envelope with HTTP 200, carrying err's message. Bare
// internal failures get the generic message.
func fail(c *gin.Context, err error) {
	code := codeFor(err)
	msg := err.Error()
	if code == response.APIResponseCodeError {
		msg = "internal error"
	}
	c.JSON(http.StatusOK, response.ErrorT[any](code, msg))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, msg))
}
