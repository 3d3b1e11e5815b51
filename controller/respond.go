package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"greengate/pkg/apperr"
	"greengate/pkg/logger"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindRateLimited, apperr.KindAttemptsExceeded:
		return http.StatusTooManyRequests
	case apperr.KindExpired:
		return http.StatusGone
	case apperr.KindDuplicateAccount, apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindAuthToken:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the JSON error body for err. Typed errors carry
// their stable reason code plus retry metadata when present; anything
// untyped becomes an opaque internal error.
func respondError(ctx echo.Context, log *logger.Logger, err error) error {
	e, ok := apperr.AsError(err)
	if !ok {
		log.Errorw("Request failed", "path", ctx.Request().URL.Path, "error", err)
		return ctx.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error":   "INTERNAL",
			"details": "Internal server error",
		})
	}

	body := map[string]interface{}{
		"error":   e.Code,
		"details": e.Message,
	}
	if e.ResetAt != nil {
		body["reset_at"] = e.ResetAt
	}
	if e.Remaining > 0 {
		body["remaining_attempts"] = e.Remaining
	}

	return ctx.JSON(statusFor(e.Kind), body)
}
