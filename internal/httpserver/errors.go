package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-orders/internal/domain"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// statusFor maps domain errors onto HTTP status codes. Forbidden is checked
// before InvalidTransition because role refusals carry both.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrOutOfStock):
		return http.StatusConflict, "out_of_stock"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrAmbiguousIdentifier):
		return http.StatusConflict, "ambiguous_identifier"
	case errors.Is(err, domain.ErrMergeConflict):
		return http.StatusConflict, "merge_conflict"
	case errors.Is(err, domain.ErrIdempotencyMismatch):
		return http.StatusConflict, "idempotency_mismatch"
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	}
	return http.StatusInternalServerError, "internal"
}

func bodyFor(err error) (int, errorBody) {
	status, code := statusFor(err)
	body := errorBody{Error: code, Message: err.Error()}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
		body.Message = ve.Message
	}
	if status == http.StatusInternalServerError {
		body.Message = "internal error"
	}
	return status, body
}

func writeError(c *gin.Context, err error) {
	status, body := bodyFor(err)
	_ = c.Error(err)
	c.JSON(status, body)
}

func abortError(c *gin.Context, err error) {
	status, body := bodyFor(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorBody{Error: "bad_request", Message: msg})
}
