package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openseva/seva-backend/internal/apperr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondServiceError maps a service-layer error to a status by its kind.
func RespondServiceError(c *gin.Context, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		RespondError(c, http.StatusNotFound, "not_found", err)
	case apperr.KindInvalidState:
		RespondError(c, http.StatusConflict, "invalid_state", err)
	case apperr.KindValidation:
		RespondError(c, http.StatusBadRequest, "validation", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal", err)
	}
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
