package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/aimkt/marketing-api/pkg/errors"
)

// RespondError writes err with the HTTP status matching its code.
func RespondError(c *gin.Context, err error) {
	c.JSON(statusOf(err), NewErrorResponse(err.Error()))
}

func statusOf(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrValidation:
		return http.StatusBadRequest
	case apperrors.ErrConflict:
		return http.StatusConflict
	case apperrors.ErrUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
