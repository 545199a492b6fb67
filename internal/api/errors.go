package api

import (
	"errors"
	"net/http"

	"devspace/internal/apperr"

	"github.com/gin-gonic/gin"
)

var (
	ErrInvalidRequest         = errors.New("invalid request")
	ErrStatusNotUserWritable  = errors.New("session status is system-managed and cannot be set by users")
	ErrSystemEndpointDisabled = errors.New("system endpoint is not enabled")
	ErrSystemTokenInvalid     = errors.New("invalid system token")
)

func respondError(c *gin.Context, code int, err error) {
	c.JSON(code, ErrorResponse{
		Error: err.Error(),
		Code:  code,
	})
}

func respondErrorWithDetails(c *gin.Context, code int, err error, details string) {
	c.JSON(code, ErrorResponse{
		Error:   err.Error(),
		Code:    code,
		Details: details,
	})
}

func abortWithError(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(code, ErrorResponse{
		Error: err.Error(),
		Code:  code,
	})
}

// mapServiceError 把错误分类映射为 HTTP 状态码。
func mapServiceError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case apperr.IsNotFound(err):
		return http.StatusNotFound
	case apperr.IsInvalidArgument(err):
		return http.StatusBadRequest
	case apperr.IsIllegalState(err):
		return http.StatusConflict
	case apperr.IsProviderFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
