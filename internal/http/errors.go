package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nutricoach-api/internal/llm"
	"nutricoach-api/internal/service"
)

const (
	codeInvalidCredentials = "invalid_credentials"
	codeUnauthorized       = "unauthorized"
	codeInvalidInput       = "invalid_input"
	codeGatewayUnavailable = "gateway_unavailable"
	codeNotFound           = "not_found"
	codeRateLimited        = "rate_limited"
	codeInternal           = "internal_error"
)

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": code, "message": message})
}

// writeServiceError traduce errores de service/llm a status y código.
func writeServiceError(c *gin.Context, logger *zap.Logger, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(c, http.StatusUnauthorized, codeInvalidCredentials, "invalid username or password")
	case errors.Is(err, service.ErrInvalidSession):
		writeError(c, http.StatusUnauthorized, codeUnauthorized, "invalid or expired session")
	case errors.Is(err, service.ErrRateLimited):
		writeError(c, http.StatusTooManyRequests, codeRateLimited, "too many login attempts, try again later")
	case errors.Is(err, service.ErrInvalidInput):
		writeError(c, http.StatusBadRequest, codeInvalidInput, "invalid input")
	case errors.Is(err, service.ErrThreadNotFound):
		writeError(c, http.StatusNotFound, codeNotFound, "thread not found")
	case errors.Is(err, llm.ErrGatewayUnavailable):
		writeError(c, http.StatusServiceUnavailable, codeGatewayUnavailable, "assistant is temporarily unavailable")
	default:
		logger.Error(op+" failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, codeInternal, "internal error")
	}
}
