package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nutricoach-api/internal/domain"
	"nutricoach-api/internal/service"
)

// AuthHandler expone login, logout y me.
type AuthHandler struct {
	logger   *zap.Logger
	sessions *service.SessionService
}

func NewAuthHandler(logger *zap.Logger, sessions *service.SessionService) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{logger: logger, sessions: sessions}
}

type userResponse struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Email: u.Email, DisplayName: u.DisplayName}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        userResponse `json:"user"`
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		writeError(c, http.StatusBadRequest, codeInvalidInput, "invalid request")
		return
	}

	issued, err := h.sessions.LoginFrom(c.Request.Context(), c.ClientIP(), req.Username, req.Password)
	if err != nil {
		writeServiceError(c, h.logger, "login", err)
		return
	}

	h.logger.Info("login succeeded", zap.String("user_id", issued.User.ID))
	c.JSON(http.StatusOK, loginResponse{
		AccessToken: issued.AccessToken,
		TokenType:   issued.TokenType,
		ExpiresIn:   int64(time.Until(issued.ExpiresAt).Seconds()),
		User:        toUserResponse(issued.User),
	})
}

// Logout maneja POST /auth/logout. Siempre responde 200.
func (h *AuthHandler) Logout(c *gin.Context) {
	if token := bearerToken(c); token != "" {
		if err := h.sessions.Invalidate(c.Request.Context(), token); err != nil {
			h.logger.Warn("logout invalidate failed", zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me maneja GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := GetAuthUser(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, codeUnauthorized, "missing session")
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}
