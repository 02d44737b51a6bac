package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"nutricoach-api/internal/domain"
	"nutricoach-api/internal/service"
)

const authUserKey = "auth_user"

// SessionResolver resuelve un bearer token al usuario dueño de la sesión.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (domain.User, error)
}

// SessionAuthMiddleware valida el bearer token y guarda el usuario en el contexto.
func SessionAuthMiddleware(sessions SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sessions == nil {
			writeError(c, http.StatusInternalServerError, codeInternal, "sessions not configured")
			c.Abort()
			return
		}

		token := bearerToken(c)
		if token == "" {
			writeError(c, http.StatusUnauthorized, codeUnauthorized, "missing token")
			c.Abort()
			return
		}

		user, err := sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, service.ErrInvalidSession) {
				writeError(c, http.StatusUnauthorized, codeUnauthorized, "invalid or expired session")
			} else {
				writeError(c, http.StatusInternalServerError, codeInternal, "could not resolve session")
			}
			c.Abort()
			return
		}

		c.Set(authUserKey, user)
		c.Next()
	}
}

// bearerToken extrae el token de "Authorization: Bearer <token>"; vacío si no hay.
func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// GetAuthUser obtiene el usuario autenticado desde el contexto.
func GetAuthUser(c *gin.Context) (domain.User, bool) {
	val, ok := c.Get(authUserKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := val.(domain.User)
	return user, ok
}
