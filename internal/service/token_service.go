package service

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"nutricoach-api/internal/domain"
)

// TokenService firma y valida los bearer tokens. El token lleva el jti de la
// sesión; la revocación la decide el SessionRepository, no el JWT.
type TokenService struct {
	secret []byte
	issuer string
}

type Claims struct {
	UserID   string `json:"uid"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

var (
	ErrJWTInvalid = errors.New("jwt invalid")
	ErrJWTExpired = errors.New("jwt expired")
)

func NewTokenService(secret string) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		issuer: "nutricoach-api",
	}
}

func (s *TokenService) Sign(user domain.User, session domain.Session) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrJWTInvalid
	}
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Issuer:    s.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse valida firma, expiración e issuer.
func (s *TokenService) Parse(tokenString string) (Claims, error) {
	return s.parse(tokenString, jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})))
}

// ParseIgnoringExpiry valida firma e issuer pero acepta tokens vencidos; se usa
// para revocar en logout.
func (s *TokenService) ParseIgnoringExpiry(tokenString string) (Claims, error) {
	return s.parse(tokenString, jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	))
}

func (s *TokenService) parse(tokenString string, parser *jwt.Parser) (Claims, error) {
	if len(s.secret) == 0 {
		return Claims{}, ErrJWTInvalid
	}
	if strings.TrimSpace(tokenString) == "" {
		return Claims{}, ErrJWTInvalid
	}
	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrJWTExpired
		}
		return Claims{}, ErrJWTInvalid
	}
	if !s.isValidClaims(claims) {
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (s *TokenService) isValidClaims(claims Claims) bool {
	if strings.TrimSpace(claims.UserID) == "" || strings.TrimSpace(claims.ID) == "" {
		return false
	}
	if claims.Subject != claims.UserID {
		return false
	}
	return strings.TrimSpace(claims.Issuer) == s.issuer
}
