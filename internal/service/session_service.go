package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nutricoach-api/internal/domain"
	"nutricoach-api/internal/repository"
)

const TokenTypeBearer = "bearer"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid session")
	ErrRateLimited        = errors.New("rate limited")
)

// IssuedSession es lo que recibe el cliente tras un login correcto.
type IssuedSession struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
	User        domain.User
}

// SessionService emite, resuelve e invalida tokens de sesión.
type SessionService struct {
	logger      *zap.Logger
	credentials *CredentialService
	tokens      *TokenService
	sessions    repository.SessionRepository
	users       repository.UserRepository
	limiter     LoginRateLimiter
	ttl         time.Duration
	now         func() time.Time
}

func NewSessionService(
	logger *zap.Logger,
	credentials *CredentialService,
	tokens *TokenService,
	sessions repository.SessionRepository,
	users repository.UserRepository,
	limiter LoginRateLimiter,
	ttl time.Duration,
) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &SessionService{
		logger:      logger,
		credentials: credentials,
		tokens:      tokens,
		sessions:    sessions,
		users:       users,
		limiter:     limiter,
		ttl:         ttl,
		now:         time.Now,
	}
}

// Login es LoginFrom sin IP de cliente: el límite de intentos se cuenta solo por username.
func (s *SessionService) Login(ctx context.Context, username, password string) (IssuedSession, error) {
	return s.LoginFrom(ctx, "", username, password)
}

// LoginFrom verifica credenciales y emite un token. Los fallos se cuentan por
// (username, clientIP); otra IP no comparte el contador.
func (s *SessionService) LoginFrom(ctx context.Context, clientIP, username, password string) (IssuedSession, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return IssuedSession{}, ErrInvalidCredentials
	}
	key := loginLimiterKey(username, clientIP)
	if s.limiter != nil && !s.limiter.Allow(ctx, key) {
		return IssuedSession{}, ErrRateLimited
	}

	user, ok, err := s.credentials.Verify(ctx, username, password)
	if err != nil {
		return IssuedSession{}, fmt.Errorf("verify credentials: %w", err)
	}
	if !ok {
		if s.limiter != nil {
			s.limiter.RecordFailure(ctx, key)
		}
		s.logger.Info("login rejected", zap.String("username", username), zap.String("client_ip", clientIP))
		return IssuedSession{}, ErrInvalidCredentials
	}

	now := s.now().UTC()
	session := domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	token, err := s.tokens.Sign(user, session)
	if err != nil {
		return IssuedSession{}, fmt.Errorf("sign token: %w", err)
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return IssuedSession{}, fmt.Errorf("store session: %w", err)
	}
	if s.limiter != nil {
		s.limiter.Reset(ctx, key)
	}

	return IssuedSession{
		AccessToken: token,
		TokenType:   TokenTypeBearer,
		ExpiresAt:   session.ExpiresAt,
		User:        user,
	}, nil
}

// Resolve devuelve el usuario dueño del token. Cualquier token no resoluble
// (vacío, mal firmado, vencido, revocado) es ErrInvalidSession.
func (s *SessionService) Resolve(ctx context.Context, token string) (domain.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return domain.User{}, ErrInvalidSession
	}

	session, err := s.sessions.Get(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrInvalidSession
		}
		return domain.User{}, fmt.Errorf("load session: %w", err)
	}
	if session.UserID != claims.UserID {
		return domain.User{}, ErrInvalidSession
	}
	if session.Expired(s.now().UTC()) {
		if err := s.sessions.Delete(ctx, session.ID); err != nil {
			s.logger.Warn("evict expired session failed", zap.Error(err), zap.String("session_id", session.ID))
		}
		return domain.User{}, ErrInvalidSession
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrInvalidSession
		}
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// Invalidate borra la sesión del token. Es idempotente: tokens inválidos o ya
// revocados no son error.
func (s *SessionService) Invalidate(ctx context.Context, token string) error {
	claims, err := s.tokens.ParseIgnoringExpiry(token)
	if err != nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, claims.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func loginLimiterKey(username, clientIP string) string {
	if clientIP == "" {
		return username
	}
	return username + "|" + clientIP
}
