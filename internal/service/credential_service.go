package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"nutricoach-api/internal/domain"
	"nutricoach-api/internal/repository"
)

// CredentialService verifica username/password contra el repositorio de usuarios.
type CredentialService struct {
	logger *zap.Logger
	users  repository.UserRepository
}

var ErrInvalidUserEntry = errors.New("invalid user entry")

func NewCredentialService(logger *zap.Logger, users repository.UserRepository) *CredentialService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialService{logger: logger, users: users}
}

// Verify busca por username exacto y compara el hash bcrypt. Un usuario
// inexistente o una contraseña incorrecta devuelven ok=false sin error.
func (s *CredentialService) Verify(ctx context.Context, username, password string) (domain.User, bool, error) {
	if s == nil || s.users == nil {
		return domain.User{}, false, errors.New("credential service not configured")
	}
	if username == "" || password == "" {
		return domain.User{}, false, nil
	}
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	if user.PasswordHash == "" {
		return domain.User{}, false, nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, false, nil
	}
	return user, true, nil
}

// ParseUserEntries convierte entradas "id:username:password[:email]" en usuarios
// con la contraseña ya hasheada.
func ParseUserEntries(entries []string, cost int) ([]domain.User, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	now := time.Now().UTC()
	seenNames := make(map[string]struct{}, len(entries))
	seenIDs := make(map[string]struct{}, len(entries))
	users := make([]domain.User, 0, len(entries))
	for i, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parts := strings.SplitN(raw, ":", 4)
		if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return nil, fmt.Errorf("%w: entry %d", ErrInvalidUserEntry, i)
		}
		if _, dup := seenNames[parts[1]]; dup {
			return nil, fmt.Errorf("%w: duplicate username %q", ErrInvalidUserEntry, parts[1])
		}
		if _, dup := seenIDs[parts[0]]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidUserEntry, parts[0])
		}
		seenNames[parts[1]] = struct{}{}
		seenIDs[parts[0]] = struct{}{}

		hash, err := bcrypt.GenerateFromPassword([]byte(parts[2]), cost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %q: %w", parts[1], err)
		}
		user := domain.User{
			ID:           parts[0],
			Username:     parts[1],
			DisplayName:  parts[1],
			PasswordHash: string(hash),
			CreatedAt:    now,
		}
		if len(parts) == 4 {
			user.Email = strings.TrimSpace(parts[3])
		}
		users = append(users, user)
	}
	return users, nil
}

// SeedUsers carga la lista fija de cuentas en el repositorio.
func (s *CredentialService) SeedUsers(ctx context.Context, users []domain.User) error {
	for _, u := range users {
		if err := s.users.Create(ctx, u); err != nil {
			return fmt.Errorf("seed user %q: %w", u.Username, err)
		}
	}
	s.logger.Info("credential store seeded", zap.Int("users", len(users)))
	return nil
}
