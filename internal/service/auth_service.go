package service

import (
	"context"
	"strings"
	"time"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/registry"
	"github.com/spec-kit/support-desk/internal/store"
	"github.com/spec-kit/support-desk/pkg/util"
)

// AuthService handles signup and login against the users collection. It is
// the identity boundary: it issues tokens carrying the role claim, which the
// rest of the core only reads.
type AuthService struct {
	cfg      config.AuthConfig
	store    store.Store
	registry *registry.Registry
	tokens   *auth.TokenManager
}

// NewAuthService constructs the service.
func NewAuthService(cfg config.AuthConfig, st store.Store, reg *registry.Registry) *AuthService {
	return &AuthService{
		cfg:      cfg,
		store:    st,
		registry: reg,
		tokens:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
	}
}

// TokenManager exposes the manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

// Register creates a user account with the default end-user role. Role
// promotion is an out-of-scope super-admin action.
func (s *AuthService) Register(ctx context.Context, email, username, password string) (domain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	username = strings.TrimSpace(username)
	if email == "" || password == "" {
		return domain.User{}, util.NewValidationError("email and password required", nil)
	}
	if _, exists := s.registry.UserByEmail(email); exists {
		return domain.User{}, util.NewConflict("email already registered", map[string]any{"email": email})
	}

	hash, err := auth.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return domain.User{}, util.NewInternalError(err)
	}

	user := domain.User{
		Email:        email,
		Username:     username,
		Role:         domain.RoleUser,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	id, err := s.store.Append(ctx, store.CollectionUsers, user.Document())
	if err != nil {
		return domain.User{}, util.NewStoreFailure("create user", err)
	}
	user.ID = id
	user.PasswordHash = ""
	return user, nil
}

// Login verifies credentials and issues a token carrying the role claim.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, time.Time, domain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok := s.registry.UserByEmail(email)
	if !ok {
		return "", time.Time{}, domain.User{}, util.NewUnauthorized("invalid credentials")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return "", time.Time{}, domain.User{}, util.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return "", time.Time{}, domain.User{}, util.NewInternalError(err)
	}
	user.PasswordHash = ""
	return token, expiresAt, user, nil
}
