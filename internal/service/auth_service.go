package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-portal/internal/auth"
	"github.com/spec-kit/repair-portal/internal/config"
	"github.com/spec-kit/repair-portal/internal/domain"
	"github.com/spec-kit/repair-portal/internal/repository"
	apperrors "github.com/spec-kit/repair-portal/pkg/util"
)

// AuthService coordinates registration, login and account provisioning.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo repository.UserRepository
	Logger   *zap.Logger
}

// AccountInput describes a new account.
type AccountInput struct {
	Name      string
	Email     string
	Password  string
	Role      domain.Role
	Specialty string
}

// Session is an issued access token.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
		logger:     logger,
	}
}

// Register creates a customer account and signs it in.
func (s *AuthService) Register(ctx context.Context, input AccountInput) (*Session, error) {
	input.Role = domain.RoleCustomer
	input.Specialty = ""
	user, err := s.ProvisionUser(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login authenticates any account by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	return s.issue(user)
}

// CreateStaff lets an Admin or Manager open a staff or technician account.
// Only Admins may create other Admins.
func (s *AuthService) CreateStaff(ctx context.Context, actor domain.Actor, input AccountInput) (*domain.User, error) {
	if actor.Role != domain.RoleAdmin && actor.Role != domain.RoleManager {
		return nil, apperrors.NewForbidden("only admins and managers can create staff accounts")
	}
	if !input.Role.IsStaff() {
		return nil, apperrors.NewValidationError("role must be a staff role", map[string]any{"role": string(input.Role)})
	}
	if input.Role == domain.RoleAdmin && actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only admins can create admin accounts")
	}
	return s.ProvisionUser(ctx, input)
}

// ProvisionUser validates and stores an account without an authorization
// check. The CLI uses it to bootstrap the first admin.
func (s *AuthService) ProvisionUser(ctx context.Context, input AccountInput) (*domain.User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)
	input.Specialty = strings.TrimSpace(input.Specialty)
	if err := validateAccount(input); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         input.Role,
		Specialty:    input.Specialty,
	}
	if input.Role != domain.RoleTechnician {
		user.Specialty = ""
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": input.Email})
		}
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("account created",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.String("specialty", user.Specialty))
	return user, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issue(user *domain.User) (*Session, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}

func validateAccount(input AccountInput) error {
	invalid := make([]string, 0)
	if input.Name == "" {
		invalid = append(invalid, "name")
	}
	if _, err := mail.ParseAddress(input.Email); err != nil || input.Email == "" {
		invalid = append(invalid, "email")
	}
	if len(input.Password) < auth.MinPasswordLength {
		invalid = append(invalid, "password")
	}
	if !input.Role.Valid() {
		invalid = append(invalid, "role")
	}
	if input.Role == domain.RoleTechnician && input.Specialty == "" {
		invalid = append(invalid, "specialty")
	}
	if len(invalid) > 0 {
		return apperrors.NewValidationError("missing or invalid fields", map[string]any{"fields": invalid})
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
