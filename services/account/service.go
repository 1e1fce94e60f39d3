// Package account serves the signed-in staff member: login, own profile and
// password change.
package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/upb/rcfms-admin/identity"
	"github.com/upb/rcfms-admin/models"
	"github.com/upb/rcfms-admin/repositories"
	"github.com/upb/rcfms-admin/services"
	"go.uber.org/zap"
)

// Authenticator checks passwords and issues tokens. *identity.Provider satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*identity.Session, error)
	ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error
}

// Auditor appends the CHANGE_PASSWORD entry
type Auditor interface {
	Record(ctx context.Context, actorID uuid.UUID, action models.AuditAction, table, recordID string, payload interface{}) error
}

// LoginRequest is the body of a login call
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest is the body of a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// LoginResult is returned on successful login
type LoginResult struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresAt   time.Time       `json:"expires_at"`
	User        *models.Profile `json:"user"`
}

// Service handles account operations
type Service struct {
	auth     Authenticator
	profiles repositories.ProfileRepository
	auditor  Auditor
	logger   *zap.Logger
}

// NewService creates a new account service
func NewService(auth Authenticator, profiles repositories.ProfileRepository, auditor Auditor, logger *zap.Logger) *Service {
	return &Service{
		auth:     auth,
		profiles: profiles,
		auditor:  auditor,
		logger:   logger,
	}
}

// Login exchanges email and password for an access token. A correct password
// on an account without an active profile fails exactly like a wrong one.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	session, err := s.auth.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return nil, services.ErrInvalidCredentials
		}
		s.logger.Error("authentication failed", zap.Error(err))
		return nil, services.WrapInternal("failed to authenticate", err)
	}

	profile, err := s.profiles.GetByID(ctx, session.Identity.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.logger.Warn("login for identity without profile", zap.String("identity_id", session.Identity.ID.String()))
			return nil, services.ErrInvalidCredentials
		}
		s.logger.Error("failed to load profile", zap.Error(err))
		return nil, services.WrapInternal("failed to authenticate", err)
	}
	if !profile.IsActive {
		s.logger.Info("login for inactive profile rejected", zap.String("profile_id", profile.ID.String()))
		return nil, services.ErrInvalidCredentials
	}

	s.logger.Info("user logged in", zap.String("profile_id", profile.ID.String()))
	return &LoginResult{
		AccessToken: session.Token,
		TokenType:   "Bearer",
		ExpiresAt:   session.ExpiresAt,
		User:        profile,
	}, nil
}

// ChangePassword replaces the caller's password and records CHANGE_PASSWORD
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, req ChangePasswordRequest) error {
	if req.CurrentPassword == req.NewPassword {
		return services.NewValidationError(map[string]string{
			"new_password": "new_password must differ from current_password",
		})
	}

	err := s.auth.ChangePassword(context.WithoutCancel(ctx), id, req.CurrentPassword, req.NewPassword)
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		return services.ErrInvalidCredentials
	case errors.Is(err, identity.ErrWeakPassword):
		return services.NewValidationError(map[string]string{
			"new_password": "new_password is too short",
		})
	case err != nil:
		s.logger.Error("failed to change password", zap.String("identity_id", id.String()), zap.Error(err))
		return services.WrapInternal("failed to change password", err)
	}

	if err := s.auditor.Record(ctx, id, models.AuditActionChangePassword, models.TableIdentities, id.String(), nil); err != nil {
		s.logger.Warn("password changed without audit entry", zap.String("identity_id", id.String()), zap.Error(err))
	}
	return nil
}
