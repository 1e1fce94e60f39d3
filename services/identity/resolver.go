// Package identity resolves a bearer credential to the acting staff member.
package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	idp "github.com/upb/rcfms-admin/identity"
	"github.com/upb/rcfms-admin/models"
	"github.com/upb/rcfms-admin/repositories"
	"github.com/upb/rcfms-admin/services"
	"go.uber.org/zap"
)

// Verifier validates a credential with the identity provider
type Verifier interface {
	Verify(ctx context.Context, token string) (*models.Identity, error)
}

// Principal is an authenticated identity together with its active profile
type Principal struct {
	Identity *models.Identity
	Profile  *models.Profile
}

// ID returns the profile id, which equals the identity id
func (p *Principal) ID() uuid.UUID { return p.Profile.ID }

// Role returns the profile role
func (p *Principal) Role() models.Role { return p.Profile.Role }

// Resolver turns bearer credentials into principals
type Resolver struct {
	verifier Verifier
	profiles repositories.ProfileRepository
	logger   *zap.Logger
}

// NewResolver creates a new Resolver
func NewResolver(verifier Verifier, profiles repositories.ProfileRepository, logger *zap.Logger) *Resolver {
	return &Resolver{
		verifier: verifier,
		profiles: profiles,
		logger:   logger,
	}
}

// Resolve validates the credential and loads the caller's profile. Every
// credential problem, a missing profile and an inactive profile all return
// the same ErrUnauthenticated. Provider and store failures are internal.
func (r *Resolver) Resolve(ctx context.Context, credential string) (*Principal, error) {
	if !wellFormed(credential) {
		return nil, services.ErrUnauthenticated
	}

	identity, err := r.verifier.Verify(ctx, credential)
	if err != nil {
		if errors.Is(err, idp.ErrInvalidToken) || errors.Is(err, idp.ErrTokenExpired) {
			r.logger.Debug("credential rejected", zap.Error(err))
			return nil, services.ErrUnauthenticated.Wrap(err)
		}
		r.logger.Error("identity provider failure", zap.Error(err))
		return nil, services.WrapInternal("identity provider failure", err)
	}

	profile, err := r.profiles.GetByID(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			r.logger.Warn("identity has no profile", zap.String("identity_id", identity.ID.String()))
			return nil, services.ErrUnauthenticated
		}
		r.logger.Error("failed to load profile", zap.String("identity_id", identity.ID.String()), zap.Error(err))
		return nil, services.WrapInternal("failed to load profile", err)
	}
	if !profile.IsActive {
		r.logger.Debug("inactive profile rejected", zap.String("profile_id", profile.ID.String()))
		return nil, services.ErrUnauthenticated
	}

	return &Principal{Identity: identity, Profile: profile}, nil
}

// wellFormed accepts three non-empty dot-separated segments
func wellFormed(credential string) bool {
	if credential == "" || strings.ContainsAny(credential, " \t\r\n") {
		return false
	}
	parts := strings.Split(credential, ".")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
	}
	return true
}
