// Package identity is the local identity provider: it stores bcrypt password
// hashes, issues HS256 access tokens and verifies them back to an identity.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/rcfms-admin/models"
	"github.com/upb/rcfms-admin/repositories"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned when email and password do not match
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrWeakPassword is returned when a new password is too short
	ErrWeakPassword = errors.New("password too short")
)

// Provider implements the identity provider over an IdentityRepository
type Provider struct {
	identities repositories.IdentityRepository
	tokens     *TokenIssuer
	logger     *zap.Logger
	cost       int
	dummyHash  string
}

// Config holds configuration for Provider
type Config struct {
	BcryptCost int
}

// NewProvider creates a new identity provider
func NewProvider(identities repositories.IdentityRepository, tokens *TokenIssuer, logger *zap.Logger, cfg Config) (*Provider, error) {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cfg.BcryptCost)
	}
	// Compared against when an email is unknown so both paths cost one bcrypt run.
	dummy, err := HashPassword("not-a-real-password", cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	return &Provider{
		identities: identities,
		tokens:     tokens,
		logger:     logger,
		cost:       cfg.BcryptCost,
		dummyHash:  dummy,
	}, nil
}

// Verify validates an access token and returns the identity it names.
// Token problems return ErrInvalidToken or ErrTokenExpired; anything else is a store failure.
func (p *Provider) Verify(ctx context.Context, token string) (*models.Identity, error) {
	claims, err := p.tokens.Parse(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	identity, err := p.identities.GetByID(ctx, claims.Sub)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown subject", ErrInvalidToken)
		}
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}
	return identity, nil
}

// CreateIdentity hashes the secret and inserts the identity. When ctx carries
// a transaction the insert joins it.
func (p *Provider) CreateIdentity(ctx context.Context, email string, secret Secret, metadata models.IdentityMetadata) (*models.Identity, error) {
	if secret.IsZero() {
		return nil, errors.New("secret is empty")
	}
	hash, err := HashPassword(secret.Reveal(), p.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash secret: %w", err)
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	now := time.Now().UTC()
	identity := &models.Identity{
		ID:           uuid.New(),
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		Metadata:     meta,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.identities.Create(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

// Session is the result of a successful login
type Session struct {
	Identity  *models.Identity
	Token     string
	ExpiresAt time.Time
}

// Authenticate checks email and password and issues an access token
func (p *Provider) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	identity, err := p.identities.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			_ = VerifyPassword(p.dummyHash, password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}
	if err := VerifyPassword(identity.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := p.tokens.Issue(identity.ID, identity.Email)
	if err != nil {
		return nil, err
	}
	return &Session{Identity: identity, Token: token, ExpiresAt: expiresAt}, nil
}

// ChangePassword replaces the password after checking the current one
func (p *Provider) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error {
	if len(next) < MinPasswordLength {
		return ErrWeakPassword
	}
	identity, err := p.identities.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load identity: %w", err)
	}
	if err := VerifyPassword(identity.PasswordHash, current); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := HashPassword(next, p.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := p.identities.UpdatePassword(ctx, id, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	p.logger.Info("password changed", zap.String("identity_id", id.String()))
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
