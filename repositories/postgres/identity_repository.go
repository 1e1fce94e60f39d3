package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/rcfms-admin/models"
	"github.com/upb/rcfms-admin/repositories"
	"go.uber.org/zap"
)

// IdentityRepository implements the repositories.IdentityRepository interface
type IdentityRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewIdentityRepository creates a new identity repository
func NewIdentityRepository(db *DB, logger *zap.Logger) repositories.IdentityRepository {
	return &IdentityRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new identity
func (r *IdentityRepository) Create(ctx context.Context, identity *models.Identity) error {
	query := `
		INSERT INTO identities (id, email, password_hash, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	metadata := []byte(identity.Metadata)
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		identity.ID,
		identity.Email,
		identity.PasswordHash,
		metadata,
		identity.CreatedAt,
		identity.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("create identity", err)
	}

	r.logger.Debug("identity created", zap.String("id", identity.ID.String()))
	return nil
}

// GetByID retrieves an identity by ID
func (r *IdentityRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Identity, error) {
	query := `
		SELECT id, email, password_hash, metadata, created_at, updated_at
		FROM identities
		WHERE id = $1
	`
	return r.getOne(ctx, query, id)
}

// GetByEmail retrieves an identity by email
func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	query := `
		SELECT id, email, password_hash, metadata, created_at, updated_at
		FROM identities
		WHERE email = $1
	`
	return r.getOne(ctx, query, email)
}

func (r *IdentityRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.Identity, error) {
	executor := GetExecutor(ctx, r.db)
	identity := &models.Identity{}
	var metadata []byte

	err := executor.QueryRowContext(ctx, query, arg).Scan(
		&identity.ID,
		&identity.Email,
		&identity.PasswordHash,
		&metadata,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("identity: %w", repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	identity.Metadata = metadata
	return identity, nil
}

// UpdatePassword replaces an identity's password hash
func (r *IdentityRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `UPDATE identities SET password_hash = $2, updated_at = now() WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("identity %s: %w", id, repositories.ErrNotFound)
	}

	r.logger.Debug("identity password updated", zap.String("id", id.String()))
	return nil
}
