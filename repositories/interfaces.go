package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/upb/rcfms-admin/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a write violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")
)

// DuplicateError reports which unique constraint a write collided with.
// It matches ErrDuplicate under errors.Is.
type DuplicateError struct {
	Constraint string
	Err        error
}

func (e *DuplicateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("duplicate record (%s): %v", e.Constraint, e.Err)
	}
	return fmt.Sprintf("duplicate record (%s)", e.Constraint)
}

func (e *DuplicateError) Unwrap() error { return e.Err }

// Field names the colliding column when it can be told from the constraint.
func (e *DuplicateError) Field() string {
	switch {
	case strings.Contains(e.Constraint, "work_id"):
		return "work_id"
	case strings.Contains(e.Constraint, "email"):
		return "email"
	}
	return ""
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// ProfileFilter narrows a profile listing.
type ProfileFilter struct {
	Unit       *models.Unit
	ActiveOnly bool
}

// ProfileRepository handles staff profile data operations
type ProfileRepository interface {
	// Create inserts a profile. Unique violations return a *DuplicateError.
	Create(ctx context.Context, profile *models.Profile) error

	// GetByID retrieves a profile by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)

	// GetByIDs retrieves the profiles that exist among ids, keyed by ID
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Profile, error)

	// FindByEmailOrWorkID returns any profile holding either value, or ErrNotFound
	FindByEmailOrWorkID(ctx context.Context, email, workID string) (*models.Profile, error)

	// List retrieves profiles ordered by full name
	List(ctx context.Context, filter ProfileFilter) ([]*models.Profile, error)

	// Update writes role, unit, is_active and updated_at
	Update(ctx context.Context, profile *models.Profile) error

	// Count returns the number of profiles
	Count(ctx context.Context) (int, error)
}

// IdentityRepository handles authentication identity data operations
type IdentityRepository interface {
	// Create inserts an identity. Unique violations return a *DuplicateError.
	Create(ctx context.Context, identity *models.Identity) error

	// GetByID retrieves an identity by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Identity, error)

	// GetByEmail retrieves an identity by lower-cased email
	GetByEmail(ctx context.Context, email string) (*models.Identity, error)

	// UpdatePassword replaces the password hash
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// AuditRepository handles audit log data operations. There is no update or delete.
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// List retrieves entries newest first
	List(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)

	// Count returns the number of entries
	Count(ctx context.Context) (int, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Profiles   ProfileRepository
	Identities IdentityRepository
	AuditLogs  AuditRepository
}
