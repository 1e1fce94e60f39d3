package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/rcfms-admin/models"
	"github.com/upb/rcfms-admin/repositories"
)

// ProfileRepository implements repositories.ProfileRepository
type ProfileRepository struct {
	store *Store
}

func cloneProfile(p models.Profile) *models.Profile {
	if p.Unit != nil {
		u := *p.Unit
		p.Unit = &u
	}
	return &p
}

// Create inserts a profile, enforcing unique email and work_id
func (r *ProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	defer r.store.lock(ctx)()

	if _, exists := r.store.profiles[profile.ID]; exists {
		return &repositories.DuplicateError{Constraint: "profiles_pkey"}
	}
	for _, p := range r.store.profiles {
		if strings.EqualFold(p.Email, profile.Email) {
			return &repositories.DuplicateError{Constraint: "profiles_email_key"}
		}
		if p.WorkID == profile.WorkID {
			return &repositories.DuplicateError{Constraint: "profiles_work_id_key"}
		}
	}
	r.store.profiles[profile.ID] = *cloneProfile(*profile)
	return nil
}

// GetByID retrieves a profile by ID
func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	defer r.store.lock(ctx)()

	p, ok := r.store.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, repositories.ErrNotFound)
	}
	return cloneProfile(p), nil
}

// GetByIDs retrieves the profiles that exist among ids
func (r *ProfileRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Profile, error) {
	defer r.store.lock(ctx)()

	result := make(map[uuid.UUID]*models.Profile, len(ids))
	for _, id := range ids {
		if p, ok := r.store.profiles[id]; ok {
			result[id] = cloneProfile(p)
		}
	}
	return result, nil
}

// FindByEmailOrWorkID returns any profile holding either value
func (r *ProfileRepository) FindByEmailOrWorkID(ctx context.Context, email, workID string) (*models.Profile, error) {
	defer r.store.lock(ctx)()

	for _, p := range r.store.profiles {
		if strings.EqualFold(p.Email, email) || p.WorkID == workID {
			return cloneProfile(p), nil
		}
	}
	return nil, repositories.ErrNotFound
}

// List returns profiles ordered by full name
func (r *ProfileRepository) List(ctx context.Context, filter repositories.ProfileFilter) ([]*models.Profile, error) {
	defer r.store.lock(ctx)()

	profiles := []*models.Profile{}
	for _, p := range r.store.profiles {
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		if filter.Unit != nil && (p.Unit == nil || *p.Unit != *filter.Unit) {
			continue
		}
		profiles = append(profiles, cloneProfile(p))
	}
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].FullName != profiles[j].FullName {
			return profiles[i].FullName < profiles[j].FullName
		}
		return profiles[i].ID.String() < profiles[j].ID.String()
	})
	return profiles, nil
}

// Update writes role, unit, is_active and updated_at
func (r *ProfileRepository) Update(ctx context.Context, profile *models.Profile) error {
	defer r.store.lock(ctx)()

	existing, ok := r.store.profiles[profile.ID]
	if !ok {
		return fmt.Errorf("profile %s: %w", profile.ID, repositories.ErrNotFound)
	}
	updated := cloneProfile(*profile)
	existing.Role = updated.Role
	existing.Unit = updated.Unit
	existing.IsActive = updated.IsActive
	existing.UpdatedAt = updated.UpdatedAt
	r.store.profiles[profile.ID] = existing
	return nil
}

// Count returns the number of profiles
func (r *ProfileRepository) Count(ctx context.Context) (int, error) {
	defer r.store.lock(ctx)()
	return len(r.store.profiles), nil
}

// IdentityRepository implements repositories.IdentityRepository
type IdentityRepository struct {
	store *Store
}

// Create inserts an identity, enforcing unique email
func (r *IdentityRepository) Create(ctx context.Context, identity *models.Identity) error {
	defer r.store.lock(ctx)()

	if _, exists := r.store.identities[identity.ID]; exists {
		return &repositories.DuplicateError{Constraint: "identities_pkey"}
	}
	for _, existing := range r.store.identities {
		if strings.EqualFold(existing.Email, identity.Email) {
			return &repositories.DuplicateError{Constraint: "identities_email_key"}
		}
	}
	r.store.identities[identity.ID] = *identity
	return nil
}

// GetByID retrieves an identity by ID
func (r *IdentityRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Identity, error) {
	defer r.store.lock(ctx)()

	identity, ok := r.store.identities[id]
	if !ok {
		return nil, fmt.Errorf("identity: %w", repositories.ErrNotFound)
	}
	return &identity, nil
}

// GetByEmail retrieves an identity by email
func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	defer r.store.lock(ctx)()

	for _, identity := range r.store.identities {
		if strings.EqualFold(identity.Email, email) {
			found := identity
			return &found, nil
		}
	}
	return nil, fmt.Errorf("identity: %w", repositories.ErrNotFound)
}

// UpdatePassword replaces the password hash
func (r *IdentityRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	defer r.store.lock(ctx)()

	identity, ok := r.store.identities[id]
	if !ok {
		return fmt.Errorf("identity %s: %w", id, repositories.ErrNotFound)
	}
	identity.PasswordHash = passwordHash
	identity.UpdatedAt = time.Now().UTC()
	r.store.identities[id] = identity
	return nil
}

// AuditRepository implements repositories.AuditRepository
type AuditRepository struct {
	store *Store
}

// Insert appends an entry
func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	defer r.store.lock(ctx)()

	entry := *log
	entry.ActorName = ""
	r.store.audit = append(r.store.audit, entry)
	return nil
}

// List returns entries newest first
func (r *AuditRepository) List(ctx context.Context, limit, offset int) ([]*models.AuditLog, error) {
	defer r.store.lock(ctx)()

	sorted := make([]models.AuditLog, len(r.store.audit))
	copy(sorted, r.store.audit)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID > sorted[j].ID
	})

	logs := []*models.AuditLog{}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || offset >= len(sorted) {
		return logs, nil
	}
	end := len(sorted)
	if limit < end-offset {
		end = offset + limit
	}
	for i := offset; i < end; i++ {
		entry := sorted[i]
		logs = append(logs, &entry)
	}
	return logs, nil
}

// Count returns the number of entries
func (r *AuditRepository) Count(ctx context.Context) (int, error) {
	defer r.store.lock(ctx)()
	return len(r.store.audit), nil
}
