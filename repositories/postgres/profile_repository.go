package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/upb/rcfms-admin/models"
	"github.com/upb/rcfms-admin/repositories"
	"go.uber.org/zap"
)

const profileColumns = `id, email, work_id, full_name, role, unit, is_active, created_at, updated_at`

// ProfileRepository implements the repositories.ProfileRepository interface
type ProfileRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *DB, logger *zap.Logger) repositories.ProfileRepository {
	return &ProfileRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new profile
func (r *ProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	query := `
		INSERT INTO profiles (id, email, work_id, full_name, role, unit, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		profile.ID,
		profile.Email,
		profile.WorkID,
		profile.FullName,
		profile.Role,
		unitValue(profile.Unit),
		profile.IsActive,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("create profile", err)
	}

	r.logger.Debug("profile created", zap.String("id", profile.ID.String()), zap.String("role", string(profile.Role)))
	return nil
}

// GetByID retrieves a profile by ID
func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	profile, err := scanProfile(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile %s: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// GetByIDs retrieves all profiles whose id is in ids
func (r *ProfileRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Profile, error) {
	result := make(map[uuid.UUID]*models.Profile, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}

	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = ANY($1::uuid[])`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		result[profile.ID] = profile
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profile rows: %w", err)
	}
	return result, nil
}

// FindByEmailOrWorkID returns the first profile holding either value
func (r *ProfileRepository) FindByEmailOrWorkID(ctx context.Context, email, workID string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE email = $1 OR work_id = $2 LIMIT 1`

	executor := GetExecutor(ctx, r.db)
	profile, err := scanProfile(executor.QueryRowContext(ctx, query, email, workID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up profile: %w", err)
	}
	return profile, nil
}

// List retrieves profiles ordered by full name
func (r *ProfileRepository) List(ctx context.Context, filter repositories.ProfileFilter) ([]*models.Profile, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.Unit != nil {
		args = append(args, string(*filter.Unit))
		conditions = append(conditions, fmt.Sprintf("unit = $%d", len(args)))
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "is_active = true")
	}

	query := `SELECT ` + profileColumns + ` FROM profiles`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY full_name ASC, id ASC`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	profiles := []*models.Profile{}
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profile rows: %w", err)
	}
	return profiles, nil
}

// Update writes the mutable fields of a profile
func (r *ProfileRepository) Update(ctx context.Context, profile *models.Profile) error {
	query := `
		UPDATE profiles
		SET role = $2,
		    unit = $3,
		    is_active = $4,
		    updated_at = $5
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		profile.ID,
		profile.Role,
		unitValue(profile.Unit),
		profile.IsActive,
		profile.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("update profile", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("profile %s: %w", profile.ID, repositories.ErrNotFound)
	}

	r.logger.Debug("profile updated", zap.String("id", profile.ID.String()))
	return nil
}

// Count returns the number of profiles
func (r *ProfileRepository) Count(ctx context.Context) (int, error) {
	var n int
	executor := GetExecutor(ctx, r.db)
	if err := executor.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var (
		p    models.Profile
		unit sql.NullString
	)
	if err := row.Scan(
		&p.ID,
		&p.Email,
		&p.WorkID,
		&p.FullName,
		&p.Role,
		&unit,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if unit.Valid {
		u := models.Unit(unit.String)
		p.Unit = &u
	}
	return &p, nil
}

func unitValue(u *models.Unit) sql.NullString {
	if u == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*u), Valid: true}
}
