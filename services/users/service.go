// Package users implements the administrative mutations and reads over staff
// profiles. Every mutation is audited after it has been written.
package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/upb/rcfms-admin/models"
	"github.com/upb/rcfms-admin/repositories"
	"github.com/upb/rcfms-admin/services"
	"go.uber.org/zap"
)

// AuditLog records mutations and pages through the trail. *audit.Recorder satisfies it.
type AuditLog interface {
	Record(ctx context.Context, actorID uuid.UUID, action models.AuditAction, table, recordID string, payload interface{}) error
	List(ctx context.Context, page, limit int) (*models.AuditPage, error)
}

// Service handles staff profile administration
type Service struct {
	profiles repositories.ProfileRepository
	audit    AuditLog
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new users service
func NewService(profiles repositories.ProfileRepository, audit AuditLog, logger *zap.Logger) *Service {
	return &Service{
		profiles: profiles,
		audit:    audit,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// List returns every profile ordered by full name
func (s *Service) List(ctx context.Context) ([]*models.Profile, error) {
	profiles, err := s.profiles.List(ctx, repositories.ProfileFilter{})
	if err != nil {
		s.logger.Error("failed to list profiles", zap.Error(err))
		return nil, services.WrapInternal("failed to fetch users", err)
	}
	return profiles, nil
}

// ListAuditLog returns one page of the audit trail, newest first
func (s *Service) ListAuditLog(ctx context.Context, page, limit int) (*models.AuditPage, error) {
	result, err := s.audit.List(ctx, page, limit)
	if err != nil {
		s.logger.Error("failed to list audit logs", zap.Error(err))
		return nil, services.WrapInternal("failed to fetch audit logs", err)
	}
	return result, nil
}

// Update applies a partial update to profile id on behalf of actorID.
// Changing the role re-derives the unit; a supplied unit must agree with the
// resulting role. The audit payload holds exactly the changed fields.
func (s *Service) Update(ctx context.Context, actorID, id uuid.UUID, update models.ProfileUpdate) (*models.Profile, error) {
	if update.IsEmpty() {
		return nil, services.ErrInvalidInput.WithDetail("fields", "at least one of role, unit, is_active is required")
	}
	if violations := validateUpdate(update); len(violations) > 0 {
		return nil, services.NewValidationError(violations)
	}
	if update.IsActive != nil && !*update.IsActive && actorID == id {
		return nil, services.ErrSelfDeactivation
	}

	profile, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	role := profile.Role
	if update.Role != nil {
		role = *update.Role
	}
	unit, _ := models.UnitFor(role)
	if update.Unit != nil && !models.UnitMatchesRole(role, update.Unit) {
		return nil, services.NewValidationError(map[string]string{
			"unit": fmt.Sprintf("unit does not match role %s", role),
		})
	}

	changes := map[string]interface{}{}
	if role != profile.Role {
		changes["role"] = role
	}
	if !sameUnit(unit, profile.Unit) {
		changes["unit"] = unit
	}
	if update.IsActive != nil && *update.IsActive != profile.IsActive {
		changes["is_active"] = *update.IsActive
		profile.IsActive = *update.IsActive
	}
	profile.Role = role
	profile.Unit = unit
	profile.UpdatedAt = s.now()
	changes["updated_at"] = profile.UpdatedAt

	if err := s.write(ctx, profile); err != nil {
		return nil, err
	}

	if err := s.audit.Record(ctx, actorID, models.AuditActionUpdateUser, models.TableProfiles, id.String(), changes); err != nil {
		s.logger.Warn("user updated without audit entry", zap.String("profile_id", id.String()), zap.Error(err))
	}

	s.logger.Info("user updated",
		zap.String("profile_id", id.String()),
		zap.String("actor_id", actorID.String()),
		zap.Int("changed_fields", len(changes)-1))
	return profile, nil
}

// Deactivate marks profile id inactive. An actor can never deactivate
// themselves. Repeating the call keeps the profile inactive and audits again.
func (s *Service) Deactivate(ctx context.Context, actorID, id uuid.UUID) error {
	if actorID == id {
		return services.ErrSelfDeactivation
	}

	profile, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	profile.IsActive = false
	profile.UpdatedAt = s.now()
	if err := s.write(ctx, profile); err != nil {
		return err
	}

	if err := s.audit.Record(ctx, actorID, models.AuditActionDeactivateUser, models.TableProfiles, id.String(), map[string]interface{}{
		"is_active":  false,
		"updated_at": profile.UpdatedAt,
	}); err != nil {
		s.logger.Warn("user deactivated without audit entry", zap.String("profile_id", id.String()), zap.Error(err))
	}

	s.logger.Info("user deactivated",
		zap.String("profile_id", id.String()),
		zap.String("actor_id", actorID.String()))
	return nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	profile, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrProfileNotFound
		}
		s.logger.Error("failed to load profile", zap.String("profile_id", id.String()), zap.Error(err))
		return nil, services.WrapInternal("failed to load user", err)
	}
	return profile, nil
}

// write runs the single-row update to completion even if the request goes away
func (s *Service) write(ctx context.Context, profile *models.Profile) error {
	if err := s.profiles.Update(context.WithoutCancel(ctx), profile); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return services.ErrProfileNotFound
		}
		s.logger.Error("failed to update profile", zap.String("profile_id", profile.ID.String()), zap.Error(err))
		return services.WrapInternal("failed to update user", err)
	}
	return nil
}

func validateUpdate(update models.ProfileUpdate) map[string]string {
	violations := map[string]string{}
	if update.Role != nil && !update.Role.Valid() {
		violations["role"] = "role must be a known staff role"
	}
	if update.Unit != nil && !update.Unit.Valid() {
		violations["unit"] = "unit must be a known unit"
	}
	return violations
}

func sameUnit(a, b *models.Unit) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
