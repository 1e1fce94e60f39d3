// Package provisioning creates staff accounts. A run is a fixed sequence of
// steps: validate, uniqueness pre-check, credential generation, commit, notify
// and audit. Anything failing before the commit aborts the run with no side
// effects; anything failing after it is logged and the run still succeeds.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/upb/rcfms-admin/identity"
	"github.com/upb/rcfms-admin/internal/observability"
	"github.com/upb/rcfms-admin/models"
	"github.com/upb/rcfms-admin/repositories"
	"github.com/upb/rcfms-admin/services"
	"github.com/upb/rcfms-admin/services/notify"
	"github.com/upb/rcfms-admin/utils"
	"go.uber.org/zap"
)

// IdentityProvider creates the authentication record for a new account
type IdentityProvider interface {
	CreateIdentity(ctx context.Context, email string, secret identity.Secret, metadata models.IdentityMetadata) (*models.Identity, error)
}

// Notifier delivers the temporary credential out of band
type Notifier interface {
	SendCredentials(ctx context.Context, c notify.Credentials) error
}

// Auditor appends the CREATE_USER entry
type Auditor interface {
	Record(ctx context.Context, actorID uuid.UUID, action models.AuditAction, table, recordID string, payload interface{}) error
}

// Outcomes counts runs by result. *observability.Metrics satisfies it.
type Outcomes interface {
	ProvisioningOutcome(outcome string)
}

// Request is the input of one provisioning run
type Request struct {
	Email    string       `json:"email" validate:"required,email,max=254"`
	FullName string       `json:"full_name" validate:"required,max=120"`
	WorkID   string       `json:"work_id" validate:"required,max=32,work_id"`
	Role     models.Role  `json:"role" validate:"required,staff_role"`
	Unit     *models.Unit `json:"unit,omitempty" validate:"omitempty,unit"`
}

// normalize trims every field and lower-cases the email
func (r Request) normalize() Request {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FullName = strings.TrimSpace(r.FullName)
	r.WorkID = strings.TrimSpace(r.WorkID)
	r.Role = models.Role(strings.TrimSpace(string(r.Role)))
	return r
}

// createdUserPayload is the non-secret view of a new account recorded in the audit trail
type createdUserPayload struct {
	Email    string       `json:"email"`
	FullName string       `json:"full_name"`
	WorkID   string       `json:"work_id"`
	Role     models.Role  `json:"role"`
	Unit     *models.Unit `json:"unit"`
	IsActive bool         `json:"is_active"`
}

// Service runs the provisioning workflow
type Service struct {
	profiles       repositories.ProfileRepository
	txManager      repositories.TransactionManager
	identities     IdentityProvider
	notifier       Notifier
	auditor        Auditor
	outcomes       Outcomes
	logger         *zap.Logger
	generateSecret func() (identity.Secret, error)
}

// NewService creates a new provisioning service. outcomes may be nil.
func NewService(
	profiles repositories.ProfileRepository,
	txManager repositories.TransactionManager,
	identities IdentityProvider,
	notifier Notifier,
	auditor Auditor,
	outcomes Outcomes,
	logger *zap.Logger,
) *Service {
	return &Service{
		profiles:       profiles,
		txManager:      txManager,
		identities:     identities,
		notifier:       notifier,
		auditor:        auditor,
		outcomes:       outcomes,
		logger:         logger,
		generateSecret: identity.GenerateSecret,
	}
}

// CreateUser provisions a staff account on behalf of actorID and returns the
// new profile. The temporary credential only leaves through the notifier.
func (s *Service) CreateUser(ctx context.Context, actorID uuid.UUID, req Request) (*models.Profile, error) {
	profile, _, err := s.provision(ctx, &actorID, req)
	return profile, err
}

// provision runs every step. A nil actor attributes the audit entry to the new
// account itself, which is how the bootstrap administrator is recorded.
func (s *Service) provision(ctx context.Context, actorID *uuid.UUID, req Request) (*models.Profile, identity.Secret, error) {
	// 1. Validate
	req = req.normalize()
	unit, err := validate(req)
	if err != nil {
		s.count(observability.OutcomeInvalid)
		return nil, identity.Secret{}, err
	}

	// 2. Uniqueness pre-check. Advisory only; the storage constraints decide.
	existing, err := s.profiles.FindByEmailOrWorkID(ctx, req.Email, req.WorkID)
	switch {
	case err == nil:
		s.count(observability.OutcomeConflict)
		return nil, identity.Secret{}, services.ErrDuplicateProfile.WithDetail("field", conflictingField(existing, req))
	case !errors.Is(err, repositories.ErrNotFound):
		s.count(observability.OutcomeFailed)
		s.logger.Error("uniqueness check failed", zap.String("work_id", req.WorkID), zap.Error(err))
		return nil, identity.Secret{}, services.ErrProvisioningFailed.Wrap(err)
	}

	// 3. Transient credential
	secret, err := s.generateSecret()
	if err != nil {
		s.count(observability.OutcomeFailed)
		s.logger.Error("failed to generate credential", zap.Error(err))
		return nil, identity.Secret{}, services.ErrProvisioningFailed.Wrap(err)
	}

	// 4. Commit. Once this returns nil the run has succeeded.
	profile, err := s.commit(context.WithoutCancel(ctx), req, unit, secret)
	if err != nil {
		var dup *repositories.DuplicateError
		if errors.As(err, &dup) {
			s.count(observability.OutcomeConflict)
			s.logger.Info("provisioning lost a uniqueness race",
				zap.String("constraint", dup.Constraint),
				zap.String("work_id", req.WorkID))
			return nil, identity.Secret{}, services.ErrDuplicateProfile.WithDetail("field", dup.Field())
		}
		s.count(observability.OutcomeFailed)
		s.logger.Error("provisioning commit failed", zap.String("work_id", req.WorkID), zap.Error(err))
		return nil, identity.Secret{}, services.ErrProvisioningFailed.Wrap(err)
	}
	s.count(observability.OutcomeCreated)

	// 5. Notify
	err = s.notifier.SendCredentials(ctx, notify.Credentials{
		Email:    profile.Email,
		FullName: profile.FullName,
		WorkID:   profile.WorkID,
		Password: secret,
	})
	if err != nil {
		s.logger.Warn("failed to queue credentials notification",
			zap.String("profile_id", profile.ID.String()),
			zap.Error(err))
	}

	// 6. Audit
	actor := profile.ID
	if actorID != nil {
		actor = *actorID
	}
	if err := s.auditor.Record(ctx, actor, models.AuditActionCreateUser, models.TableProfiles, profile.ID.String(), createdUserPayload{
		Email:    profile.Email,
		FullName: profile.FullName,
		WorkID:   profile.WorkID,
		Role:     profile.Role,
		Unit:     profile.Unit,
		IsActive: profile.IsActive,
	}); err != nil {
		s.logger.Warn("user created without audit entry",
			zap.String("profile_id", profile.ID.String()),
			zap.Error(err))
	}

	s.logger.Info("user provisioned",
		zap.String("profile_id", profile.ID.String()),
		zap.String("role", string(profile.Role)),
		zap.String("actor_id", actor.String()))

	return profile, secret, nil
}

// commit creates the identity and its profile in one transaction
func (s *Service) commit(ctx context.Context, req Request, unit *models.Unit, secret identity.Secret) (*models.Profile, error) {
	return services.WithTransactionResult(ctx, s.txManager, func(ctx context.Context, tx repositories.Transaction) (*models.Profile, error) {
		ident, err := s.identities.CreateIdentity(ctx, req.Email, secret, models.IdentityMetadata{
			FullName: req.FullName,
			WorkID:   req.WorkID,
			Role:     req.Role,
		})
		if err != nil {
			return nil, fmt.Errorf("create identity: %w", err)
		}

		profile := models.NewProfile(ident.ID, ident.Email, req.WorkID, req.FullName, req.Role)
		profile.Unit = unit
		if err := s.profiles.Create(ctx, profile); err != nil {
			return nil, fmt.Errorf("create profile: %w", err)
		}
		return profile, nil
	})
}

func (s *Service) count(outcome string) {
	if s.outcomes != nil {
		s.outcomes.ProvisioningOutcome(outcome)
	}
}

// validate checks the request and returns the unit the role belongs to.
// Every violated field is reported at once.
func validate(req Request) (*models.Unit, error) {
	fields := map[string]string{}
	if err := utils.ValidateStruct(&req); err != nil {
		vf := utils.GetValidationFields(err)
		if vf == nil {
			return nil, services.ErrInvalidInput.Wrap(err)
		}
		for k, v := range vf {
			fields[k] = v
		}
	}

	unit, roleKnown := models.UnitFor(req.Role)
	if roleKnown && req.Unit != nil && req.Unit.Valid() && !models.UnitMatchesRole(req.Role, req.Unit) {
		if unit == nil {
			fields["unit"] = fmt.Sprintf("unit must be empty for role %s", req.Role)
		} else {
			fields["unit"] = fmt.Sprintf("unit must be %s for role %s", *unit, req.Role)
		}
	}

	if len(fields) > 0 {
		return nil, services.NewValidationError(fields)
	}
	return unit, nil
}

func conflictingField(existing *models.Profile, req Request) string {
	if strings.EqualFold(existing.Email, req.Email) {
		return "email"
	}
	return "work_id"
}
