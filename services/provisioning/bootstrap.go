package provisioning

import (
	"context"
	"fmt"

	"github.com/upb/rcfms-admin/identity"
	"github.com/upb/rcfms-admin/models"
	"go.uber.org/zap"
)

// BootstrapAdmin describes the first super administrator
type BootstrapAdmin struct {
	Email    string
	FullName string
	WorkID   string
}

// EnsureSuperAdmin provisions the first super administrator when no profile
// exists. It returns a nil profile when seeding was skipped. The returned
// secret is the account's temporary password; it has also been handed to the
// notifier like any other new account.
func (s *Service) EnsureSuperAdmin(ctx context.Context, admin BootstrapAdmin) (*models.Profile, identity.Secret, error) {
	count, err := s.profiles.Count(ctx)
	if err != nil {
		return nil, identity.Secret{}, fmt.Errorf("checking profile count: %w", err)
	}
	if count > 0 {
		s.logger.Info("profiles exist, skipping super admin bootstrap")
		return nil, identity.Secret{}, nil
	}

	profile, secret, err := s.provision(ctx, nil, Request{
		Email:    admin.Email,
		FullName: admin.FullName,
		WorkID:   admin.WorkID,
		Role:     models.RoleSuperAdmin,
	})
	if err != nil {
		return nil, identity.Secret{}, fmt.Errorf("bootstrapping super admin: %w", err)
	}

	s.logger.Warn("bootstrap super admin created",
		zap.String("email", profile.Email),
		zap.String("action_required", "change the temporary password after first login"))
	return profile, secret, nil
}
