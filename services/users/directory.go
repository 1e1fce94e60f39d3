package users

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/upb/rcfms-admin/internal/authz"
	"github.com/upb/rcfms-admin/models"
	"github.com/upb/rcfms-admin/repositories"
	"github.com/upb/rcfms-admin/services"
	"go.uber.org/zap"
)

// FacilityWide labels profiles without a unit in summaries
const FacilityWide = "facility"

// UnitSummary is the head-count of one unit
type UnitSummary struct {
	Unit     string `json:"unit"`
	Heads    int    `json:"heads"`
	Staff    int    `json:"staff"`
	Inactive int    `json:"inactive"`
}

// StaffDirectory returns active staff visible to viewer. Unit heads see their
// own unit; facility-wide roles see everyone.
func (s *Service) StaffDirectory(ctx context.Context, viewer *models.Profile) ([]*models.Profile, error) {
	if !authz.Authorize(viewer.Role, authz.UnitHeadOrAbove) {
		return nil, services.ErrForbidden
	}

	filter := repositories.ProfileFilter{ActiveOnly: true}
	if viewer.IsUnitHead() {
		filter.Unit = viewer.Unit
	}

	profiles, err := s.profiles.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list staff directory", zap.Error(err))
		return nil, services.WrapInternal("failed to fetch staff", err)
	}
	return profiles, nil
}

// UnitSummaries counts heads, staff and inactive profiles per unit, in unit
// order, followed by the facility-wide roles.
func (s *Service) UnitSummaries(ctx context.Context) ([]UnitSummary, error) {
	profiles, err := s.profiles.List(ctx, repositories.ProfileFilter{})
	if err != nil {
		s.logger.Error("failed to list profiles for summary", zap.Error(err))
		return nil, services.WrapInternal("failed to summarize staff", err)
	}

	byUnit := make(map[string]*UnitSummary, len(models.AllUnits)+1)
	summaries := make([]UnitSummary, 0, len(models.AllUnits)+1)
	for _, u := range models.AllUnits {
		summaries = append(summaries, UnitSummary{Unit: string(u)})
	}
	summaries = append(summaries, UnitSummary{Unit: FacilityWide})
	for i := range summaries {
		byUnit[summaries[i].Unit] = &summaries[i]
	}

	for _, p := range profiles {
		key := p.UnitName()
		if key == "" {
			key = FacilityWide
		}
		sum, ok := byUnit[key]
		if !ok {
			continue
		}
		switch {
		case !p.IsActive:
			sum.Inactive++
		case p.IsUnitHead() || p.Role.IsFacilityWide():
			sum.Heads++
		default:
			sum.Staff++
		}
	}
	return summaries, nil
}

var exportHeader = []string{"id", "email", "work_id", "full_name", "role", "unit", "is_active", "created_at", "updated_at"}

// ExportCSV writes every profile to w as CSV and records EXPORT_USERS
func (s *Service) ExportCSV(ctx context.Context, actorID uuid.UUID, w io.Writer) error {
	profiles, err := s.List(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range profiles {
		if err := cw.Write([]string{
			p.ID.String(),
			p.Email,
			p.WorkID,
			p.FullName,
			string(p.Role),
			p.UnitName(),
			strconv.FormatBool(p.IsActive),
			p.CreatedAt.Format(time.RFC3339),
			p.UpdatedAt.Format(time.RFC3339),
		}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	if err := s.audit.Record(ctx, actorID, models.AuditActionExportUsers, models.TableProfiles, "", map[string]interface{}{
		"count": len(profiles),
	}); err != nil {
		s.logger.Warn("users exported without audit entry", zap.Error(err))
	}
	return nil
}
