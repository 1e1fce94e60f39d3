package handlers

import (
	"context"
	"net/http"

	"github.com/upb/rcfms-admin/internal/requestctx"
	"github.com/upb/rcfms-admin/models"
	"github.com/upb/rcfms-admin/services/users"
	"github.com/upb/rcfms-admin/utils"
	"go.uber.org/zap"
)

// StaffDirectory defines the read-only views for unit heads and admins
type StaffDirectory interface {
	StaffDirectory(ctx context.Context, viewer *models.Profile) ([]*models.Profile, error)
	UnitSummaries(ctx context.Context) ([]users.UnitSummary, error)
}

// StaffHandler serves the staff directory routes
type StaffHandler struct {
	directory StaffDirectory
	logger    *zap.Logger
}

// NewStaffHandler creates a new StaffHandler
func NewStaffHandler(directory StaffDirectory, logger *zap.Logger) *StaffHandler {
	return &StaffHandler{
		directory: directory,
		logger:    logger,
	}
}

// HandleListStaff handles GET /api/staff
func (h *StaffHandler) HandleListStaff(w http.ResponseWriter, r *http.Request) {
	principal := principalOrUnauthorized(w, r, h.logger)
	if principal == nil {
		return
	}

	profiles, err := h.directory.StaffDirectory(r.Context(), principal.Profile)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Debug("listed staff directory",
		zap.String("request_id", requestctx.RequestID(r.Context())),
		zap.String("viewer_role", string(principal.Role())),
		zap.Int("count", len(profiles)))

	_ = utils.WriteOK(w, profiles)
}

// HandleUnitSummary handles GET /api/staff/summary
func (h *StaffHandler) HandleUnitSummary(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.directory.UnitSummaries(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, summaries)
}
