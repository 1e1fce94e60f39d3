package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upb/rcfms-admin/internal/requestctx"
	"github.com/upb/rcfms-admin/models"
	"github.com/upb/rcfms-admin/services/provisioning"
	"github.com/upb/rcfms-admin/utils"
	"go.uber.org/zap"
)

// UpdateUserRequest represents a partial profile update
type UpdateUserRequest struct {
	Role     *models.Role `json:"role,omitempty"`
	Unit     *models.Unit `json:"unit,omitempty"`
	IsActive *bool        `json:"is_active,omitempty"`
}

// Provisioner creates staff accounts
type Provisioner interface {
	CreateUser(ctx context.Context, actorID uuid.UUID, req provisioning.Request) (*models.Profile, error)
}

// UserAdministration defines the profile operations behind the admin routes
type UserAdministration interface {
	List(ctx context.Context) ([]*models.Profile, error)
	Update(ctx context.Context, actorID, id uuid.UUID, update models.ProfileUpdate) (*models.Profile, error)
	Deactivate(ctx context.Context, actorID, id uuid.UUID) error
	ListAuditLog(ctx context.Context, page, limit int) (*models.AuditPage, error)
	ExportCSV(ctx context.Context, actorID uuid.UUID, w io.Writer) error
}

// AdminHandler handles the super-admin user management routes
type AdminHandler struct {
	provisioner Provisioner
	users       UserAdministration
	logger      *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(provisioner Provisioner, users UserAdministration, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		provisioner: provisioner,
		users:       users,
		logger:      logger,
	}
}

// HandleCreateUser handles POST /api/admin/users
func (h *AdminHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestctx.RequestID(ctx)
	principal := principalOrUnauthorized(w, r, h.logger)
	if principal == nil {
		return
	}

	var req provisioning.Request
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, err.Error())
		return
	}

	profile, err := h.provisioner.CreateUser(ctx, principal.ID(), req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, profile)
}

// HandleListUsers handles GET /api/admin/users
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.users.List(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Debug("listed users",
		zap.String("request_id", requestctx.RequestID(r.Context())),
		zap.Int("count", len(profiles)))

	_ = utils.WriteOK(w, profiles)
}

// HandleUpdateUser handles PATCH /api/admin/users/{id}
func (h *AdminHandler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestctx.RequestID(ctx)
	principal := principalOrUnauthorized(w, r, h.logger)
	if principal == nil {
		return
	}

	id, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid user ID format")
		return
	}

	var req UpdateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, err.Error())
		return
	}

	profile, err := h.users.Update(ctx, principal.ID(), id, models.ProfileUpdate{
		Role:     req.Role,
		Unit:     req.Unit,
		IsActive: req.IsActive,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, profile)
}

// HandleDeactivateUser handles DELETE /api/admin/users/{id}
func (h *AdminHandler) HandleDeactivateUser(w http.ResponseWriter, r *http.Request) {
	principal := principalOrUnauthorized(w, r, h.logger)
	if principal == nil {
		return
	}

	id, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid user ID format")
		return
	}

	if err := h.users.Deactivate(r.Context(), principal.ID(), id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteMessage(w, "User deactivated successfully")
}

// HandleListAuditLogs handles GET /api/admin/audit-logs?page=&limit=
func (h *AdminHandler) HandleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 0)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error())
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.users.ListAuditLog(r.Context(), page, limit)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, result)
}

// HandleExportUsers handles GET /api/admin/users/export
func (h *AdminHandler) HandleExportUsers(w http.ResponseWriter, r *http.Request) {
	principal := principalOrUnauthorized(w, r, h.logger)
	if principal == nil {
		return
	}

	// Buffer so a failure can still be reported as JSON.
	var buf bytes.Buffer
	if err := h.users.ExportCSV(r.Context(), principal.ID(), &buf); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	filename := fmt.Sprintf("users-%s.csv", time.Now().UTC().Format("20060102"))
	if err := utils.WriteAttachment(w, "text/csv; charset=utf-8", filename, &buf); err != nil {
		h.logger.Error("failed to write export", zap.Error(err))
	}
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return v, nil
}
