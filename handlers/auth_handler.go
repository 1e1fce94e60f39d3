package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/upb/rcfms-admin/internal/requestctx"
	"github.com/upb/rcfms-admin/services/account"
	"github.com/upb/rcfms-admin/utils"
	"go.uber.org/zap"
)

// AccountService defines the operations a signed-in staff member performs on
// their own account
type AccountService interface {
	Login(ctx context.Context, req account.LoginRequest) (*account.LoginResult, error)
	ChangePassword(ctx context.Context, id uuid.UUID, req account.ChangePasswordRequest) error
}

// AuthHandler handles login and the caller's own account
type AuthHandler struct {
	accounts AccountService
	logger   *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(accounts AccountService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		logger:   logger,
	}
}

// HandleLogin handles POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestctx.RequestID(ctx)

	var req account.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("failed to parse login body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, err.Error())
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.accounts.Login(ctx, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, result)
}

// HandleMe handles GET /api/auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	principal := principalOrUnauthorized(w, r, h.logger)
	if principal == nil {
		return
	}
	_ = utils.WriteOK(w, principal.Profile)
}

// HandleChangePassword handles POST /api/auth/password
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := principalOrUnauthorized(w, r, h.logger)
	if principal == nil {
		return
	}

	var req account.ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("failed to parse password change body",
			zap.String("request_id", requestctx.RequestID(ctx)),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, err.Error())
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if err := h.accounts.ChangePassword(ctx, principal.Identity.ID, req); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteMessage(w, "Password changed successfully")
}
