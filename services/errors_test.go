package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeNotFound, "resource not found", baseErr)

	assert.Equal(t, ErrorTypeNotFound, domainErr.Type)
	assert.Equal(t, "resource not found", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.NotNil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name: "error with wrapped error",
			err: &DomainError{
				Type:    ErrorTypeNotFound,
				Message: "user not found",
				Err:     errors.New("db error"),
			},
			wantMsg: "not_found: user not found (db error)",
		},
		{
			name: "error without wrapped error",
			err: &DomainError{
				Type:    ErrorTypeValidation,
				Message: "invalid input",
				Err:     nil,
			},
			wantMsg: "validation: invalid input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeInternal, "internal error", baseErr)

	unwrapped := errors.Unwrap(domainErr)
	assert.Equal(t, baseErr, unwrapped)
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "same type and message",
			err:    NewDomainError(ErrorTypeNotFound, "user not found", nil),
			target: ErrProfileNotFound,
			want:   true,
		},
		{
			name:   "same type, different message",
			err:    ErrUnauthenticated,
			target: ErrInvalidCredentials,
			want:   false,
		},
		{
			name:   "different error type",
			err:    NewDomainError(ErrorTypeValidation, "validation", nil),
			target: ErrProfileNotFound,
			want:   false,
		},
		{
			name:   "wrapped copy of sentinel",
			err:    fmt.Errorf("resolve: %w", ErrProvisioningFailed.Wrap(errors.New("tx aborted"))),
			target: ErrProvisioningFailed,
			want:   true,
		},
		{
			name:   "not a domain error",
			err:    NewDomainError(ErrorTypeNotFound, "not found", nil),
			target: errors.New("regular error"),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestDomainError_WithDetailDoesNotMutateSentinel(t *testing.T) {
	detailed := ErrInvalidInput.WithDetail("field", "email").WithDetail("value", "invalid-email")

	assert.Equal(t, "email", detailed.Details["field"])
	assert.Equal(t, "invalid-email", detailed.Details["value"])
	assert.Empty(t, ErrInvalidInput.Details)
}

func TestDomainError_WrapDoesNotMutateSentinel(t *testing.T) {
	cause := errors.New("insert failed")
	wrapped := ErrProvisioningFailed.Wrap(cause)

	assert.Equal(t, cause, errors.Unwrap(wrapped))
	assert.Nil(t, ErrProvisioningFailed.Err)
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError(map[string]string{
		"email":   "must be a valid email",
		"work_id": "is required",
	})

	assert.True(t, IsValidationError(err))
	assert.Equal(t, "validation failed", err.Message)
	assert.Len(t, err.Details, 2)
	assert.Equal(t, "is required", err.Details["work_id"])
}

func TestErrorTypeHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"not found", ErrProfileNotFound, IsNotFoundError, true},
		{"wrapped not found", fmt.Errorf("wrapped: %w", ErrProfileNotFound), IsNotFoundError, true},
		{"nil is not not found", nil, IsNotFoundError, false},
		{"validation", ErrInvalidInput, IsValidationError, true},
		{"not found is not validation", ErrProfileNotFound, IsValidationError, false},
		{"unauthenticated", ErrUnauthenticated, IsUnauthorizedError, true},
		{"invalid credentials", ErrInvalidCredentials, IsUnauthorizedError, true},
		{"forbidden is not unauthorized", ErrForbidden, IsUnauthorizedError, false},
		{"forbidden", ErrForbidden, IsForbiddenError, true},
		{"unauthorized is not forbidden", ErrUnauthenticated, IsForbiddenError, false},
		{"rate limit", ErrRateLimitExceeded, IsRateLimitError, true},
		{"conflict", ErrDuplicateProfile, IsConflictError, true},
		{"self deactivation", ErrSelfDeactivation, IsInvalidOperationError, true},
		{"self deactivation is not validation", ErrSelfDeactivation, IsValidationError, false},
		{"internal", ErrInternal, IsInternalError, true},
		{"provisioning failed is internal", ErrProvisioningFailed, IsInternalError, true},
		{"regular error", errors.New("regular"), IsInternalError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}

func TestGetErrorType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"not found", ErrProfileNotFound, ErrorTypeNotFound},
		{"validation", ErrInvalidInput, ErrorTypeValidation},
		{"rate limit", ErrRateLimitExceeded, ErrorTypeRateLimit},
		{"invalid operation", ErrSelfDeactivation, ErrorTypeInvalidOperation},
		{"regular error", errors.New("regular"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorType(tt.err))
		})
	}
}

func TestGetErrorDetails(t *testing.T) {
	err := NewDomainError(ErrorTypeValidation, "validation error", nil).
		WithDetail("field", "email").
		WithDetail("reason", "invalid format")

	details := GetErrorDetails(err)
	require.NotNil(t, details)
	assert.Equal(t, "email", details["field"])
	assert.Equal(t, "invalid format", details["reason"])

	assert.Nil(t, GetErrorDetails(ErrForbidden))
	assert.Nil(t, GetErrorDetails(errors.New("regular error")))
}

func TestGetErrorMessage(t *testing.T) {
	err := ErrProvisioningFailed.Wrap(errors.New("pq: connection refused"))

	assert.Equal(t, "failed to create user", GetErrorMessage(err))
	assert.NotContains(t, GetErrorMessage(err), "pq")
	assert.Equal(t, "", GetErrorMessage(errors.New("plain")))
}

func TestWrapInternal(t *testing.T) {
	baseErr := errors.New("database connection failed")
	wrapped := WrapInternal("failed to connect", baseErr)

	assert.True(t, IsInternalError(wrapped))
	assert.Equal(t, baseErr, errors.Unwrap(wrapped))
}
