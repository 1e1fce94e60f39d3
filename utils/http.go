package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ErrorCode is the machine-readable "error" field of an error response
type ErrorCode string

const (
	CodeBadRequest       ErrorCode = "bad_request"
	CodeInvalidOperation ErrorCode = "invalid_operation"
	CodeUnauthorized     ErrorCode = "unauthorized"
	CodeForbidden        ErrorCode = "forbidden"
	CodeNotFound         ErrorCode = "not_found"
	CodeMethodNotAllowed ErrorCode = "method_not_allowed"
	CodeConflict         ErrorCode = "conflict"
	CodeRateLimited      ErrorCode = "rate_limit_exceeded"
	CodeInternal         ErrorCode = "internal_error"
)

var codeStatus = map[ErrorCode]int{
	CodeBadRequest:       http.StatusBadRequest,
	CodeInvalidOperation: http.StatusBadRequest,
	CodeUnauthorized:     http.StatusUnauthorized,
	CodeForbidden:        http.StatusForbidden,
	CodeNotFound:         http.StatusNotFound,
	CodeMethodNotAllowed: http.StatusMethodNotAllowed,
	CodeConflict:         http.StatusConflict,
	CodeRateLimited:      http.StatusTooManyRequests,
	CodeInternal:         http.StatusInternalServerError,
}

var defaultMessages = map[ErrorCode]string{
	CodeUnauthorized:     "Authentication required",
	CodeForbidden:        "Access forbidden",
	CodeNotFound:         "Resource not found",
	CodeMethodNotAllowed: "Method not allowed",
	CodeRateLimited:      "Rate limit exceeded",
	CodeInternal:         "Internal server error",
}

// Status returns the HTTP status for the code; unknown codes are 500
func (c ErrorCode) Status() int {
	if status, ok := codeStatus[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(data)
}

// WriteOK writes data in the success envelope with 200
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, SuccessResponse{Data: data})
}

// WriteCreated writes data in the success envelope with 201
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, SuccessResponse{Data: data})
}

// WriteMessage writes a 200 envelope carrying only a message
func WriteMessage(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, SuccessResponse{Message: message})
}

// WriteError writes an error envelope with the status that belongs to code.
// An empty message falls back to the code's default text.
func WriteError(w http.ResponseWriter, code ErrorCode, message string, details map[string]interface{}) error {
	if message == "" {
		message = defaultMessages[code]
	}
	return WriteJSON(w, code.Status(), ErrorResponse{
		Error:   string(code),
		Message: message,
		Details: details,
	})
}

// WriteBadRequest writes a 400 for a malformed request
func WriteBadRequest(w http.ResponseWriter, message string) error {
	return WriteError(w, CodeBadRequest, message, nil)
}

// WriteAttachment streams body as a downloadable file with 200
func WriteAttachment(w http.ResponseWriter, contentType, filename string, body io.WriterTo) error {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, err := body.WriteTo(w)
	return err
}
