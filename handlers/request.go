package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/upb/rcfms-admin/internal/requestctx"
	"github.com/upb/rcfms-admin/services"
	"github.com/upb/rcfms-admin/services/identity"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON object from the body into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// principalOrUnauthorized returns the caller or writes 401 when the route was
// mounted without authentication.
func principalOrUnauthorized(w http.ResponseWriter, r *http.Request, logger *zap.Logger) *identity.Principal {
	principal := requestctx.Principal(r.Context())
	if principal == nil {
		logger.Error("principal not found in context",
			zap.String("request_id", requestctx.RequestID(r.Context())))
		HandleServiceError(w, services.ErrUnauthenticated, logger)
	}
	return principal
}
