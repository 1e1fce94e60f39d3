package audit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/upb/rcfms-admin/internal/ids"
	"github.com/upb/rcfms-admin/internal/requestctx"
	"github.com/upb/rcfms-admin/models"
	"github.com/upb/rcfms-admin/repositories"
	"go.uber.org/zap"
)

// Page size bounds for listing
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Counter is incremented on every failed append. prometheus.Counter satisfies it.
type Counter interface {
	Inc()
}

// Config holds configuration for the Recorder
type Config struct {
	WriteTimeout time.Duration // Bound on a single append, independent of the request
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 3 * time.Second,
	}
}

// Recorder appends audit entries after a mutation has committed. It is
// observational: callers log its error and keep their own outcome.
type Recorder struct {
	auditRepo repositories.AuditRepository
	profiles  repositories.ProfileRepository
	logger    *zap.Logger
	failures  Counter
	timeout   time.Duration
}

// NewRecorder creates a new Recorder. failures may be nil.
func NewRecorder(auditRepo repositories.AuditRepository, profiles repositories.ProfileRepository, logger *zap.Logger, failures Counter, config Config) *Recorder {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}
	return &Recorder{
		auditRepo: auditRepo,
		profiles:  profiles,
		logger:    logger,
		failures:  failures,
		timeout:   config.WriteTimeout,
	}
}

// Record appends one entry attributed to actorID. The write runs on a context
// detached from the request so a client disconnect cannot drop it.
func (r *Recorder) Record(ctx context.Context, actorID uuid.UUID, action models.AuditAction, table, recordID string, payload interface{}) error {
	entry := models.NewAuditLog(ids.New(), actorID, action, table, recordID).
		WithData(payload).
		WithRequest(requestctx.RequestID(ctx), requestctx.ClientIP(ctx))

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if err := r.auditRepo.Insert(writeCtx, entry); err != nil {
		if r.failures != nil {
			r.failures.Inc()
		}
		r.logger.Error("failed to write audit entry",
			zap.String("action", string(action)),
			zap.String("table", table),
			zap.String("record_id", recordID),
			zap.String("actor_id", actorID.String()),
			zap.String("request_id", entry.RequestID),
			zap.Error(err))
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	r.logger.Debug("audit entry written",
		zap.String("id", entry.ID),
		zap.String("action", string(action)),
		zap.String("record_id", recordID))
	return nil
}

// NormalizePage clamps a 0-based page and a page size to the allowed range.
// The page is capped so page*limit never overflows an int.
func NormalizePage(page, limit int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if page < 0 {
		page = 0
	}
	if maxPage := math.MaxInt / limit; page > maxPage {
		page = maxPage
	}
	return page, limit
}

// List returns one page of the trail, newest first, with actor names resolved
func (r *Recorder) List(ctx context.Context, page, limit int) (*models.AuditPage, error) {
	page, limit = NormalizePage(page, limit)

	entries, err := r.auditRepo.List(ctx, limit, page*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	total, err := r.auditRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count audit logs: %w", err)
	}

	r.resolveActorNames(ctx, entries)

	return &models.AuditPage{
		Entries: entries,
		Page:    page,
		Limit:   limit,
		Total:   total,
	}, nil
}

// resolveActorNames fills ActorName from profiles. A lookup failure only costs the names.
func (r *Recorder) resolveActorNames(ctx context.Context, entries []*models.AuditLog) {
	if len(entries) == 0 {
		return
	}
	seen := make(map[uuid.UUID]struct{}, len(entries))
	actorIDs := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.ActorID]; !ok {
			seen[e.ActorID] = struct{}{}
			actorIDs = append(actorIDs, e.ActorID)
		}
	}

	actors, err := r.profiles.GetByIDs(ctx, actorIDs)
	if err != nil {
		r.logger.Warn("failed to resolve audit actor names", zap.Error(err))
		return
	}
	for _, e := range entries {
		if p, ok := actors[e.ActorID]; ok {
			e.ActorName = p.FullName
		}
	}
}
