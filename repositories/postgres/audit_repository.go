package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/upb/rcfms-admin/models"
	"github.com/upb/rcfms-admin/repositories"
	"go.uber.org/zap"
)

// AuditRepository implements the repositories.AuditRepository interface
type AuditRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) repositories.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new audit log entry
func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (
			id, user_id, action, table_name, record_id, new_data, request_id, ip_address, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	var newData interface{}
	if len(log.NewData) > 0 {
		newData = []byte(log.NewData)
	}

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		log.ID,
		log.ActorID,
		log.Action,
		log.TableName,
		log.RecordID,
		newData,
		nullString(log.RequestID),
		nullString(log.IPAddress),
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	r.logger.Debug("audit log inserted", zap.String("id", log.ID), zap.String("action", string(log.Action)))
	return nil
}

// List retrieves audit logs newest first with pagination
func (r *AuditRepository) List(ctx context.Context, limit, offset int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, user_id, action, table_name, record_id, new_data, request_id, ip_address, created_at
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	logs := []*models.AuditLog{}
	for rows.Next() {
		var (
			log       models.AuditLog
			newData   []byte
			requestID sql.NullString
			ipAddress sql.NullString
		)
		if err := rows.Scan(
			&log.ID,
			&log.ActorID,
			&log.Action,
			&log.TableName,
			&log.RecordID,
			&newData,
			&requestID,
			&ipAddress,
			&log.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		if len(newData) > 0 {
			log.NewData = newData
		}
		log.RequestID = requestID.String
		log.IPAddress = ipAddress.String
		logs = append(logs, &log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log rows: %w", err)
	}

	return logs, nil
}

// Count returns the number of audit entries
func (r *AuditRepository) Count(ctx context.Context) (int, error) {
	var n int
	executor := GetExecutor(ctx, r.db)
	if err := executor.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count audit logs: %w", err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
