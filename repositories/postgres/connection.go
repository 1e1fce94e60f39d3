package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/upb/rcfms-admin/config"
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	dsn := cfg.DSN()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// WrapDB wraps an already opened pool. Used with sqlmock in tests.
func WrapDB(db *sql.DB, logger *zap.Logger) *DB {
	return &DB{DB: db, logger: logger}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

const identitiesAndProfilesSchema = `
	-- Identities: authentication records
	CREATE TABLE IF NOT EXISTS identities (
		id UUID PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT identities_email_key UNIQUE (email)
	);

	-- Profiles: one per identity, never hard-deleted
	CREATE TABLE IF NOT EXISTS profiles (
		id UUID PRIMARY KEY REFERENCES identities(id),
		email VARCHAR(255) NOT NULL,
		work_id VARCHAR(64) NOT NULL,
		full_name VARCHAR(255) NOT NULL,
		role VARCHAR(32) NOT NULL,
		unit VARCHAR(32),
		is_active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT profiles_email_key UNIQUE (email),
		CONSTRAINT profiles_work_id_key UNIQUE (work_id),
		CONSTRAINT profiles_role_check CHECK (role IN (
			'super_admin', 'center_head',
			'social_head', 'medical_head', 'psych_head', 'rehab_head', 'homelife_head',
			'social_staff', 'medical_staff', 'psych_staff', 'rehab_staff', 'homelife_staff'
		)),
		CONSTRAINT profiles_unit_check CHECK (
			(role IN ('super_admin', 'center_head') AND unit IS NULL)
			OR unit = split_part(role, '_', 1)
		)
	);

	CREATE INDEX IF NOT EXISTS idx_profiles_full_name ON profiles(full_name);
	CREATE INDEX IF NOT EXISTS idx_profiles_unit ON profiles(unit);
`

const auditLogsSchema = `
	-- Audit logs: append-only
	CREATE TABLE IF NOT EXISTS audit_logs (
		id VARCHAR(26) PRIMARY KEY,
		user_id UUID NOT NULL,
		action VARCHAR(64) NOT NULL,
		table_name VARCHAR(64) NOT NULL,
		record_id VARCHAR(64) NOT NULL,
		new_data JSONB,
		request_id VARCHAR(255),
		ip_address VARCHAR(45),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs(created_at DESC, id DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_user_id ON audit_logs(user_id);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_action ON audit_logs(action);

	CREATE OR REPLACE FUNCTION audit_logs_append_only() RETURNS trigger AS $$
	BEGIN
		RAISE EXCEPTION 'audit_logs is append-only';
	END;
	$$ LANGUAGE plpgsql;

	DROP TRIGGER IF EXISTS audit_logs_no_mutation ON audit_logs;
	CREATE TRIGGER audit_logs_no_mutation
		BEFORE UPDATE OR DELETE ON audit_logs
		FOR EACH ROW EXECUTE FUNCTION audit_logs_append_only();
`

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, identitiesAndProfilesSchema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}

// InitAuditSchema initializes the audit_logs table and its append-only trigger.
// Runs against the main DB, or the separate audit DB when DATABASE_URL_AUDIT is set.
func (db *DB) InitAuditSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, auditLogsSchema); err != nil {
		return fmt.Errorf("failed to initialize audit schema: %w", err)
	}
	db.logger.Info("audit schema initialized successfully")
	return nil
}
