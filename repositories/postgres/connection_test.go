package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDB_HealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		assert.NoError(t, db.HealthCheck(context.Background()))
	})

	t.Run("query failure", func(t *testing.T) {
		sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer sqlDB.Close()
		db := WrapDB(sqlDB, zap.NewNop())

		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("down"))

		assert.ErrorContains(t, db.HealthCheck(context.Background()), "query check failed")
	})
}

func TestRepositoryFactory_InitSchema(t *testing.T) {
	t.Run("single database gets both schemas", func(t *testing.T) {
		db, mock := newMockDB(t)
		f := NewRepositoryFactoryFromDB(db, nil, zap.NewNop())

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS identities").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_logs").WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, f.InitSchema(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("audit schema goes to the audit database", func(t *testing.T) {
		db, mock := newMockDB(t)
		auditDB, auditMock := newMockDB(t)
		f := NewRepositoryFactoryFromDB(db, auditDB, zap.NewNop())

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS identities").WillReturnResult(sqlmock.NewResult(0, 0))
		auditMock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_logs").WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, f.InitSchema(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, auditMock.ExpectationsWereMet())

		repos := f.NewRepositories()
		assert.NotNil(t, repos.Profiles)
		assert.NotNil(t, repos.Identities)
		assert.NotNil(t, repos.AuditLogs)
	})
}
