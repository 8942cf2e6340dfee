package persistence

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func mockDialector(t *testing.T) (gorm.Dialector, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}), mock, mockDB
}

func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock) {
	t.Helper()
	dialector, mock, _ := mockDialector(t)
	gormDB, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return &Database{DB: gormDB}, mock
}

func TestOpenDatabase_AppliesConfig(t *testing.T) {
	dialector, _, _ := mockDialector(t)
	cfg := &config.DatabaseConfig{
		MaxOpenConns:    7,
		MaxIdleConns:    3,
		ConnMaxLifetime: 60,
		ConnMaxIdleTime: 30,
	}
	gl := gormlogger.Default.LogMode(gormlogger.Warn)

	db, err := openDatabase(dialector, cfg, gl)
	require.NoError(t, err)

	assert.Equal(t, gl, db.DB.Config.Logger)
	assert.True(t, db.DB.Config.SkipDefaultTransaction)
	assert.True(t, db.DB.Config.PrepareStmt)
	assert.Equal(t, time.UTC, db.DB.Config.NowFunc().Location())

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 7, stats.MaxOpenConnections)
}

func TestNewDatabaseWithLogger_Unreachable(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host:         "127.0.0.1",
		Port:         1,
		User:         "groceryshare",
		DBName:       "groceryshare",
		SSLMode:      "disable",
		MaxIdleConns: 1,
	}

	db, err := NewDatabaseWithLogger(cfg, gormlogger.Discard)
	assert.Nil(t, db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to database")
}

func TestDatabase_Ping(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockDB.Close()

	// gorm pings once while opening
	mock.ExpectPing()
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}),
		&gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	db := &Database{DB: gormDB}
	assert.ErrorIs(t, db.Ping(), sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Close(t *testing.T) {
	db, mock := newMockDatabase(t)
	mock.ExpectClose()

	require.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Transaction(t *testing.T) {
	recipientID := uuid.New()

	t.Run("commits", func(t *testing.T) {
		db, mock := newMockDatabase(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE recipients SET last_active_at`).
			WithArgs(sqlmock.AnyArg(), recipientID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := db.Transaction(func(tx *gorm.DB) error {
			return tx.Exec(`UPDATE recipients SET last_active_at = ? WHERE id = ?`, time.Now().UTC(), recipientID).Error
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock := newMockDatabase(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		err := db.Transaction(func(*gorm.DB) error { return assert.AnError })
		assert.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
