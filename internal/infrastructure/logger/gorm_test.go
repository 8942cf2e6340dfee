package logger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type loggedRow struct {
	ID   uint
	Body string
}

func openLoggedDB(t *testing.T, gl *GormLogger) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gl})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&loggedRow{}))
	return db
}

func TestGormLogger_RedactsParameters(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	db := openLoggedDB(t, NewGormLogger(zap.New(core), gormlogger.Info))

	require.NoError(t, db.Create(&loggedRow{Body: "sealed:address:42 Elm"}).Error)

	for _, e := range recorded.All() {
		assert.NotContains(t, e.ContextMap()["sql"], "42 Elm")
	}
	assert.NotZero(t, recorded.FilterMessage("SQL Query").Len())
}

func TestGormLogger_WithParameters(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	db := openLoggedDB(t, NewGormLogger(zap.New(core), gormlogger.Info, WithParameters(true)))

	require.NoError(t, db.Create(&loggedRow{Body: "visible-value"}).Error)

	found := false
	for _, e := range recorded.FilterMessage("SQL Query").All() {
		if s, _ := e.ContextMap()["sql"].(string); strings.Contains(s, "visible-value") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestGormLogger_Trace(t *testing.T) {
	ctx := context.Background()
	sql := func() (string, int64) { return "SELECT 1", 1 }

	t.Run("silent logs nothing", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		NewGormLogger(zap.New(core), gormlogger.Silent).Trace(ctx, time.Now(), sql, errors.New("x"))
		assert.Zero(t, recorded.Len())
	})

	t.Run("record not found ignored", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		NewGormLogger(zap.New(core), gormlogger.Error).Trace(ctx, time.Now(), sql, gormlogger.ErrRecordNotFound)
		assert.Zero(t, recorded.Len())
	})

	t.Run("errors logged", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		NewGormLogger(zap.New(core), gormlogger.Error).Trace(ctx, time.Now(), sql, errors.New("boom"))
		assert.Equal(t, 1, recorded.FilterMessage("SQL Error").Len())
	})

	t.Run("slow query warned", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Warn, WithSlowThreshold(time.Millisecond))
		gl.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
		require.Equal(t, 1, recorded.Len())
		assert.Equal(t, zapcore.WarnLevel, recorded.All()[0].Level)
	})
}

func TestGormLogger_LogModeCopies(t *testing.T) {
	gl := NewGormLogger(zap.NewNop(), gormlogger.Info)
	other, ok := gl.LogMode(gormlogger.Warn).(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Info, gl.logLevel)
	assert.Equal(t, gormlogger.Warn, other.logLevel)
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel(""))
}
