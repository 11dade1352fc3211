package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pathakanu/eventMemo/internal/model"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func TestNewFallsBackToSQLite(t *testing.T) {
	logger, hook := test.NewNullLogger()

	db, err := New("", filepath.Join(t.TempDir(), "reminders.db"), logger)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.Equal(t, "sqlite", db.Dialector.Name())
	require.True(t, db.Migrator().HasTable(&model.Reminder{}))
	require.True(t, db.Migrator().HasIndex(&model.Reminder{}, "idx_reminder_subject_due"))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, logrus.InfoLevel, entry.Level)
	require.Equal(t, "database: using SQLite", entry.Message)
}

func TestGormLoggerSkipsRecordNotFound(t *testing.T) {
	logger, hook := test.NewNullLogger()

	db, err := New("", filepath.Join(t.TempDir(), "reminders.db"), logger)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	hook.Reset()

	var user model.User
	err = db.First(&user, "id = ?", "ghost").Error
	require.Error(t, err)
	require.Empty(t, hook.AllEntries())

	newGormLogger(logger).Warn(context.Background(), "slow query %s", "select 1")
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, logrus.WarnLevel, entry.Level)
	require.Equal(t, "gorm", entry.Data["component"])
	require.Contains(t, entry.Message, "slow query select 1")
}
