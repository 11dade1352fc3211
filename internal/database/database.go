package database

import (
	"strings"
	"time"

	"github.com/pathakanu/eventMemo/internal/model"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New creates a GORM database connection.
// When databaseURL is provided PostgreSQL is used, otherwise SQLite is opened at sqlitePath.
func New(databaseURL, sqlitePath string, log logrus.FieldLogger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if databaseURL != "" {
		dialector = postgres.Open(databaseURL)
	} else {
		dialector = sqlite.Open(sqlitePath)
	}

	db, err := Open(dialector, log)
	if err != nil {
		return nil, err
	}

	logBackend(db, log)
	return db, nil
}

// Open connects through the given dialector and migrates the scheduler tables.
// GORM's own messages go through log.
func Open(dialector gorm.Dialector, log logrus.FieldLogger) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(log),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&model.User{}, &model.Event{}, &model.Reminder{}); err != nil {
		return nil, err
	}
	return db, nil
}

// Missing users and events are an expected outcome for lookups, so not-found is never logged here.
func newGormLogger(log logrus.FieldLogger) logger.Interface {
	return logger.New(gormWriter{log.WithField("component", "gorm")}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// gormWriter forwards GORM's warnings and errors to logrus.
type gormWriter struct {
	log logrus.FieldLogger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Warnf(format, args...)
}

func logBackend(db *gorm.DB, log logrus.FieldLogger) {
	dialector := db.Dialector.Name()
	switch strings.ToLower(dialector) {
	case "postgres":
		log.Info("database: connected to PostgreSQL")
	case "sqlite":
		log.Info("database: using SQLite")
	default:
		log.WithField("dialector", dialector).Info("database: connected")
	}
}
