package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/pathakanu/eventMemo/internal/model"
	"github.com/pathakanu/eventMemo/internal/reminder"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a user or event does not exist. It matches reminder.ErrNotFound.
var ErrNotFound = reminder.ErrNotFound

// Directory resolves the users and events reminders point at.
type Directory interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetEventByID(ctx context.Context, id string) (*model.Event, error)
}

// GormDirectory reads users and events owned by the rest of the application.
type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func (d *GormDirectory) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := d.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, lookupError("user", id, err)
	}
	return &u, nil
}

func (d *GormDirectory) GetEventByID(ctx context.Context, id string) (*model.Event, error) {
	var e model.Event
	if err := d.db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, lookupError("event", id, err)
	}
	return &e, nil
}

func lookupError(kind, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return fmt.Errorf("%w: load %s %s: %w", reminder.ErrStore, kind, id, err)
}
