package reminder

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pathakanu/eventMemo/internal/model"
	"gorm.io/gorm"
)

// DefaultMaxPerSubject is how many reminders one user may hold for one event.
const DefaultMaxPerSubject = 3

// UpdateFields lists the user-editable fields. Nil means unchanged.
type UpdateFields struct {
	DueAt *time.Time
	Note  *string
}

// Store is the durable reminder collection.
type Store interface {
	Create(ctx context.Context, r *model.Reminder) error
	Get(ctx context.Context, id string) (*model.Reminder, error)
	FindDue(ctx context.Context, w Window, now time.Time, limit int) ([]model.Reminder, error)
	ListBySubject(ctx context.Context, userID, eventID string) ([]model.Reminder, error)
	CountBySubject(ctx context.Context, userID, eventID string) (int64, error)
	Update(ctx context.Context, id string, fields UpdateFields) (*model.Reminder, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	DeleteByID(ctx context.Context, id string) error
}

// GormStore keeps reminders in a relational database through GORM.
type GormStore struct {
	db            *gorm.DB
	maxPerSubject int
}

// NewGormStore returns a store enforcing maxPerSubject reminders per (user, event).
func NewGormStore(db *gorm.DB, maxPerSubject int) *GormStore {
	if maxPerSubject <= 0 {
		maxPerSubject = DefaultMaxPerSubject
	}
	return &GormStore{db: db, maxPerSubject: maxPerSubject}
}

// Create inserts r after checking the per-subject cap and the (user, event, dueAt) uniqueness.
// The cap is evaluated first, counting sent reminders too.
func (s *GormStore) Create(ctx context.Context, r *model.Reminder) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.DueAt = Normalize(r.DueAt)
	r.Sent = false
	r.SentAt = nil

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		count, err := countBySubject(tx, r.UserID, r.EventID)
		if err != nil {
			return err
		}
		if count >= int64(s.maxPerSubject) {
			return ErrLimitExceeded
		}

		taken, err := dueTaken(tx, r.UserID, r.EventID, r.DueAt, "")
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateReminder
		}

		if err := tx.Create(r).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateReminder
			}
			return storeError("create reminder", err)
		}
		return nil
	})
}

func (s *GormStore) Get(ctx context.Context, id string) (*model.Reminder, error) {
	var r model.Reminder
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeError("get reminder", err)
	}
	return &r, nil
}

// FindDue returns unsent reminders inside w at now, oldest due first. limit <= 0 means no limit.
func (s *GormStore) FindDue(ctx context.Context, w Window, now time.Time, limit int) ([]model.Reminder, error) {
	from, to := w.Bounds(now)

	query := s.db.WithContext(ctx).
		Where("sent = ? AND due_at >= ? AND due_at <= ?", false, from, to).
		Order("due_at ASC, created_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var reminders []model.Reminder
	if err := query.Find(&reminders).Error; err != nil {
		return nil, storeError("find due reminders", err)
	}
	return reminders, nil
}

func (s *GormStore) ListBySubject(ctx context.Context, userID, eventID string) ([]model.Reminder, error) {
	var reminders []model.Reminder
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND event_id = ?", userID, eventID).
		Order("due_at ASC, created_at ASC").
		Find(&reminders).Error; err != nil {
		return nil, storeError("list reminders", err)
	}
	return reminders, nil
}

func (s *GormStore) CountBySubject(ctx context.Context, userID, eventID string) (int64, error) {
	return countBySubject(s.db.WithContext(ctx), userID, eventID)
}

// Update applies fields to the reminder. A new due time is checked for uniqueness
// against the subject's other reminders.
func (s *GormStore) Update(ctx context.Context, id string, fields UpdateFields) (*model.Reminder, error) {
	var updated model.Reminder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&updated, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return storeError("load reminder", err)
		}

		changes := map[string]any{}
		if fields.DueAt != nil {
			dueAt := Normalize(*fields.DueAt)
			if !dueAt.Equal(updated.DueAt) {
				taken, err := dueTaken(tx, updated.UserID, updated.EventID, dueAt, updated.ID)
				if err != nil {
					return err
				}
				if taken {
					return ErrDuplicateReminder
				}
			}
			changes["due_at"] = dueAt
		}
		if fields.Note != nil {
			changes["note"] = *fields.Note
		}
		if len(changes) == 0 {
			return nil
		}

		if err := tx.Model(&updated).Updates(changes).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateReminder
			}
			return storeError("update reminder", err)
		}
		if err := tx.First(&updated, "id = ?", id).Error; err != nil {
			return storeError("reload reminder", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// MarkSent flips sent to true exactly once. It is a single conditional UPDATE.
func (s *GormStore) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	sentAt = sentAt.UTC()
	res := s.db.WithContext(ctx).
		Model(&model.Reminder{}).
		Where("id = ? AND sent = ?", id, false).
		Updates(map[string]any{"sent": true, "sent_at": sentAt})
	if res.Error != nil {
		return storeError("mark reminder sent", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return ErrAlreadySent
}

func (s *GormStore) DeleteByID(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&model.Reminder{}, "id = ?", id)
	if res.Error != nil {
		return storeError("delete reminder", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func countBySubject(db *gorm.DB, userID, eventID string) (int64, error) {
	var count int64
	if err := db.Model(&model.Reminder{}).
		Where("user_id = ? AND event_id = ?", userID, eventID).
		Count(&count).Error; err != nil {
		return 0, storeError("count reminders", err)
	}
	return count, nil
}

func dueTaken(db *gorm.DB, userID, eventID string, dueAt time.Time, excludeID string) (bool, error) {
	query := db.Model(&model.Reminder{}).
		Where("user_id = ? AND event_id = ? AND due_at = ?", userID, eventID, dueAt)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, storeError("check duplicate reminder", err)
	}
	return count > 0, nil
}
