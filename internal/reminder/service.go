package reminder

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pathakanu/eventMemo/internal/model"
	"github.com/sirupsen/logrus"
)

// DefaultMaxNoteLength bounds a reminder note, counted in runes.
const DefaultMaxNoteLength = 500

// EventLookup resolves the event a reminder refers to.
type EventLookup interface {
	GetEventByID(ctx context.Context, id string) (*model.Event, error)
}

// ListCache caches a subject's reminder list. Implementations must tolerate being unavailable.
//
// Every Invalidate bumps the subject's version. Set stores a list only while the version
// still equals the one read before the list was loaded, so a list read before a write
// never outlives that write.
type ListCache interface {
	Get(ctx context.Context, userID, eventID string) ([]model.Reminder, bool)
	Version(ctx context.Context, userID, eventID string) (int64, bool)
	Set(ctx context.Context, userID, eventID string, version int64, reminders []model.Reminder)
	Invalidate(ctx context.Context, userID, eventID string)
}

// CreateInput is what a caller supplies to create a reminder.
type CreateInput struct {
	UserID  string
	EventID string
	DueAt   time.Time
	Note    string
}

// UpdateInput carries the fields a caller wants to change. Nil means unchanged.
type UpdateInput struct {
	DueAt *time.Time
	Note  *string
}

// Service is the reminder management surface. It validates input and enforces the
// reminder invariants before anything is written. Ownership checks belong to the caller.
type Service struct {
	store         Store
	events        EventLookup
	cache         ListCache
	maxNoteLength int
	logger        logrus.FieldLogger
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithListCache serves List through cache and invalidates it on every write.
func WithListCache(cache ListCache) ServiceOption {
	return func(s *Service) { s.cache = cache }
}

// WithMaxNoteLength overrides DefaultMaxNoteLength.
func WithMaxNoteLength(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxNoteLength = n
		}
	}
}

func NewService(store Store, events EventLookup, logger logrus.FieldLogger, opts ...ServiceOption) *Service {
	s := &Service{
		store:         store,
		events:        events,
		maxNoteLength: DefaultMaxNoteLength,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates in and stores a new reminder for an existing event.
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Reminder, error) {
	userID := strings.TrimSpace(in.UserID)
	eventID := strings.TrimSpace(in.EventID)
	switch {
	case userID == "":
		return nil, validationError("user id is required")
	case eventID == "":
		return nil, validationError("event id is required")
	case in.DueAt.IsZero():
		return nil, validationError("reminder time is required")
	}
	if err := s.checkNote(in.Note); err != nil {
		return nil, err
	}

	if _, err := s.events.GetEventByID(ctx, eventID); err != nil {
		return nil, err
	}

	r := &model.Reminder{
		UserID:  userID,
		EventID: eventID,
		DueAt:   in.DueAt,
		Note:    in.Note,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID, eventID)

	s.logger.WithFields(logrus.Fields{
		"reminder_id": r.ID,
		"user_id":     userID,
		"event_id":    eventID,
		"due_at":      r.DueAt,
	}).Info("Reminder created")
	return r, nil
}

// List returns the caller's reminders for one event, earliest first.
func (s *Service) List(ctx context.Context, userID, eventID string) ([]model.Reminder, error) {
	if userID == "" || eventID == "" {
		return nil, validationError("user id and event id are required")
	}

	var (
		version   int64
		cacheable bool
	)
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, userID, eventID); ok {
			return cached, nil
		}
		version, cacheable = s.cache.Version(ctx, userID, eventID)
	}

	reminders, err := s.store.ListBySubject(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	if cacheable {
		s.cache.Set(ctx, userID, eventID, version, reminders)
	}
	return reminders, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.Reminder, error) {
	if id == "" {
		return nil, validationError("reminder id is required")
	}
	return s.store.Get(ctx, id)
}

// Update edits the due time and/or note. A due time colliding with another
// reminder of the same subject is rejected with ErrDuplicateReminder.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*model.Reminder, error) {
	if id == "" {
		return nil, validationError("reminder id is required")
	}
	if in.DueAt != nil && in.DueAt.IsZero() {
		return nil, validationError("reminder time must not be empty")
	}
	if in.Note != nil {
		if err := s.checkNote(*in.Note); err != nil {
			return nil, err
		}
	}

	r, err := s.store.Update(ctx, id, UpdateFields{DueAt: in.DueAt, Note: in.Note})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, r.UserID, r.EventID)
	return r, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return validationError("reminder id is required")
	}

	r, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteByID(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, r.UserID, r.EventID)
	return nil
}

// FindDue passes straight through to the store.
func (s *Service) FindDue(ctx context.Context, w Window, now time.Time, limit int) ([]model.Reminder, error) {
	return s.store.FindDue(ctx, w, now, limit)
}

// MarkSent records a successful delivery of r.
func (s *Service) MarkSent(ctx context.Context, r model.Reminder, sentAt time.Time) error {
	if err := s.store.MarkSent(ctx, r.ID, sentAt); err != nil {
		return err
	}
	s.invalidate(ctx, r.UserID, r.EventID)
	return nil
}

func (s *Service) checkNote(note string) error {
	if n := utf8.RuneCountInString(note); n > s.maxNoteLength {
		return validationError("note is %d characters, at most %d allowed", n, s.maxNoteLength)
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, userID, eventID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, userID, eventID)
	}
}
