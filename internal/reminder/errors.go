package reminder

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks missing or malformed input. It never reaches the store.
	ErrValidation = errors.New("invalid reminder input")
	// ErrDuplicateReminder is returned when (user, event, dueAt) already exists.
	ErrDuplicateReminder = errors.New("a reminder for this event at this time already exists")
	// ErrLimitExceeded is returned when a subject already holds the maximum number of reminders.
	ErrLimitExceeded = errors.New("reminder limit for this event reached")
	// ErrNotFound covers missing reminders, users and events.
	ErrNotFound = errors.New("not found")
	// ErrAlreadySent is returned by MarkSent for a reminder that was delivered before.
	ErrAlreadySent = errors.New("reminder already sent")
	// ErrStore wraps failures of the persistence layer itself.
	ErrStore = errors.New("reminder store failure")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}
