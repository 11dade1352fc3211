package model

import "time"

// Reminder is a user's request to be emailed about an event at DueAt.
type Reminder struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	UserID    string     `gorm:"not null;size:64;uniqueIndex:idx_reminder_subject_due,priority:1" json:"user_id"`
	EventID   string     `gorm:"not null;size:64;uniqueIndex:idx_reminder_subject_due,priority:2" json:"event_id"`
	DueAt     time.Time  `gorm:"not null;uniqueIndex:idx_reminder_subject_due,priority:3;index:idx_reminder_pending,priority:2" json:"due_at"`
	Note      string     `gorm:"type:text;not null;default:''" json:"note"`
	Sent      bool       `gorm:"not null;default:false;index:idx_reminder_pending,priority:1" json:"sent"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// User is the subset of the account record the scheduler reads.
type User struct {
	ID    string `gorm:"primaryKey;size:64"`
	Email string `gorm:"not null"`
	Name  string `gorm:"not null"`
	Phone string
}

// Event is the subset of the event record the scheduler reads.
type Event struct {
	ID    string `gorm:"primaryKey;size:64"`
	Title string `gorm:"not null"`
}
