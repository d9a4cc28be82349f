package models

import "time"

// NotificationKind colours a notification in the student's inbox.
type NotificationKind string

const (
	NotificationInfo    NotificationKind = "info"
	NotificationSuccess NotificationKind = "success"
	NotificationWarning NotificationKind = "warning"
	NotificationError   NotificationKind = "error"
)

// Notification is a fire-and-forget message to a single user.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	Message   string           `db:"message" json:"message"`
	Kind      NotificationKind `db:"kind" json:"kind"`
	Read      bool             `db:"read" json:"read"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}
