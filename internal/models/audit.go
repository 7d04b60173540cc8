package models

import "time"

// AuditEntry is one append-only record of a mutating action.
type AuditEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
