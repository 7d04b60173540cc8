// Package audit writes append-only records of mutating actions.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/shelfspace/inventory-be/internal/models"
	"github.com/shelfspace/inventory-be/internal/storage"
)

// Recorder emits audit entries to an append-only store. A failed write is
// logged, never surfaced to the request that caused it.
type Recorder struct {
	store storage.AuditStore
}

// NewRecorder wraps an audit store.
func NewRecorder(store storage.AuditStore) *Recorder {
	return &Recorder{store: store}
}

// Record appends one entry for the acting user.
func (r *Recorder) Record(ctx context.Context, actorID int64, action, details string) {
	entry := models.AuditEntry{
		Action:    action,
		Details:   details,
		UserID:    actorID,
		CreatedAt: time.Now(),
	}
	if err := r.store.AppendAudit(ctx, entry); err != nil {
		log.Printf("audit: record %q: %v", action, err)
	}
}
