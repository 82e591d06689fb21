package models

import (
	"encoding/json"
	"time"
)

// SyncError records one failed item inside an otherwise continuing sync.
type SyncError struct {
	PostID string `json:"postId,omitempty"`
	Error  string `json:"error"`
}

// SocialSyncLog is one record of one sync attempt for one account.
// Inserted once per worker pass per account, never mutated.
type SocialSyncLog struct {
	ID              int64       `db:"id" json:"id"`
	RunID           string      `db:"run_id" json:"run_id"`
	OrganizationID  int64       `db:"organization_id" json:"organization_id"`
	SocialAccountID int64       `db:"social_account_id" json:"social_account_id"`
	SyncType        string      `db:"sync_type" json:"sync_type"`
	Status          string      `db:"status" json:"status"`
	ItemsProcessed  int         `db:"items_processed" json:"items_processed"`
	Errors          []SyncError `db:"errors" json:"errors"`
	CompletedAt     time.Time   `db:"completed_at" json:"completed_at"`
	DurationMs      int64       `db:"duration_ms" json:"duration_ms"`
}

const (
	SyncStatusSuccess = "success"
	SyncStatusPartial = "partial"
	SyncStatusFailed  = "failed"

	SyncTypeMetrics = "metrics"
)

func (l *SocialSyncLog) ErrorsJSON() json.RawMessage {
	if len(l.Errors) == 0 {
		return json.RawMessage("[]")
	}
	b, err := json.Marshal(l.Errors)
	if err != nil {
		return json.RawMessage("[]")
	}
	return b
}
