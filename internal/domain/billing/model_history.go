package billing

import (
	"encoding/json"
	"time"
)

// History actions, one per user-visible reconciler transition.
const (
	ActionCreated            = "created"
	ActionUpdated            = "updated"
	ActionUpgraded           = "upgraded"
	ActionDowngradeScheduled = "downgrade_scheduled"
	ActionDowngraded         = "downgraded"
	ActionCancelScheduled    = "cancel_scheduled"
	ActionCancelled          = "cancelled"
	ActionPaymentFailed      = "payment_failed"
	ActionRenewed            = "renewed"
)

// HistoryEntry is the append-only, user-readable audit trail derived from
// applied ledger entries.
type HistoryEntry struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       string    `gorm:"not null;index" json:"user_id"`
	Action       string    `gorm:"not null" json:"action"`
	PreviousTier string    `json:"previous_tier"`
	Tier         string    `gorm:"not null" json:"tier"`
	ActionDate   time.Time `gorm:"not null" json:"action_date"`
	MetadataJSON string    `gorm:"column:metadata" json:"-"`
}

// Metadata decodes the free-form metadata column for API responses.
func (h *HistoryEntry) Metadata() json.RawMessage {
	if h.MetadataJSON == "" {
		return nil
	}
	return json.RawMessage(h.MetadataJSON)
}

// EncodeMetadata stores free-form key/value context on the entry.
func (h *HistoryEntry) EncodeMetadata(meta map[string]any) {
	if len(meta) == 0 {
		return
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return
	}
	h.MetadataJSON = string(b)
}
