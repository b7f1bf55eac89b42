package billing

import "time"

// Apply results recorded against a ledger entry.
const (
	ApplyResultSuccess = "success"
	ApplyResultIgnored = "ignored"
	ApplyResultFailed  = "failed"
)

// EventLedgerEntry is the append-only record of every inbound provider event
// and every confirmed local plan-change intent. EventID is the dedup key: the
// provider's event identifier, or a generated UUID for local intents. Entries
// are never mutated after creation except for the applied/apply-result marks.
type EventLedgerEntry struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EventID    string    `gorm:"not null;uniqueIndex:idx_event_ledger_event_id" json:"event_id"`
	Kind       string    `gorm:"not null;index" json:"kind"`
	UserID     string    `gorm:"index" json:"user_id"`
	Payload    []byte    `gorm:"type:bytes" json:"-"`
	ReceivedAt time.Time `gorm:"not null" json:"received_at"`

	Applied     bool       `gorm:"not null;default:false;index" json:"applied"`
	ApplyResult string     `json:"apply_result"`
	ApplyReason string     `json:"apply_reason"`
	AppliedAt   *time.Time `json:"applied_at"`
}
