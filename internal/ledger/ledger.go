// Package ledger implements the append-only, deduplicated event ledger that
// underpins idempotent webhook processing and the audit trail.
package ledger

import (
	"time"

	"dataforge/internal/domain/billing"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger records inbound provider events and confirmed local intents exactly
// once each, keyed by event_id.
type Ledger struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Record durably stores an event. Exactly one concurrent caller for a given
// eventID observes isNew=true; all others get the already-stored entry and
// isNew=false and must not re-run side effects. The unique index on event_id
// plus an insert-or-ignore makes the race safe against provider redelivery.
func (l *Ledger) Record(eventID, kind, userID string, payload []byte) (*billing.EventLedgerEntry, bool, error) {
	entry := billing.EventLedgerEntry{
		EventID:    eventID,
		Kind:       kind,
		UserID:     userID,
		Payload:    payload,
		ReceivedAt: time.Now().UTC(),
	}

	res := l.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&entry)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return &entry, true, nil
	}

	// Lost the insert race or a redelivery: load what the winner stored.
	var existing billing.EventLedgerEntry
	if err := l.db.Where("event_id = ?", eventID).First(&existing).Error; err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

// MarkApplied records the outcome of applying an event. Idempotent: a second
// call for the same event overwrites the same columns with the same values and
// nothing else, so retries after a crash are harmless.
func (l *Ledger) MarkApplied(eventID, result, reason string) error {
	now := time.Now().UTC()
	return l.db.Model(&billing.EventLedgerEntry{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"applied":      result == billing.ApplyResultSuccess || result == billing.ApplyResultIgnored,
			"apply_result": result,
			"apply_reason": reason,
			"applied_at":   &now,
		}).Error
}

// Get loads a ledger entry by event id.
func (l *Ledger) Get(eventID string) (*billing.EventLedgerEntry, error) {
	var entry billing.EventLedgerEntry
	if err := l.db.Where("event_id = ?", eventID).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// PendingFailures lists events that were durably recorded but never applied
// successfully. These are the candidates for operator-driven replay once the
// provider's own retry schedule is exhausted.
func (l *Ledger) PendingFailures(limit int) ([]billing.EventLedgerEntry, error) {
	var entries []billing.EventLedgerEntry
	q := l.db.Where("applied = ? AND apply_result = ?", false, billing.ApplyResultFailed).
		Order("received_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
