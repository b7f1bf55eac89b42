package subscriptions

import (
	"time"

	"dataforge/internal/domain/plans"
)

// Subscription statuses. Provider statuses are normalized onto these four.
const (
	StatusActive     = "active"
	StatusPastDue    = "past_due"
	StatusCanceled   = "canceled"
	StatusIncomplete = "incomplete"
)

// Subscription is the authoritative local record of a user's plan. Exactly one
// row exists per user; it is mutated only by the reconciler, never deleted.
type Subscription struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	UserID string `gorm:"not null;uniqueIndex:idx_subscriptions_user_id" json:"user_id"`

	Tier   string `gorm:"not null;default:'free'" json:"tier"`
	Status string `gorm:"not null;default:'active'" json:"status"`

	// External references; nil while on the implicit free tier.
	ProviderSubscriptionID *string `gorm:"column:provider_subscription_id;uniqueIndex:idx_subscriptions_provider_sub_id" json:"provider_subscription_id"`
	ProviderCustomerID     *string `gorm:"column:provider_customer_id;uniqueIndex:idx_subscriptions_provider_customer_id" json:"-"`

	CurrentPeriodStart *time.Time `gorm:"column:current_period_start" json:"current_period_start"`
	CurrentPeriodEnd   *time.Time `gorm:"column:current_period_end" json:"current_period_end"`

	// Scheduled downgrade. EffectiveAt equals CurrentPeriodEnd as of scheduling.
	PendingTier        *string    `gorm:"column:pending_tier" json:"pending_tier"`
	PendingEffectiveAt *time.Time `gorm:"column:pending_effective_at" json:"pending_effective_at"`

	CancelAtPeriodEnd bool `gorm:"not null;default:false" json:"cancel_at_period_end"`

	// Usage counters against the plan quota; reset at the period boundary.
	ConversionCount int `gorm:"not null;default:0" json:"conversion_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Plan resolves the catalog entry for the current tier.
func (s *Subscription) Plan() *plans.Plan {
	return plans.ByTier(s.Tier)
}

// HasProviderSubscription reports whether the row is bound to a provider-side
// subscription (i.e. the user has ever completed checkout and not been reset).
func (s *Subscription) HasProviderSubscription() bool {
	return s.ProviderSubscriptionID != nil && *s.ProviderSubscriptionID != ""
}

// HasPendingChange reports whether a downgrade is scheduled.
func (s *Subscription) HasPendingChange() bool {
	return s.PendingTier != nil && s.PendingEffectiveAt != nil
}

// PendingChangeDue reports whether a scheduled downgrade has reached its
// effective time.
func (s *Subscription) PendingChangeDue(now time.Time) bool {
	return s.HasPendingChange() && !now.Before(*s.PendingEffectiveAt)
}

// ClearPendingChange drops any scheduled downgrade.
func (s *Subscription) ClearPendingChange() {
	s.PendingTier = nil
	s.PendingEffectiveAt = nil
}
