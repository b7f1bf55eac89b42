package stripegw

import (
	"strings"

	"dataforge/internal/domain/subscriptions"
)

// NormalizeStatus folds Stripe's subscription statuses onto the four local
// statuses the reconciler tracks.
func NormalizeStatus(s string) string {
	switch strings.TrimSpace(s) {
	case "active", "trialing":
		return subscriptions.StatusActive
	case "past_due", "unpaid":
		return subscriptions.StatusPastDue
	case "canceled", "incomplete_expired":
		return subscriptions.StatusCanceled
	case "incomplete", "paused":
		return subscriptions.StatusIncomplete
	default:
		return subscriptions.StatusIncomplete
	}
}
