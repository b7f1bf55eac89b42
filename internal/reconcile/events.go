package reconcile

// EventKind is the closed set of ledger entry kinds the reconciler dispatches
// on. Provider event types outside this set map to KindUnknown and are
// recorded for audit but never applied.
type EventKind string

const (
	// Provider webhook events.
	KindCheckoutCompleted    EventKind = "checkout.session.completed"
	KindSubscriptionCreated  EventKind = "customer.subscription.created"
	KindSubscriptionUpdated  EventKind = "customer.subscription.updated"
	KindSubscriptionDeleted  EventKind = "customer.subscription.deleted"
	KindInvoicePaid          EventKind = "invoice.paid"
	KindInvoicePaymentFailed EventKind = "invoice.payment_failed"

	// Locally-initiated intents, recorded after provider confirmation.
	KindIntentUpgrade   EventKind = "intent.upgrade"
	KindIntentDowngrade EventKind = "intent.downgrade"
	KindIntentCancel    EventKind = "intent.cancel"

	KindUnknown EventKind = "unknown"
)

var providerKinds = map[string]EventKind{
	string(KindCheckoutCompleted):    KindCheckoutCompleted,
	string(KindSubscriptionCreated):  KindSubscriptionCreated,
	string(KindSubscriptionUpdated):  KindSubscriptionUpdated,
	string(KindSubscriptionDeleted):  KindSubscriptionDeleted,
	string(KindInvoicePaid):          KindInvoicePaid,
	string(KindInvoicePaymentFailed): KindInvoicePaymentFailed,
}

// KindFromProvider maps a provider event type onto the closed kind set.
func KindFromProvider(eventType string) EventKind {
	if k, ok := providerKinds[eventType]; ok {
		return k
	}
	return KindUnknown
}
