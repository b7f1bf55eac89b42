package billing

import "errors"

// Error taxonomy for the reconciliation path. Handlers and the webhook
// receiver branch on these with errors.Is.
var (
	// ErrSignatureInvalid: webhook failed signature verification. Rejected
	// before any processing; never recorded in the ledger.
	ErrSignatureInvalid = errors.New("webhook signature invalid")

	// ErrDuplicateEvent: the event_id was already recorded. Not a failure;
	// the original outcome stands and side effects are not re-run.
	ErrDuplicateEvent = errors.New("duplicate event")

	// ErrUnknownEventKind: a verified event of a type outside the closed
	// kind set. Recorded for audit, ignored, not a failure.
	ErrUnknownEventKind = errors.New("unknown event kind")

	// ErrApplyConflict: event preconditions not met (e.g. it references a
	// subscription unknown locally). Recorded as failed for manual replay.
	ErrApplyConflict = errors.New("event preconditions not met")

	// ErrProviderCall: outbound provider call failed or timed out. Local
	// state is left untouched.
	ErrProviderCall = errors.New("provider call failed")

	// ErrInvalidIntent: a local plan-change intent that can never apply
	// (unknown tier, same tier, no subscription to change).
	ErrInvalidIntent = errors.New("invalid plan change intent")
)
