package stripegw

import (
	"fmt"

	"dataforge/internal/domain/billing"

	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
)

// VerifyWebhook recomputes the signature over the raw, unparsed body and
// compares it (constant-time, inside stripe-go) against the header. Must be
// called before the body is parsed or logged; callers must never log payload
// on failure. Returns ErrSignatureInvalid for any verification failure.
func VerifyWebhook(payload []byte, signatureHeader, signingSecret string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(
		payload,
		signatureHeader,
		signingSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", billing.ErrSignatureInvalid, err)
	}
	return event, nil
}
