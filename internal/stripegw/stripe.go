package stripegw

import (
	"context"
	"fmt"
	"time"

	"dataforge/internal/domain/billing"
	"dataforge/internal/domain/plans"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v75"
	checkoutsession "github.com/stripe/stripe-go/v75/checkout/session"
	"github.com/stripe/stripe-go/v75/customer"
	"github.com/stripe/stripe-go/v75/invoice"
	stripesub "github.com/stripe/stripe-go/v75/subscription"
	schedules "github.com/stripe/stripe-go/v75/subscriptionschedule"
)

// StripeGateway implements Gateway against the Stripe API.
type StripeGateway struct{}

// NewStripeGateway configures the Stripe client with the secret key. Call once
// at startup, after config is loaded.
func NewStripeGateway(secretKey string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	plan := plans.ByTier(req.Tier)
	if plan == nil || plan.StripePriceID == "" {
		return nil, fmt.Errorf("%w: no price configured for tier %q", billing.ErrInvalidIntent, req.Tier)
	}

	customerID := req.CustomerID
	if customerID == "" {
		cusParams := &stripe.CustomerParams{
			Email: stripe.String(req.Email),
			Metadata: map[string]string{
				"user_id": req.UserID,
			},
		}
		cusParams.Context = ctx
		cusParams.SetIdempotencyKey(uuid.NewString())
		cus, err := customer.New(cusParams)
		if err != nil {
			return nil, fmt.Errorf("%w: create customer: %v", billing.ErrProviderCall, err)
		}
		customerID = cus.ID
	}

	params := &stripe.CheckoutSessionParams{
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:   stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(plan.StripePriceID), Quantity: stripe.Int64(1)},
		},
		ClientReferenceID: stripe.String(req.UserID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				"user_id": req.UserID,
				"plan":    plan.Tier,
			},
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(uuid.NewString())

	s, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: create checkout session: %v", billing.ErrProviderCall, err)
	}
	return &CheckoutResult{SessionID: s.ID, CheckoutURL: s.URL, CustomerID: customerID}, nil
}

func (g *StripeGateway) ChangePlan(ctx context.Context, subscriptionRef, newTier string, mode ChangeMode) (*SubscriptionState, error) {
	plan := plans.ByTier(newTier)
	if plan == nil || plan.StripePriceID == "" {
		return nil, fmt.Errorf("%w: no price configured for tier %q", billing.ErrInvalidIntent, newTier)
	}

	getParams := &stripe.SubscriptionParams{}
	getParams.Context = ctx
	sub, err := stripesub.Get(subscriptionRef, getParams)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch subscription: %v", billing.ErrProviderCall, err)
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return nil, fmt.Errorf("%w: subscription %s has no price item", billing.ErrProviderCall, subscriptionRef)
	}
	item := sub.Items.Data[0]

	if mode == ChangeImmediate {
		updateParams := &stripe.SubscriptionParams{
			Items: []*stripe.SubscriptionItemsParams{
				{
					ID:    stripe.String(item.ID),
					Price: stripe.String(plan.StripePriceID),
				},
			},
			ProrationBehavior: stripe.String("create_prorations"),
		}
		updateParams.Context = ctx
		updated, err := stripesub.Update(subscriptionRef, updateParams)
		if err != nil {
			return nil, fmt.Errorf("%w: update subscription: %v", billing.ErrProviderCall, err)
		}
		return FromSubscription(updated), nil
	}

	// Scheduled change: keep the current price until the period boundary,
	// then switch. Reuses an existing schedule if one is attached.
	scheduleID := ""
	if sub.Schedule != nil {
		scheduleID = sub.Schedule.ID
	}
	if scheduleID == "" {
		newParams := &stripe.SubscriptionScheduleParams{
			FromSubscription: stripe.String(sub.ID),
		}
		newParams.Context = ctx
		newParams.SetIdempotencyKey(uuid.NewString())
		schedule, err := schedules.New(newParams)
		if err != nil {
			return nil, fmt.Errorf("%w: create schedule: %v", billing.ErrProviderCall, err)
		}
		scheduleID = schedule.ID
	}

	updParams := &stripe.SubscriptionScheduleParams{
		EndBehavior: stripe.String("release"),
		Phases: []*stripe.SubscriptionSchedulePhaseParams{
			{
				StartDate: stripe.Int64(sub.CurrentPeriodStart),
				EndDate:   stripe.Int64(sub.CurrentPeriodEnd),
				Items: []*stripe.SubscriptionSchedulePhaseItemParams{
					{Price: stripe.String(item.Price.ID), Quantity: stripe.Int64(1)},
				},
			},
			{
				StartDate: stripe.Int64(sub.CurrentPeriodEnd),
				Items: []*stripe.SubscriptionSchedulePhaseItemParams{
					{Price: stripe.String(plan.StripePriceID), Quantity: stripe.Int64(1)},
				},
			},
		},
	}
	updParams.Context = ctx
	if _, err := schedules.Update(scheduleID, updParams); err != nil {
		return nil, fmt.Errorf("%w: update schedule phases: %v", billing.ErrProviderCall, err)
	}
	return FromSubscription(sub), nil
}

func (g *StripeGateway) Cancel(ctx context.Context, subscriptionRef string, atPeriodEnd bool) (*SubscriptionState, error) {
	if atPeriodEnd {
		params := &stripe.SubscriptionParams{
			CancelAtPeriodEnd: stripe.Bool(true),
		}
		params.Context = ctx
		sub, err := stripesub.Update(subscriptionRef, params)
		if err != nil {
			return nil, fmt.Errorf("%w: schedule cancellation: %v", billing.ErrProviderCall, err)
		}
		return FromSubscription(sub), nil
	}

	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	sub, err := stripesub.Cancel(subscriptionRef, params)
	if err != nil {
		return nil, fmt.Errorf("%w: cancel subscription: %v", billing.ErrProviderCall, err)
	}
	return FromSubscription(sub), nil
}

func (g *StripeGateway) GetSubscription(ctx context.Context, subscriptionRef string) (*SubscriptionState, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := stripesub.Get(subscriptionRef, params)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch subscription: %v", billing.ErrProviderCall, err)
	}
	return FromSubscription(sub), nil
}

func (g *StripeGateway) ListInvoices(ctx context.Context, customerID string, limit int) ([]Invoice, error) {
	params := &stripe.InvoiceListParams{
		Customer: stripe.String(customerID),
	}
	params.Context = ctx
	if limit > 0 {
		params.Limit = stripe.Int64(int64(limit))
	}

	out := []Invoice{}
	it := invoice.List(params)
	for it.Next() {
		in := it.Invoice()
		out = append(out, Invoice{
			ID:               in.ID,
			Number:           in.Number,
			Status:           string(in.Status),
			AmountDueCents:   in.AmountDue,
			AmountPaidCents:  in.AmountPaid,
			Currency:         string(in.Currency),
			Created:          time.Unix(in.Created, 0).UTC(),
			HostedInvoiceURL: in.HostedInvoiceURL,
			InvoicePDF:       in.InvoicePDF,
		})
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("%w: list invoices: %v", billing.ErrProviderCall, err)
	}
	return out, nil
}

// FromSubscription reduces a Stripe subscription object to the fields the
// reconciler syncs. Also used when parsing webhook payloads.
func FromSubscription(sub *stripe.Subscription) *SubscriptionState {
	state := &SubscriptionState{
		ProviderSubscriptionID: sub.ID,
		Status:                 NormalizeStatus(string(sub.Status)),
		CancelAtPeriodEnd:      sub.CancelAtPeriodEnd,
	}
	// Webhook payloads can omit the period fields; leave them zero rather than
	// mapping onto the epoch and clobbering the local period.
	if sub.CurrentPeriodStart > 0 {
		state.CurrentPeriodStart = time.Unix(sub.CurrentPeriodStart, 0).UTC()
	}
	if sub.CurrentPeriodEnd > 0 {
		state.CurrentPeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	if sub.Customer != nil {
		state.ProviderCustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		state.PriceID = sub.Items.Data[0].Price.ID
		if plan := plans.ByStripePriceID(state.PriceID); plan != nil {
			state.Tier = plan.Tier
		}
	}
	return state
}
