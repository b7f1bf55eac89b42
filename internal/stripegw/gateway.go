// Package stripegw is the outbound gateway to the billing provider plus the
// inbound webhook signature verification. Everything above this package speaks
// in catalog tiers and normalized statuses, never raw Stripe objects.
package stripegw

import (
	"context"
	"time"
)

// ChangeMode selects when a plan change takes effect on the provider side.
type ChangeMode string

const (
	// ChangeImmediate swaps the price now with proration (upgrades).
	ChangeImmediate ChangeMode = "immediate"
	// ChangeScheduled swaps the price at the period boundary (downgrades).
	ChangeScheduled ChangeMode = "scheduled"
)

// SubscriptionState is the provider's authoritative view of one subscription,
// reduced to the fields the reconciler syncs.
type SubscriptionState struct {
	ProviderSubscriptionID string
	ProviderCustomerID     string
	PriceID                string
	Tier                   string
	Status                 string
	CurrentPeriodStart     time.Time
	CurrentPeriodEnd       time.Time
	CancelAtPeriodEnd      bool
}

// CheckoutRequest carries everything needed to open a hosted checkout for a
// paid tier.
type CheckoutRequest struct {
	UserID     string
	Email      string
	CustomerID string // existing provider customer, empty to create one
	Tier       string
	SuccessURL string
	CancelURL  string
}

// CheckoutResult is returned from a successful checkout-session creation.
type CheckoutResult struct {
	SessionID   string
	CheckoutURL string
	CustomerID  string
}

// Invoice is a provider-sourced invoice row, passed through unreconciled.
type Invoice struct {
	ID               string    `json:"id"`
	Number           string    `json:"number"`
	Status           string    `json:"status"`
	AmountDueCents   int64     `json:"amount_due_cents"`
	AmountPaidCents  int64     `json:"amount_paid_cents"`
	Currency         string    `json:"currency"`
	Created          time.Time `json:"created"`
	HostedInvoiceURL string    `json:"hosted_invoice_url,omitempty"`
	InvoicePDF       string    `json:"invoice_pdf,omitempty"`
}

// Gateway is the synchronous provider API surface. All calls are safe to
// retry: creation-type calls carry a client-generated idempotency key, and on
// timeout the outcome is unknown but a retry will not double-execute.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
	ChangePlan(ctx context.Context, subscriptionRef, newTier string, mode ChangeMode) (*SubscriptionState, error)
	Cancel(ctx context.Context, subscriptionRef string, atPeriodEnd bool) (*SubscriptionState, error)
	GetSubscription(ctx context.Context, subscriptionRef string) (*SubscriptionState, error)
	ListInvoices(ctx context.Context, customerID string, limit int) ([]Invoice, error)
}
