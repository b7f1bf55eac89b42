// Package reconcile contains the state machine that keeps the local
// subscription store consistent with the billing provider. All subscription
// mutations go through here: inbound webhook events, locally-initiated plan
// changes, and the period-boundary sweep.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dataforge/internal/domain/billing"
	"dataforge/internal/domain/plans"
	"dataforge/internal/domain/subscriptions"
	"dataforge/internal/ledger"
	"dataforge/internal/stripegw"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v75"
	"gorm.io/gorm"
)

// Outcome statuses returned to the plan-change endpoints.
const (
	OutcomeRedirect  = "redirect"
	OutcomeScheduled = "scheduled"
	OutcomeSuccess   = "success"
)

// ChangeOutcome describes how a local plan-change intent concluded.
type ChangeOutcome struct {
	Status      string     `json:"status"`
	Message     string     `json:"message"`
	CheckoutURL string     `json:"checkout_url,omitempty"`
	EffectiveAt *time.Time `json:"effective_at,omitempty"`
}

// Reconciler applies ledger entries and local intents to the subscription
// store, serialized per user.
type Reconciler struct {
	db     *gorm.DB
	gw     stripegw.Gateway
	ledger *ledger.Ledger
	log    *logrus.Logger
	locks  *userLocks
	appURL string

	now func() time.Time
}

func New(db *gorm.DB, gw stripegw.Gateway, lg *ledger.Ledger, log *logrus.Logger, appURL string) *Reconciler {
	return &Reconciler{
		db:     db,
		gw:     gw,
		ledger: lg,
		log:    log,
		locks:  newUserLocks(),
		appURL: appURL,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// intentPayload is what gets stored in the ledger for a confirmed local
// intent, sufficient to re-apply it on replay.
type intentPayload struct {
	Target      string                      `json:"target,omitempty"`
	AtPeriodEnd bool                        `json:"at_period_end,omitempty"`
	State       *stripegw.SubscriptionState `json:"state"`
}

// ---------------------------------------------------------------------------
// Inbound events
// ---------------------------------------------------------------------------

// ApplyEvent applies one durably-recorded ledger entry. Re-applying an
// already-applied event is a no-op: every transition is a pure function of
// (current state, payload). Errors wrap the billing taxonomy sentinels.
func (r *Reconciler) ApplyEvent(ctx context.Context, entry *billing.EventLedgerEntry) error {
	switch EventKind(entry.Kind) {
	case KindCheckoutCompleted:
		return r.applyCheckoutCompleted(ctx, entry)
	case KindSubscriptionCreated, KindSubscriptionUpdated:
		return r.applySubscriptionSync(entry)
	case KindSubscriptionDeleted:
		return r.applySubscriptionDeleted(entry)
	case KindInvoicePaid:
		return r.applyInvoicePaid(entry)
	case KindInvoicePaymentFailed:
		return r.applyInvoicePaymentFailed(entry)
	case KindIntentUpgrade, KindIntentDowngrade, KindIntentCancel:
		return r.applyIntent(entry)
	default:
		return fmt.Errorf("%w: %s", billing.ErrUnknownEventKind, entry.Kind)
	}
}

func (r *Reconciler) applyCheckoutCompleted(ctx context.Context, entry *billing.EventLedgerEntry) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(entry.Payload, &session); err != nil {
		return fmt.Errorf("%w: parse checkout session: %v", billing.ErrApplyConflict, err)
	}
	if session.Subscription == nil || session.Subscription.ID == "" {
		return fmt.Errorf("%w: checkout session missing subscription", billing.ErrApplyConflict)
	}

	userID := session.ClientReferenceID
	if userID == "" {
		userID = session.Metadata["user_id"]
	}
	if userID == "" {
		return fmt.Errorf("%w: checkout session missing user reference", billing.ErrApplyConflict)
	}

	// The session payload carries only references; fetch the authoritative
	// subscription state before taking the user lock.
	state, err := r.gw.GetSubscription(ctx, session.Subscription.ID)
	if err != nil {
		return err
	}
	if state.Tier == "" {
		return fmt.Errorf("%w: no catalog plan for price %s", billing.ErrApplyConflict, state.PriceID)
	}
	if state.ProviderCustomerID == "" && session.Customer != nil {
		state.ProviderCustomerID = session.Customer.ID
	}

	unlock := r.locks.Acquire(userID)
	defer unlock()

	sub, err := subscriptions.ForUser(r.db, userID)
	if err != nil {
		return err
	}

	created := !sub.HasProviderSubscription()
	prevTier := sub.Tier
	if !r.syncFromState(sub, state) {
		return nil // redelivery of an already-consistent event
	}

	action := billing.ActionUpdated
	if created {
		action = billing.ActionCreated
	}
	return r.saveWithHistory(sub, action, prevTier, map[string]any{
		"provider_subscription_id": state.ProviderSubscriptionID,
	})
}

func (r *Reconciler) applySubscriptionSync(entry *billing.EventLedgerEntry) error {
	sub, state, err := parseSubscriptionPayload(entry.Payload)
	if err != nil {
		return err
	}

	userID, err := r.resolveUser(sub, state)
	if err != nil {
		return err
	}

	unlock := r.locks.Acquire(userID)
	defer unlock()

	local, err := subscriptions.ForUser(r.db, userID)
	if err != nil {
		return err
	}

	// Provider state is canceled: same effect as a deletion event, so the
	// two converge regardless of which arrives.
	if state.Status == subscriptions.StatusCanceled {
		return r.applyDeletionLocked(local)
	}

	prevTier := local.Tier
	if !r.syncFromState(local, state) {
		return nil
	}

	action := billing.ActionUpdated
	switch {
	case plans.IsUpgrade(prevTier, local.Tier):
		action = billing.ActionUpgraded
	case plans.IsDowngrade(prevTier, local.Tier):
		action = billing.ActionDowngraded
	}
	return r.saveWithHistory(local, action, prevTier, nil)
}

func (r *Reconciler) applySubscriptionDeleted(entry *billing.EventLedgerEntry) error {
	sub, state, err := parseSubscriptionPayload(entry.Payload)
	if err != nil {
		return err
	}

	userID, err := r.resolveUser(sub, state)
	if err != nil {
		return err
	}

	unlock := r.locks.Acquire(userID)
	defer unlock()

	local, err := subscriptions.ForUser(r.db, userID)
	if err != nil {
		return err
	}
	return r.applyDeletionLocked(local)
}

func (r *Reconciler) applyInvoicePaid(entry *billing.EventLedgerEntry) error {
	inv, err := parseInvoicePayload(entry.Payload)
	if err != nil {
		return err
	}

	local, err := r.resolveByInvoice(inv)
	if err != nil {
		return err
	}

	unlock := r.locks.Acquire(local.UserID)
	defer unlock()

	local, err = subscriptions.ForUser(r.db, local.UserID)
	if err != nil {
		return err
	}

	now := r.now()
	changed := false
	renewed := false
	prevTier := local.Tier

	if local.Status != subscriptions.StatusActive && local.Status != subscriptions.StatusCanceled {
		local.Status = subscriptions.StatusActive
		changed = true
	}

	if end := invoicePeriodEnd(inv); !end.IsZero() {
		if local.CurrentPeriodEnd == nil || end.After(*local.CurrentPeriodEnd) {
			local.CurrentPeriodEnd = &end
			local.ConversionCount = 0 // quota resets with the period
			changed = true
			renewed = true
		}
	}

	if !changed && !local.PendingChangeDue(now) {
		return nil
	}

	if changed {
		action := billing.ActionUpdated
		if renewed {
			action = billing.ActionRenewed
		}
		if err := r.saveWithHistory(local, action, prevTier, map[string]any{
			"invoice_id": inv.ID,
		}); err != nil {
			return err
		}
	}

	// A paid invoice marks the period boundary: scheduled changes whose
	// effective time has arrived apply now.
	if local.PendingChangeDue(now) {
		return r.applyPendingLocked(local)
	}
	return nil
}

func (r *Reconciler) applyInvoicePaymentFailed(entry *billing.EventLedgerEntry) error {
	inv, err := parseInvoicePayload(entry.Payload)
	if err != nil {
		return err
	}

	local, err := r.resolveByInvoice(inv)
	if err != nil {
		return err
	}

	unlock := r.locks.Acquire(local.UserID)
	defer unlock()

	local, err = subscriptions.ForUser(r.db, local.UserID)
	if err != nil {
		return err
	}
	if local.Status == subscriptions.StatusPastDue || local.Status == subscriptions.StatusCanceled {
		return nil
	}

	prevTier := local.Tier
	local.Status = subscriptions.StatusPastDue
	return r.saveWithHistory(local, billing.ActionPaymentFailed, prevTier, map[string]any{
		"invoice_id": inv.ID,
	})
}

// ---------------------------------------------------------------------------
// Local intents
// ---------------------------------------------------------------------------

// ChangePlan initiates a user-requested plan change. Upgrades apply
// immediately (optimistic local update after provider confirmation, later
// overwritten by the provider's own webhook if they disagree). Downgrades are
// scheduled-only: the tier stays until the period boundary. With no paid
// subscription the caller is redirected to checkout.
func (r *Reconciler) ChangePlan(ctx context.Context, userID, email, newTier string) (*ChangeOutcome, error) {
	if !plans.IsKnownTier(newTier) || plans.NormalizeTier(newTier) == plans.TierFree {
		return nil, fmt.Errorf("%w: invalid target plan %q", billing.ErrInvalidIntent, newTier)
	}
	newTier = plans.NormalizeTier(newTier)

	sub, err := subscriptions.ForUser(r.db, userID)
	if err != nil {
		return nil, err
	}

	// No paid subscription to modify: hand the user to hosted checkout. The
	// subscription itself is created later by the checkout webhook.
	if !sub.HasProviderSubscription() || sub.Status == subscriptions.StatusCanceled {
		customerID := ""
		if sub.ProviderCustomerID != nil {
			customerID = *sub.ProviderCustomerID
		}
		res, err := r.gw.CreateCheckoutSession(ctx, stripegw.CheckoutRequest{
			UserID:     userID,
			Email:      email,
			CustomerID: customerID,
			Tier:       newTier,
			SuccessURL: r.appURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}",
			CancelURL:  r.appURL + "/payment/cancel",
		})
		if err != nil {
			return nil, err
		}
		if res.CustomerID != "" && res.CustomerID != customerID {
			if err := r.BindCustomer(userID, res.CustomerID); err != nil {
				return nil, err
			}
		}
		return &ChangeOutcome{
			Status:      OutcomeRedirect,
			Message:     "No active subscription found. Please complete checkout.",
			CheckoutURL: res.CheckoutURL,
		}, nil
	}

	if newTier == sub.Tier {
		return nil, fmt.Errorf("%w: already on plan %s", billing.ErrInvalidIntent, newTier)
	}
	subRef := *sub.ProviderSubscriptionID

	if plans.IsUpgrade(sub.Tier, newTier) {
		// Provider call first, outside any lock. On failure local state is
		// untouched and nothing is recorded: from the provider's perspective
		// the change never happened.
		state, err := r.gw.ChangePlan(ctx, subRef, newTier, stripegw.ChangeImmediate)
		if err != nil {
			return nil, err
		}
		if err := r.recordAndApplyIntent(userID, KindIntentUpgrade, intentPayload{Target: newTier, State: state}); err != nil {
			return nil, err
		}
		return &ChangeOutcome{
			Status:  OutcomeSuccess,
			Message: fmt.Sprintf("Your subscription has been upgraded to %s.", newTier),
		}, nil
	}

	// Downgrade: ask the provider to schedule the switch at period end, then
	// record the pending change locally. Tier does not move yet.
	state, err := r.gw.ChangePlan(ctx, subRef, newTier, stripegw.ChangeScheduled)
	if err != nil {
		return nil, err
	}
	if err := r.recordAndApplyIntent(userID, KindIntentDowngrade, intentPayload{Target: newTier, State: state}); err != nil {
		return nil, err
	}
	effective := state.CurrentPeriodEnd
	return &ChangeOutcome{
		Status:      OutcomeScheduled,
		Message:     fmt.Sprintf("Your plan will be downgraded to %s at the end of the current billing period.", newTier),
		EffectiveAt: &effective,
	}, nil
}

// Cancel cancels the user's subscription, either at period end (access kept
// until then) or immediately.
func (r *Reconciler) Cancel(ctx context.Context, userID string, atPeriodEnd bool) (*ChangeOutcome, error) {
	sub, err := subscriptions.ForUser(r.db, userID)
	if err != nil {
		return nil, err
	}
	if !sub.HasProviderSubscription() {
		return nil, fmt.Errorf("%w: no active subscription to cancel", billing.ErrInvalidIntent)
	}

	state, err := r.gw.Cancel(ctx, *sub.ProviderSubscriptionID, atPeriodEnd)
	if err != nil {
		return nil, err
	}
	if err := r.recordAndApplyIntent(userID, KindIntentCancel, intentPayload{AtPeriodEnd: atPeriodEnd, State: state}); err != nil {
		return nil, err
	}

	if atPeriodEnd {
		effective := state.CurrentPeriodEnd
		return &ChangeOutcome{
			Status:      OutcomeSuccess,
			Message:     "Your subscription will be cancelled at the end of the current billing period.",
			EffectiveAt: &effective,
		}, nil
	}
	return &ChangeOutcome{
		Status:  OutcomeSuccess,
		Message: "Your subscription has been cancelled.",
	}, nil
}

// BindCustomer stores the provider customer reference on the user's row.
func (r *Reconciler) BindCustomer(userID, customerID string) error {
	unlock := r.locks.Acquire(userID)
	defer unlock()

	sub, err := subscriptions.ForUser(r.db, userID)
	if err != nil {
		return err
	}
	if sub.ProviderCustomerID != nil && *sub.ProviderCustomerID == customerID {
		return nil
	}
	sub.ProviderCustomerID = &customerID
	return r.db.Save(sub).Error
}

// recordAndApplyIntent records a provider-confirmed intent in the ledger, then
// applies its local effect under the user lock. Duplicate intent IDs cannot
// occur (fresh UUID), but the record/apply split mirrors the webhook path so
// a crash between the two leaves a replayable entry instead of lost state.
func (r *Reconciler) recordAndApplyIntent(userID string, kind EventKind, payload intentPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	entry, _, err := r.ledger.Record(uuid.NewString(), string(kind), userID, raw)
	if err != nil {
		return err
	}
	if err := r.applyIntent(entry); err != nil {
		if mErr := r.ledger.MarkApplied(entry.EventID, billing.ApplyResultFailed, err.Error()); mErr != nil {
			r.log.WithError(mErr).WithField("event_id", entry.EventID).Error("failed to mark intent ledger entry")
		}
		return err
	}
	return r.ledger.MarkApplied(entry.EventID, billing.ApplyResultSuccess, "")
}

// applyIntent applies (or re-applies, on replay) a confirmed intent's local
// effect.
func (r *Reconciler) applyIntent(entry *billing.EventLedgerEntry) error {
	var p intentPayload
	if err := json.Unmarshal(entry.Payload, &p); err != nil {
		return fmt.Errorf("%w: parse intent payload: %v", billing.ErrApplyConflict, err)
	}
	if p.State == nil {
		return fmt.Errorf("%w: intent missing provider state", billing.ErrApplyConflict)
	}

	unlock := r.locks.Acquire(entry.UserID)
	defer unlock()

	sub, err := subscriptions.ForUser(r.db, entry.UserID)
	if err != nil {
		return err
	}

	switch EventKind(entry.Kind) {
	case KindIntentUpgrade:
		prevTier := sub.Tier
		state := *p.State
		state.Tier = p.Target // optimistic: provider webhook confirms later
		if !r.syncFromState(sub, &state) {
			return nil
		}
		return r.saveWithHistory(sub, billing.ActionUpgraded, prevTier, nil)

	case KindIntentDowngrade:
		if sub.PendingTier != nil && *sub.PendingTier == p.Target {
			return nil
		}
		prevTier := sub.Tier
		effective := p.State.CurrentPeriodEnd
		sub.PendingTier = &p.Target
		sub.PendingEffectiveAt = &effective
		return r.saveWithHistory(sub, billing.ActionDowngradeScheduled, prevTier, map[string]any{
			"downgrade_to":   p.Target,
			"effective_date": effective,
		})

	case KindIntentCancel:
		if p.AtPeriodEnd {
			if sub.CancelAtPeriodEnd {
				return nil
			}
			prevTier := sub.Tier
			sub.CancelAtPeriodEnd = true
			return r.saveWithHistory(sub, billing.ActionCancelScheduled, prevTier, map[string]any{
				"effective_date": p.State.CurrentPeriodEnd,
			})
		}
		return r.applyDeletionLocked(sub)

	default:
		return fmt.Errorf("%w: %s", billing.ErrUnknownEventKind, entry.Kind)
	}
}

// ---------------------------------------------------------------------------
// Period-boundary sweep
// ---------------------------------------------------------------------------

// ApplyDuePendingChanges applies every scheduled downgrade whose effective
// time has passed. Called from the cron sweep; also reachable per user via
// invoice.paid handling. Returns how many subscriptions changed.
func (r *Reconciler) ApplyDuePendingChanges() (int, error) {
	now := r.now()
	var userIDs []string
	if err := r.db.Model(&subscriptions.Subscription{}).
		Where("pending_effective_at IS NOT NULL AND pending_effective_at <= ?", now).
		Pluck("user_id", &userIDs).Error; err != nil {
		return 0, err
	}

	applied := 0
	for _, userID := range userIDs {
		if err := r.applyDueForUser(userID, now); err != nil {
			r.log.WithError(err).WithField("user_id", userID).Error("pending change sweep failed for user")
			continue
		}
		applied++
	}
	return applied, nil
}

func (r *Reconciler) applyDueForUser(userID string, now time.Time) error {
	unlock := r.locks.Acquire(userID)
	defer unlock()

	sub, err := subscriptions.ForUser(r.db, userID)
	if err != nil {
		return err
	}
	if !sub.PendingChangeDue(now) {
		return nil // already applied by a racing invoice event
	}
	return r.applyPendingLocked(sub)
}

// ReplayEvent re-applies a recorded ledger entry that previously failed.
// Operator path for events the provider has stopped redelivering. Replaying
// an already-applied event is a no-op.
func (r *Reconciler) ReplayEvent(ctx context.Context, eventID string) error {
	entry, err := r.ledger.Get(eventID)
	if err != nil {
		return err
	}
	if entry.Applied {
		return nil
	}
	if err := r.ApplyEvent(ctx, entry); err != nil {
		if mErr := r.ledger.MarkApplied(eventID, billing.ApplyResultFailed, err.Error()); mErr != nil {
			r.log.WithError(mErr).WithField("event_id", eventID).Error("failed to mark replayed entry")
		}
		return err
	}
	return r.ledger.MarkApplied(eventID, billing.ApplyResultSuccess, "replayed")
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// ListHistory returns the user's audit trail, newest first.
func (r *Reconciler) ListHistory(userID string) ([]billing.HistoryEntry, error) {
	var entries []billing.HistoryEntry
	err := r.db.Where("user_id = ?", userID).
		Order("action_date DESC, id DESC").
		Find(&entries).Error
	return entries, err
}

// ---------------------------------------------------------------------------
// Locked helpers (caller holds the user lock)
// ---------------------------------------------------------------------------

// syncFromState overwrites local fields with the provider's authoritative
// view. Provider state always wins over locally pending optimistic state.
// Reports whether anything changed.
func (r *Reconciler) syncFromState(sub *subscriptions.Subscription, state *stripegw.SubscriptionState) bool {
	changed := false

	if state.ProviderSubscriptionID != "" &&
		(sub.ProviderSubscriptionID == nil || *sub.ProviderSubscriptionID != state.ProviderSubscriptionID) {
		id := state.ProviderSubscriptionID
		sub.ProviderSubscriptionID = &id
		changed = true
	}
	if state.ProviderCustomerID != "" &&
		(sub.ProviderCustomerID == nil || *sub.ProviderCustomerID != state.ProviderCustomerID) {
		id := state.ProviderCustomerID
		sub.ProviderCustomerID = &id
		changed = true
	}
	if state.Tier != "" && state.Tier != sub.Tier {
		sub.Tier = state.Tier
		changed = true
	}
	if state.Status != "" && state.Status != sub.Status {
		sub.Status = state.Status
		changed = true
	}
	if !state.CurrentPeriodStart.IsZero() &&
		(sub.CurrentPeriodStart == nil || !sub.CurrentPeriodStart.Equal(state.CurrentPeriodStart)) {
		t := state.CurrentPeriodStart
		sub.CurrentPeriodStart = &t
		changed = true
	}
	if !state.CurrentPeriodEnd.IsZero() &&
		(sub.CurrentPeriodEnd == nil || !sub.CurrentPeriodEnd.Equal(state.CurrentPeriodEnd)) {
		if sub.CurrentPeriodEnd != nil && state.CurrentPeriodEnd.After(*sub.CurrentPeriodEnd) {
			sub.ConversionCount = 0 // period advanced, quota resets
		}
		t := state.CurrentPeriodEnd
		sub.CurrentPeriodEnd = &t
		changed = true
	}
	if state.CancelAtPeriodEnd != sub.CancelAtPeriodEnd {
		sub.CancelAtPeriodEnd = state.CancelAtPeriodEnd
		changed = true
	}

	// A scheduled downgrade that the provider now reports as the live tier
	// has taken effect; drop the pending marker.
	if sub.PendingTier != nil && *sub.PendingTier == sub.Tier {
		sub.ClearPendingChange()
		changed = true
	}
	return changed
}

// applyDeletionLocked applies the subscription-deleted effect: canceled
// status, revert to free, provider binding dropped. Idempotent.
func (r *Reconciler) applyDeletionLocked(sub *subscriptions.Subscription) error {
	if sub.Status == subscriptions.StatusCanceled && sub.Tier == plans.TierFree {
		return nil
	}
	prevTier := sub.Tier
	sub.Status = subscriptions.StatusCanceled
	sub.Tier = plans.TierFree
	sub.ProviderSubscriptionID = nil
	sub.CancelAtPeriodEnd = false
	sub.ClearPendingChange()
	return r.saveWithHistory(sub, billing.ActionCancelled, prevTier, nil)
}

// applyPendingLocked applies a due scheduled downgrade.
func (r *Reconciler) applyPendingLocked(sub *subscriptions.Subscription) error {
	prevTier := sub.Tier
	target := *sub.PendingTier
	effective := *sub.PendingEffectiveAt
	sub.Tier = target
	sub.ClearPendingChange()
	return r.saveWithHistory(sub, billing.ActionDowngraded, prevTier, map[string]any{
		"effective_date": effective,
	})
}

// saveWithHistory persists the subscription and its derived history entry in
// one transaction. Every user-visible transition appends exactly one entry.
func (r *Reconciler) saveWithHistory(sub *subscriptions.Subscription, action, prevTier string, meta map[string]any) error {
	entry := billing.HistoryEntry{
		UserID:       sub.UserID,
		Action:       action,
		PreviousTier: prevTier,
		Tier:         sub.Tier,
		ActionDate:   r.now(),
	}
	entry.EncodeMetadata(meta)

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(sub).Error; err != nil {
			return err
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return err
	}

	r.log.WithFields(logrus.Fields{
		"user_id":       sub.UserID,
		"action":        action,
		"previous_tier": prevTier,
		"tier":          sub.Tier,
		"status":        sub.Status,
	}).Info("subscription transition applied")
	return nil
}

// ---------------------------------------------------------------------------
// Payload parsing and user resolution
// ---------------------------------------------------------------------------

func parseSubscriptionPayload(payload []byte) (*stripe.Subscription, *stripegw.SubscriptionState, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(payload, &sub); err != nil {
		return nil, nil, fmt.Errorf("%w: parse subscription payload: %v", billing.ErrApplyConflict, err)
	}
	if sub.ID == "" {
		return nil, nil, fmt.Errorf("%w: subscription payload missing id", billing.ErrApplyConflict)
	}
	return &sub, stripegw.FromSubscription(&sub), nil
}

func parseInvoicePayload(payload []byte) (*stripe.Invoice, error) {
	var inv stripe.Invoice
	if err := json.Unmarshal(payload, &inv); err != nil {
		return nil, fmt.Errorf("%w: parse invoice payload: %v", billing.ErrApplyConflict, err)
	}
	if inv.ID == "" {
		return nil, fmt.Errorf("%w: invoice payload missing id", billing.ErrApplyConflict)
	}
	return &inv, nil
}

// resolveUser finds the owning user for a subscription event: metadata first
// (set at checkout creation), then the local binding of the provider
// subscription id.
func (r *Reconciler) resolveUser(sub *stripe.Subscription, state *stripegw.SubscriptionState) (string, error) {
	if sub.Metadata != nil {
		if uid := sub.Metadata["user_id"]; uid != "" {
			return uid, nil
		}
	}
	local, err := subscriptions.ByProviderSubscriptionID(r.db, state.ProviderSubscriptionID)
	if err == nil {
		return local.UserID, nil
	}
	if err == gorm.ErrRecordNotFound {
		return "", fmt.Errorf("%w: no local subscription for %s", billing.ErrApplyConflict, state.ProviderSubscriptionID)
	}
	return "", err
}

// resolveByInvoice finds the local subscription an invoice event refers to,
// by provider subscription id first, then by customer.
func (r *Reconciler) resolveByInvoice(inv *stripe.Invoice) (*subscriptions.Subscription, error) {
	if inv.Subscription != nil && inv.Subscription.ID != "" {
		local, err := subscriptions.ByProviderSubscriptionID(r.db, inv.Subscription.ID)
		if err == nil {
			return local, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
	}
	if inv.Customer != nil && inv.Customer.ID != "" {
		local, err := subscriptions.ByProviderCustomerID(r.db, inv.Customer.ID)
		if err == nil {
			return local, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: invoice %s matches no local subscription", billing.ErrApplyConflict, inv.ID)
}

// invoicePeriodEnd extracts the service period end an invoice pays for. Line
// items carry the new period; the invoice-level fields are the fallback.
func invoicePeriodEnd(inv *stripe.Invoice) time.Time {
	if inv.Lines != nil && len(inv.Lines.Data) > 0 && inv.Lines.Data[0].Period != nil {
		if end := inv.Lines.Data[0].Period.End; end > 0 {
			return time.Unix(end, 0).UTC()
		}
	}
	if inv.PeriodEnd > 0 {
		return time.Unix(inv.PeriodEnd, 0).UTC()
	}
	return time.Time{}
}
