package billing

import (
	"net/http"
	"time"

	"dataforge/internal/domain/subscriptions"

	"github.com/gin-gonic/gin"
)

type subscriptionResponse struct {
	Tier              string     `json:"tier"`
	PlanName          string     `json:"plan_name"`
	PriceCents        int64      `json:"price_cents"`
	Currency          string     `json:"currency"`
	Status            string     `json:"status"`
	IsActive          bool       `json:"is_active"`
	NextBillingDate   *time.Time `json:"next_billing_date,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	PendingTier       *string    `json:"pending_tier,omitempty"`
	PendingEffective  *time.Time `json:"pending_effective_at,omitempty"`
	ConversionCount   int        `json:"conversion_count"`
	MonthlyQuota      int        `json:"monthly_quota"`
	FileSizeLimitMB   int        `json:"file_size_limit_mb"`
	Features          []string   `json:"features"`
}

// GetSubscription returns the user's current subscription with plan display
// fields. GET /subscription
func (h *Handler) GetSubscription(c *gin.Context) {
	userID := c.GetString("user_id")

	sub, err := subscriptions.ForUser(h.db, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	plan := sub.Plan()
	resp := subscriptionResponse{
		Tier:              sub.Tier,
		PlanName:          plan.Name,
		PriceCents:        plan.PriceCents,
		Currency:          plan.Currency,
		Status:            sub.Status,
		IsActive:          sub.Status == subscriptions.StatusActive,
		NextBillingDate:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		PendingTier:       sub.PendingTier,
		PendingEffective:  sub.PendingEffectiveAt,
		ConversionCount:   sub.ConversionCount,
		MonthlyQuota:      plan.MonthlyQuota,
		FileSizeLimitMB:   plan.FileSizeLimitMB,
		Features:          plan.Features,
	}
	c.JSON(http.StatusOK, resp)
}
