package middleware

import (
	"net/http"

	"dataforge/database"
	"dataforge/internal/domain/plans"
	"dataforge/internal/domain/subscriptions"

	"github.com/gin-gonic/gin"
)

// RequireActiveSubscription gates routes that need a subscription in good
// standing. Past-due users are told to fix payment; canceled users to
// resubscribe.
func RequireActiveSubscription() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		sub, err := subscriptions.ForUser(database.DB, userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
			return
		}

		switch sub.Status {
		case subscriptions.StatusActive:
			c.Next()
		case subscriptions.StatusPastDue:
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error": "Your last payment failed. Please update your payment method.",
			})
		default:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "An active subscription is required.",
			})
		}
	}
}

// RequireQuota rejects requests once the plan's monthly conversion quota is
// exhausted. The counter resets when the billing period renews.
func RequireQuota() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		sub, err := subscriptions.ForUser(database.DB, userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
			return
		}

		plan := sub.Plan()
		if plan.MonthlyQuota != plans.UnlimitedQuota && sub.ConversionCount >= plan.MonthlyQuota {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error":            "Monthly conversion limit reached. Upgrade your plan to continue.",
				"conversion_count": sub.ConversionCount,
				"monthly_quota":    plan.MonthlyQuota,
			})
			return
		}
		c.Next()
	}
}
