package usage

import (
	"net/http"

	"dataforge/internal/domain/plans"
	"dataforge/internal/domain/subscriptions"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// GetUsage reports conversion usage against the plan's entitlements.
// GET /usage
func (h *Handler) GetUsage(c *gin.Context) {
	userID := c.GetString("user_id")

	sub, err := subscriptions.ForUser(h.db, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
		return
	}

	plan := sub.Plan()
	remaining := -1
	if plan.MonthlyQuota != plans.UnlimitedQuota {
		remaining = plan.MonthlyQuota - sub.ConversionCount
		if remaining < 0 {
			remaining = 0
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"tier":                 sub.Tier,
		"conversion_count":     sub.ConversionCount,
		"monthly_quota":        plan.MonthlyQuota,
		"conversions_remaining": remaining,
		"file_size_limit_mb":   plan.FileSizeLimitMB,
		"api_keys_limit":       plan.APIKeysLimit,
		"period_end":           sub.CurrentPeriodEnd,
	})
}
