package billing

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ChangePlan handles POST /change-plan. Responds with one of three outcomes:
// redirect (no paid subscription yet, checkout required), success (immediate
// upgrade), or scheduled (downgrade at period end).
func (h *Handler) ChangePlan(c *gin.Context) {
	var body struct {
		NewPlan string `json:"new_plan"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.NewPlan == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid new_plan"})
		return
	}

	userID := c.GetString("user_id")
	email := c.GetString("email")

	outcome, err := h.rec.ChangePlan(c.Request.Context(), userID, email, body.NewPlan)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// CancelSubscription handles POST /cancel-subscription. With at_period_end
// the user keeps access until the period boundary; otherwise the cancellation
// is immediate.
func (h *Handler) CancelSubscription(c *gin.Context) {
	var body struct {
		AtPeriodEnd *bool `json:"at_period_end"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	atPeriodEnd := true
	if body.AtPeriodEnd != nil {
		atPeriodEnd = *body.AtPeriodEnd
	}

	userID := c.GetString("user_id")
	outcome, err := h.rec.Cancel(c.Request.Context(), userID, atPeriodEnd)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}
