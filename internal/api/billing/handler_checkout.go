package billing

import (
	"net/http"

	"dataforge/config"
	"dataforge/internal/domain/plans"
	"dataforge/internal/domain/subscriptions"
	"dataforge/internal/stripegw"

	"github.com/gin-gonic/gin"
)

// CreateCheckoutSession handles POST /create-checkout-session: opens a hosted
// checkout for a paid tier. The subscription itself is created later by the
// checkout.session.completed webhook, never here.
func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	var body struct {
		Plan string `json:"plan"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Plan == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid plan"})
		return
	}
	if !plans.IsKnownTier(body.Plan) || plans.NormalizeTier(body.Plan) == plans.TierFree {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown plan"})
		return
	}

	userID := c.GetString("user_id")
	email := c.GetString("email")

	sub, err := subscriptions.ForUser(h.db, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	customerID := ""
	if sub.ProviderCustomerID != nil {
		customerID = *sub.ProviderCustomerID
	}

	res, err := h.gw.CreateCheckoutSession(c.Request.Context(), stripegw.CheckoutRequest{
		UserID:     userID,
		Email:      email,
		CustomerID: customerID,
		Tier:       plans.NormalizeTier(body.Plan),
		SuccessURL: config.APP_URL + "/payment/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  config.APP_URL + "/payment/cancel",
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	if res.CustomerID != "" && res.CustomerID != customerID {
		if err := h.rec.BindCustomer(userID, res.CustomerID); err != nil {
			h.respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"checkout_url": res.CheckoutURL, "session_id": res.SessionID})
}
