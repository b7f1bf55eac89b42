package billing

import (
	"net/http"

	"dataforge/internal/domain/subscriptions"

	"github.com/gin-gonic/gin"
)

// GetInvoices returns the user's provider-sourced invoice list. Pure
// passthrough read, not part of the reconciliation core.
// GET /subscription/invoices
func (h *Handler) GetInvoices(c *gin.Context) {
	userID := c.GetString("user_id")

	sub, err := subscriptions.ForUser(h.db, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if sub.ProviderCustomerID == nil || *sub.ProviderCustomerID == "" {
		c.JSON(http.StatusOK, gin.H{"invoices": []any{}})
		return
	}

	invoices, err := h.gw.ListInvoices(c.Request.Context(), *sub.ProviderCustomerID, 24)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices})
}
