package billing

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type historyEntryResponse struct {
	Action       string          `json:"action"`
	PreviousTier string          `json:"previous_tier,omitempty"`
	Tier         string          `json:"tier"`
	ActionDate   time.Time       `json:"action_date"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
}

// GetHistory returns the user's audit trail, newest first. The list is a
// point-in-time snapshot. GET /subscription/history
func (h *Handler) GetHistory(c *gin.Context) {
	userID := c.GetString("user_id")

	entries, err := h.rec.ListHistory(userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntryResponse{
			Action:       e.Action,
			PreviousTier: e.PreviousTier,
			Tier:         e.Tier,
			ActionDate:   e.ActionDate,
			Metadata:     e.Metadata(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"history": out})
}
