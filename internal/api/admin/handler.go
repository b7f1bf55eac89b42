package admin

import (
	"errors"
	"net/http"

	domain "dataforge/internal/domain/billing"
	"dataforge/internal/domain/subscriptions"
	"dataforge/internal/ledger"
	"dataforge/internal/reconcile"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Handler exposes the operator surface: failed-event inspection, manual
// replay, and subscription lookup.
type Handler struct {
	db     *gorm.DB
	ledger *ledger.Ledger
	rec    *reconcile.Reconciler
	log    *logrus.Logger
}

func NewHandler(db *gorm.DB, lg *ledger.Ledger, rec *reconcile.Reconciler, log *logrus.Logger) *Handler {
	return &Handler{db: db, ledger: lg, rec: rec, log: log}
}

// ListFailedEvents returns events that were durably recorded but never
// applied, oldest first. GET /admin/failed-events
func (h *Handler) ListFailedEvents(c *gin.Context) {
	entries, err := h.ledger.PendingFailures(100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load failed events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": entries})
}

// ReplayEvent re-applies one recorded event by id. POST /admin/replay-event
func (h *Handler) ReplayEvent(c *gin.Context) {
	var body struct {
		EventID string `json:"event_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.EventID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid event_id"})
		return
	}

	err := h.rec.ReplayEvent(c.Request.Context(), body.EventID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "replayed", "event_id": body.EventID})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown event_id"})
	case errors.Is(err, domain.ErrApplyConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.log.WithError(err).WithField("event_id", body.EventID).Error("manual replay failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Replay failed"})
	}
}

// GetUserSubscription returns one user's raw subscription row.
// GET /admin/subscriptions/:user_id
func (h *Handler) GetUserSubscription(c *gin.Context) {
	userID := c.Param("user_id")

	var sub subscriptions.Subscription
	if err := h.db.Where("user_id = ?", userID).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No subscription for user"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
		return
	}
	c.JSON(http.StatusOK, sub)
}
