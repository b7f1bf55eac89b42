package stripewebhooks

import (
	"errors"
	"io"
	"net/http"

	"dataforge/config"
	"dataforge/internal/domain/billing"
	"dataforge/internal/ledger"
	"dataforge/internal/reconcile"
	"dataforge/internal/stripegw"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxWebhookBody = 65536

// Handler receives provider webhooks. Response codes drive the provider's
// redelivery: 2xx only after the event is durably recorded and either applied
// or explicitly marked ignored; anything else makes the provider retry.
type Handler struct {
	ledger *ledger.Ledger
	rec    *reconcile.Reconciler
	log    *logrus.Logger
}

func NewHandler(lg *ledger.Ledger, rec *reconcile.Reconciler, log *logrus.Logger) *Handler {
	return &Handler{ledger: lg, rec: rec, log: log}
}

// Receive handles POST /webhook.
func (h *Handler) Receive(c *gin.Context) {
	secret := config.STRIPE_WEBHOOK_SECRET
	if secret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook secret not configured"})
		return
	}

	payload, err := readRawBody(c, maxWebhookBody)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	// Verification runs on the raw body before anything parses or logs it.
	// A forged event must not enter the ledger, or it could poison dedup.
	event, err := stripegw.VerifyWebhook(payload, c.GetHeader("Stripe-Signature"), secret)
	if err != nil {
		h.log.WithField("remote_addr", c.ClientIP()).Warn("webhook signature verification failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
		return
	}

	kind := reconcile.KindFromProvider(string(event.Type))

	entry, isNew, err := h.ledger.Record(event.ID, string(kind), "", event.Data.Raw)
	if err != nil {
		// Not recorded: answer non-2xx so the provider redelivers.
		h.log.WithError(err).Error("failed to record webhook event")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to record event"})
		return
	}

	if !isNew && entry.Applied {
		// Redelivery of an event whose outcome already stands.
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	if kind == reconcile.KindUnknown {
		// Kept for audit, deliberately not applied.
		if err := h.ledger.MarkApplied(event.ID, billing.ApplyResultIgnored, "unknown event type "+string(event.Type)); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to record event outcome"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if err := h.rec.ApplyEvent(c.Request.Context(), entry); err != nil {
		if mErr := h.ledger.MarkApplied(event.ID, billing.ApplyResultFailed, err.Error()); mErr != nil {
			h.log.WithError(mErr).WithField("event_id", event.ID).Error("failed to mark event failed")
		}
		h.log.WithError(err).WithFields(logrus.Fields{
			"event_id": event.ID,
			"kind":     string(kind),
		}).Error("failed to apply webhook event")

		if errors.Is(err, billing.ErrApplyConflict) {
			// Recorded but unapplyable; the provider retries on non-2xx and
			// after its schedule is exhausted the entry awaits manual replay.
			c.JSON(http.StatusConflict, gin.H{"error": "Event could not be applied"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process event"})
		return
	}

	if err := h.ledger.MarkApplied(event.ID, billing.ApplyResultSuccess, ""); err != nil {
		h.log.WithError(err).WithField("event_id", event.ID).Error("failed to mark event applied")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to record event outcome"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func readRawBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
