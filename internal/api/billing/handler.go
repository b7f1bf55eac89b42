package billing

import (
	"errors"
	"net/http"

	domain "dataforge/internal/domain/billing"
	"dataforge/internal/reconcile"
	"dataforge/internal/stripegw"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Handler serves the user-facing billing endpoints. All subscription writes
// go through the reconciler; handlers never touch the store directly.
type Handler struct {
	db  *gorm.DB
	rec *reconcile.Reconciler
	gw  stripegw.Gateway
	log *logrus.Logger
}

func NewHandler(db *gorm.DB, rec *reconcile.Reconciler, gw stripegw.Gateway, log *logrus.Logger) *Handler {
	return &Handler{db: db, rec: rec, gw: gw, log: log}
}

// respondError maps the billing error taxonomy onto HTTP statuses with
// actionable messages. Provider failures guarantee no local state changed.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidIntent):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrProviderCall):
		h.log.WithError(err).Warn("provider call failed")
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "The billing provider could not be reached. Your subscription was not changed. Please try again.",
		})
	default:
		h.log.WithError(err).Error("billing request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
