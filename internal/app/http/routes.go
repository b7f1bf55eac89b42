package routes

import (
	adminapi "dataforge/internal/api/admin"
	billingapi "dataforge/internal/api/billing"
	plansapi "dataforge/internal/api/plans"
	stripewebhooks "dataforge/internal/api/stripewebhook"
	usageapi "dataforge/internal/api/usage"
	"dataforge/internal/app/http/middleware"
	"dataforge/internal/ledger"
	"dataforge/internal/reconcile"
	"dataforge/internal/stripegw"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Deps carries the wired services the handlers need.
type Deps struct {
	DB     *gorm.DB
	Ledger *ledger.Ledger
	Rec    *reconcile.Reconciler
	GW     stripegw.Gateway
	Log    *logrus.Logger
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	billingH := billingapi.NewHandler(d.DB, d.Rec, d.GW, d.Log)
	webhookH := stripewebhooks.NewHandler(d.Ledger, d.Rec, d.Log)
	usageH := usageapi.NewHandler(d.DB)
	adminH := adminapi.NewHandler(d.DB, d.Ledger, d.Rec, d.Log)

	// The webhook route sees the raw body; no sanitization middleware.
	r.POST("/webhook", webhookH.Receive)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.GET("/plans", plansapi.ListPlans)

	// Authenticated
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware(), middleware.SanitizeInputMiddleware())
	auth.GET("/subscription", billingH.GetSubscription)
	auth.GET("/subscription/history", billingH.GetHistory)
	auth.GET("/subscription/invoices", billingH.GetInvoices)
	auth.GET("/usage", usageH.GetUsage)
	auth.POST("/create-checkout-session", billingH.CreateCheckoutSession)
	auth.POST("/change-plan", billingH.ChangePlan)
	auth.POST("/cancel-subscription", billingH.CancelSubscription)

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.RequireRole("admin"))
	admin.GET("/failed-events", adminH.ListFailedEvents)
	admin.POST("/replay-event", adminH.ReplayEvent)
	admin.GET("/subscriptions/:user_id", adminH.GetUserSubscription)
}
