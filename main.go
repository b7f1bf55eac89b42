package main

import (
	"time"

	"dataforge/config"
	"dataforge/database"
	routes "dataforge/internal/app/http"
	"dataforge/internal/domain/plans"
	"dataforge/internal/ledger"
	"dataforge/internal/reconcile"
	"dataforge/internal/stripegw"
	"dataforge/internal/sweep"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// gin.SetMode(gin.ReleaseMode) uncomment only in production
	config.LoadEnv()
	database.InitDB()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	plans.BindPriceIDs(
		config.STRIPE_BASIC_PRICE_ID,
		config.STRIPE_PRO_PRICE_ID,
		config.STRIPE_ENTERPRISE_PRICE_ID,
	)

	gw := stripegw.NewStripeGateway(config.STRIPE_SECRET_KEY)
	lg := ledger.New(database.DB)
	rec := reconcile.New(database.DB, gw, lg, log, config.APP_URL)

	sweeper := sweep.New(rec, log)
	if err := sweeper.Start(); err != nil {
		log.WithError(err).Fatal("failed to start sweep scheduler")
	}
	defer sweeper.Stop()

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{config.CORS_ORIGIN},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Stripe-Signature"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Deps{
		DB:     database.DB,
		Ledger: lg,
		Rec:    rec,
		GW:     gw,
		Log:    log,
	})

	if err := r.Run(":" + config.PORT); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
