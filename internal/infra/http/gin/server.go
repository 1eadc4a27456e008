package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"rentals/internal/infra/config"
	"rentals/internal/infra/obs"
)

type Handlers struct {
	Bookings       BookingHandler
	Listings       ListingHandler
	Payments       PaymentHandler
	Reviews        ReviewHandler
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg.CORSOrigins, obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter registers every route under /api/v1. The payment webhook is reachable
// without a bearer token; the gateway signs it instead.
func NewRouter(origins []string, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.RequestLogger())
	if len(origins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
			ExposeHeaders: []string{
				"Content-Length",
				"Content-Type",
				obs.RequestIDHeader,
			},
			MaxAge: 12 * time.Hour,
		}))
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	api.POST("/payments/webhook", h.Payments.Webhook)

	authed := api.Group("")
	if h.AuthMiddleware != nil {
		authed.Use(h.AuthMiddleware)
	}

	bookings := authed.Group("/bookings")
	bookings.POST("", h.Bookings.Create)
	bookings.GET("/:id", h.Bookings.Get)
	bookings.PATCH("/:id", h.Bookings.Update)
	bookings.POST("/:id/confirm", h.Bookings.Confirm)
	bookings.POST("/:id/cancel", h.Bookings.Cancel)
	bookings.POST("/:id/complete", h.Bookings.Complete)
	bookings.POST("/:id/reviews", h.Reviews.Submit)

	authed.GET("/me/bookings", h.Bookings.ListMine)
	authed.GET("/host/bookings", h.Bookings.ListHost)

	authed.GET("/listings/:id/availability", h.Listings.Availability)
	authed.GET("/listings/:id/quote", h.Listings.Quote)
	authed.GET("/listings/:id/calendar", h.Listings.Calendar)
	authed.DELETE("/listings/:id", h.Listings.Delete)

	authed.POST("/payments/intent", h.Payments.CreateIntent)
	authed.POST("/payments/sync", h.Payments.Sync)
	authed.POST("/payments/refund", h.Payments.Refund)

	authed.PUT("/reviews/:id", h.Reviews.Update)
	authed.DELETE("/reviews/:id", h.Reviews.Delete)

	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
