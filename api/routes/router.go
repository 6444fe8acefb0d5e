package routes

import (
	"net/http"
	"regexp"
	"time"

	"tripgo/internal/bookings"
	"tripgo/internal/catalog"
	"tripgo/internal/payments"
	"tripgo/internal/seatlock"
	"tripgo/internal/shared/config"
	"tripgo/internal/shared/database"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Router holds all route dependencies
type Router struct {
	config   *config.Config
	db       *database.DB
	locks    seatlock.Store
	notifier bookings.Notifier

	bookingService bookings.Service
	sweeper        *bookings.Sweeper
}

// NewRouter creates a new router instance. The notifier may be nil when Kafka
// publishing is disabled.
func NewRouter(cfg *config.Config, db *database.DB, locks seatlock.Store, notifier bookings.Notifier) *Router {
	return &Router{
		config:   cfg,
		db:       db,
		locks:    locks,
		notifier: notifier,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	registerValidators()

	r.setupHealthRoutes(engine)

	api := engine.Group(r.config.GetAPIBasePath())
	{
		r.setupBookingRoutes(api)
	}
}

// BookingService exposes the wired booking service for background workers
func (r *Router) BookingService() bookings.Service {
	return r.bookingService
}

// Sweeper exposes the expiration sweeper for lifecycle management
func (r *Router) Sweeper() *bookings.Sweeper {
	return r.sweeper
}

var seatCodeRe = regexp.MustCompile(`^[A-Z]{1,2}[0-9]{1,2}$`)

// registerValidators adds the seatcode rule used by hold request binding
func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("seatcode", func(fl validator.FieldLevel) bool {
			return seatCodeRe.MatchString(fl.Field().String())
		})
	}
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "tripgo-bookings",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "tripgo-bookings",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		status := gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"timestamp":   time.Now(),
		}
		if r.sweeper != nil {
			status["sweeper"] = r.sweeper.Status()
		}
		c.JSON(http.StatusOK, status)
	})
}

// setupBookingRoutes wires the booking core and its gateway-facing routes
func (r *Router) setupBookingRoutes(rg *gin.RouterGroup) {
	bookingRepo := bookings.NewRepository(r.db.GetPostgreSQL())
	catalogClient := catalog.NewClient(r.config.Catalog)
	gateway := payments.NewHTTPGateway(r.config.Payment)

	r.bookingService = bookings.NewService(bookingRepo, r.locks, catalogClient, gateway, r.notifier, bookings.Config{
		HoldDuration:      r.config.Redis.SeatHoldTTL,
		ServiceFeePercent: r.config.Pricing.ServiceFeePercent,
		ServiceFeeFixed:   r.config.Pricing.ServiceFeeFixed,
		Currency:          r.config.Pricing.Currency,
		ReturnURL:         r.config.Payment.ReturnURL,
		CancelURL:         r.config.Payment.CancelURL,
	})
	r.sweeper = bookings.NewSweeper(r.bookingService, r.config.Sweeper.Interval)

	bookingController := bookings.NewController(r.bookingService)
	bookings.SetupBookingRoutes(rg, bookingController, r.config)

	paymentRepo := payments.NewRepository(r.db.GetPostgreSQL())
	webhookController := payments.NewWebhookController(r.bookingService, paymentRepo, r.config.Payment.WebhookSecret)
	paymentController := payments.NewController(paymentRepo)
	payments.SetupPaymentRoutes(rg, webhookController, paymentController, r.config)
}
