package payments

import (
	"tripgo/internal/shared/config"
	"tripgo/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupPaymentRoutes configures the payment routes. The webhook is
// authenticated by signature, not by JWT; the ledger read is admin-only.
func SetupPaymentRoutes(rg *gin.RouterGroup, webhook *WebhookController, controller *Controller, cfg *config.Config) {
	payments := rg.Group("/payments")
	{
		payments.POST("/webhook", webhook.HandleWebhook) // POST /api/v1/payments/webhook
	}

	admin := rg.Group("/admin/payments")
	admin.Use(middleware.JWTAuthWithConfig(cfg), middleware.RequireAdmin())
	{
		admin.GET("/booking/:id", controller.ListByBooking) // GET /api/v1/admin/payments/booking/:id
	}
}
