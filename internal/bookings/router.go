package bookings

import (
	"tripgo/internal/shared/config"
	"tripgo/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupBookingRoutes configures all booking-related routes
func SetupBookingRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {
	bookings := rg.Group("/bookings")
	bookings.Use(middleware.OptionalAuthWithConfig(cfg))
	{
		bookings.POST("/hold", controller.CreateHold)                          // POST /api/v1/bookings/hold
		bookings.GET("/:id", controller.GetBooking)                            // GET /api/v1/bookings/:id
		bookings.GET("/reference/:reference", controller.GetBookingByReference) // GET /api/v1/bookings/reference/:reference
		bookings.POST("/:id/extend", controller.ExtendHold)                    // POST /api/v1/bookings/:id/extend
		bookings.POST("/:id/cancel", controller.CancelBooking)                 // POST /api/v1/bookings/:id/cancel
	}

	users := rg.Group("/users")
	users.Use(middleware.JWTAuthWithConfig(cfg))
	{
		users.GET("/bookings", controller.GetUserBookings) // GET /api/v1/users/bookings
	}
}
