package cancellation

import (
	"templeq/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupCancellationRoutes(rg *gin.RouterGroup, controller *Controller) {
	// Device-scoped refund history
	refunds := rg.Group("/refunds")
	refunds.Use(middleware.DeviceID())
	{
		refunds.GET("", controller.GetDeviceRefunds) // GET /api/v1/refunds
	}

	// Leave analytics
	rg.GET("/temples/:templeId/leave-reasons", controller.GetLeaveReasonStats) // GET /api/v1/temples/:templeId/leave-reasons
}
