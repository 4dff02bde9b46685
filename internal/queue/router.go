package queue

import (
	"templeq/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupQueueRoutes(router *gin.RouterGroup, handler Handler) {
	router.GET("/queue/leave-reasons", handler.GetLeaveReasons) // GET /api/v1/queue/leave-reasons

	// Device-scoped queue session per temple
	q := router.Group("/temples/:templeId/queue")
	q.Use(middleware.DeviceID())
	{
		q.GET("", handler.GetState)                  // GET /api/v1/temples/:templeId/queue
		q.POST("/slot", handler.SelectSlot)          // POST /api/v1/temples/:templeId/queue/slot
		q.POST("/tier", handler.SelectTier)          // POST /api/v1/temples/:templeId/queue/tier
		q.POST("/pay", handler.Pay)                  // POST /api/v1/temples/:templeId/queue/pay
		q.POST("/pay/retry", handler.RetryPayment)   // POST /api/v1/temples/:templeId/queue/pay/retry
		q.POST("/pay/cancel", handler.CancelPayment) // POST /api/v1/temples/:templeId/queue/pay/cancel
		q.POST("/refresh", handler.Refresh)          // POST /api/v1/temples/:templeId/queue/refresh
		q.POST("/leave", handler.Leave)              // POST /api/v1/temples/:templeId/queue/leave
		q.GET("/pass", handler.GetPass)              // GET /api/v1/temples/:templeId/queue/pass
	}
}
