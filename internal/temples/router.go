package temples

import (
	"github.com/gin-gonic/gin"
)

func SetupTempleRoutes(router *gin.RouterGroup, controller Controller) {
	// Public reference data
	temples := router.Group("/temples")
	{
		temples.GET("", controller.ListTemples)              // GET /api/v1/temples
		temples.GET("/:templeId", controller.GetTemple)      // GET /api/v1/temples/:templeId
		temples.GET("/:templeId/slots", controller.GetSlots) // GET /api/v1/temples/:templeId/slots
	}
}
