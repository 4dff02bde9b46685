package passes

import (
	"github.com/gin-gonic/gin"
)

func SetupPassRoutes(router *gin.RouterGroup, controller Controller) {
	// Gate scanner
	passes := router.Group("/passes")
	{
		passes.POST("/scan", controller.Scan) // POST /api/v1/passes/scan
	}
}
