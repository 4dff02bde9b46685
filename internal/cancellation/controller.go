package cancellation

import (
	"net/http"

	"templeq/internal/shared/middleware"
	"templeq/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

// Controller handles HTTP requests for refunds and leave statistics
type Controller struct {
	service Service
}

// NewController creates a new cancellation controller
func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// GetDeviceRefunds handles GET /api/v1/refunds
func (ctrl *Controller) GetDeviceRefunds(c *gin.Context) {
	refunds, err := ctrl.service.GetDeviceRefunds(c.Request.Context(), middleware.GetDeviceID(c))
	if err != nil {
		response.RespondJSON(c, response.StatusError, http.StatusInternalServerError, "Failed to retrieve refunds", nil, err.Error())
		return
	}
	response.RespondJSON(c, response.StatusSuccess, http.StatusOK, "Refunds retrieved successfully", refunds, nil)
}

// GetLeaveReasonStats handles GET /api/v1/temples/:templeId/leave-reasons
func (ctrl *Controller) GetLeaveReasonStats(c *gin.Context) {
	stats, err := ctrl.service.GetLeaveReasonStats(c.Request.Context(), c.Param("templeId"))
	if err != nil {
		response.RespondJSON(c, response.StatusError, http.StatusInternalServerError, "Failed to retrieve leave reasons", nil, err.Error())
		return
	}
	response.RespondJSON(c, response.StatusSuccess, http.StatusOK, "Leave reasons retrieved successfully", stats, nil)
}
