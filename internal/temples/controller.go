package temples

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"templeq/internal/shared/utils/response"
)

type Controller interface {
	ListTemples(c *gin.Context)
	GetTemple(c *gin.Context)
	GetSlots(c *gin.Context)
}

type controller struct {
	store Store
}

func NewController(store Store) Controller {
	return &controller{store: store}
}

func (ctrl *controller) ListTemples(c *gin.Context) {
	temples, err := ctrl.store.ListTemples(c.Request.Context())
	if err != nil {
		response.RespondJSON(c, response.StatusError, http.StatusInternalServerError, err.Error(), nil, nil)
		return
	}
	response.RespondJSON(c, response.StatusSuccess, http.StatusOK, "Temples retrieved successfully", temples, nil)
}

func (ctrl *controller) GetTemple(c *gin.Context) {
	temple, err := ctrl.store.GetTemple(c.Request.Context(), c.Param("templeId"))
	if err != nil {
		response.RespondJSON(c, response.StatusError, statusFor(err), err.Error(), nil, nil)
		return
	}
	response.RespondJSON(c, response.StatusSuccess, http.StatusOK, "Temple retrieved successfully", temple, nil)
}

func (ctrl *controller) GetSlots(c *gin.Context) {
	slots, err := ctrl.store.GetSlots(c.Request.Context(), c.Param("templeId"))
	if err != nil {
		response.RespondJSON(c, response.StatusError, statusFor(err), err.Error(), nil, nil)
		return
	}

	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, NewSlotResponse(s))
	}
	response.RespondJSON(c, response.StatusSuccess, http.StatusOK, "Slots retrieved successfully", out, nil)
}

func statusFor(err error) int {
	if errors.Is(err, ErrTempleNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
