package passes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"templeq/internal/shared/utils/response"
)

type Controller interface {
	Scan(c *gin.Context)
}

type controller struct {
	issuer *Issuer
}

func NewController(issuer *Issuer) Controller {
	return &controller{issuer: issuer}
}

func (ctrl *controller) Scan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, response.StatusError, http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	token := strings.TrimSpace(req.Token)
	if token == "" && req.QRData != "" {
		var payload PassPayload
		if err := json.Unmarshal([]byte(req.QRData), &payload); err != nil {
			response.RespondJSON(c, response.StatusError, http.StatusBadRequest, "QR data is not a pass", nil, err.Error())
			return
		}
		token = payload.Token
	}
	if token == "" {
		response.RespondJSON(c, response.StatusError, http.StatusBadRequest, "token or qrData is required", nil, nil)
		return
	}

	result, err := ctrl.issuer.Scan(c.Request.Context(), token)
	if err != nil {
		if !IsPassError(err) {
			response.RespondJSON(c, response.StatusError, http.StatusInternalServerError, err.Error(), nil, nil)
			return
		}
		code := http.StatusUnauthorized
		if errors.Is(err, ErrUsedPass) {
			code = http.StatusConflict
		}
		response.RespondJSON(c, response.StatusError, code, err.Error(), result, nil)
		return
	}
	response.RespondJSON(c, response.StatusSuccess, http.StatusOK, "Pass accepted, entry allowed", result, nil)
}
