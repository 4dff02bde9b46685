package middleware

import (
	"net/http"
	"strings"

	"templeq/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// DeviceIDHeader identifies the visitor device owning a queue session
	DeviceIDHeader = "X-Device-ID"
	// RequestIDHeader is echoed back on every response
	RequestIDHeader = "X-Request-ID"

	deviceIDKey  = "device_id"
	requestIDKey = "request_id"
)

// DeviceID requires a UUID device identifier and stores it in the context
func DeviceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(DeviceIDHeader))
		if raw == "" {
			response.AbortJSON(c, http.StatusBadRequest, DeviceIDHeader+" header is required", nil)
			return
		}

		id, err := uuid.Parse(raw)
		if err != nil {
			response.AbortJSON(c, http.StatusBadRequest, DeviceIDHeader+" must be a UUID", nil)
			return
		}

		c.Set(deviceIDKey, id.String())
		c.Next()
	}
}

// GetDeviceID returns the device id set by DeviceID, or ""
func GetDeviceID(c *gin.Context) string {
	return c.GetString(deviceIDKey)
}

// RequestID reuses the caller's request id or mints one
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID returns the request id set by RequestID, or ""
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
