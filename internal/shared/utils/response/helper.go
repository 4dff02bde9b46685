package response

import "github.com/gin-gonic/gin"

func RespondJSON(c *gin.Context, status string, code int, message string, data any, errors any) {
	c.JSON(code, StandardApiResponse{
		Status:     status,
		StatusCode: code,
		Message:    message,
		Data:       data,
		Errors:     errors,
	})
}

// AbortJSON writes an error envelope and stops the handler chain
func AbortJSON(c *gin.Context, code int, message string, errors any) {
	c.AbortWithStatusJSON(code, StandardApiResponse{
		Status:     StatusError,
		StatusCode: code,
		Message:    message,
		Errors:     errors,
	})
}
