package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// The wire contract is deliberately flat: success bodies are the payload
// itself, failures are {"error": message}. No envelope, no error codes.

func OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}

func Error(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, gin.H{"error": message})
}
