package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "go-task-manager/internal/transport/http/response"
)

// SimpleRecovery panic 兜底，统一 500 envelope
func SimpleRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeServerError, "internal error"))
			}
		}()
		c.Next()
	}
}
