// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"prodledger/internal/core/apperror"
	"prodledger/pkg/logger"
)

// Recovery turns a panic into a 500 JSON response. ErrorHandler sits inside
// it and never sees the panic, so the response is written here. The stack is
// logged and never sent to the client.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
				)

				err := apperror.NewInternal(fmt.Errorf("panic: %v", rec)).
					WithDetail("request_id", c.GetString("request_id"))
				_ = c.Error(err)
				if !c.Writer.Written() {
					writeError(c, err)
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
