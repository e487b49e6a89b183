// README: Recovery middleware; logs panics and answers 500 in the API error shape.
package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"drivebook/internal/apperr"
	"drivebook/internal/logger"
)

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.FromContext(c.Request.Context()).Error("panic recovered",
					slog.String("action", "http_panic"),
					slog.String("panic", fmt.Sprint(r)),
					slog.String("stack", string(debug.Stack())),
				)
				abort(c, http.StatusInternalServerError, apperr.Internal, "internal error")
			}
		}()
		c.Next()
	}
}
