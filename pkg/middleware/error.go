package middleware

import (
	"smallbiznis-reputation/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error renders the last handler error as a BaseError JSON body.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		be := errutil.From(last.Err)
		status := be.Code.HTTPStatus()
		if status >= 500 {
			zap.L().Error("request failed",
				zap.String("path", c.FullPath()),
				zap.String("code", string(be.Code)),
				zap.Error(last.Err),
			)
		}
		c.AbortWithStatusJSON(status, be.JSON())
	}
}
