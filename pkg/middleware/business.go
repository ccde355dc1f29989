package middleware

import (
	"context"
	"strings"

	"smallbiznis-reputation/pkg/errutil"

	"github.com/gin-gonic/gin"
)

const BusinessHeader = "X-Business-ID"

type businessKey struct{}

// RequireBusiness scopes owner routes to the business named in the
// X-Business-ID header. Authentication happens upstream.
func RequireBusiness() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(BusinessHeader))
		if id == "" {
			_ = c.Error(errutil.Unauthorized("missing "+BusinessHeader+" header", nil))
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(WithBusiness(c.Request.Context(), id))
		c.Next()
	}
}

func WithBusiness(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, businessKey{}, id)
}

// BusinessID returns the scoped business id, or "" outside owner routes.
func BusinessID(ctx context.Context) string {
	id, _ := ctx.Value(businessKey{}).(string)
	return id
}
