package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// UserIDHeader carries the authenticated subject set by the fronting auth
// gateway. Session issuance itself lives outside this service.
const UserIDHeader = "X-User-Id"

func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Missing user identity",
				},
			})
			return
		}
		c.Set(UserIDHeader, uid)
		c.Next()
	}
}
