package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lexcabinet/cabinet-backend/internal/common"
)

// DefaultAdminLevel minimum member level for content administration
const DefaultAdminLevel = 10

// RequireAdmin checks that the authenticated user has at least minLevel.
// A non-positive minLevel means DefaultAdminLevel.
func RequireAdmin(minLevel int) gin.HandlerFunc {
	if minLevel <= 0 {
		minLevel = DefaultAdminLevel
	}
	return func(c *gin.Context) {
		if GetUserLevel(c) < minLevel {
			common.V2ErrorResponse(c, http.StatusForbidden, "Content administration requires an editor account", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
