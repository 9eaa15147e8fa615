package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/lexcabinet/cabinet-backend/internal/handler"
	"github.com/lexcabinet/cabinet-backend/internal/middleware"
	"github.com/lexcabinet/cabinet-backend/pkg/jwt"
)

// Setup configures content routes. public wraps the unauthenticated lookups
// (locale negotiation, rate limiting). audit may be nil.
func Setup(router *gin.Engine, h *handler.ContentHandler, jwtManager *jwt.Manager, adminLevel int, audit *middleware.AuditLogger, public ...gin.HandlerFunc) {
	content := router.Group("/content")

	// Public lookups
	lookup := content.Group("", public...)
	lookup.GET("/value", h.GetValue)
	lookup.GET("/values", h.GetValues)

	// Administration
	admin := content.Group("", middleware.NoStore(), middleware.JWTAuth(jwtManager), middleware.RequireAdmin(adminLevel), middleware.Audit(audit))
	admin.GET("", h.List)
	admin.POST("", h.Create)
	admin.GET("/export", h.Export)
	admin.POST("/import", h.Import)
	admin.POST("/cache/invalidate", h.InvalidateCache)
	if audit != nil {
		admin.GET("/audit", handler.NewAuditHandler(audit).List)
	}
	admin.GET("/:id", h.Get)
	admin.PUT("/:id", h.Update)
	admin.DELETE("/:id", h.Archive)
	admin.PATCH("/:id/publish", h.Publish)
	admin.PATCH("/:id/unpublish", h.Unpublish)
	admin.GET("/:id/history", h.History)
}
