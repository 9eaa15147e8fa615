package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lexcabinet/cabinet-backend/internal/common"
	"github.com/lexcabinet/cabinet-backend/internal/middleware"
)

// AuditHandler exposes the admin audit trail
type AuditHandler struct {
	audit *middleware.AuditLogger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(audit *middleware.AuditLogger) *AuditHandler {
	return &AuditHandler{audit: audit}
}

type auditQuery struct {
	UserID string `form:"user_id"`
	Action string `form:"action"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Skip   int    `form:"skip" binding:"omitempty,min=0"`
}

// List handles GET /content/audit
func (h *AuditHandler) List(c *gin.Context) {
	var q auditQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		common.V2ValidationResponse(c, common.AsValidationError(err))
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultListLimit
	}

	logs, total, err := h.audit.ListAuditLogs(c.Request.Context(), q.UserID, q.Action, q.Skip, q.Limit)
	if err != nil {
		_ = c.Error(err)
		common.V2ErrorResponse(c, http.StatusInternalServerError, "audit log query failed", err)
		return
	}
	common.V2SuccessWithMeta(c, logs, common.NewV2Meta(q.Skip, q.Limit, total))
}
