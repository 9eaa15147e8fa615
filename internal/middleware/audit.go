package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lexcabinet/cabinet-backend/internal/domain"
	"github.com/lexcabinet/cabinet-backend/pkg/logger"
	"gorm.io/gorm"
)

// auditActions maps admin write routes to audit action names
var auditActions = map[string]string{
	http.MethodPost + " /content":                  "content.create",
	http.MethodPut + " /content/:id":               "content.update",
	http.MethodDelete + " /content/:id":            "content.archive",
	http.MethodPatch + " /content/:id/publish":     "content.publish",
	http.MethodPatch + " /content/:id/unpublish":   "content.unpublish",
	http.MethodPost + " /content/import":           "content.import",
	http.MethodPost + " /content/cache/invalidate": "content.cache_invalidate",
}

// AuditLogger writes audit entries to content_audit_logs
type AuditLogger struct {
	db *gorm.DB
}

// NewAuditLogger creates a new AuditLogger. A nil db disables auditing.
func NewAuditLogger(db *gorm.DB) *AuditLogger {
	return &AuditLogger{db: db}
}

// Log writes an entry without blocking the request
func (a *AuditLogger) Log(ctx context.Context, entry *domain.AuditLog) {
	if a == nil || a.db == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := a.db.WithContext(ctx).Create(entry).Error; err != nil {
			logger.GetLogger().Error().Err(err).
				Str("action", entry.Action).
				Str("user_id", entry.UserID).
				Msg("audit log write failed")
		}
	}()
}

// ListAuditLogs returns audit entries, newest first, with optional filters
func (a *AuditLogger) ListAuditLogs(ctx context.Context, userID, action string, skip, limit int) ([]domain.AuditLog, int64, error) {
	logs := []domain.AuditLog{}
	var total int64

	query := a.db.WithContext(ctx).Model(&domain.AuditLog{})
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if action != "" {
		query = query.Where("action = ?", action)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("id DESC").Offset(skip).Limit(limit).Find(&logs).Error
	return logs, total, err
}

// Audit records successful admin writes. Reads and rejected requests are not recorded.
func Audit(a *AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		action, ok := auditActions[c.Request.Method+" "+c.FullPath()]
		if !ok || c.Writer.Status() >= http.StatusBadRequest {
			return
		}
		a.Log(c.Request.Context(), &domain.AuditLog{
			UserID:     GetUserID(c),
			Action:     action,
			ResourceID: c.Param("id"),
			Details:    c.Request.URL.RawQuery,
			Status:     c.Writer.Status(),
			ClientIP:   c.ClientIP(),
			RequestID:  c.GetString("request_id"),
		})
	}
}
