package domain

import "time"

// AuditLog one administrative operation. Content mutations are also
// captured in ChangeHistory; cache flushes and imports only live here.
type AuditLog struct {
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
	UserID     string    `gorm:"column:user_id;size:64;index" json:"user_id"`
	Action     string    `gorm:"column:action;size:40;index" json:"action"`
	ResourceID string    `gorm:"column:resource_id;size:64" json:"resource_id,omitempty"`
	Details    string    `gorm:"column:details;type:text" json:"details,omitempty"`
	Status     int       `gorm:"column:status" json:"status"`
	ClientIP   string    `gorm:"column:client_ip;size:45" json:"client_ip"`
	RequestID  string    `gorm:"column:request_id;size:36" json:"request_id"`

	ID int64 `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
}

func (AuditLog) TableName() string {
	return "content_audit_logs"
}
