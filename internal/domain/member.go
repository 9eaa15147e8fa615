package domain

import (
	"time"
)

// Member staff directory row. Owned by the auth service; read here only to
// resolve the display name of whoever edited a content entry.
type Member struct {
	ID        int64     `gorm:"column:id;primaryKey" json:"id"`
	UserID    string    `gorm:"column:user_id;size:100;uniqueIndex" json:"user_id"`
	Nickname  string    `gorm:"column:nickname;size:100" json:"nickname"`
	Name      string    `gorm:"column:name;size:100" json:"name"`
	Level     int       `gorm:"column:level;default:1" json:"level"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Member) TableName() string {
	return "members"
}

// DisplayName nickname, falling back to the legal name, then the user id
func (m *Member) DisplayName() string {
	if m.Nickname != "" {
		return m.Nickname
	}
	if m.Name != "" {
		return m.Name
	}
	return m.UserID
}
