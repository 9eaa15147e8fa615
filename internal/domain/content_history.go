package domain

import "time"

// ChangeType how a content state came to be
type ChangeType string

const (
	ChangeCreated       ChangeType = "created"
	ChangeUpdated       ChangeType = "updated"
	ChangeStatusChanged ChangeType = "status_changed"
	ChangePublished     ChangeType = "published"
	ChangeArchived      ChangeType = "archived"
)

// HistorySnapshot immutable copy of a content entry's state, appended to
// ContentEntry.ChangeHistory just before a mutation overwrites it
type HistorySnapshot struct {
	Version     uint          `json:"version"`
	Value       string        `json:"value"`
	Description string        `json:"description,omitempty"`
	Page        string        `json:"page,omitempty"`
	Section     string        `json:"section,omitempty"`
	Status      ContentStatus `json:"status"`
	IsActive    bool          `json:"is_active"`
	UpdatedBy   string        `json:"updated_by"`
	UpdatedAt   time.Time     `json:"updated_at"`
	// ChangeType how this state came to be, not the change that replaced it
	ChangeType ChangeType `json:"change_type"`
}

// HistoryItem history view row with the actor resolved for display
type HistoryItem struct {
	HistorySnapshot
	UpdatedByName string `json:"updated_by_name,omitempty"`
	Current       bool   `json:"current,omitempty"`
}

// ContentHistoryResponse GET /content/:id/history payload
type ContentHistoryResponse struct {
	ID      uint64        `json:"id"`
	Key     string        `json:"key"`
	Locale  string        `json:"locale"`
	Entries []HistoryItem `json:"entries"`
}
