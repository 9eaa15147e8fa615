package domain

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// ContentStatus publication state of a content entry
type ContentStatus string

const (
	StatusDraft     ContentStatus = "draft"
	StatusPublished ContentStatus = "published"
	StatusArchived  ContentStatus = "archived"
)

// Valid reports whether s is one of the three lifecycle states
func (s ContentStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// ContentEntry one versioned text record for a (key, locale) pair.
// The record is mutated in place; prior states live in ChangeHistory.
type ContentEntry struct {
	ID            uint64                              `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Key           string                              `gorm:"column:content_key;size:191;not null;uniqueIndex:uk_content_family_version,priority:1" json:"key"`
	Locale        string                              `gorm:"column:locale;size:35;not null;uniqueIndex:uk_content_family_version,priority:2" json:"locale"`
	Version       uint                                `gorm:"column:version;not null;uniqueIndex:uk_content_family_version,priority:3" json:"version"`
	Value         string                              `gorm:"column:value;type:text;not null" json:"value"`
	Description   string                              `gorm:"column:description;type:text" json:"description,omitempty"`
	Page          string                              `gorm:"column:page;size:100;index" json:"page,omitempty"`
	Section       string                              `gorm:"column:section;size:100;index" json:"section,omitempty"`
	IsActive      bool                                `gorm:"column:is_active;not null" json:"is_active"`
	Status        ContentStatus                       `gorm:"column:status;size:20;not null;index" json:"status"`
	ChangeType    ChangeType                          `gorm:"column:change_type;size:20;not null" json:"change_type"`
	UpdatedBy     string                              `gorm:"column:updated_by;size:100" json:"updated_by"`
	ChangeHistory datatypes.JSONSlice[HistorySnapshot] `gorm:"column:change_history" json:"change_history"`
	CreatedAt     time.Time                           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time                           `gorm:"column:updated_at;autoUpdateTime;index" json:"updated_at"`
}

func (ContentEntry) TableName() string {
	return "content_entries"
}

// IsPublic reports whether the entry may be served on the public lookup path
func (e *ContentEntry) IsPublic() bool {
	return e.Status == StatusPublished && e.IsActive
}

// Snapshot captures the entry's current state, tagged with the change that produced it
func (e *ContentEntry) Snapshot() HistorySnapshot {
	return HistorySnapshot{
		Version:     e.Version,
		Value:       e.Value,
		Description: e.Description,
		Page:        e.Page,
		Section:     e.Section,
		Status:      e.Status,
		IsActive:    e.IsActive,
		UpdatedBy:   e.UpdatedBy,
		UpdatedAt:   e.UpdatedAt,
		ChangeType:  e.ChangeType,
	}
}

// ContentFilter admin list filter. Nil fields are not applied.
type ContentFilter struct {
	Page    *string
	Section *string
	Locale  *string
	Search  *string
	Limit   int
	Skip    int
}

// CreateContentRequest POST /content body
type CreateContentRequest struct {
	Key         string `json:"key" binding:"required,max=191"`
	Value       string `json:"value" binding:"required"`
	Locale      string `json:"locale" binding:"omitempty,max=35"`
	Page        string `json:"page" binding:"omitempty,max=100"`
	Section     string `json:"section" binding:"omitempty,max=100"`
	Description string `json:"description"`
}

// UpdateContentRequest PUT /content/:id body.
// ExpectedVersion opts into compare-and-swap; omitted means last writer wins.
type UpdateContentRequest struct {
	Value           string         `json:"value" binding:"required"`
	Description     *string        `json:"description"`
	Page            *string        `json:"page" binding:"omitempty,max=100"`
	Section         *string        `json:"section" binding:"omitempty,max=100"`
	IsActive        *bool          `json:"is_active"`
	Status          *ContentStatus `json:"status" binding:"omitempty,oneof=draft published archived"`
	ExpectedVersion *uint          `json:"expected_version"`
}

// UnmarshalJSON also accepts the legacy camelCase isActive; is_active wins when both are sent
func (r *UpdateContentRequest) UnmarshalJSON(data []byte) error {
	type plain UpdateContentRequest
	aux := struct {
		*plain
		IsActiveLegacy *bool `json:"isActive"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if r.IsActive == nil {
		r.IsActive = aux.IsActiveLegacy
	}
	return nil
}

// ContentValueResponse public lookup payload
type ContentValueResponse struct {
	Key    string `json:"key"`
	Locale string `json:"locale"`
	Value  string `json:"value"`
}

// ContentExportItem one exported or imported entry
type ContentExportItem struct {
	Key         string `json:"key" yaml:"key"`
	Locale      string `json:"locale,omitempty" yaml:"locale,omitempty"`
	Value       string `json:"value" yaml:"value"`
	Page        string `json:"page,omitempty" yaml:"page,omitempty"`
	Section     string `json:"section,omitempty" yaml:"section,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Version     uint   `json:"version,omitempty" yaml:"-"`
}

// ContentImportResult outcome of a bulk import
type ContentImportResult struct {
	Imported []string `json:"imported"`
	Skipped  []string `json:"skipped"`
}
