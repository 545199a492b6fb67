package session

import (
	"time"
)

type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusInactive  SessionStatus = "inactive"
	StatusArchived  SessionStatus = "archived"
	StatusCompleted SessionStatus = "completed"
)

// IsValid reports whether s is one of the known session statuses.
func (s SessionStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusArchived, StatusCompleted:
		return true
	}
	return false
}

type Session struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"` // 全局唯一
	Status      SessionStatus `json:"status"`
	Tags        []string      `json:"tags"`
	Description string        `json:"description"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type SessionParams struct {
	Name        string
	Tags        []string
	Description string
}

// UpdateParams 只允许修改用户可写字段；status 由系统派生，不在此列。
type UpdateParams struct {
	Name        *string
	Tags        []string
	Description *string
}
