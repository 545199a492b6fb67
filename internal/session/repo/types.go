package repo

import (
	"time"

	"devspace/internal/session"
)

const sessionCacheTTL = time.Minute * 5

type SessionModel struct {
	ID            string                `json:"id" pg:"id,pk"`
	Name          string                `json:"name" pg:"name,notnull,unique"`
	SessionStatus session.SessionStatus `json:"session_status" pg:"session_status,notnull"`
	Tags          []string              `json:"tags" pg:"tags,array"`
	Description   string                `json:"description" pg:"description"`
	CreatedAt     time.Time             `json:"created_at" pg:"created_at,notnull"`
	UpdatedAt     time.Time             `json:"updated_at" pg:"updated_at,notnull"`
}

func sessionCacheKey(sessionID string) string {
	return "session:" + sessionID + ":record"
}

func toModel(s *session.Session) *SessionModel {
	return &SessionModel{
		ID:            s.ID,
		Name:          s.Name,
		SessionStatus: s.Status,
		Tags:          s.Tags,
		Description:   s.Description,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func fromModel(m *SessionModel) *session.Session {
	return &session.Session{
		ID:          m.ID,
		Name:        m.Name,
		Status:      m.SessionStatus,
		Tags:        m.Tags,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
