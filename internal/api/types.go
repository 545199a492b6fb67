package api

import (
	"time"

	"devspace/internal/session"
	"devspace/internal/workspace"
)

type CreateSessionRequest struct {
	Name        string   `json:"name" binding:"required"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
}

// UpdateSessionRequest 带 Status 字段只为了显式拒绝：status 由系统派生。
type UpdateSessionRequest struct {
	Name        *string  `json:"name"`
	Tags        []string `json:"tags"`
	Description *string  `json:"description"`
	Status      *string  `json:"status"`
}

type SystemStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type CreateWorkspaceRequest struct {
	Name        string `json:"name" binding:"required"`
	TemplateID  string `json:"template_id"`
	TTLMinutes  int    `json:"ttl_minutes"`
	AutoUpdates bool   `json:"auto_updates"`
}

type SessionResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Status      string   `json:"status"`
	Tags        []string `json:"tags"`
	Description string   `json:"description,omitempty"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

type BuildResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	StartedAt   string `json:"started_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
	Log         string `json:"log,omitempty"`
}

type ResourceResponse struct {
	PodName     string `json:"pod_name,omitempty"`
	ServiceName string `json:"service_name,omitempty"`
	IngressURL  string `json:"ingress_url,omitempty"`
}

type WorkspaceResponse struct {
	ID          string            `json:"id"`
	SessionID   string            `json:"session_id"`
	TemplateID  string            `json:"template_id"`
	Name        string            `json:"name"`
	Status      string            `json:"status"`
	Build       *BuildResponse    `json:"build,omitempty"`
	Resource    *ResourceResponse `json:"resource,omitempty"`
	TTLMinutes  int               `json:"ttl_minutes"`
	AutoUpdates bool              `json:"auto_updates"`
	StartedAt   string            `json:"started_at,omitempty"`
	StoppedAt   string            `json:"stopped_at,omitempty"`
	DeletedAt   string            `json:"deleted_at,omitempty"`
	LastUsedAt  string            `json:"last_used_at,omitempty"`
	CreatedAt   string            `json:"created_at"`
}

type WorkspaceListResponse struct {
	Workspaces []WorkspaceResponse `json:"workspaces"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Details string `json:"details,omitempty"`
}

// SSEEvent 是服务器发送事件的结构体
type SSEEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
}

func toSessionResponse(s *session.Session) SessionResponse {
	return SessionResponse{
		ID:          s.ID,
		Name:        s.Name,
		Status:      string(s.Status),
		Tags:        s.Tags,
		Description: s.Description,
		CreatedAt:   formatTime(s.CreatedAt),
		UpdatedAt:   formatTime(s.UpdatedAt),
	}
}

func toWorkspaceResponse(ws *workspace.Workspace) WorkspaceResponse {
	resp := WorkspaceResponse{
		ID:          ws.ID,
		SessionID:   ws.SessionID,
		TemplateID:  ws.TemplateID,
		Name:        ws.Name,
		Status:      string(ws.Status),
		TTLMinutes:  int(ws.TTL.Minutes()),
		AutoUpdates: ws.AutoUpdates,
		StartedAt:   formatTime(ws.StartedAt),
		StoppedAt:   formatTime(ws.StoppedAt),
		DeletedAt:   formatTime(ws.DeletedAt),
		LastUsedAt:  formatTime(ws.LastUsedAt),
		CreatedAt:   formatTime(ws.CreatedAt),
	}
	if ws.Build != nil {
		resp.Build = &BuildResponse{
			ID:          ws.Build.ID,
			Status:      string(ws.Build.Status),
			StartedAt:   formatTime(ws.Build.StartedAt),
			CompletedAt: formatTime(ws.Build.CompletedAt),
			Log:         ws.Build.Log,
		}
	}
	if ws.Resource != nil {
		resp.Resource = &ResourceResponse{
			PodName:     ws.Resource.PodName,
			ServiceName: ws.Resource.ServiceName,
			IngressURL:  ws.Resource.IngressURL,
		}
	}
	return resp
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
