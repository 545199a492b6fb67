package repo

import (
	"time"

	"devspace/internal/workspace"
)

const workspaceCacheTTL = time.Minute * 5

type WorkspaceModel struct {
	ID          string                    `json:"id" pg:"id,pk"`
	SessionID   string                    `json:"session_id" pg:"session_id,notnull"`
	TemplateID  string                    `json:"template_id" pg:"template_id,notnull"`
	Name        string                    `json:"name" pg:"name,notnull"`
	Status      workspace.WorkspaceStatus `json:"status" pg:"status,notnull"`
	Build       *workspace.BuildInfo      `json:"build" pg:"build,type:jsonb"`
	Resource    *workspace.ResourceInfo   `json:"resource" pg:"resource,type:jsonb"`
	TTL         time.Duration             `json:"ttl" pg:"ttl"`
	AutoUpdates bool                      `json:"auto_updates" pg:"auto_updates,use_zero"`
	StartedAt   time.Time                 `json:"started_at" pg:"started_at"`
	StoppedAt   time.Time                 `json:"stopped_at" pg:"stopped_at"`
	DeletedAt   time.Time                 `json:"deleted_at" pg:"deleted_at"`
	LastUsedAt  time.Time                 `json:"last_used_at" pg:"last_used_at"`
	CreatedAt   time.Time                 `json:"created_at" pg:"created_at,notnull"`
	UpdatedAt   time.Time                 `json:"updated_at" pg:"updated_at,notnull"`
}

type TemplateModel struct {
	ID        string `json:"id" pg:"id,pk"`
	Name      string `json:"name" pg:"name,notnull,unique"`
	Image     string `json:"image" pg:"image,notnull"`
	IsDefault bool   `json:"is_default" pg:"is_default,use_zero"`
}

func workspaceCacheKey(workspaceID string) string {
	return "workspace:" + workspaceID + ":record"
}

func toModel(ws *workspace.Workspace) *WorkspaceModel {
	return &WorkspaceModel{
		ID:          ws.ID,
		SessionID:   ws.SessionID,
		TemplateID:  ws.TemplateID,
		Name:        ws.Name,
		Status:      ws.Status,
		Build:       ws.Build,
		Resource:    ws.Resource,
		TTL:         ws.TTL,
		AutoUpdates: ws.AutoUpdates,
		StartedAt:   ws.StartedAt,
		StoppedAt:   ws.StoppedAt,
		DeletedAt:   ws.DeletedAt,
		LastUsedAt:  ws.LastUsedAt,
		CreatedAt:   ws.CreatedAt,
		UpdatedAt:   ws.UpdatedAt,
	}
}

func fromModel(m *WorkspaceModel) *workspace.Workspace {
	return &workspace.Workspace{
		ID:          m.ID,
		SessionID:   m.SessionID,
		TemplateID:  m.TemplateID,
		Name:        m.Name,
		Status:      m.Status,
		Build:       m.Build,
		Resource:    m.Resource,
		TTL:         m.TTL,
		AutoUpdates: m.AutoUpdates,
		StartedAt:   m.StartedAt,
		StoppedAt:   m.StoppedAt,
		DeletedAt:   m.DeletedAt,
		LastUsedAt:  m.LastUsedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func templateFromModel(m *TemplateModel) *workspace.Template {
	return &workspace.Template{
		ID:      m.ID,
		Name:    m.Name,
		Image:   m.Image,
		Default: m.IsDefault,
	}
}
