package workspace

import (
	"time"
)

type WorkspaceStatus string

const (
	StatusPending  WorkspaceStatus = "pending"
	StatusStarting WorkspaceStatus = "starting"
	StatusRunning  WorkspaceStatus = "running"
	StatusStopping WorkspaceStatus = "stopping"
	StatusStopped  WorkspaceStatus = "stopped"
	StatusFailed   WorkspaceStatus = "failed"
	StatusDeleting WorkspaceStatus = "deleting"
	StatusDeleted  WorkspaceStatus = "deleted"
	StatusCanceled WorkspaceStatus = "canceled"
)

// IsTerminal reports whether the status is a resting state that only a new
// lifecycle call (or provider drift) can move the workspace out of.
func (s WorkspaceStatus) IsTerminal() bool {
	switch s {
	case StatusRunning, StatusStopped, StatusFailed, StatusDeleted, StatusCanceled:
		return true
	}
	return false
}

type BuildStatus string

const (
	BuildPending   BuildStatus = "pending"
	BuildRunning   BuildStatus = "running"
	BuildSucceeded BuildStatus = "succeeded"
	BuildFailed    BuildStatus = "failed"
)

// BuildInfo 记录 provider 侧构建的进度；Log 同时承载异步失败的错误文本。
type BuildInfo struct {
	ID          string      `json:"id"`
	Status      BuildStatus `json:"status"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt time.Time   `json:"completed_at"`
	Log         string      `json:"log"`
}

// ResourceInfo 由 Provider Gateway 在创建成功后填充。
type ResourceInfo struct {
	PodName     string `json:"pod_name"`
	ServiceName string `json:"service_name"`
	IngressURL  string `json:"ingress_url"`
}

type Workspace struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"session_id"`
	TemplateID  string          `json:"template_id"`
	Name        string          `json:"name"` // session 内唯一
	Status      WorkspaceStatus `json:"status"`
	Build       *BuildInfo      `json:"build,omitempty"`
	Resource    *ResourceInfo   `json:"resource,omitempty"`
	TTL         time.Duration   `json:"ttl"`
	AutoUpdates bool            `json:"auto_updates"`
	StartedAt   time.Time       `json:"started_at"`
	StoppedAt   time.Time       `json:"stopped_at"`
	DeletedAt   time.Time       `json:"deleted_at"`
	LastUsedAt  time.Time       `json:"last_used_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type CreateParams struct {
	SessionID   string
	Name        string
	TemplateID  string // 为空时回退到默认模板
	TTL         time.Duration
	AutoUpdates bool
}

// Template 只参与解析（显式 ID 或系统默认）；模板 CRUD 不在本服务范围内。
type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Image   string `json:"image"`
	Default bool   `json:"default"`
}

// 异步编排任务。payload 只携带标识，事实状态总是从 store 重新加载。
const (
	TaskWorkspaceCreate = "workspace:create"
	TaskWorkspaceStart  = "workspace:start"
	TaskWorkspaceStop   = "workspace:stop"
	TaskWorkspaceDelete = "workspace:delete"
)

type LifecyclePayload struct {
	WorkspaceID string `json:"workspace_id"`
	SessionID   string `json:"session_id"`
}
