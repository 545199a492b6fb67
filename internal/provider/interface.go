package provider

import (
	"context"
	"time"

	"devspace/internal/workspace"
)

// Gateway abstracts the remote workspace-orchestration platform. Local
// workspace status is only a cache of what the provider reports here.
// success=false 是正常结果（provider 明确拒绝），Go error 表示传输层失败；
// 编排器对两者同样处理（吸收为 failed）。
type Gateway interface {
	CreateWorkspace(ctx context.Context, ws *workspace.Workspace, tmpl *workspace.Template) (*CreateResult, error)
	StartWorkspace(ctx context.Context, ws *workspace.Workspace) (*OpResult, error)
	StopWorkspace(ctx context.Context, ws *workspace.Workspace) (*OpResult, error)
	DeleteWorkspace(ctx context.Context, ws *workspace.Workspace) (*OpResult, error)
	GetStatus(ctx context.Context, ws *workspace.Workspace) (*StatusResult, error)
}

type OpResult struct {
	Success bool
	Error   string
}

type CreateResult struct {
	OpResult
	PodName     string
	ServiceName string
	IngressURL  string
	Metadata    map[string]string
}

// StatusResult.Found=false 表示 provider 已不认识该 workspace（带外删除）。
// Status 使用 provider 自己的词汇表，由 statusmap 翻译。
type StatusResult struct {
	OpResult
	Found      bool
	Status     string
	LastUsedAt time.Time
}
