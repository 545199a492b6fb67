package workspace

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
)

type WorkspaceRepository interface {
	Create(ctx context.Context, ws *Workspace) error
	GetByID(ctx context.Context, id string) (*Workspace, error)
	GetByName(ctx context.Context, sessionID, name string) (*Workspace, error)
	ListBySession(ctx context.Context, sessionID string) ([]*Workspace, error)
	ListAll(ctx context.Context) ([]*Workspace, error)
	Update(ctx context.Context, ws *Workspace) error
	UpdateStatus(ctx context.Context, id string, status WorkspaceStatus) error
	// UpdateStatusFrom 仅当当前状态等于 from 时才写入，返回是否写成功。
	// 两个独立定时器修正同一 workspace 时，落后的一方退化为 no-op。
	UpdateStatusFrom(ctx context.Context, id string, from, to WorkspaceStatus) (bool, error)
	TouchLastUsed(ctx context.Context, id string, t time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteBySessionID(ctx context.Context, sessionID string) error
}

type TemplateRepository interface {
	GetByID(ctx context.Context, id string) (*Template, error)
	GetDefault(ctx context.Context) (*Template, error)
}

// Broadcaster 是 workspace 状态变更通知的最小接口，实现见 internal/notify。
type Broadcaster interface {
	WorkspaceUpdated(ctx context.Context, ws *Workspace)
}

// TaskEnqueuer 是 *asynq.Client 满足的最小接口。
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}
