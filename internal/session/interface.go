package session

import "context"

type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	GetByID(ctx context.Context, id string) (*Session, error)
	GetByName(ctx context.Context, name string) (*Session, error)
	List(ctx context.Context) ([]*Session, error)
	Update(ctx context.Context, session *Session) error
	UpdateSessionStatus(ctx context.Context, id string, status SessionStatus) error
	Delete(ctx context.Context, id string) error
}

// Broadcaster 是通知扇出的最小接口，实现见 internal/notify。
// 所有广播都是尽力而为，失败只记日志。
type Broadcaster interface {
	SessionCreated(ctx context.Context, session *Session)
	SessionUpdated(ctx context.Context, session *Session, previousStatus SessionStatus)
	SessionDeleted(ctx context.Context, sessionID string)
}

// LifecycleHooks 将 session 生命周期事件转换为 workspace 生命周期调用。
// 实现见 internal/listener；Manager 在持久化之后同步调用。
type LifecycleHooks interface {
	OnSessionCreated(ctx context.Context, session *Session) error
	OnSessionStatusChanged(ctx context.Context, session *Session, oldStatus SessionStatus) error
	OnSessionDeleted(ctx context.Context, sessionID string) error
}
