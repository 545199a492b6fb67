package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"devspace/internal/apperr"
	"devspace/internal/session"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const DefaultTTL = time.Hour

// SessionStore 是 Manager 需要的 session 存储最小视图。
type SessionStore interface {
	GetByID(ctx context.Context, id string) (*session.Session, error)
}

// Stopper performs the synchronous provider stop used by DeleteWorkspace when
// the workspace is still running. Implemented over the gateway in
// internal/orchestrator.
type Stopper interface {
	Stop(ctx context.Context, ws *Workspace) error
}

type Manager struct {
	repo        WorkspaceRepository
	templates   TemplateRepository
	sessions    SessionStore
	queue       TaskEnqueuer
	stopper     Stopper
	broadcaster Broadcaster
	logger      *slog.Logger
}

func NewManager(
	repo WorkspaceRepository,
	templates TemplateRepository,
	sessions SessionStore,
	queue TaskEnqueuer,
	stopper Stopper,
	broadcaster Broadcaster,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		repo:        repo,
		templates:   templates,
		sessions:    sessions,
		queue:       queue,
		stopper:     stopper,
		broadcaster: broadcaster,
		logger:      logger.With("component", "workspace-manager"),
	}
}

// CreateWorkspace validates the request, persists the PENDING record and hands
// off to the asynchronous create task. It returns immediately with the PENDING
// record; callers observe progress via reads or the event stream.
func (m *Manager) CreateWorkspace(ctx context.Context, params CreateParams) (*Workspace, error) {
	if params.Name == "" {
		return nil, apperr.InvalidArgumentf("workspace name is required")
	}

	if _, err := m.sessions.GetByID(ctx, params.SessionID); err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.InvalidArgumentf("session %s does not exist", params.SessionID)
		}
		return nil, fmt.Errorf("load session %s: %w", params.SessionID, err)
	}

	if existing, err := m.repo.GetByName(ctx, params.SessionID, params.Name); err == nil && existing != nil {
		return nil, apperr.InvalidArgumentf("workspace name %q already in use under session %s",
			params.Name, params.SessionID)
	} else if err != nil && !apperr.IsNotFound(err) {
		return nil, fmt.Errorf("check workspace name: %w", err)
	}

	tmpl, err := m.resolveTemplate(ctx, params.TemplateID)
	if err != nil {
		return nil, err
	}

	ttl := params.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}

	now := time.Now()
	ws := &Workspace{
		ID:         uuid.New().String(),
		SessionID:  params.SessionID,
		TemplateID: tmpl.ID,
		Name:       params.Name,
		Status:     StatusPending,
		Build: &BuildInfo{
			ID:        uuid.New().String(),
			Status:    BuildPending,
			StartedAt: now,
		},
		TTL:         ttl,
		AutoUpdates: params.AutoUpdates,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := m.repo.Create(ctx, ws); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	if err := m.enqueue(TaskWorkspaceCreate, ws); err != nil {
		return nil, err
	}

	m.broadcaster.WorkspaceUpdated(ctx, ws)

	m.logger.Info("Workspace created",
		"workspace_id", ws.ID, "session_id", ws.SessionID, "template_id", tmpl.ID)
	return ws, nil
}

func (m *Manager) GetWorkspace(ctx context.Context, id string) (*Workspace, error) {
	return m.repo.GetByID(ctx, id)
}

func (m *Manager) ListWorkspaces(ctx context.Context, sessionID string) ([]*Workspace, error) {
	return m.repo.ListBySession(ctx, sessionID)
}

func (m *Manager) StartWorkspace(ctx context.Context, id string) (*Workspace, error) {
	ws, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ws.Status != StatusStopped {
		return nil, apperr.IllegalStatef("cannot start workspace %s in status %s", id, ws.Status)
	}

	if err := m.repo.UpdateStatus(ctx, id, StatusStarting); err != nil {
		return nil, fmt.Errorf("mark workspace starting: %w", err)
	}
	ws.Status = StatusStarting

	if err := m.enqueue(TaskWorkspaceStart, ws); err != nil {
		return nil, err
	}

	m.broadcaster.WorkspaceUpdated(ctx, ws)
	return ws, nil
}

func (m *Manager) StopWorkspace(ctx context.Context, id string) (*Workspace, error) {
	ws, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ws.Status != StatusRunning {
		return nil, apperr.IllegalStatef("cannot stop workspace %s in status %s", id, ws.Status)
	}

	if err := m.repo.UpdateStatus(ctx, id, StatusStopping); err != nil {
		return nil, fmt.Errorf("mark workspace stopping: %w", err)
	}
	ws.Status = StatusStopping

	if err := m.enqueue(TaskWorkspaceStop, ws); err != nil {
		return nil, err
	}

	m.broadcaster.WorkspaceUpdated(ctx, ws)
	return ws, nil
}

// DeleteWorkspace stops a running workspace synchronously before dispatching
// the asynchronous delete: stopping → stopped → deleting → deleted, 顺序不可跳过。
func (m *Manager) DeleteWorkspace(ctx context.Context, id string) error {
	ws, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	switch ws.Status {
	case StatusDeleting, StatusDeleted:
		// 删除已在进行中
		return nil
	case StatusRunning:
		if err := m.stopRunning(ctx, ws); err != nil {
			return err
		}
	}

	if err := m.repo.UpdateStatus(ctx, id, StatusDeleting); err != nil {
		return fmt.Errorf("mark workspace deleting: %w", err)
	}
	ws.Status = StatusDeleting

	if err := m.enqueue(TaskWorkspaceDelete, ws); err != nil {
		return err
	}

	m.broadcaster.WorkspaceUpdated(ctx, ws)

	m.logger.Info("Workspace delete dispatched", "workspace_id", id, "session_id", ws.SessionID)
	return nil
}

func (m *Manager) stopRunning(ctx context.Context, ws *Workspace) error {
	if err := m.repo.UpdateStatus(ctx, ws.ID, StatusStopping); err != nil {
		return fmt.Errorf("mark workspace stopping: %w", err)
	}
	ws.Status = StatusStopping

	if err := m.stopper.Stop(ctx, ws); err != nil {
		m.logger.Error("Synchronous stop before delete failed",
			"workspace_id", ws.ID, "error", err)
		if uerr := m.repo.UpdateStatus(ctx, ws.ID, StatusFailed); uerr != nil {
			m.logger.Error("Failed to mark workspace failed", "workspace_id", ws.ID, "error", uerr)
		}
		return apperr.ProviderFailuref("stop workspace %s before delete: %v", ws.ID, err)
	}

	ws.StoppedAt = time.Now()
	if err := m.repo.UpdateStatus(ctx, ws.ID, StatusStopped); err != nil {
		return fmt.Errorf("mark workspace stopped: %w", err)
	}
	ws.Status = StatusStopped
	return nil
}

func (m *Manager) resolveTemplate(ctx context.Context, templateID string) (*Template, error) {
	if templateID != "" {
		tmpl, err := m.templates.GetByID(ctx, templateID)
		if err != nil {
			if apperr.IsNotFound(err) {
				return nil, apperr.InvalidArgumentf("template %s does not exist", templateID)
			}
			return nil, fmt.Errorf("load template %s: %w", templateID, err)
		}
		return tmpl, nil
	}

	tmpl, err := m.templates.GetDefault(ctx)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.InvalidArgumentf("no template given and no default template configured")
		}
		return nil, fmt.Errorf("load default template: %w", err)
	}
	return tmpl, nil
}

// enqueue 提交生命周期任务。TaskID 绑定到 (verb, workspace)，同一 workspace
// 的同类操作最多一个在途；冲突说明任务已在队列里，按成功处理。
func (m *Manager) enqueue(taskType string, ws *Workspace) error {
	payload, err := json.Marshal(LifecyclePayload{
		WorkspaceID: ws.ID,
		SessionID:   ws.SessionID,
	})
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", taskType, err)
	}

	task := asynq.NewTask(taskType, payload)
	info, err := m.queue.Enqueue(task,
		asynq.TaskID(taskType+":"+ws.ID),
		asynq.MaxRetry(0),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			m.logger.Info("Lifecycle task already in flight",
				"task", taskType, "workspace_id", ws.ID)
			return nil
		}
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}

	m.logger.Info("Lifecycle task enqueued",
		"task", taskType, "workspace_id", ws.ID, "task_id", info.ID)
	return nil
}
