// Package orchestrator executes the asynchronous workspace lifecycle verbs
// against the provider gateway. Every handler has the same shape: ensure the
// transitional status, call the provider, persist the terminal status on
// success or absorb the failure into the failed status. Nothing re-raises past
// this boundary and there are no retries; a failed workspace needs a new
// explicit lifecycle call to recover.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"devspace/internal/apperr"
	"devspace/internal/monitor"
	"devspace/internal/provider"
	"devspace/internal/reconciler"
	"devspace/internal/workspace"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type LifecycleWorker struct {
	workspaces  workspace.WorkspaceRepository
	templates   workspace.TemplateRepository
	gateway     provider.Gateway
	reconciler  *reconciler.Reconciler
	broadcaster workspace.Broadcaster
	logger      *slog.Logger
}

func NewLifecycleWorker(
	workspaces workspace.WorkspaceRepository,
	templates workspace.TemplateRepository,
	gateway provider.Gateway,
	rec *reconciler.Reconciler,
	broadcaster workspace.Broadcaster,
	logger *slog.Logger,
) *LifecycleWorker {
	return &LifecycleWorker{
		workspaces:  workspaces,
		templates:   templates,
		gateway:     gateway,
		reconciler:  rec,
		broadcaster: broadcaster,
		logger:      logger.With("component", "lifecycle-worker"),
	}
}

// Register hangs all lifecycle handlers onto the asynq mux.
func (w *LifecycleWorker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(workspace.TaskWorkspaceCreate, w.HandleWorkspaceCreate)
	mux.HandleFunc(workspace.TaskWorkspaceStart, w.HandleWorkspaceStart)
	mux.HandleFunc(workspace.TaskWorkspaceStop, w.HandleWorkspaceStop)
	mux.HandleFunc(workspace.TaskWorkspaceDelete, w.HandleWorkspaceDelete)
}

func (w *LifecycleWorker) HandleWorkspaceCreate(ctx context.Context, task *asynq.Task) error {
	ws, err := w.loadWorkspace(ctx, task)
	if ws == nil {
		return err
	}
	old := ws.Status

	tmpl, err := w.templates.GetByID(ctx, ws.TemplateID)
	if err != nil {
		w.finishFailed(ctx, ws, old, "create", fmt.Sprintf("resolve template %s: %v", ws.TemplateID, err))
		return nil
	}

	// 构建开始：pending → starting
	ws.Status = workspace.StatusStarting
	if ws.Build == nil {
		ws.Build = &workspace.BuildInfo{ID: uuid.New().String(), StartedAt: time.Now()}
	}
	ws.Build.Status = workspace.BuildRunning
	if err := w.workspaces.Update(ctx, ws); err != nil {
		w.logger.Error("Failed to persist starting status", "workspace_id", ws.ID, "error", err)
		return nil
	}
	w.broadcaster.WorkspaceUpdated(ctx, ws)

	start := time.Now()
	res, err := w.gateway.CreateWorkspace(ctx, ws, tmpl)
	monitor.ProviderCallLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		w.finishFailed(ctx, ws, old, "create", err.Error())
		return nil
	}
	if !res.Success {
		w.finishFailed(ctx, ws, old, "create", res.Error)
		return nil
	}

	now := time.Now()
	ws.Status = workspace.StatusRunning
	ws.StartedAt = now
	ws.LastUsedAt = now
	ws.Resource = &workspace.ResourceInfo{
		PodName:     res.PodName,
		ServiceName: res.ServiceName,
		IngressURL:  res.IngressURL,
	}
	ws.Build.Status = workspace.BuildSucceeded
	ws.Build.CompletedAt = now

	w.finishSuccess(ctx, ws, old, "create")
	return nil
}

func (w *LifecycleWorker) HandleWorkspaceStart(ctx context.Context, task *asynq.Task) error {
	ws, err := w.loadWorkspace(ctx, task)
	if ws == nil {
		return err
	}
	old := ws.Status

	start := time.Now()
	res, err := w.gateway.StartWorkspace(ctx, ws)
	monitor.ProviderCallLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		w.finishFailed(ctx, ws, old, "start", err.Error())
		return nil
	}
	if !res.Success {
		w.finishFailed(ctx, ws, old, "start", res.Error)
		return nil
	}

	now := time.Now()
	ws.Status = workspace.StatusRunning
	ws.StartedAt = now
	ws.LastUsedAt = now

	w.finishSuccess(ctx, ws, old, "start")
	return nil
}

func (w *LifecycleWorker) HandleWorkspaceStop(ctx context.Context, task *asynq.Task) error {
	ws, err := w.loadWorkspace(ctx, task)
	if ws == nil {
		return err
	}
	old := ws.Status

	start := time.Now()
	res, err := w.gateway.StopWorkspace(ctx, ws)
	monitor.ProviderCallLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		w.finishFailed(ctx, ws, old, "stop", err.Error())
		return nil
	}
	if !res.Success {
		w.finishFailed(ctx, ws, old, "stop", res.Error)
		return nil
	}

	ws.Status = workspace.StatusStopped
	ws.StoppedAt = time.Now()

	w.finishSuccess(ctx, ws, old, "stop")
	return nil
}

func (w *LifecycleWorker) HandleWorkspaceDelete(ctx context.Context, task *asynq.Task) error {
	ws, err := w.loadWorkspace(ctx, task)
	if ws == nil {
		return err
	}
	old := ws.Status

	start := time.Now()
	res, err := w.gateway.DeleteWorkspace(ctx, ws)
	monitor.ProviderCallLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		w.finishFailed(ctx, ws, old, "delete", err.Error())
		return nil
	}
	if !res.Success {
		w.finishFailed(ctx, ws, old, "delete", res.Error)
		return nil
	}

	ws.Status = workspace.StatusDeleted
	ws.DeletedAt = time.Now()

	w.finishSuccess(ctx, ws, old, "delete")
	return nil
}

// loadWorkspace 解包 payload 并重新加载事实状态。payload 损坏返回错误（交给
// asynq 报告）；workspace 不存在按 no-op 处理。
func (w *LifecycleWorker) loadWorkspace(ctx context.Context, task *asynq.Task) (*workspace.Workspace, error) {
	var payload workspace.LifecyclePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		w.logger.Error("Failed to unmarshal lifecycle payload", "task", task.Type(), "error", err)
		return nil, fmt.Errorf("json unmarshal error: %w", err)
	}

	ws, err := w.workspaces.GetByID(ctx, payload.WorkspaceID)
	if err != nil {
		if apperr.IsNotFound(err) {
			w.logger.Warn("Workspace gone before lifecycle task ran",
				"task", task.Type(), "workspace_id", payload.WorkspaceID)
			return nil, nil
		}
		w.logger.Error("Failed to load workspace",
			"task", task.Type(), "workspace_id", payload.WorkspaceID, "error", err)
		return nil, nil
	}
	return ws, nil
}

func (w *LifecycleWorker) finishSuccess(ctx context.Context, ws *workspace.Workspace, old workspace.WorkspaceStatus, verb string) {
	if err := w.workspaces.Update(ctx, ws); err != nil {
		w.logger.Error("Failed to persist terminal status",
			"verb", verb, "workspace_id", ws.ID, "status", ws.Status, "error", err)
		return
	}

	monitor.LifecycleTasksTotal.WithLabelValues(verb, "success").Inc()
	w.logger.Info("Lifecycle operation completed",
		"verb", verb, "workspace_id", ws.ID, "session_id", ws.SessionID, "status", ws.Status)

	w.broadcaster.WorkspaceUpdated(ctx, ws)
	w.reconciler.HandleWorkspaceStatusChange(ctx, ws, old)
}

// finishFailed absorbs a provider failure: failed is the explicit absorption
// state, the error text lands in the build log, and the caller sees nil.
func (w *LifecycleWorker) finishFailed(ctx context.Context, ws *workspace.Workspace, old workspace.WorkspaceStatus, verb, errText string) {
	ws.Status = workspace.StatusFailed
	if ws.Build == nil {
		ws.Build = &workspace.BuildInfo{ID: uuid.New().String(), StartedAt: time.Now()}
	}
	ws.Build.Status = workspace.BuildFailed
	ws.Build.CompletedAt = time.Now()
	if ws.Build.Log != "" {
		ws.Build.Log += "\n"
	}
	ws.Build.Log += fmt.Sprintf("%s failed: %s", verb, errText)

	if err := w.workspaces.Update(ctx, ws); err != nil {
		w.logger.Error("Failed to persist failed status",
			"verb", verb, "workspace_id", ws.ID, "error", err)
		return
	}

	monitor.LifecycleTasksTotal.WithLabelValues(verb, "failure").Inc()
	w.logger.Error("Lifecycle operation failed",
		"verb", verb, "workspace_id", ws.ID, "session_id", ws.SessionID, "provider_error", errText)

	w.broadcaster.WorkspaceUpdated(ctx, ws)
	w.reconciler.HandleWorkspaceStatusChange(ctx, ws, old)
}
