// Package poller periodically asks the provider for the true state of every
// known workspace and corrects the local record when the two have drifted.
// The provider is the sole source of ground truth; the local workspace status
// is only a cache of it.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"devspace/internal/monitor"
	"devspace/internal/provider"
	"devspace/internal/reconciler"
	"devspace/internal/statusmap"
	"devspace/internal/workspace"
)

type Config struct {
	Interval time.Duration
	Timeout  time.Duration // 单轮 poll 超时
}

type Poller struct {
	workspaces  workspace.WorkspaceRepository
	gateway     provider.Gateway
	reconciler  *reconciler.Reconciler
	broadcaster workspace.Broadcaster
	config      Config
	logger      *slog.Logger
	stopCh      chan struct{}
}

func NewPoller(
	workspaces workspace.WorkspaceRepository,
	gateway provider.Gateway,
	rec *reconciler.Reconciler,
	broadcaster workspace.Broadcaster,
	config Config,
	logger *slog.Logger,
) *Poller {
	if config.Interval == 0 {
		config.Interval = 2 * time.Minute
	}
	if config.Timeout == 0 {
		config.Timeout = 90 * time.Second
	}
	return &Poller{
		workspaces:  workspaces,
		gateway:     gateway,
		reconciler:  rec,
		broadcaster: broadcaster,
		config:      config,
		logger:      logger.With("component", "drift-poller"),
		stopCh:      make(chan struct{}),
	}
}

// Start 启动轮询循环（阻塞，应在 goroutine 中调用）
func (p *Poller) Start() {
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.logger.Info("Drift poller started", "interval", p.config.Interval)

	for {
		select {
		case <-p.stopCh:
			p.logger.Info("Drift poller stopped")
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.config.Timeout)
			if err := p.PollCycle(ctx); err != nil {
				p.logger.Error("Poll cycle failed", "error", err)
			}
			cancel()
		}
	}
}

func (p *Poller) Stop() {
	select {
	case <-p.stopCh:
		// 已经关闭
	default:
		close(p.stopCh)
	}
}

// PollCycle queries the provider for every known workspace. Per-workspace
// failures are logged and skipped; the cycle always runs to completion.
func (p *Poller) PollCycle(ctx context.Context) error {
	start := time.Now()
	defer func() {
		monitor.PollerCycleDuration.Observe(time.Since(start).Seconds())
	}()
	monitor.PollerCyclesTotal.Inc()

	workspaces, err := p.workspaces.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list workspaces: %w", err)
	}

	for _, ws := range workspaces {
		p.pollWorkspace(ctx, ws)
	}
	return nil
}

// ForcePoll runs the same correction synchronously for one session's workspaces.
func (p *Poller) ForcePoll(ctx context.Context, sessionID string) error {
	workspaces, err := p.workspaces.ListBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list workspaces of session %s: %w", sessionID, err)
	}

	for _, ws := range workspaces {
		p.pollWorkspace(ctx, ws)
	}
	return nil
}

func (p *Poller) pollWorkspace(ctx context.Context, ws *workspace.Workspace) {
	switch ws.Status {
	case workspace.StatusPending:
		// provider 侧资源尚未创建，not-found 不代表带外删除
		return
	case workspace.StatusDeleted:
		return
	}

	res, err := p.gateway.GetStatus(ctx, ws)
	if err != nil {
		monitor.PollerProviderErrorsTotal.Inc()
		p.logger.Error("Provider status query failed",
			"workspace_id", ws.ID, "session_id", ws.SessionID, "error", err)
		return
	}
	if !res.Success {
		monitor.PollerProviderErrorsTotal.Inc()
		p.logger.Error("Provider reported status query failure",
			"workspace_id", ws.ID, "session_id", ws.SessionID, "provider_error", res.Error)
		return
	}

	if !res.Found {
		p.markDeletedOutOfBand(ctx, ws)
		return
	}

	mapped, ok := statusmap.WorkspaceStatusFromProvider(res.Status)
	if !ok {
		// 未知词汇只记录，永不报错（对 provider 新版本保持前向兼容）
		p.logger.Warn("Unknown provider status vocabulary",
			"workspace_id", ws.ID, "provider_status", res.Status)
		return
	}

	if mapped == ws.Status {
		if res.LastUsedAt.After(ws.LastUsedAt) {
			if err := p.workspaces.TouchLastUsed(ctx, ws.ID, res.LastUsedAt); err != nil {
				p.logger.Warn("Failed to refresh last-used timestamp",
					"workspace_id", ws.ID, "error", err)
			}
		}
		return
	}

	old := ws.Status
	swapped, err := p.workspaces.UpdateStatusFrom(ctx, ws.ID, old, mapped)
	if err != nil {
		p.logger.Error("Failed to persist drift correction",
			"workspace_id", ws.ID, "from", old, "to", mapped, "error", err)
		return
	}
	if !swapped {
		// 另一条触发路径已经先写了，本次修正退化为 no-op
		p.logger.Info("Drift correction lost the race, skipping",
			"workspace_id", ws.ID, "expected", old, "target", mapped)
		return
	}

	ws.Status = mapped
	if res.LastUsedAt.After(ws.LastUsedAt) {
		ws.LastUsedAt = res.LastUsedAt
		_ = p.workspaces.TouchLastUsed(ctx, ws.ID, res.LastUsedAt)
	}

	monitor.PollerDriftCorrectionsTotal.Inc()
	p.logger.Info("Workspace drift corrected",
		"workspace_id", ws.ID, "session_id", ws.SessionID, "from", old, "to", mapped)

	p.broadcaster.WorkspaceUpdated(ctx, ws)
	p.reconciler.HandleWorkspaceStatusChange(ctx, ws, old)
}

// markDeletedOutOfBand handles a workspace the provider no longer knows about.
func (p *Poller) markDeletedOutOfBand(ctx context.Context, ws *workspace.Workspace) {
	old := ws.Status
	swapped, err := p.workspaces.UpdateStatusFrom(ctx, ws.ID, old, workspace.StatusDeleted)
	if err != nil {
		p.logger.Error("Failed to mark workspace deleted",
			"workspace_id", ws.ID, "error", err)
		return
	}
	if !swapped {
		p.logger.Info("Out-of-band deletion correction lost the race, skipping",
			"workspace_id", ws.ID, "expected", old)
		return
	}

	ws.Status = workspace.StatusDeleted
	ws.DeletedAt = time.Now()

	monitor.PollerDriftCorrectionsTotal.Inc()
	p.logger.Warn("Workspace deleted out-of-band on provider",
		"workspace_id", ws.ID, "session_id", ws.SessionID, "old_status", old)

	p.broadcaster.WorkspaceUpdated(ctx, ws)
	p.reconciler.HandleWorkspaceStatusChange(ctx, ws, old)
}
