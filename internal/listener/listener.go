// Package listener translates session lifecycle events into workspace
// lifecycle calls. It is invoked synchronously from the session manager;
// per-workspace failures are isolated and never propagate back into the
// session mutation that triggered them.
package listener

import (
	"context"
	"fmt"
	"log/slog"

	"devspace/internal/apperr"
	"devspace/internal/session"
	"devspace/internal/workspace"
)

var _ session.LifecycleHooks = (*WorkspaceListener)(nil)

type WorkspaceListener struct {
	manager *workspace.Manager
	logger  *slog.Logger
}

func NewWorkspaceListener(manager *workspace.Manager, logger *slog.Logger) *WorkspaceListener {
	return &WorkspaceListener{
		manager: manager,
		logger:  logger.With("component", "session-listener"),
	}
}

// OnSessionCreated provisions the session's default workspace. The session
// manager logs a failure here and keeps the session; 没有 workspace 的 session
// 是合法状态。
func (l *WorkspaceListener) OnSessionCreated(ctx context.Context, sess *session.Session) error {
	_, err := l.manager.CreateWorkspace(ctx, workspace.CreateParams{
		SessionID:   sess.ID,
		Name:        sess.Name + "-workspace",
		TTL:         workspace.DefaultTTL,
		AutoUpdates: true,
	})
	if err != nil {
		return fmt.Errorf("create default workspace for session %s: %w", sess.ID, err)
	}
	return nil
}

func (l *WorkspaceListener) OnSessionStatusChanged(ctx context.Context, sess *session.Session, oldStatus session.SessionStatus) error {
	workspaces, err := l.manager.ListWorkspaces(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("list workspaces of session %s: %w", sess.ID, err)
	}

	for _, ws := range workspaces {
		switch sess.Status {
		case session.StatusActive:
			if _, err := l.manager.StartWorkspace(ctx, ws.ID); err != nil {
				if apperr.IsIllegalState(err) {
					// 已经在目标状态或过渡中，无需动作
					continue
				}
				l.logger.Error("Failed to start workspace on session activation",
					"session_id", sess.ID, "workspace_id", ws.ID, "error", err)
			}
		case session.StatusInactive:
			if _, err := l.manager.StopWorkspace(ctx, ws.ID); err != nil {
				if apperr.IsIllegalState(err) {
					continue
				}
				l.logger.Error("Failed to stop workspace on session deactivation",
					"session_id", sess.ID, "workspace_id", ws.ID, "error", err)
			}
		default:
			// archived/completed 不驱动 workspace 动作
		}
	}
	return nil
}

func (l *WorkspaceListener) OnSessionDeleted(ctx context.Context, sessionID string) error {
	workspaces, err := l.manager.ListWorkspaces(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list workspaces of session %s: %w", sessionID, err)
	}

	if len(workspaces) == 0 {
		l.logger.Info("Session deleted without workspaces", "session_id", sessionID)
		return nil
	}

	for _, ws := range workspaces {
		if err := l.manager.DeleteWorkspace(ctx, ws.ID); err != nil {
			l.logger.Error("Failed to delete workspace on session deletion",
				"session_id", sessionID, "workspace_id", ws.ID, "error", err)
		}
	}
	return nil
}
