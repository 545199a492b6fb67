// Package statusmap holds the pure status-derivation functions shared by the
// reconciler and the drift poller. No side effects, no failure modes.
package statusmap

import (
	"strings"

	"devspace/internal/session"
	"devspace/internal/workspace"
)

// SessionStatusFor maps a workspace status to the session status it implies.
// pending 尚不能说明 session 是否可用，返回 ok=false 表示保持原状态。
func SessionStatusFor(ws workspace.WorkspaceStatus) (session.SessionStatus, bool) {
	switch ws {
	case workspace.StatusRunning, workspace.StatusStarting, workspace.StatusStopping:
		// stopping 仍视为 active：资源尚未到达终止态
		return session.StatusActive, true
	case workspace.StatusStopped, workspace.StatusFailed, workspace.StatusCanceled:
		return session.StatusInactive, true
	case workspace.StatusDeleted, workspace.StatusDeleting:
		return session.StatusArchived, true
	default:
		return "", false
	}
}

// WorkspaceStatusFromProvider maps the provider's build-status vocabulary to a
// workspace status. Unknown vocabulary yields ok=false; callers log and skip so
// a newer provider never breaks the poll loop.
func WorkspaceStatusFromProvider(s string) (workspace.WorkspaceStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "running":
		return workspace.StatusRunning, true
	case "stopped":
		return workspace.StatusStopped, true
	case "starting", "building":
		return workspace.StatusStarting, true
	case "stopping":
		return workspace.StatusStopping, true
	case "pending":
		return workspace.StatusPending, true
	case "failed":
		return workspace.StatusFailed, true
	case "canceled", "cancelled":
		return workspace.StatusCanceled, true
	case "deleting":
		return workspace.StatusDeleting, true
	case "deleted":
		return workspace.StatusDeleted, true
	default:
		return "", false
	}
}
