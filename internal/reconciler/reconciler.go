// Package reconciler derives session status from workspace status and corrects
// drift between the two records. It runs on demand (event-driven, from the
// orchestrator and the poller) and as a periodic sweep over all sessions; the
// sweep is the self-healing path for missed or lost events.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"

	"devspace/internal/apperr"
	"devspace/internal/monitor"
	"devspace/internal/session"
	"devspace/internal/statusmap"
	"devspace/internal/workspace"
)

type Reconciler struct {
	sessions    session.SessionRepository
	workspaces  workspace.WorkspaceRepository
	broadcaster session.Broadcaster
	logger      *slog.Logger
}

func NewReconciler(
	sessions session.SessionRepository,
	workspaces workspace.WorkspaceRepository,
	broadcaster session.Broadcaster,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		sessions:    sessions,
		workspaces:  workspaces,
		broadcaster: broadcaster,
		logger:      logger.With("component", "reconciler"),
	}
}

// HandleWorkspaceStatusChange is the event-driven correction path. A missing
// owning session is a recoverable inconsistency (the workspace outlived its
// session), logged and skipped, never fatal.
func (r *Reconciler) HandleWorkspaceStatusChange(ctx context.Context, ws *workspace.Workspace, oldStatus workspace.WorkspaceStatus) {
	sess, err := r.sessions.GetByID(ctx, ws.SessionID)
	if err != nil {
		if apperr.IsNotFound(err) {
			r.logger.Warn("Workspace outlived its session",
				"workspace_id", ws.ID, "session_id", ws.SessionID,
				"old_status", oldStatus, "new_status", ws.Status)
			return
		}
		r.logger.Error("Failed to load session for reconciliation",
			"session_id", ws.SessionID, "error", err)
		return
	}

	if _, err := r.syncSession(ctx, sess); err != nil {
		r.logger.Error("Reconciliation failed",
			"session_id", sess.ID, "workspace_id", ws.ID, "error", err)
	}
}

// ForceSync runs the same correction synchronously for one session.
func (r *Reconciler) ForceSync(ctx context.Context, sessionID string) error {
	sess, err := r.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	_, err = r.syncSession(ctx, sess)
	return err
}

// PeriodicSweep applies the derivation to every session independently. One bad
// record never aborts the sweep; already-consistent sessions are no-ops, so
// running it twice back to back performs no extra writes.
func (r *Reconciler) PeriodicSweep(ctx context.Context) error {
	sessions, err := r.sessions.List(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	monitor.ReconcilerSweepsTotal.Inc()

	corrected := 0
	active := 0
	for _, sess := range sessions {
		changed, err := r.syncSession(ctx, sess)
		if err != nil {
			r.logger.Error("Sweep skipping session", "session_id", sess.ID, "error", err)
			continue
		}
		if changed {
			corrected++
		}
		if sess.Status == session.StatusActive {
			active++
		}
	}
	monitor.SessionActiveCount.Set(float64(active))

	if corrected > 0 {
		r.logger.Info("Reconciliation sweep corrected sessions",
			"total", len(sessions), "corrected", corrected)
	}
	return nil
}

// syncSession derives the expected session status from all of the session's
// workspaces and persists it when it differs. Zero workspaces or an all-pending
// set retain the prior status (status is monotonic by inaction, never guessed).
func (r *Reconciler) syncSession(ctx context.Context, sess *session.Session) (bool, error) {
	workspaces, err := r.workspaces.ListBySession(ctx, sess.ID)
	if err != nil {
		return false, fmt.Errorf("list workspaces of session %s: %w", sess.ID, err)
	}

	if len(workspaces) > 1 {
		// 设计基数是一 session 一 workspace；多于一个容忍并记录
		r.logger.Warn("Session has multiple workspaces",
			"session_id", sess.ID, "count", len(workspaces))
	}

	derived, ok := deriveStatus(workspaces)
	if !ok || derived == sess.Status {
		return false, nil
	}

	old := sess.Status
	if err := r.sessions.UpdateSessionStatus(ctx, sess.ID, derived); err != nil {
		return false, fmt.Errorf("update session %s status: %w", sess.ID, err)
	}
	sess.Status = derived

	monitor.ReconcilerCorrectionsTotal.Inc()
	r.broadcaster.SessionUpdated(ctx, sess, old)

	r.logger.Info("Session status reconciled",
		"session_id", sess.ID, "old_status", old, "new_status", derived)
	return true, nil
}

// deriveStatus folds the workspace set into one session status. Any workspace
// that still implies usability wins; pending workspaces carry no signal.
func deriveStatus(workspaces []*workspace.Workspace) (session.SessionStatus, bool) {
	derived := session.SessionStatus("")
	found := false

	for _, ws := range workspaces {
		st, ok := statusmap.SessionStatusFor(ws.Status)
		if !ok {
			continue
		}
		if !found {
			derived = st
			found = true
			continue
		}
		if precedence(st) > precedence(derived) {
			derived = st
		}
	}
	return derived, found
}

func precedence(s session.SessionStatus) int {
	switch s {
	case session.StatusActive:
		return 3
	case session.StatusInactive:
		return 2
	case session.StatusArchived:
		return 1
	default:
		return 0
	}
}
