package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"devspace/internal/apperr"

	"github.com/google/uuid"
)

type Manager struct {
	repo        SessionRepository
	hooks       LifecycleHooks
	broadcaster Broadcaster
	logger      *slog.Logger
}

func NewManager(repo SessionRepository, hooks LifecycleHooks, broadcaster Broadcaster, logger *slog.Logger) *Manager {
	return &Manager{
		repo:        repo,
		hooks:       hooks,
		broadcaster: broadcaster,
		logger:      logger.With("component", "session-manager"),
	}
}

func (m *Manager) CreateSession(ctx context.Context, params SessionParams) (*Session, error) {
	if params.Name == "" {
		return nil, apperr.InvalidArgumentf("session name is required")
	}

	if existing, err := m.repo.GetByName(ctx, params.Name); err == nil && existing != nil {
		return nil, apperr.InvalidArgumentf("session name %q already in use", params.Name)
	} else if err != nil && !apperr.IsNotFound(err) {
		return nil, fmt.Errorf("check session name: %w", err)
	}

	now := time.Now()
	sess := &Session{
		ID:          uuid.New().String(),
		Name:        params.Name,
		Status:      StatusActive,
		Tags:        params.Tags,
		Description: params.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := m.repo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	// hook 失败不回滚：session 允许在没有 workspace 的情况下存在
	if err := m.hooks.OnSessionCreated(ctx, sess); err != nil {
		m.logger.Error("Session created hook failed",
			"session_id", sess.ID, "error", err)
	}

	m.broadcaster.SessionCreated(ctx, sess)

	m.logger.Info("Session created", "session_id", sess.ID, "name", sess.Name)
	return sess, nil
}

func (m *Manager) GetSession(ctx context.Context, id string) (*Session, error) {
	return m.repo.GetByID(ctx, id)
}

func (m *Manager) ListSessions(ctx context.Context) ([]*Session, error) {
	return m.repo.List(ctx)
}

// UpdateSession mutates user-writable fields only. Status never travels through
// this path; the API layer rejects it before we get here, and the repository
// update does not touch the status column.
func (m *Manager) UpdateSession(ctx context.Context, id string, params UpdateParams) (*Session, error) {
	sess, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil && *params.Name != sess.Name {
		if *params.Name == "" {
			return nil, apperr.InvalidArgumentf("session name is required")
		}
		if existing, err := m.repo.GetByName(ctx, *params.Name); err == nil && existing != nil {
			return nil, apperr.InvalidArgumentf("session name %q already in use", *params.Name)
		} else if err != nil && !apperr.IsNotFound(err) {
			return nil, fmt.Errorf("check session name: %w", err)
		}
		sess.Name = *params.Name
	}
	if params.Tags != nil {
		sess.Tags = params.Tags
	}
	if params.Description != nil {
		sess.Description = *params.Description
	}
	sess.UpdatedAt = time.Now()

	if err := m.repo.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	return sess, nil
}

// SystemUpdateStatus is the privileged status write used by internal callers.
// End-user requests never reach it; 面向用户的 status 更新在 API 层直接拒绝。
func (m *Manager) SystemUpdateStatus(ctx context.Context, id string, status SessionStatus) (*Session, error) {
	if !status.IsValid() {
		return nil, apperr.InvalidArgumentf("unknown session status %q", status)
	}

	sess, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	old := sess.Status
	if old == status {
		return sess, nil
	}

	if err := m.repo.UpdateSessionStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("update session status: %w", err)
	}
	sess.Status = status
	sess.UpdatedAt = time.Now()

	if err := m.hooks.OnSessionStatusChanged(ctx, sess, old); err != nil {
		m.logger.Error("Session status hook failed",
			"session_id", id, "old_status", old, "new_status", status, "error", err)
	}

	m.broadcaster.SessionUpdated(ctx, sess, old)

	m.logger.Info("Session status updated",
		"session_id", id, "old_status", old, "new_status", status)
	return sess, nil
}

func (m *Manager) DeleteSession(ctx context.Context, id string) error {
	if _, err := m.repo.GetByID(ctx, id); err != nil {
		return err
	}

	// 先让 hook 发起 workspace 删除；workspace 记录会异步走完 deleting→deleted
	if err := m.hooks.OnSessionDeleted(ctx, id); err != nil {
		m.logger.Error("Session deleted hook failed", "session_id", id, "error", err)
	}

	if err := m.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	m.broadcaster.SessionDeleted(ctx, id)

	m.logger.Info("Session deleted", "session_id", id)
	return nil
}
