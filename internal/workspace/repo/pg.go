package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"devspace/internal/apperr"
	"devspace/internal/workspace"

	"github.com/go-pg/pg/v10"
	"github.com/go-pg/pg/v10/orm"
	"github.com/redis/go-redis/v9"
)

var _ workspace.WorkspaceRepository = (*Repository)(nil)

type Repository struct {
	db    *pg.DB
	redis redis.Cmdable
}

func NewRepository(db *pg.DB, redis redis.Cmdable) *Repository {
	return &Repository{
		db:    db,
		redis: redis,
	}
}

func (r *Repository) Create(ctx context.Context, ws *workspace.Workspace) error {
	if _, err := r.db.ModelContext(ctx, toModel(ws)).Insert(); err != nil {
		return fmt.Errorf("insert workspace: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*workspace.Workspace, error) {
	if r.redis != nil {
		val, err := r.redis.Get(ctx, workspaceCacheKey(id)).Result()
		if err == nil {
			var cached WorkspaceModel
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				return fromModel(&cached), nil
			}
		}
	}

	m := &WorkspaceModel{ID: id}
	if err := r.db.ModelContext(ctx, m).WherePK().Select(); err != nil {
		if errors.Is(err, pg.ErrNoRows) {
			return nil, apperr.NotFoundf("workspace %s", id)
		}
		return nil, fmt.Errorf("select workspace: %w", err)
	}

	if r.redis != nil {
		if b, err := json.Marshal(m); err == nil {
			_ = r.redis.Set(ctx, workspaceCacheKey(id), b, workspaceCacheTTL).Err()
		}
	}

	return fromModel(m), nil
}

func (r *Repository) GetByName(ctx context.Context, sessionID, name string) (*workspace.Workspace, error) {
	m := &WorkspaceModel{}
	err := r.db.ModelContext(ctx, m).
		Where("session_id = ?", sessionID).
		Where("name = ?", name).
		Select()
	if err != nil {
		if errors.Is(err, pg.ErrNoRows) {
			return nil, apperr.NotFoundf("workspace %q under session %s", name, sessionID)
		}
		return nil, fmt.Errorf("select workspace by name: %w", err)
	}
	return fromModel(m), nil
}

func (r *Repository) ListBySession(ctx context.Context, sessionID string) ([]*workspace.Workspace, error) {
	var models []WorkspaceModel
	err := r.db.ModelContext(ctx, &models).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Select()
	if err != nil {
		return nil, fmt.Errorf("list workspaces by session: %w", err)
	}
	return fromModels(models), nil
}

func (r *Repository) ListAll(ctx context.Context) ([]*workspace.Workspace, error) {
	var models []WorkspaceModel
	err := r.db.ModelContext(ctx, &models).
		Order("created_at DESC").
		Select()
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	return fromModels(models), nil
}

func (r *Repository) Update(ctx context.Context, ws *workspace.Workspace) error {
	ws.UpdatedAt = time.Now()
	res, err := r.db.ModelContext(ctx, toModel(ws)).WherePK().Update()
	if err != nil {
		return fmt.Errorf("update workspace: %w", err)
	}
	if res.RowsAffected() == 0 {
		return apperr.NotFoundf("workspace %s", ws.ID)
	}

	r.invalidate(ctx, ws.ID)
	return nil
}

// UpdateStatus 同时维护状态派生的生命周期时间戳：
// running → started_at，stopped → stopped_at，deleted → deleted_at。
func (r *Repository) UpdateStatus(ctx context.Context, id string, status workspace.WorkspaceStatus) error {
	q := r.db.ModelContext(ctx, &WorkspaceModel{}).
		Set("status = ?", status).
		Set("updated_at = now()").
		Where("id = ?", id)
	q = withLifecycleTimestamp(q, status)

	res, err := q.Update()
	if err != nil {
		return fmt.Errorf("update workspace status: %w", err)
	}
	if res.RowsAffected() == 0 {
		return apperr.NotFoundf("workspace %s", id)
	}

	r.invalidate(ctx, id)
	return nil
}

func (r *Repository) UpdateStatusFrom(ctx context.Context, id string, from, to workspace.WorkspaceStatus) (bool, error) {
	q := r.db.ModelContext(ctx, &WorkspaceModel{}).
		Set("status = ?", to).
		Set("updated_at = now()").
		Where("id = ?", id).
		Where("status = ?", from)
	q = withLifecycleTimestamp(q, to)

	res, err := q.Update()
	if err != nil {
		return false, fmt.Errorf("compare-and-swap workspace status: %w", err)
	}

	swapped := res.RowsAffected() > 0
	if swapped {
		r.invalidate(ctx, id)
	}
	return swapped, nil
}

func (r *Repository) TouchLastUsed(ctx context.Context, id string, t time.Time) error {
	_, err := r.db.ModelContext(ctx, &WorkspaceModel{}).
		Set("last_used_at = ?", t).
		Where("id = ?", id).
		Update()
	if err != nil {
		return fmt.Errorf("touch workspace last-used: %w", err)
	}

	r.invalidate(ctx, id)
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ModelContext(ctx, &WorkspaceModel{ID: id}).WherePK().Delete()
	if err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	if res.RowsAffected() == 0 {
		return apperr.NotFoundf("workspace %s", id)
	}

	r.invalidate(ctx, id)
	return nil
}

func (r *Repository) DeleteBySessionID(ctx context.Context, sessionID string) error {
	var models []WorkspaceModel
	err := r.db.ModelContext(ctx, &models).
		Column("id").
		Where("session_id = ?", sessionID).
		Select()
	if err != nil {
		return fmt.Errorf("list workspaces for delete: %w", err)
	}

	if _, err := r.db.ModelContext(ctx, &WorkspaceModel{}).
		Where("session_id = ?", sessionID).
		Delete(); err != nil {
		return fmt.Errorf("delete workspaces by session: %w", err)
	}

	for i := range models {
		r.invalidate(ctx, models[i].ID)
	}
	return nil
}

func (r *Repository) invalidate(ctx context.Context, id string) {
	if r.redis != nil {
		_ = r.redis.Del(ctx, workspaceCacheKey(id)).Err()
	}
}

// withLifecycleTimestamp 在状态写入时一并维护对应的生命周期时间戳列。
func withLifecycleTimestamp(q *orm.Query, status workspace.WorkspaceStatus) *orm.Query {
	switch status {
	case workspace.StatusRunning:
		return q.Set("started_at = now()").Set("last_used_at = now()")
	case workspace.StatusStopped:
		return q.Set("stopped_at = now()")
	case workspace.StatusDeleted:
		return q.Set("deleted_at = now()")
	default:
		return q
	}
}

func fromModels(models []WorkspaceModel) []*workspace.Workspace {
	out := make([]*workspace.Workspace, 0, len(models))
	for i := range models {
		out = append(out, fromModel(&models[i]))
	}
	return out
}
