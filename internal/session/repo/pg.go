package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"devspace/internal/apperr"
	"devspace/internal/session"

	"github.com/go-pg/pg/v10"
	"github.com/redis/go-redis/v9"
)

var _ session.SessionRepository = (*Repository)(nil)

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

func (r *Repository) Create(ctx context.Context, sess *session.Session) error {
	if _, err := r.db.ModelContext(ctx, toModel(sess)).Insert(); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*session.Session, error) {
	if r.redis != nil {
		val, err := r.redis.Get(ctx, sessionCacheKey(id)).Result()
		if err == nil {
			var cached SessionModel
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				return fromModel(&cached), nil
			}
		}
	}

	m := &SessionModel{ID: id}
	if err := r.db.ModelContext(ctx, m).WherePK().Select(); err != nil {
		if errors.Is(err, pg.ErrNoRows) {
			return nil, apperr.NotFoundf("session %s", id)
		}
		return nil, fmt.Errorf("select session: %w", err)
	}

	if r.redis != nil {
		if b, err := json.Marshal(m); err == nil {
			_ = r.redis.Set(ctx, sessionCacheKey(id), b, sessionCacheTTL).Err()
		}
	}

	return fromModel(m), nil
}

func (r *Repository) GetByName(ctx context.Context, name string) (*session.Session, error) {
	m := &SessionModel{}
	err := r.db.ModelContext(ctx, m).
		Where("name = ?", name).
		Select()
	if err != nil {
		if errors.Is(err, pg.ErrNoRows) {
			return nil, apperr.NotFoundf("session named %q", name)
		}
		return nil, fmt.Errorf("select session by name: %w", err)
	}
	return fromModel(m), nil
}

func (r *Repository) List(ctx context.Context) ([]*session.Session, error) {
	var models []SessionModel
	err := r.db.ModelContext(ctx, &models).
		Order("created_at DESC").
		Select()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessions := make([]*session.Session, 0, len(models))
	for i := range models {
		sessions = append(sessions, fromModel(&models[i]))
	}
	return sessions, nil
}

func (r *Repository) Update(ctx context.Context, sess *session.Session) error {
	res, err := r.db.ModelContext(ctx, toModel(sess)).
		Column("name", "tags", "description", "updated_at").
		WherePK().
		Update()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if res.RowsAffected() == 0 {
		return apperr.NotFoundf("session %s", sess.ID)
	}

	r.invalidate(ctx, sess.ID)
	return nil
}

func (r *Repository) UpdateSessionStatus(ctx context.Context, id string, status session.SessionStatus) error {
	res, err := r.db.ModelContext(ctx, &SessionModel{}).
		Set("session_status = ?", status).
		Set("updated_at = now()").
		Where("id = ?", id).
		Update()
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	if res.RowsAffected() == 0 {
		return apperr.NotFoundf("session %s", id)
	}

	r.invalidate(ctx, id)
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ModelContext(ctx, &SessionModel{ID: id}).WherePK().Delete()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if res.RowsAffected() == 0 {
		return apperr.NotFoundf("session %s", id)
	}

	r.invalidate(ctx, id)
	return nil
}

// 缓存失效
func (r *Repository) invalidate(ctx context.Context, id string) {
	if r.redis != nil {
		_ = r.redis.Del(ctx, sessionCacheKey(id)).Err()
	}
}
