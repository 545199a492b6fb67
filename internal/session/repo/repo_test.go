package repo_test

import (
	"context"
	"testing"
	"time"

	"devspace/internal/apperr"
	"devspace/internal/session"
	"devspace/internal/session/repo"

	"github.com/go-pg/pg/v10"
	"github.com/go-pg/pg/v10/orm"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisAddr    = "localhost:6383"
	postgresAddr = "localhost:5432"
	postgresUser = "test"
	postgresPass = "test"
	postgresDB   = "testdb"
)

// RepoTestHarness manages the integration test infrastructure
type RepoTestHarness struct {
	t           *testing.T
	pgDB        *pg.DB
	redisClient *redis.Client
	repo        *repo.Repository
}

func NewRepoTestHarness(t *testing.T) *RepoTestHarness {
	t.Helper()
	ctx := context.Background()

	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis at %s: %v. Make sure docker-compose.test.yml is running.", redisAddr, err)
	}

	pgDB := pg.Connect(&pg.Options{
		Addr:     postgresAddr,
		User:     postgresUser,
		Password: postgresPass,
		Database: postgresDB,
	})
	if _, err := pgDB.Exec("SELECT 1"); err != nil {
		t.Fatalf("Failed to connect to Postgres at %s: %v. Make sure docker-compose.test.yml is running.", postgresAddr, err)
	}

	h := &RepoTestHarness{
		t:           t,
		pgDB:        pgDB,
		redisClient: redisClient,
		repo:        repo.NewRepository(pgDB, redisClient),
	}
	h.initSchema(ctx)

	t.Cleanup(func() {
		pgDB.Close()
		redisClient.Close()
	})
	return h
}

func (h *RepoTestHarness) initSchema(ctx context.Context) {
	if _, err := h.pgDB.ExecContext(ctx, "DROP TABLE IF EXISTS session_models"); err != nil {
		h.t.Logf("Failed to drop table: %v", err)
	}
	if err := h.pgDB.Model(&repo.SessionModel{}).CreateTable(&orm.CreateTableOptions{
		IfNotExists: true,
	}); err != nil {
		h.t.Fatalf("Failed to create session table: %v", err)
	}
}

func (h *RepoTestHarness) newSession(name string) *session.Session {
	now := time.Now().Truncate(time.Millisecond)
	return &session.Session{
		ID:        uuid.New().String(),
		Name:      name,
		Status:    session.StatusActive,
		Tags:      []string{"integration"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSessionRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h := NewRepoTestHarness(t)
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		sess := h.newSession("repo-create")
		if err := h.repo.Create(ctx, sess); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		got, err := h.repo.GetByID(ctx, sess.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if got.Name != sess.Name || got.Status != session.StatusActive {
			t.Errorf("Unexpected session: %+v", got)
		}

		// 第二次命中缓存，结果一致
		cached, err := h.repo.GetByID(ctx, sess.ID)
		if err != nil {
			t.Fatalf("Cached GetByID failed: %v", err)
		}
		if cached.Name != got.Name || cached.Status != got.Status {
			t.Errorf("Cache returned different record: %+v vs %+v", cached, got)
		}
	})

	t.Run("GetByName", func(t *testing.T) {
		sess := h.newSession("repo-by-name")
		if err := h.repo.Create(ctx, sess); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		got, err := h.repo.GetByName(ctx, "repo-by-name")
		if err != nil {
			t.Fatalf("GetByName failed: %v", err)
		}
		if got.ID != sess.ID {
			t.Errorf("Expected %s, got %s", sess.ID, got.ID)
		}

		if _, err := h.repo.GetByName(ctx, "no-such-name"); !apperr.IsNotFound(err) {
			t.Errorf("Expected not found, got %v", err)
		}
	})

	t.Run("DuplicateNameRejected", func(t *testing.T) {
		sess := h.newSession("repo-dup")
		if err := h.repo.Create(ctx, sess); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		dup := h.newSession("repo-dup")
		if err := h.repo.Create(ctx, dup); err == nil {
			t.Error("Expected unique constraint violation on duplicate name")
		}
	})

	t.Run("UpdateStatusInvalidatesCache", func(t *testing.T) {
		sess := h.newSession("repo-status")
		if err := h.repo.Create(ctx, sess); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if _, err := h.repo.GetByID(ctx, sess.ID); err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}

		if err := h.repo.UpdateSessionStatus(ctx, sess.ID, session.StatusInactive); err != nil {
			t.Fatalf("UpdateSessionStatus failed: %v", err)
		}

		got, err := h.repo.GetByID(ctx, sess.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if got.Status != session.StatusInactive {
			t.Errorf("Expected inactive after update, got %s", got.Status)
		}
	})

	t.Run("UpdateStatusMissing", func(t *testing.T) {
		err := h.repo.UpdateSessionStatus(ctx, uuid.New().String(), session.StatusInactive)
		if !apperr.IsNotFound(err) {
			t.Errorf("Expected not found, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		sess := h.newSession("repo-delete")
		if err := h.repo.Create(ctx, sess); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if err := h.repo.Delete(ctx, sess.ID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := h.repo.GetByID(ctx, sess.ID); !apperr.IsNotFound(err) {
			t.Errorf("Expected not found after delete, got %v", err)
		}
	})
}
