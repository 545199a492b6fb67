package session_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"devspace/internal/apperr"
	"devspace/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memSessionRepo 是纯内存实现，record 顺序用于断言调用次序
type memSessionRepo struct {
	sessions map[string]*session.Session
	ops      []string
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*session.Session)}
}

func (r *memSessionRepo) Create(ctx context.Context, sess *session.Session) error {
	r.ops = append(r.ops, "create")
	cp := *sess
	r.sessions[sess.ID] = &cp
	return nil
}

func (r *memSessionRepo) GetByID(ctx context.Context, id string) (*session.Session, error) {
	sess, ok := r.sessions[id]
	if !ok {
		return nil, apperr.NotFoundf("session %s not found", id)
	}
	cp := *sess
	return &cp, nil
}

func (r *memSessionRepo) GetByName(ctx context.Context, name string) (*session.Session, error) {
	for _, sess := range r.sessions {
		if sess.Name == name {
			cp := *sess
			return &cp, nil
		}
	}
	return nil, apperr.NotFoundf("session %q not found", name)
}

func (r *memSessionRepo) List(ctx context.Context) ([]*session.Session, error) {
	out := make([]*session.Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		cp := *sess
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memSessionRepo) Update(ctx context.Context, sess *session.Session) error {
	r.ops = append(r.ops, "update")
	if _, ok := r.sessions[sess.ID]; !ok {
		return apperr.NotFoundf("session %s not found", sess.ID)
	}
	cp := *sess
	r.sessions[sess.ID] = &cp
	return nil
}

func (r *memSessionRepo) UpdateSessionStatus(ctx context.Context, id string, status session.SessionStatus) error {
	r.ops = append(r.ops, "update_status")
	sess, ok := r.sessions[id]
	if !ok {
		return apperr.NotFoundf("session %s not found", id)
	}
	sess.Status = status
	return nil
}

func (r *memSessionRepo) Delete(ctx context.Context, id string) error {
	r.ops = append(r.ops, "delete")
	if _, ok := r.sessions[id]; !ok {
		return apperr.NotFoundf("session %s not found", id)
	}
	delete(r.sessions, id)
	return nil
}

type recordingHooks struct {
	created       []string
	statusChanges []string
	deleted       []string
	ops           *[]string // shared with repo when ordering matters
	failCreate    error
}

func (h *recordingHooks) OnSessionCreated(ctx context.Context, sess *session.Session) error {
	h.created = append(h.created, sess.ID)
	if h.ops != nil {
		*h.ops = append(*h.ops, "hook_created")
	}
	return h.failCreate
}

func (h *recordingHooks) OnSessionStatusChanged(ctx context.Context, sess *session.Session, old session.SessionStatus) error {
	h.statusChanges = append(h.statusChanges, string(old)+"->"+string(sess.Status))
	return nil
}

func (h *recordingHooks) OnSessionDeleted(ctx context.Context, sessionID string) error {
	h.deleted = append(h.deleted, sessionID)
	if h.ops != nil {
		*h.ops = append(*h.ops, "hook_deleted")
	}
	return nil
}

type recordingBroadcaster struct {
	created int
	updated int
	deleted int
}

func (b *recordingBroadcaster) SessionCreated(ctx context.Context, sess *session.Session) {
	b.created++
}

func (b *recordingBroadcaster) SessionUpdated(ctx context.Context, sess *session.Session, old session.SessionStatus) {
	b.updated++
}

func (b *recordingBroadcaster) SessionDeleted(ctx context.Context, sessionID string) {
	b.deleted++
}

func newTestManager() (*session.Manager, *memSessionRepo, *recordingHooks, *recordingBroadcaster) {
	repo := newMemSessionRepo()
	hooks := &recordingHooks{}
	bc := &recordingBroadcaster{}
	return session.NewManager(repo, hooks, bc, testLogger()), repo, hooks, bc
}

func TestCreateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mgr, repo, hooks, bc := newTestManager()

		sess, err := mgr.CreateSession(ctx, session.SessionParams{
			Name: "alpha",
			Tags: []string{"dev"},
		})
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		if sess.ID == "" {
			t.Fatal("Expected session ID to be assigned")
		}
		if sess.Status != session.StatusActive {
			t.Errorf("Expected status active, got %s", sess.Status)
		}
		if len(repo.sessions) != 1 {
			t.Errorf("Expected 1 persisted session, got %d", len(repo.sessions))
		}
		if len(hooks.created) != 1 || hooks.created[0] != sess.ID {
			t.Errorf("Expected created hook for %s, got %v", sess.ID, hooks.created)
		}
		if bc.created != 1 {
			t.Errorf("Expected 1 created broadcast, got %d", bc.created)
		}
	})

	t.Run("EmptyName", func(t *testing.T) {
		mgr, _, _, _ := newTestManager()

		if _, err := mgr.CreateSession(ctx, session.SessionParams{}); !apperr.IsInvalidArgument(err) {
			t.Fatalf("Expected invalid argument, got %v", err)
		}
	})

	t.Run("DuplicateName", func(t *testing.T) {
		mgr, repo, _, _ := newTestManager()

		if _, err := mgr.CreateSession(ctx, session.SessionParams{Name: "alpha"}); err != nil {
			t.Fatalf("First create failed: %v", err)
		}

		_, err := mgr.CreateSession(ctx, session.SessionParams{Name: "alpha"})
		if !apperr.IsInvalidArgument(err) {
			t.Fatalf("Expected invalid argument for duplicate name, got %v", err)
		}
		if len(repo.sessions) != 1 {
			t.Errorf("Duplicate create must not persist a record, have %d", len(repo.sessions))
		}
	})

	t.Run("HookFailureKeepsSession", func(t *testing.T) {
		repo := newMemSessionRepo()
		hooks := &recordingHooks{failCreate: errors.New("provider down")}
		mgr := session.NewManager(repo, hooks, &recordingBroadcaster{}, testLogger())

		sess, err := mgr.CreateSession(ctx, session.SessionParams{Name: "alpha"})
		if err != nil {
			t.Fatalf("CreateSession must not fail on hook error: %v", err)
		}
		if _, ok := repo.sessions[sess.ID]; !ok {
			t.Error("Session must survive a failing workspace hook")
		}
	})
}

func TestUpdateSession(t *testing.T) {
	ctx := context.Background()
	mgr, _, _, _ := newTestManager()

	sess, err := mgr.CreateSession(ctx, session.SessionParams{Name: "alpha"})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := mgr.CreateSession(ctx, session.SessionParams{Name: "beta"}); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	t.Run("RenameToTakenName", func(t *testing.T) {
		name := "beta"
		_, err := mgr.UpdateSession(ctx, sess.ID, session.UpdateParams{Name: &name})
		if !apperr.IsInvalidArgument(err) {
			t.Fatalf("Expected invalid argument, got %v", err)
		}
	})

	t.Run("UpdateFields", func(t *testing.T) {
		desc := "updated"
		got, err := mgr.UpdateSession(ctx, sess.ID, session.UpdateParams{
			Tags:        []string{"prod"},
			Description: &desc,
		})
		if err != nil {
			t.Fatalf("UpdateSession failed: %v", err)
		}
		if got.Description != "updated" || len(got.Tags) != 1 || got.Tags[0] != "prod" {
			t.Errorf("Unexpected updated session: %+v", got)
		}
		if got.Status != session.StatusActive {
			t.Errorf("Update must not touch status, got %s", got.Status)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := mgr.UpdateSession(ctx, "missing", session.UpdateParams{}); !apperr.IsNotFound(err) {
			t.Fatalf("Expected not found, got %v", err)
		}
	})
}

func TestSystemUpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("InvalidStatus", func(t *testing.T) {
		mgr, _, _, _ := newTestManager()
		sess, _ := mgr.CreateSession(ctx, session.SessionParams{Name: "alpha"})

		if _, err := mgr.SystemUpdateStatus(ctx, sess.ID, "bogus"); !apperr.IsInvalidArgument(err) {
			t.Fatalf("Expected invalid argument, got %v", err)
		}
	})

	t.Run("SameStatusIsNoop", func(t *testing.T) {
		mgr, repo, hooks, bc := newTestManager()
		sess, _ := mgr.CreateSession(ctx, session.SessionParams{Name: "alpha"})
		repo.ops = nil

		got, err := mgr.SystemUpdateStatus(ctx, sess.ID, session.StatusActive)
		if err != nil {
			t.Fatalf("SystemUpdateStatus failed: %v", err)
		}
		if got.Status != session.StatusActive {
			t.Errorf("Expected active, got %s", got.Status)
		}
		if len(repo.ops) != 0 {
			t.Errorf("Same-status update must not write, ops: %v", repo.ops)
		}
		if len(hooks.statusChanges) != 0 || bc.updated != 0 {
			t.Error("Same-status update must not fire hooks or broadcasts")
		}
	})

	t.Run("TransitionFiresHook", func(t *testing.T) {
		mgr, repo, hooks, bc := newTestManager()
		sess, _ := mgr.CreateSession(ctx, session.SessionParams{Name: "alpha"})

		got, err := mgr.SystemUpdateStatus(ctx, sess.ID, session.StatusInactive)
		if err != nil {
			t.Fatalf("SystemUpdateStatus failed: %v", err)
		}
		if got.Status != session.StatusInactive {
			t.Errorf("Expected inactive, got %s", got.Status)
		}
		if repo.sessions[sess.ID].Status != session.StatusInactive {
			t.Error("Status change not persisted")
		}
		if len(hooks.statusChanges) != 1 || hooks.statusChanges[0] != "active->inactive" {
			t.Errorf("Expected active->inactive hook, got %v", hooks.statusChanges)
		}
		if bc.updated != 1 {
			t.Errorf("Expected 1 updated broadcast, got %d", bc.updated)
		}
	})
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()

	t.Run("NotFound", func(t *testing.T) {
		mgr, _, _, _ := newTestManager()
		if err := mgr.DeleteSession(ctx, "missing"); !apperr.IsNotFound(err) {
			t.Fatalf("Expected not found, got %v", err)
		}
	})

	t.Run("HookRunsBeforeDelete", func(t *testing.T) {
		repo := newMemSessionRepo()
		hooks := &recordingHooks{ops: &repo.ops}
		bc := &recordingBroadcaster{}
		mgr := session.NewManager(repo, hooks, bc, testLogger())

		sess, err := mgr.CreateSession(ctx, session.SessionParams{Name: "alpha"})
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		repo.ops = nil

		if err := mgr.DeleteSession(ctx, sess.ID); err != nil {
			t.Fatalf("DeleteSession failed: %v", err)
		}
		if len(repo.ops) != 2 || repo.ops[0] != "hook_deleted" || repo.ops[1] != "delete" {
			t.Errorf("Expected hook before delete, got %v", repo.ops)
		}
		if len(repo.sessions) != 0 {
			t.Error("Session record must be gone")
		}
		if bc.deleted != 1 {
			t.Errorf("Expected 1 deleted broadcast, got %d", bc.deleted)
		}
	})
}
