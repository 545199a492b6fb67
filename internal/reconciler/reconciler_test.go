package reconciler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"devspace/internal/apperr"
	"devspace/internal/reconciler"
	"devspace/internal/session"
	"devspace/internal/workspace"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSessionRepo struct {
	sessions     map[string]*session.Session
	statusWrites int
}

func (r *fakeSessionRepo) Create(ctx context.Context, sess *session.Session) error {
	r.sessions[sess.ID] = sess
	return nil
}

func (r *fakeSessionRepo) GetByID(ctx context.Context, id string) (*session.Session, error) {
	sess, ok := r.sessions[id]
	if !ok {
		return nil, apperr.NotFoundf("session %s not found", id)
	}
	cp := *sess
	return &cp, nil
}

func (r *fakeSessionRepo) GetByName(ctx context.Context, name string) (*session.Session, error) {
	for _, sess := range r.sessions {
		if sess.Name == name {
			return sess, nil
		}
	}
	return nil, apperr.NotFoundf("session %q not found", name)
}

func (r *fakeSessionRepo) List(ctx context.Context) ([]*session.Session, error) {
	out := make([]*session.Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		cp := *sess
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeSessionRepo) Update(ctx context.Context, sess *session.Session) error {
	r.sessions[sess.ID] = sess
	return nil
}

func (r *fakeSessionRepo) UpdateSessionStatus(ctx context.Context, id string, status session.SessionStatus) error {
	sess, ok := r.sessions[id]
	if !ok {
		return apperr.NotFoundf("session %s not found", id)
	}
	sess.Status = status
	r.statusWrites++
	return nil
}

func (r *fakeSessionRepo) Delete(ctx context.Context, id string) error {
	delete(r.sessions, id)
	return nil
}

// fakeWorkspaceLister 只实现 reconciler 用到的读路径，其余 panic
type fakeWorkspaceLister struct {
	workspace.WorkspaceRepository
	bySession map[string][]*workspace.Workspace
	failFor   map[string]error
}

func (r *fakeWorkspaceLister) ListBySession(ctx context.Context, sessionID string) ([]*workspace.Workspace, error) {
	if err, ok := r.failFor[sessionID]; ok {
		return nil, err
	}
	return r.bySession[sessionID], nil
}

type countingBroadcaster struct {
	updated []string
}

func (b *countingBroadcaster) SessionCreated(ctx context.Context, sess *session.Session) {}

func (b *countingBroadcaster) SessionUpdated(ctx context.Context, sess *session.Session, old session.SessionStatus) {
	b.updated = append(b.updated, string(old)+"->"+string(sess.Status))
}

func (b *countingBroadcaster) SessionDeleted(ctx context.Context, sessionID string) {}

func ws(id, sessionID string, status workspace.WorkspaceStatus) *workspace.Workspace {
	return &workspace.Workspace{
		ID:        id,
		SessionID: sessionID,
		Name:      id,
		Status:    status,
		CreatedAt: time.Now(),
	}
}

func sess(id string, status session.SessionStatus) *session.Session {
	return &session.Session{ID: id, Name: id, Status: status}
}

func TestForceSync(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name       string
		sessStatus session.SessionStatus
		workspaces []*workspace.Workspace
		want       session.SessionStatus
		wantWrite  bool
	}{
		{
			name:       "RunningWorkspaceActivatesSession",
			sessStatus: session.StatusInactive,
			workspaces: []*workspace.Workspace{ws("w1", "s1", workspace.StatusRunning)},
			want:       session.StatusActive,
			wantWrite:  true,
		},
		{
			name:       "StoppedWorkspaceDeactivatesSession",
			sessStatus: session.StatusActive,
			workspaces: []*workspace.Workspace{ws("w1", "s1", workspace.StatusStopped)},
			want:       session.StatusInactive,
			wantWrite:  true,
		},
		{
			name:       "DeletedWorkspaceArchivesSession",
			sessStatus: session.StatusActive,
			workspaces: []*workspace.Workspace{ws("w1", "s1", workspace.StatusDeleted)},
			want:       session.StatusArchived,
			wantWrite:  true,
		},
		{
			name:       "ZeroWorkspacesRetainStatus",
			sessStatus: session.StatusActive,
			workspaces: nil,
			want:       session.StatusActive,
			wantWrite:  false,
		},
		{
			name:       "PendingCarriesNoSignal",
			sessStatus: session.StatusInactive,
			workspaces: []*workspace.Workspace{ws("w1", "s1", workspace.StatusPending)},
			want:       session.StatusInactive,
			wantWrite:  false,
		},
		{
			name:       "AlreadyConsistentIsNoop",
			sessStatus: session.StatusActive,
			workspaces: []*workspace.Workspace{ws("w1", "s1", workspace.StatusRunning)},
			want:       session.StatusActive,
			wantWrite:  false,
		},
		{
			name:       "ActiveWinsOverInactive",
			sessStatus: session.StatusArchived,
			workspaces: []*workspace.Workspace{
				ws("w1", "s1", workspace.StatusStopped),
				ws("w2", "s1", workspace.StatusRunning),
			},
			want:      session.StatusActive,
			wantWrite: true,
		},
		{
			name:       "InactiveWinsOverArchived",
			sessStatus: session.StatusActive,
			workspaces: []*workspace.Workspace{
				ws("w1", "s1", workspace.StatusDeleted),
				ws("w2", "s1", workspace.StatusFailed),
			},
			want:      session.StatusInactive,
			wantWrite: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sessions := &fakeSessionRepo{sessions: map[string]*session.Session{
				"s1": sess("s1", tc.sessStatus),
			}}
			workspaces := &fakeWorkspaceLister{bySession: map[string][]*workspace.Workspace{
				"s1": tc.workspaces,
			}}
			bc := &countingBroadcaster{}
			r := reconciler.NewReconciler(sessions, workspaces, bc, testLogger())

			if err := r.ForceSync(ctx, "s1"); err != nil {
				t.Fatalf("ForceSync failed: %v", err)
			}
			if got := sessions.sessions["s1"].Status; got != tc.want {
				t.Errorf("Expected session status %s, got %s", tc.want, got)
			}
			if tc.wantWrite && sessions.statusWrites != 1 {
				t.Errorf("Expected 1 status write, got %d", sessions.statusWrites)
			}
			if !tc.wantWrite && sessions.statusWrites != 0 {
				t.Errorf("Expected no status writes, got %d", sessions.statusWrites)
			}
			if tc.wantWrite != (len(bc.updated) == 1) {
				t.Errorf("Broadcast mismatch: wantWrite=%v, broadcasts=%v", tc.wantWrite, bc.updated)
			}
		})
	}

	t.Run("MissingSession", func(t *testing.T) {
		sessions := &fakeSessionRepo{sessions: map[string]*session.Session{}}
		workspaces := &fakeWorkspaceLister{}
		r := reconciler.NewReconciler(sessions, workspaces, &countingBroadcaster{}, testLogger())

		if err := r.ForceSync(ctx, "missing"); !apperr.IsNotFound(err) {
			t.Fatalf("Expected not found, got %v", err)
		}
	})
}

func TestPeriodicSweep(t *testing.T) {
	ctx := context.Background()

	t.Run("SecondSweepIsIdempotent", func(t *testing.T) {
		sessions := &fakeSessionRepo{sessions: map[string]*session.Session{
			"s1": sess("s1", session.StatusInactive),
			"s2": sess("s2", session.StatusActive),
		}}
		workspaces := &fakeWorkspaceLister{bySession: map[string][]*workspace.Workspace{
			"s1": {ws("w1", "s1", workspace.StatusRunning)},
			"s2": {ws("w2", "s2", workspace.StatusRunning)},
		}}
		r := reconciler.NewReconciler(sessions, workspaces, &countingBroadcaster{}, testLogger())

		if err := r.PeriodicSweep(ctx); err != nil {
			t.Fatalf("First sweep failed: %v", err)
		}
		if sessions.statusWrites != 1 {
			t.Fatalf("Expected exactly 1 correction on first sweep, got %d", sessions.statusWrites)
		}

		if err := r.PeriodicSweep(ctx); err != nil {
			t.Fatalf("Second sweep failed: %v", err)
		}
		if sessions.statusWrites != 1 {
			t.Errorf("Second sweep must perform no writes, total writes %d", sessions.statusWrites)
		}
	})

	t.Run("FailureIsolation", func(t *testing.T) {
		sessions := &fakeSessionRepo{sessions: map[string]*session.Session{
			"bad":  sess("bad", session.StatusActive),
			"good": sess("good", session.StatusActive),
		}}
		workspaces := &fakeWorkspaceLister{
			bySession: map[string][]*workspace.Workspace{
				"good": {ws("w1", "good", workspace.StatusStopped)},
			},
			failFor: map[string]error{"bad": errors.New("storage offline")},
		}
		r := reconciler.NewReconciler(sessions, workspaces, &countingBroadcaster{}, testLogger())

		if err := r.PeriodicSweep(ctx); err != nil {
			t.Fatalf("Sweep must survive a bad session: %v", err)
		}
		if got := sessions.sessions["good"].Status; got != session.StatusInactive {
			t.Errorf("Healthy session must still be corrected, got %s", got)
		}
	})
}

func TestHandleWorkspaceStatusChange(t *testing.T) {
	ctx := context.Background()

	t.Run("CorrectsOwningSession", func(t *testing.T) {
		sessions := &fakeSessionRepo{sessions: map[string]*session.Session{
			"s1": sess("s1", session.StatusActive),
		}}
		w := ws("w1", "s1", workspace.StatusStopped)
		workspaces := &fakeWorkspaceLister{bySession: map[string][]*workspace.Workspace{
			"s1": {w},
		}}
		bc := &countingBroadcaster{}
		r := reconciler.NewReconciler(sessions, workspaces, bc, testLogger())

		r.HandleWorkspaceStatusChange(ctx, w, workspace.StatusRunning)

		if got := sessions.sessions["s1"].Status; got != session.StatusInactive {
			t.Errorf("Expected inactive, got %s", got)
		}
		if len(bc.updated) != 1 || bc.updated[0] != "active->inactive" {
			t.Errorf("Expected active->inactive broadcast, got %v", bc.updated)
		}
	})

	t.Run("OrphanWorkspaceIsTolerated", func(t *testing.T) {
		sessions := &fakeSessionRepo{sessions: map[string]*session.Session{}}
		workspaces := &fakeWorkspaceLister{}
		r := reconciler.NewReconciler(sessions, workspaces, &countingBroadcaster{}, testLogger())

		// 不 panic、不报错即可
		r.HandleWorkspaceStatusChange(ctx, ws("w1", "gone", workspace.StatusDeleted), workspace.StatusRunning)
	})
}
