// Package notify fans status changes out to interested listeners through the
// event bus. Broadcasts are fire-and-forget: a failed publish is logged and
// never surfaces to the caller.
package notify

import (
	"context"
	"log/slog"
	"time"

	"devspace/internal/eventbus"
	"devspace/internal/session"
	"devspace/internal/workspace"
)

var (
	_ session.Broadcaster   = (*Notifier)(nil)
	_ workspace.Broadcaster = (*Notifier)(nil)
)

type Notifier struct {
	bus    eventbus.EventBus
	logger *slog.Logger
}

func NewNotifier(bus eventbus.EventBus, logger *slog.Logger) *Notifier {
	return &Notifier{
		bus:    bus,
		logger: logger.With("component", "notifier"),
	}
}

func (n *Notifier) SessionCreated(ctx context.Context, sess *session.Session) {
	n.publish(ctx, sess.ID, eventbus.Event{
		Type:      eventbus.EventSessionCreated,
		SessionID: sess.ID,
		Payload:   sess,
		Timestamp: time.Now(),
	})
}

func (n *Notifier) SessionUpdated(ctx context.Context, sess *session.Session, previousStatus session.SessionStatus) {
	n.publish(ctx, sess.ID, eventbus.Event{
		Type:      eventbus.EventSessionUpdated,
		SessionID: sess.ID,
		Payload: map[string]any{
			"session":         sess,
			"previous_status": previousStatus,
		},
		Timestamp: time.Now(),
	})
}

func (n *Notifier) SessionDeleted(ctx context.Context, sessionID string) {
	n.publish(ctx, sessionID, eventbus.Event{
		Type:      eventbus.EventSessionDeleted,
		SessionID: sessionID,
		Timestamp: time.Now(),
	})
}

func (n *Notifier) WorkspaceUpdated(ctx context.Context, ws *workspace.Workspace) {
	n.publish(ctx, ws.SessionID, eventbus.Event{
		Type:      eventbus.EventWorkspaceUpdated,
		SessionID: ws.SessionID,
		Payload:   ws,
		Timestamp: time.Now(),
	})
}

func (n *Notifier) publish(ctx context.Context, sessionID string, event eventbus.Event) {
	if err := n.bus.Publish(ctx, sessionID, event); err != nil {
		n.logger.Warn("Failed to publish event",
			"type", event.Type, "session_id", sessionID, "error", err)
	}
}
