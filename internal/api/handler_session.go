package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"devspace/internal/eventbus"
	"devspace/internal/poller"
	"devspace/internal/reconciler"
	"devspace/internal/session"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	sessions   *session.Manager
	reconciler *reconciler.Reconciler
	poller     *poller.Poller
	bus        eventbus.EventBus
}

func NewSessionHandler(
	sessions *session.Manager,
	rec *reconciler.Reconciler,
	p *poller.Poller,
	bus eventbus.EventBus,
) *SessionHandler {
	return &SessionHandler{
		sessions:   sessions,
		reconciler: rec,
		poller:     p,
		bus:        bus,
	}
}

func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, ErrInvalidRequest, err.Error())
		return
	}

	sess, err := h.sessions.CreateSession(c.Request.Context(), session.SessionParams{
		Name:        req.Name,
		Tags:        req.Tags,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, mapServiceError(err), err)
		return
	}

	c.JSON(http.StatusCreated, toSessionResponse(sess))
}

func (h *SessionHandler) ListSessions(c *gin.Context) {
	sessions, err := h.sessions.ListSessions(c.Request.Context())
	if err != nil {
		respondError(c, mapServiceError(err), err)
		return
	}

	resp := make([]SessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		resp = append(resp, toSessionResponse(sess))
	}
	c.JSON(http.StatusOK, SessionListResponse{Sessions: resp})
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	sess, err := h.sessions.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, mapServiceError(err), err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

// UpdateSession PUT /api/v1/sessions/:id
// status 字段到达这里直接拒绝：面向用户的接口永远不写 session status。
func (h *SessionHandler) UpdateSession(c *gin.Context) {
	var req UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, ErrInvalidRequest, err.Error())
		return
	}

	if req.Status != nil {
		respondError(c, http.StatusBadRequest, ErrStatusNotUserWritable)
		return
	}

	sess, err := h.sessions.UpdateSession(c.Request.Context(), c.Param("id"), session.UpdateParams{
		Name:        req.Name,
		Tags:        req.Tags,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, mapServiceError(err), err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

func (h *SessionHandler) DeleteSession(c *gin.Context) {
	if err := h.sessions.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, mapServiceError(err), err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SystemUpdateStatus PUT /internal/v1/sessions/:id/status
// 特权状态写入口，仅限系统调用方（SystemTokenMiddleware 保护）。
func (h *SessionHandler) SystemUpdateStatus(c *gin.Context) {
	var req SystemStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, ErrInvalidRequest, err.Error())
		return
	}

	sess, err := h.sessions.SystemUpdateStatus(c.Request.Context(), c.Param("id"),
		session.SessionStatus(req.Status))
	if err != nil {
		respondError(c, mapServiceError(err), err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

// ForceSync POST /api/v1/sessions/:id/sync
// 操作员触发的单 session 状态修复。
func (h *SessionHandler) ForceSync(c *gin.Context) {
	if err := h.reconciler.ForceSync(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, mapServiceError(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "synced"})
}

// ForcePoll POST /api/v1/sessions/:id/poll
// 操作员触发的单 session provider 漂移检查。
func (h *SessionHandler) ForcePoll(c *gin.Context) {
	if err := h.poller.ForcePoll(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, mapServiceError(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "polled"})
}

// StreamEvents GET /api/v1/sessions/:id/stream
// 通过 SSE 向客户端推送 Session 事件流
func (h *SessionHandler) StreamEvents(c *gin.Context) {
	sessionID := c.Param("id")

	if _, err := h.sessions.GetSession(c.Request.Context(), sessionID); err != nil {
		respondError(c, mapServiceError(err), err)
		return
	}

	eventCh, err := h.bus.Subscribe(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	// 长连接需要禁用服务器级 WriteTimeout，否则 SSE 会被强制断开
	rc := http.NewResponseController(c.Writer)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		slog.Warn("Failed to disable write deadline for SSE", "error", err)
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-eventCh:
			if !ok {
				return false
			}

			data, err := json.Marshal(SSEEvent{
				Type:      string(event.Type),
				SessionID: event.SessionID,
				Payload:   event.Payload,
				Timestamp: formatTime(event.Timestamp),
			})
			if err != nil {
				return false
			}

			c.SSEvent("message", string(data))
			return true

		case <-c.Request.Context().Done():
			// 客户端断连
			return false

		case <-time.After(30 * time.Second):
			// 心跳保持连接
			c.SSEvent("ping", "")
			return true
		}
	})
}
