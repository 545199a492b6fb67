package api

import (
	"net/http"
	"time"

	"devspace/internal/workspace"

	"github.com/gin-gonic/gin"
)

type WorkspaceHandler struct {
	workspaces *workspace.Manager
}

func NewWorkspaceHandler(workspaces *workspace.Manager) *WorkspaceHandler {
	return &WorkspaceHandler{workspaces: workspaces}
}

// CreateWorkspace POST /api/v1/sessions/:id/workspaces
// 返回 pending 记录立即响应；进度通过读取或事件流观察。
func (h *WorkspaceHandler) CreateWorkspace(c *gin.Context) {
	var req CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, ErrInvalidRequest, err.Error())
		return
	}

	ws, err := h.workspaces.CreateWorkspace(c.Request.Context(), workspace.CreateParams{
		SessionID:   c.Param("id"),
		Name:        req.Name,
		TemplateID:  req.TemplateID,
		TTL:         time.Duration(req.TTLMinutes) * time.Minute,
		AutoUpdates: req.AutoUpdates,
	})
	if err != nil {
		respondError(c, mapServiceError(err), err)
		return
	}

	c.JSON(http.StatusAccepted, toWorkspaceResponse(ws))
}

func (h *WorkspaceHandler) ListWorkspaces(c *gin.Context) {
	workspaces, err := h.workspaces.ListWorkspaces(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, mapServiceError(err), err)
		return
	}

	resp := make([]WorkspaceResponse, 0, len(workspaces))
	for _, ws := range workspaces {
		resp = append(resp, toWorkspaceResponse(ws))
	}
	c.JSON(http.StatusOK, WorkspaceListResponse{Workspaces: resp})
}

func (h *WorkspaceHandler) GetWorkspace(c *gin.Context) {
	ws, err := h.workspaces.GetWorkspace(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, mapServiceError(err), err)
		return
	}
	c.JSON(http.StatusOK, toWorkspaceResponse(ws))
}

func (h *WorkspaceHandler) StartWorkspace(c *gin.Context) {
	ws, err := h.workspaces.StartWorkspace(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, mapServiceError(err), err)
		return
	}
	c.JSON(http.StatusAccepted, toWorkspaceResponse(ws))
}

func (h *WorkspaceHandler) StopWorkspace(c *gin.Context) {
	ws, err := h.workspaces.StopWorkspace(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, mapServiceError(err), err)
		return
	}
	c.JSON(http.StatusAccepted, toWorkspaceResponse(ws))
}

func (h *WorkspaceHandler) DeleteWorkspace(c *gin.Context) {
	if err := h.workspaces.DeleteWorkspace(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, mapServiceError(err), err)
		return
	}
	c.Status(http.StatusAccepted)
}
