package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"devspace/internal/workspace"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
)

var _ Gateway = (*DockerGateway)(nil)

type DockerConfig struct {
	NetworkName  string
	ContainerMem int64   // MB
	ContainerCPU float64 // CPU 核心数
	AgentPort    int     // workspace 内 IDE/agent 服务端口
	CallTimeout  time.Duration
	StopTimeout  int // 秒
}

// DockerGateway runs workspaces as containers on a local Docker engine.
type DockerGateway struct {
	client *client.Client
	config DockerConfig
	logger *slog.Logger
}

func NewDockerGateway(client *client.Client, cfg DockerConfig, logger *slog.Logger) *DockerGateway {
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.StopTimeout == 0 {
		cfg.StopTimeout = 10
	}
	if cfg.AgentPort == 0 {
		cfg.AgentPort = 8443
	}
	return &DockerGateway{
		client: client,
		config: cfg,
		logger: logger.With("component", "docker-gateway"),
	}
}

func ContainerName(workspaceID string) string {
	return "ws-" + workspaceID
}

// callCtx 给每个 provider 调用套上有界 deadline，超时按 ProviderFailure 处理。
func (g *DockerGateway) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.config.CallTimeout)
}

func (g *DockerGateway) CreateWorkspace(ctx context.Context, ws *workspace.Workspace, tmpl *workspace.Template) (*CreateResult, error) {
	ctx, cancel := g.callCtx(ctx)
	defer cancel()

	g.logger.Info("Creating workspace container",
		"workspace_id", ws.ID, "session_id", ws.SessionID, "image", tmpl.Image)

	if err := g.ensureImage(ctx, tmpl.Image); err != nil {
		return &CreateResult{OpResult: OpResult{Error: err.Error()}}, nil
	}

	name := ContainerName(ws.ID)
	config := &container.Config{
		Image: tmpl.Image,
		Cmd:   []string{"tail", "-f", "/dev/null"},
		Labels: map[string]string{
			"managed_by":   "devspace",
			"session_id":   ws.SessionID,
			"workspace_id": ws.ID,
			"template_id":  tmpl.ID,
		},
	}
	hostConfig := &container.HostConfig{
		Resources: container.Resources{
			Memory:   g.config.ContainerMem * 1024 * 1024,
			NanoCPUs: int64(g.config.ContainerCPU * 1e9),
		},
		AutoRemove: false,
	}
	netConfig := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			g.config.NetworkName: {},
		},
	}

	resp, err := g.client.ContainerCreate(ctx, config, hostConfig, netConfig, nil, name)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("create workspace %s: %w", ws.ID, ctx.Err())
		}
		return &CreateResult{OpResult: OpResult{Error: fmt.Sprintf("container create: %v", err)}}, nil
	}

	if err := g.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// 启动失败的容器不留残骸
		_ = g.client.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})
		return &CreateResult{OpResult: OpResult{Error: fmt.Sprintf("container start: %v", err)}}, nil
	}

	inspect, err := g.client.ContainerInspect(ctx, resp.ID)
	if err != nil {
		return &CreateResult{OpResult: OpResult{Error: fmt.Sprintf("container inspect: %v", err)}}, nil
	}

	ip := ""
	if net, ok := inspect.NetworkSettings.Networks[g.config.NetworkName]; ok {
		ip = net.IPAddress
	} else {
		for _, v := range inspect.NetworkSettings.Networks {
			ip = v.IPAddress
			break
		}
	}

	g.logger.Info("Workspace container running", "workspace_id", ws.ID, "container_id", resp.ID, "ip", ip)
	return &CreateResult{
		OpResult:    OpResult{Success: true},
		PodName:     name,
		ServiceName: name + "." + g.config.NetworkName,
		IngressURL:  fmt.Sprintf("http://%s:%d", ip, g.config.AgentPort),
		Metadata: map[string]string{
			"container_id": resp.ID,
			"image":        tmpl.Image,
		},
	}, nil
}

func (g *DockerGateway) StartWorkspace(ctx context.Context, ws *workspace.Workspace) (*OpResult, error) {
	ctx, cancel := g.callCtx(ctx)
	defer cancel()

	err := g.client.ContainerStart(ctx, ContainerName(ws.ID), container.StartOptions{})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return &OpResult{Error: "workspace container not found"}, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("start workspace %s: %w", ws.ID, ctx.Err())
		}
		return &OpResult{Error: err.Error()}, nil
	}
	return &OpResult{Success: true}, nil
}

func (g *DockerGateway) StopWorkspace(ctx context.Context, ws *workspace.Workspace) (*OpResult, error) {
	ctx, cancel := g.callCtx(ctx)
	defer cancel()

	timeout := g.config.StopTimeout
	err := g.client.ContainerStop(ctx, ContainerName(ws.ID), container.StopOptions{Timeout: &timeout})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return &OpResult{Error: "workspace container not found"}, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("stop workspace %s: %w", ws.ID, ctx.Err())
		}
		return &OpResult{Error: err.Error()}, nil
	}
	return &OpResult{Success: true}, nil
}

func (g *DockerGateway) DeleteWorkspace(ctx context.Context, ws *workspace.Workspace) (*OpResult, error) {
	ctx, cancel := g.callCtx(ctx)
	defer cancel()

	err := g.client.ContainerRemove(ctx, ContainerName(ws.ID), container.RemoveOptions{Force: true})
	if err != nil {
		if errdefs.IsNotFound(err) {
			// 已经没了，视为删除成功
			return &OpResult{Success: true}, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("delete workspace %s: %w", ws.ID, ctx.Err())
		}
		return &OpResult{Error: err.Error()}, nil
	}
	return &OpResult{Success: true}, nil
}

func (g *DockerGateway) GetStatus(ctx context.Context, ws *workspace.Workspace) (*StatusResult, error) {
	ctx, cancel := g.callCtx(ctx)
	defer cancel()

	inspect, err := g.client.ContainerInspect(ctx, ContainerName(ws.ID))
	if err != nil {
		if errdefs.IsNotFound(err) {
			return &StatusResult{OpResult: OpResult{Success: true}, Found: false}, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("get status of workspace %s: %w", ws.ID, ctx.Err())
		}
		return &StatusResult{OpResult: OpResult{Error: err.Error()}}, nil
	}

	res := &StatusResult{
		OpResult: OpResult{Success: true},
		Found:    true,
		Status:   mapContainerState(inspect.State),
	}
	if inspect.State != nil && inspect.State.StartedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, inspect.State.StartedAt); err == nil {
			res.LastUsedAt = t
		}
	}
	return res, nil
}

// mapContainerState 把 docker 的容器状态翻译为 provider 词汇表（statusmap 的输入）。
func mapContainerState(state *container.State) string {
	if state == nil {
		return ""
	}
	switch state.Status {
	case "running", "paused":
		return "running"
	case "created":
		return "pending"
	case "restarting":
		return "starting"
	case "removing":
		return "deleting"
	case "exited":
		return "stopped"
	case "dead":
		return "failed"
	default:
		return string(state.Status)
	}
}

func (g *DockerGateway) ensureImage(ctx context.Context, imageName string) error {
	_, err := g.client.ImageInspect(ctx, imageName)
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return fmt.Errorf("image inspect: %w", err)
	}

	g.logger.Info("Image not found, pulling", "image", imageName)
	reader, err := g.client.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("image pull: %w", err)
	}
	defer reader.Close()

	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("image pull: %w", err)
	}
	return nil
}
