package orchestrator

import (
	"context"

	"devspace/internal/apperr"
	"devspace/internal/provider"
	"devspace/internal/workspace"
)

var _ workspace.Stopper = (*GatewayStopper)(nil)

// GatewayStopper 是 DeleteWorkspace 同步停止路径使用的 gateway 适配器。
type GatewayStopper struct {
	gateway provider.Gateway
}

func NewGatewayStopper(gateway provider.Gateway) *GatewayStopper {
	return &GatewayStopper{gateway: gateway}
}

func (s *GatewayStopper) Stop(ctx context.Context, ws *workspace.Workspace) error {
	res, err := s.gateway.StopWorkspace(ctx, ws)
	if err != nil {
		return err
	}
	if !res.Success {
		return apperr.ProviderFailuref("provider rejected stop: %s", res.Error)
	}
	return nil
}
