package reconciler

import (
	"context"
	"log/slog"
	"time"
)

// SweeperConfig 周期性一致性扫描配置
type SweeperConfig struct {
	Interval time.Duration
	Timeout  time.Duration // 单轮扫描超时
}

// Sweeper drives the periodic reconciliation sweep on a ticker.
type Sweeper struct {
	reconciler *Reconciler
	config     SweeperConfig
	logger     *slog.Logger
	stopCh     chan struct{}
}

func NewSweeper(r *Reconciler, config SweeperConfig, logger *slog.Logger) *Sweeper {
	if config.Interval == 0 {
		config.Interval = 5 * time.Minute
	}
	if config.Timeout == 0 {
		config.Timeout = time.Minute
	}
	return &Sweeper{
		reconciler: r,
		config:     config,
		logger:     logger.With("component", "reconciler-sweeper"),
		stopCh:     make(chan struct{}),
	}
}

// Start 启动扫描循环（阻塞，应在 goroutine 中调用）
func (s *Sweeper) Start() {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.logger.Info("Reconciliation sweeper started", "interval", s.config.Interval)

	for {
		select {
		case <-s.stopCh:
			s.logger.Info("Reconciliation sweeper stopped")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) Stop() {
	select {
	case <-s.stopCh:
		// 已经关闭
	default:
		close(s.stopCh)
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()

	if err := s.reconciler.PeriodicSweep(ctx); err != nil {
		s.logger.Error("Reconciliation sweep failed", "error", err)
	}
}
