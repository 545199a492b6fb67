package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"devspace/internal/api"
	"devspace/internal/config"
	"devspace/internal/eventbus"
	"devspace/internal/listener"
	"devspace/internal/monitor"
	"devspace/internal/notify"
	"devspace/internal/orchestrator"
	"devspace/internal/poller"
	"devspace/internal/provider"
	"devspace/internal/reconciler"
	"devspace/internal/session"
	sessionrepo "devspace/internal/session/repo"
	"devspace/internal/workspace"
	wsrepo "devspace/internal/workspace/repo"

	"github.com/hibiken/asynq"
)

type Server struct {
	cfg         *config.Config
	deps        *Dependency
	httpServer  *http.Server
	asynqServer *asynq.Server
	asynqMux    *asynq.ServeMux
	sweeper     *reconciler.Sweeper
	poller      *poller.Poller
	logger      *slog.Logger
}

func NewServer(cfg *config.Config, deps *Dependency) *Server {
	logger := deps.Logger

	bus := eventbus.NewRedisBus(deps.Redis, logger)
	notifier := notify.NewNotifier(bus, logger)

	sessionRepo := sessionrepo.NewRepository(deps.PG, deps.Redis)
	workspaceRepo := wsrepo.NewRepository(deps.PG, deps.Redis)
	templates := wsrepo.NewTemplateStore(deps.PG)

	gateway := provider.NewDockerGateway(deps.Docker, provider.DockerConfig{
		NetworkName:  cfg.Provider.NetworkName,
		ContainerMem: cfg.Provider.ContainerMem,
		ContainerCPU: cfg.Provider.ContainerCPU,
		AgentPort:    cfg.Provider.AgentPort,
		CallTimeout:  cfg.Provider.CallTimeout,
		StopTimeout:  cfg.Provider.StopTimeout,
	}, logger)

	workspaceMgr := workspace.NewManager(
		workspaceRepo,
		templates,
		sessionRepo,
		deps.AsynqClient,
		orchestrator.NewGatewayStopper(gateway),
		notifier,
		logger,
	)

	hooks := listener.NewWorkspaceListener(workspaceMgr, logger)
	sessionMgr := session.NewManager(sessionRepo, hooks, notifier, logger)

	rec := reconciler.NewReconciler(sessionRepo, workspaceRepo, notifier, logger)
	sweeper := reconciler.NewSweeper(rec, reconciler.SweeperConfig{
		Interval: cfg.Reconciler.Interval,
		Timeout:  cfg.Reconciler.Timeout,
	}, logger)

	driftPoller := poller.NewPoller(workspaceRepo, gateway, rec, notifier, poller.Config{
		Interval: cfg.Poller.Interval,
		Timeout:  cfg.Poller.Timeout,
	}, logger)

	lifecycleWorker := orchestrator.NewLifecycleWorker(
		workspaceRepo, templates, gateway, rec, notifier, logger)

	asynqServer := asynq.NewServer(deps.AsynqRedis, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Logger:      newAsynqLogger(logger),
	})

	mux := asynq.NewServeMux()
	lifecycleWorker.Register(mux)

	router := api.NewRouter(
		api.NewSessionHandler(sessionMgr, rec, driftPoller, bus),
		api.NewWorkspaceHandler(workspaceMgr),
		cfg.Server.SystemToken,
	)
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		cfg:         cfg,
		deps:        deps,
		httpServer:  httpServer,
		asynqServer: asynqServer,
		asynqMux:    mux,
		sweeper:     sweeper,
		poller:      driftPoller,
		logger:      logger,
	}
}

func (s *Server) Start(ctx context.Context) error {
	go func() {
		s.logger.Info("Starting Asynq worker", "concurrency", s.cfg.Worker.Concurrency)
		if err := s.asynqServer.Start(s.asynqMux); err != nil {
			s.logger.Error("Asynq worker failed", "error", err)
		}
	}()

	go s.sweeper.Start()
	go s.poller.Start()

	go func() {
		if err := monitor.StartMetricsServer(ctx, s.cfg.Metrics.Addr, s.logger); err != nil {
			s.logger.Error("Metrics server failed", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting API server", "addr", s.cfg.Server.Addr)
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutdown signal received, draining...")
	case err := <-errCh:
		return err
	}

	return s.Shutdown()
}

func (s *Server) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.asynqServer.Shutdown()
	s.poller.Stop()
	s.sweeper.Stop()

	s.logger.Info("Server stopped gracefully")
	return nil
}

type asynqLogger struct {
	l *slog.Logger
}

func newAsynqLogger(l *slog.Logger) *asynqLogger {
	return &asynqLogger{l: l.With("component", "asynq")}
}

func (a *asynqLogger) Debug(args ...any) { a.l.Debug("", "msg", args) }
func (a *asynqLogger) Info(args ...any)  { a.l.Info("", "msg", args) }
func (a *asynqLogger) Warn(args ...any)  { a.l.Warn("", "msg", args) }
func (a *asynqLogger) Error(args ...any) { a.l.Error("", "msg", args) }
func (a *asynqLogger) Fatal(args ...any) { a.l.Error("FATAL", "msg", args) }
