package server

import (
	"context"
	"fmt"
	"log/slog"

	"devspace/internal/config"
	sessionrepo "devspace/internal/session/repo"
	wsrepo "devspace/internal/workspace/repo"

	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/go-pg/pg/v10"
	"github.com/go-pg/pg/v10/orm"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Dependency 管理所有基础设施
type Dependency struct {
	Docker      *client.Client
	Redis       *redis.Client
	PG          *pg.DB
	AsynqClient *asynq.Client
	AsynqRedis  asynq.RedisClientOpt
	Logger      *slog.Logger
}

func InitDeps(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependency, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	if _, err := dockerClient.Ping(ctx); err != nil {
		dockerClient.Close()
		return nil, fmt.Errorf("docker ping: %w", err)
	}

	if err := ensureNetwork(ctx, dockerClient, cfg.Provider.NetworkName); err != nil {
		dockerClient.Close()
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		dockerClient.Close()
		return nil, fmt.Errorf("redis ping (%s): %w", cfg.Redis.Addr, err)
	}

	pgDB := pg.Connect(&pg.Options{
		Addr:     cfg.Postgres.Addr,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Database: cfg.Postgres.Database,
	})
	if _, err := pgDB.Exec("SELECT 1"); err != nil {
		redisClient.Close()
		dockerClient.Close()
		return nil, fmt.Errorf("postgres ping (%s): %w", cfg.Postgres.Addr, err)
	}

	// 迁移数据库 schema
	if err := migrate(pgDB); err != nil {
		pgDB.Close()
		redisClient.Close()
		dockerClient.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	if err := seedDefaultTemplate(ctx, pgDB, cfg.Provider.DefaultImage, logger); err != nil {
		pgDB.Close()
		redisClient.Close()
		dockerClient.Close()
		return nil, fmt.Errorf("seed default template: %w", err)
	}

	asynqRedisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	}
	asynqClient := asynq.NewClient(asynqRedisOpt)

	return &Dependency{
		Docker:      dockerClient,
		Redis:       redisClient,
		PG:          pgDB,
		AsynqClient: asynqClient,
		AsynqRedis:  asynqRedisOpt,
		Logger:      logger,
	}, nil
}

func migrate(db *pg.DB) error {
	models := []any{
		(*sessionrepo.SessionModel)(nil),
		(*wsrepo.WorkspaceModel)(nil),
		(*wsrepo.TemplateModel)(nil),
	}
	for _, m := range models {
		if err := db.Model(m).CreateTable(&orm.CreateTableOptions{
			IfNotExists: true,
		}); err != nil {
			return err
		}
	}
	return nil
}

// seedDefaultTemplate 确保模板表中至少有一个默认模板可供解析。
func seedDefaultTemplate(ctx context.Context, db *pg.DB, image string, logger *slog.Logger) error {
	count, err := db.ModelContext(ctx, (*wsrepo.TemplateModel)(nil)).Count()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	tmpl := &wsrepo.TemplateModel{
		ID:        uuid.New().String(),
		Name:      "default",
		Image:     image,
		IsDefault: true,
	}
	if _, err := db.ModelContext(ctx, tmpl).Insert(); err != nil {
		return err
	}

	logger.Info("Seeded default workspace template", "template_id", tmpl.ID, "image", image)
	return nil
}

func ensureNetwork(ctx context.Context, docker *client.Client, name string) error {
	if _, err := docker.NetworkInspect(ctx, name, network.InspectOptions{}); err == nil {
		return nil
	}
	if _, err := docker.NetworkCreate(ctx, name, network.CreateOptions{Driver: "bridge"}); err != nil {
		return fmt.Errorf("create network %s: %w", name, err)
	}
	return nil
}

func (d *Dependency) Close() {
	if d.AsynqClient != nil {
		d.AsynqClient.Close()
	}
	if d.PG != nil {
		d.PG.Close()
	}
	if d.Redis != nil {
		d.Redis.Close()
	}
	if d.Docker != nil {
		d.Docker.Close()
	}
}
