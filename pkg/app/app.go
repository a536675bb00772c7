package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"stronglink/pkg/catalog"
	"stronglink/pkg/client"
	"stronglink/pkg/config"
	"stronglink/pkg/pull"
	"stronglink/pkg/storage"
	"stronglink/pkg/storage/cache"
	"stronglink/pkg/storage/disk"
	"stronglink/pkg/storage/s3"
)

// App 是整个应用程序的依赖容器
// 远端仓库按需创建；本地镜像 (存储 + 目录) 第一次用到时才打开，
// 只访问远端的命令不需要碰本地文件。
type App struct {
	Config *config.Config
	Logger *slog.Logger

	once    sync.Once
	mirror  *pull.Mirror
	catalog *catalog.Repository
	store   storage.Store
	initErr error
	closers []io.Closer
}

func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{Config: cfg, Logger: logger}
}

// Repo 按名字 (或裸 URL) 创建远端仓库客户端，空名字使用默认仓库
func (a *App) Repo(name string) (*client.Repo, error) {
	rc, err := a.Config.Repo(name)
	if err != nil {
		return nil, err
	}
	return client.NewRepo(rc.URL, rc.Session, client.WithLogger(a.Logger.With(slog.String("repo", rc.Name))))
}

// Mirror 返回本地镜像，第一次调用时打开存储和目录
func (a *App) Mirror(ctx context.Context) (*pull.Mirror, *catalog.Repository, error) {
	a.once.Do(func() {
		a.initErr = a.openLocal(ctx)
	})
	if a.initErr != nil {
		return nil, nil, a.initErr
	}
	return a.mirror, a.catalog, nil
}

func (a *App) openLocal(ctx context.Context) error {
	store, err := initStore(ctx, a.Config)
	if err != nil {
		return fmt.Errorf("failed to init storage: %w", err)
	}
	if c, ok := store.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	db, err := catalog.Open(ctx, a.Config.Database)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	a.closers = append(a.closers, db)

	a.store = store
	a.catalog = catalog.NewRepository(db)
	a.mirror = pull.NewMirror(store, a.catalog, a.Logger)
	return nil
}

// initStore 按 storage.type 选择后端，配置了 redis.url 时在前面加存在性缓存
func initStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	var (
		store storage.Store
		err   error
	)
	switch cfg.Storage.Type {
	case "disk":
		if cfg.Storage.Path == "" {
			return nil, errors.New("storage path not set")
		}
		store, err = disk.NewAdapter(cfg.Storage.Path)
	case "s3":
		if cfg.S3.Bucket == "" {
			return nil, errors.New("s3 bucket is required")
		}
		store, err = s3.NewAdapter(ctx, s3.Config{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			AccessKeyID:     cfg.S3.AccessKey,
			SecretAccessKey: cfg.S3.SecretKey,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Storage.Type)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Redis.URL == "" {
		return store, nil
	}
	cached, err := cache.NewCachedStore(store, cache.Config{RedisURL: cfg.Redis.URL, TTL: cfg.Redis.TTL})
	if err != nil {
		return nil, err
	}
	return cached, nil
}

// Close 释放本地资源
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
