package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"GeoMatch-App/internal/config"
	"GeoMatch-App/internal/database"
	"GeoMatch-App/internal/domain/repository"
	infradb "GeoMatch-App/internal/infrastructure/database"
	"GeoMatch-App/internal/infrastructure/firestore"
	"GeoMatch-App/internal/infrastructure/redis"
)

// Backend 設定で選ばれた位置ストアとセルインデックスの組
type Backend struct {
	Name      string
	Positions repository.PositionsRepository
	Cells     repository.CellsRepository

	healthCheck func(ctx context.Context) error
	closers     []func() error
}

// HealthCheck バックエンドへの疎通確認
func (b *Backend) HealthCheck(ctx context.Context) error {
	if b.healthCheck == nil {
		return nil
	}
	return b.healthCheck(ctx)
}

// Close 接続と掃除ゴルーチンを閉じる
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewMemoryBackend プロセス内メモリのバックエンドを作成
func NewMemoryBackend(now func() time.Time, janitorInterval time.Duration) *Backend {
	positions := NewMemoryPositionsRepository(now)
	cells := NewMemoryCellsRepository(now)
	positions.StartJanitor(janitorInterval)
	cells.StartJanitor(janitorInterval)
	return &Backend{
		Name:      config.BackendMemory,
		Positions: positions,
		Cells:     cells,
		closers:   []func() error{positions.Close, cells.Close},
	}
}

// NewBackend 設定に従ってバックエンドを初期化する
func NewBackend(ctx context.Context, cfg config.StoreConfig, operationTimeout time.Duration, logger *zap.Logger) (*Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		logger.Info("🧠 in-memory backend", zap.Duration("janitor_interval", cfg.JanitorInterval))
		return NewMemoryBackend(time.Now, cfg.JanitorInterval), nil

	case config.BackendRedis:
		client, err := redis.NewRedisClient(ctx, redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  operationTimeout,
			ReadTimeout:  operationTimeout,
			WriteTimeout: operationTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Name:        config.BackendRedis,
			Positions:   NewRedisPositionsRepository(client),
			Cells:       NewRedisCellsRepository(client),
			healthCheck: client.HealthCheck,
			closers:     []func() error{client.Close},
		}, nil

	case config.BackendPostgres:
		client, err := infradb.NewPostgreSQLClientWithRetry(ctx, cfg.DatabaseURL, 5, time.Second, logger)
		if err != nil {
			return nil, err
		}
		if err := EnsurePostgresSchema(ctx, client); err != nil {
			_ = client.Close()
			return nil, err
		}
		b := &Backend{
			Name:        config.BackendPostgres,
			Positions:   NewPostgresPositionsRepository(client, time.Now),
			Cells:       NewPostgresCellsRepository(client, time.Now),
			healthCheck: client.HealthCheck,
			closers:     []func() error{client.Close},
		}
		if cfg.JanitorInterval > 0 {
			purger := startPostgresPurger(client, cfg.JanitorInterval, logger)
			b.closers = append(b.closers, func() error { purger.Stop(); return nil })
		}
		return b, nil

	case config.BackendFirestore:
		client, err := firestore.NewFirestoreClient(ctx, cfg.FirestoreProject, cfg.CredentialsFile, logger)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Name:      config.BackendFirestore,
			Positions: NewFirestorePositionsRepository(client.GetClient(), time.Now),
			Cells:     NewFirestoreCellsRepository(client.GetClient(), time.Now),
			closers:   []func() error{client.Close},
		}, nil

	case config.BackendSupabase:
		client, err := database.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, operationTimeout, logger)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Name:        config.BackendSupabase,
			Positions:   NewSupabasePositionsRepository(client, time.Now),
			Cells:       NewSupabaseCellsRepository(client, time.Now),
			healthCheck: client.HealthCheck,
		}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}
