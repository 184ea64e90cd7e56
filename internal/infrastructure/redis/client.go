package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisClient go-redis クライアントのラッパー
type RedisClient struct {
	client *goredis.Client
}

// Options Redis接続設定
type Options struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewRedisClient 新しいRedisクライアントを作成し、接続を確認する
func NewRedisClient(ctx context.Context, opts Options, logger *zap.Logger) (*RedisClient, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("REDIS_ADDR環境変数が設定されていません")
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("Redisへの接続に失敗: %w", err)
	}

	logger.Info("✅ Redis client initialized", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return &RedisClient{client: client}, nil
}

// WrapRedisClient 既存の go-redis クライアントを包む（テスト用）
func WrapRedisClient(client *goredis.Client) *RedisClient {
	return &RedisClient{client: client}
}

// GetClient go-redis クライアントを取得
func (rc *RedisClient) GetClient() *goredis.Client {
	return rc.client
}

// HealthCheck 接続のヘルスチェック
func (rc *RedisClient) HealthCheck(ctx context.Context) error {
	if rc.client == nil {
		return fmt.Errorf("Redisクライアントが初期化されていません")
	}
	return rc.client.Ping(ctx).Err()
}

// Close 接続を閉じる
func (rc *RedisClient) Close() error {
	if rc.client != nil {
		return rc.client.Close()
	}
	return nil
}
