package repository

import (
	"context"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"GeoMatch-App/internal/domain/repository"
	"GeoMatch-App/internal/infrastructure/redis"
)

const cellKeyPrefix = "cell:"

// RedisCellsRepository Redisセット + EXPIRE によるセルインデックス
type RedisCellsRepository struct {
	client *redis.RedisClient
}

// NewRedisCellsRepository 新しいRedisセルインデックスを作成
func NewRedisCellsRepository(client *redis.RedisClient) repository.CellsRepository {
	return &RedisCellsRepository{
		client: client,
	}
}

func cellKey(cell string) string {
	return cellKeyPrefix + cell
}

func (r *RedisCellsRepository) Add(ctx context.Context, cell, id string, ttl time.Duration) error {
	key := cellKey(cell)
	_, err := r.client.GetClient().TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.SAdd(ctx, key, id)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return classifyError("cells.add", err)
	}
	return nil
}

func (r *RedisCellsRepository) Remove(ctx context.Context, cell, id string) error {
	if err := r.client.GetClient().SRem(ctx, cellKey(cell), id).Err(); err != nil {
		return classifyError("cells.remove", err)
	}
	return nil
}

func (r *RedisCellsRepository) Members(ctx context.Context, cell string) ([]string, error) {
	members, err := r.client.GetClient().SMembers(ctx, cellKey(cell)).Result()
	if err != nil {
		return nil, classifyError("cells.members", err)
	}
	sort.Strings(members)
	return members, nil
}
