package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"GeoMatch-App/internal/domain/model"
	"GeoMatch-App/internal/domain/repository"
	"GeoMatch-App/internal/infrastructure/redis"
)

const positionKeyPrefix = "pos:"

// RedisPositionsRepository Redisハッシュ + EXPIRE による位置ストア
type RedisPositionsRepository struct {
	client *redis.RedisClient
}

// NewRedisPositionsRepository 新しいRedis位置ストアを作成
func NewRedisPositionsRepository(client *redis.RedisClient) repository.PositionsRepository {
	return &RedisPositionsRepository{
		client: client,
	}
}

func positionKey(id string) string {
	return positionKeyPrefix + id
}

func (r *RedisPositionsRepository) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.client.GetClient().Exists(ctx, positionKey(id)).Result()
	if err != nil {
		return false, classifyError("positions.exists", err)
	}
	return n > 0, nil
}

func (r *RedisPositionsRepository) Get(ctx context.Context, id string) (*model.AgentPosition, error) {
	key := positionKey(id)
	pipe := r.client.GetClient().Pipeline()
	fieldsCmd := pipe.HGetAll(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, classifyError("positions.get", err)
	}

	fields := fieldsCmd.Val()
	if len(fields) == 0 {
		return nil, model.ErrNotFound
	}

	lat, err := strconv.ParseFloat(fields["latitude"], 64)
	if err != nil {
		return nil, fmt.Errorf("位置データ %s の緯度が不正: %w", id, err)
	}
	lng, err := strconv.ParseFloat(fields["longitude"], 64)
	if err != nil {
		return nil, fmt.Errorf("位置データ %s の経度が不正: %w", id, err)
	}

	position := &model.AgentPosition{
		ID:        id,
		Latitude:  lat,
		Longitude: lng,
		Cell:      fields["cell"],
	}
	if ttl := ttlCmd.Val(); ttl > 0 {
		position.ExpiresAt = time.Now().Add(ttl)
	}
	return position, nil
}

func (r *RedisPositionsRepository) Put(ctx context.Context, id string, latitude, longitude float64, cell string, ttl time.Duration) error {
	key := positionKey(id)
	// MULTI/EXEC で書き込みと期限設定をまとめる
	_, err := r.client.GetClient().TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"latitude", strconv.FormatFloat(latitude, 'f', -1, 64),
			"longitude", strconv.FormatFloat(longitude, 'f', -1, 64),
			"cell", cell,
		)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return classifyError("positions.put", err)
	}
	return nil
}

func (r *RedisPositionsRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.GetClient().Del(ctx, positionKey(id)).Err(); err != nil {
		return classifyError("positions.delete", err)
	}
	return nil
}
