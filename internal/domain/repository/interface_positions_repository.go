package repository

import (
	"context"
	"time"

	"GeoMatch-App/internal/domain/model"
)

// PositionsRepository エージェントID -> 最新位置 のTTL付きストア
//
// 失敗時は model.StorageError（ErrConnectionFailure / ErrTimeout）を返す。
// 存在しないことはエラーではなく Exists で確認する。Get だけは不在時に model.ErrNotFound を返す。
type PositionsRepository interface {
	Exists(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (*model.AgentPosition, error)
	// Put 既存エントリを上書きし、有効期限を now+ttl に設定する。読み手は書きかけの状態を観測しない
	Put(ctx context.Context, id string, latitude, longitude float64, cell string, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}
