package repository

import (
	"context"
	"time"
)

// CellsRepository セルID -> エージェントID集合 のストア。TTLはセル単位
type CellsRepository interface {
	// Add メンバーを追加し、既存メンバーかどうかに関わらずセルのTTLを now+ttl に更新する
	Add(ctx context.Context, cell, id string, ttl time.Duration) error
	// Remove セルやメンバーが存在しなくてもエラーにしない
	Remove(ctx context.Context, cell, id string) error
	// Members 期限切れ・未登録のセルは空集合
	Members(ctx context.Context, cell string) ([]string, error)
}
