package repository

import (
	"context"
	"sync"
	"time"

	"GeoMatch-App/internal/domain/model"
	"GeoMatch-App/internal/domain/repository"
)

// MemoryPositionsRepository プロセス内メモリの位置ストア
type MemoryPositionsRepository struct {
	mu        sync.RWMutex
	positions map[string]model.AgentPosition
	now       func() time.Time
	janitor   *janitor
}

// NewMemoryPositionsRepository 新しいメモリ位置ストアを作成。now が nil なら time.Now
func NewMemoryPositionsRepository(now func() time.Time) *MemoryPositionsRepository {
	if now == nil {
		now = time.Now
	}
	return &MemoryPositionsRepository{
		positions: make(map[string]model.AgentPosition),
		now:       now,
	}
}

var _ repository.PositionsRepository = (*MemoryPositionsRepository)(nil)

func (r *MemoryPositionsRepository) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, classifyError("positions.exists", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.live(id)
	return ok, nil
}

func (r *MemoryPositionsRepository) Get(ctx context.Context, id string) (*model.AgentPosition, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyError("positions.get", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.live(id)
	if !ok {
		return nil, model.ErrNotFound
	}
	return &p, nil
}

func (r *MemoryPositionsRepository) Put(ctx context.Context, id string, latitude, longitude float64, cell string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return classifyError("positions.put", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions[id] = model.AgentPosition{
		ID:        id,
		Latitude:  latitude,
		Longitude: longitude,
		Cell:      cell,
		ExpiresAt: r.now().Add(ttl),
	}
	return nil
}

func (r *MemoryPositionsRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return classifyError("positions.delete", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.positions, id)
	return nil
}

// Len 期限内のエントリ数
func (r *MemoryPositionsRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	now := r.now()
	for _, p := range r.positions {
		if !p.Expired(now) {
			n++
		}
	}
	return n
}

// StartJanitor 期限切れエントリの定期掃除を開始する
func (r *MemoryPositionsRepository) StartJanitor(interval time.Duration) {
	if interval <= 0 || r.janitor != nil {
		return
	}
	r.janitor = startJanitor(interval, r.sweep)
}

// Close 掃除ゴルーチンを停止
func (r *MemoryPositionsRepository) Close() error {
	r.janitor.Stop()
	return nil
}

func (r *MemoryPositionsRepository) live(id string) (model.AgentPosition, bool) {
	p, ok := r.positions[id]
	if !ok || p.Expired(r.now()) {
		return model.AgentPosition{}, false
	}
	return p, true
}

func (r *MemoryPositionsRepository) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for id, p := range r.positions {
		if p.Expired(now) {
			delete(r.positions, id)
		}
	}
}
