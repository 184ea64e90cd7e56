package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"GeoMatch-App/internal/domain/repository"
)

type memoryCell struct {
	members   map[string]struct{}
	expiresAt time.Time
}

// MemoryCellsRepository プロセス内メモリのセルインデックス
type MemoryCellsRepository struct {
	mu      sync.RWMutex
	cells   map[string]*memoryCell
	now     func() time.Time
	janitor *janitor
}

// NewMemoryCellsRepository 新しいメモリセルインデックスを作成。now が nil なら time.Now
func NewMemoryCellsRepository(now func() time.Time) *MemoryCellsRepository {
	if now == nil {
		now = time.Now
	}
	return &MemoryCellsRepository{
		cells: make(map[string]*memoryCell),
		now:   now,
	}
}

var _ repository.CellsRepository = (*MemoryCellsRepository)(nil)

func (r *MemoryCellsRepository) Add(ctx context.Context, cell, id string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return classifyError("cells.add", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	c, ok := r.cells[cell]
	if !ok || !now.Before(c.expiresAt) {
		// 期限切れのセルは古いメンバーごと作り直す
		c = &memoryCell{members: make(map[string]struct{})}
		r.cells[cell] = c
	}
	c.members[id] = struct{}{}
	c.expiresAt = now.Add(ttl)
	return nil
}

func (r *MemoryCellsRepository) Remove(ctx context.Context, cell, id string) error {
	if err := ctx.Err(); err != nil {
		return classifyError("cells.remove", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cells[cell]
	if !ok {
		return nil
	}
	delete(c.members, id)
	if len(c.members) == 0 {
		delete(r.cells, cell)
	}
	return nil
}

func (r *MemoryCellsRepository) Members(ctx context.Context, cell string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyError("cells.members", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cells[cell]
	if !ok || !r.now().Before(c.expiresAt) {
		return []string{}, nil
	}
	members := make([]string, 0, len(c.members))
	for id := range c.members {
		members = append(members, id)
	}
	sort.Strings(members)
	return members, nil
}

// StartJanitor 期限切れセルの定期掃除を開始する
func (r *MemoryCellsRepository) StartJanitor(interval time.Duration) {
	if interval <= 0 || r.janitor != nil {
		return
	}
	r.janitor = startJanitor(interval, r.sweep)
}

// Close 掃除ゴルーチンを停止
func (r *MemoryCellsRepository) Close() error {
	r.janitor.Stop()
	return nil
}

func (r *MemoryCellsRepository) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for cell, c := range r.cells {
		if !now.Before(c.expiresAt) {
			delete(r.cells, cell)
		}
	}
}
