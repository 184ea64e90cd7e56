package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"GeoMatch-App/internal/database"
	"GeoMatch-App/internal/domain/model"
	"GeoMatch-App/internal/domain/repository"
)

// supabasePositionRow agent_positions テーブルの行（PostgresPositionsRepository と同じスキーマ）
type supabasePositionRow struct {
	ID        string    `json:"id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Cell      string    `json:"cell"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SupabasePositionsRepository struct {
	client *database.SupabaseClient
	now    func() time.Time
}

func NewSupabasePositionsRepository(client *database.SupabaseClient, now func() time.Time) repository.PositionsRepository {
	if now == nil {
		now = time.Now
	}
	return &SupabasePositionsRepository{
		client: client,
		now:    now,
	}
}

func (r *SupabasePositionsRepository) Exists(ctx context.Context, id string) (bool, error) {
	position, err := r.find(ctx, id)
	if err != nil {
		return false, err
	}
	return position != nil, nil
}

func (r *SupabasePositionsRepository) Get(ctx context.Context, id string) (*model.AgentPosition, error) {
	position, err := r.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, model.ErrNotFound
	}
	return position, nil
}

func (r *SupabasePositionsRepository) find(ctx context.Context, id string) (*model.AgentPosition, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyError("positions.get", err)
	}

	var rows []supabasePositionRow
	data, count, err := r.client.From("agent_positions").Select("*", "exact", false).Eq("id", id).Execute()
	if err != nil {
		return nil, classifyError("positions.get", err)
	}
	_ = count

	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("位置データのJSONアンマーシャル失敗: %w", err)
	}
	if len(rows) == 0 || !r.now().Before(rows[0].ExpiresAt) {
		return nil, nil
	}

	row := rows[0]
	return &model.AgentPosition{
		ID:        row.ID,
		Latitude:  row.Latitude,
		Longitude: row.Longitude,
		Cell:      row.Cell,
		ExpiresAt: row.ExpiresAt,
	}, nil
}

func (r *SupabasePositionsRepository) Put(ctx context.Context, id string, latitude, longitude float64, cell string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return classifyError("positions.put", err)
	}

	data, err := json.Marshal(supabasePositionRow{
		ID:        id,
		Latitude:  latitude,
		Longitude: longitude,
		Cell:      cell,
		ExpiresAt: r.now().Add(ttl),
	})
	if err != nil {
		return fmt.Errorf("位置データのJSONマーシャル失敗: %w", err)
	}

	_, _, err = r.client.From("agent_positions").Insert(string(data), true, "id", "", "").Execute()
	if err != nil {
		return classifyError("positions.put", err)
	}
	return nil
}

func (r *SupabasePositionsRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return classifyError("positions.delete", err)
	}

	_, _, err := r.client.From("agent_positions").Delete("", "").Eq("id", id).Execute()
	if err != nil {
		return classifyError("positions.delete", err)
	}
	return nil
}
