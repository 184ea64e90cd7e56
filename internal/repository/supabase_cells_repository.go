package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"GeoMatch-App/internal/database"
	"GeoMatch-App/internal/domain/repository"
)

type supabaseCellRow struct {
	Cell      string    `json:"cell"`
	ExpiresAt time.Time `json:"expires_at"`
}

type supabaseMemberRow struct {
	Cell    string `json:"cell"`
	AgentID string `json:"agent_id"`
}

// SupabaseCellsRepository PostgREST経由のセルインデックス
//
// PostgRESTでは複数テーブルをまたぐトランザクションが使えないため、
// 期限切れセルの掃除とメンバー追加は別リクエストになる。
type SupabaseCellsRepository struct {
	client *database.SupabaseClient
	now    func() time.Time
}

func NewSupabaseCellsRepository(client *database.SupabaseClient, now func() time.Time) repository.CellsRepository {
	if now == nil {
		now = time.Now
	}
	return &SupabaseCellsRepository{
		client: client,
		now:    now,
	}
}

func (r *SupabaseCellsRepository) Add(ctx context.Context, cell, id string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return classifyError("cells.add", err)
	}
	now := r.now()

	expiresAt, found, err := r.cellExpiry(cell)
	if err != nil {
		return err
	}
	if found && !now.Before(expiresAt) {
		if _, _, err := r.client.From("cell_members").Delete("", "").Eq("cell", cell).Execute(); err != nil {
			return classifyError("cells.add", err)
		}
	}

	cellData, err := json.Marshal(supabaseCellRow{Cell: cell, ExpiresAt: now.Add(ttl)})
	if err != nil {
		return fmt.Errorf("セルデータのJSONマーシャル失敗: %w", err)
	}
	if _, _, err := r.client.From("cells").Insert(string(cellData), true, "cell", "", "").Execute(); err != nil {
		return classifyError("cells.add", err)
	}

	memberData, err := json.Marshal(supabaseMemberRow{Cell: cell, AgentID: id})
	if err != nil {
		return fmt.Errorf("メンバーデータのJSONマーシャル失敗: %w", err)
	}
	if _, _, err := r.client.From("cell_members").Insert(string(memberData), true, "cell,agent_id", "", "").Execute(); err != nil {
		return classifyError("cells.add", err)
	}
	return nil
}

func (r *SupabaseCellsRepository) Remove(ctx context.Context, cell, id string) error {
	if err := ctx.Err(); err != nil {
		return classifyError("cells.remove", err)
	}
	_, _, err := r.client.From("cell_members").Delete("", "").Eq("cell", cell).Eq("agent_id", id).Execute()
	if err != nil {
		return classifyError("cells.remove", err)
	}
	return nil
}

func (r *SupabaseCellsRepository) Members(ctx context.Context, cell string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyError("cells.members", err)
	}

	expiresAt, found, err := r.cellExpiry(cell)
	if err != nil {
		return nil, err
	}
	if !found || !r.now().Before(expiresAt) {
		return []string{}, nil
	}

	var rows []supabaseMemberRow
	data, count, err := r.client.From("cell_members").Select("cell,agent_id", "exact", false).Eq("cell", cell).Execute()
	if err != nil {
		return nil, classifyError("cells.members", err)
	}
	_ = count

	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("メンバーデータのJSONアンマーシャル失敗: %w", err)
	}

	members := make([]string, 0, len(rows))
	for _, row := range rows {
		members = append(members, row.AgentID)
	}
	sort.Strings(members)
	return members, nil
}

func (r *SupabaseCellsRepository) cellExpiry(cell string) (time.Time, bool, error) {
	var rows []supabaseCellRow
	data, count, err := r.client.From("cells").Select("*", "exact", false).Eq("cell", cell).Execute()
	if err != nil {
		return time.Time{}, false, classifyError("cells.lookup", err)
	}
	_ = count

	if err := json.Unmarshal(data, &rows); err != nil {
		return time.Time{}, false, fmt.Errorf("セルデータのJSONアンマーシャル失敗: %w", err)
	}
	if len(rows) == 0 {
		return time.Time{}, false, nil
	}
	return rows[0].ExpiresAt, true, nil
}
