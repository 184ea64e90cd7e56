package repository

import (
	"context"
	"time"

	"GeoMatch-App/internal/domain/repository"
	"GeoMatch-App/internal/infrastructure/database"
)

// PostgresCellsRepository PostgreSQLによるセルインデックス
type PostgresCellsRepository struct {
	client *database.PostgreSQLClient
	now    func() time.Time
}

// NewPostgresCellsRepository 新しいPostgreSQLセルインデックスを作成
func NewPostgresCellsRepository(client *database.PostgreSQLClient, now func() time.Time) repository.CellsRepository {
	if now == nil {
		now = time.Now
	}
	return &PostgresCellsRepository{
		client: client,
		now:    now,
	}
}

func (r *PostgresCellsRepository) Add(ctx context.Context, cell, id string, ttl time.Duration) error {
	now := r.now()

	tx, err := r.client.DB.BeginTx(ctx, nil)
	if err != nil {
		return classifyError("cells.add", err)
	}
	defer tx.Rollback()

	// 期限切れのセルに残った古いメンバーを先に消す
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cell_members WHERE cell = $1 AND NOT EXISTS (SELECT 1 FROM cells WHERE cell = $1 AND expires_at > $2)`,
		cell, now); err != nil {
		return classifyError("cells.add", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cells (cell, expires_at) VALUES ($1, $2) ON CONFLICT (cell) DO UPDATE SET expires_at = EXCLUDED.expires_at`,
		cell, now.Add(ttl)); err != nil {
		return classifyError("cells.add", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cell_members (cell, agent_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		cell, id); err != nil {
		return classifyError("cells.add", err)
	}

	if err := tx.Commit(); err != nil {
		return classifyError("cells.add", err)
	}
	return nil
}

func (r *PostgresCellsRepository) Remove(ctx context.Context, cell, id string) error {
	if _, err := r.client.DB.ExecContext(ctx,
		`DELETE FROM cell_members WHERE cell = $1 AND agent_id = $2`, cell, id); err != nil {
		return classifyError("cells.remove", err)
	}
	return nil
}

func (r *PostgresCellsRepository) Members(ctx context.Context, cell string) ([]string, error) {
	query := `
		SELECT m.agent_id
		FROM cell_members m
		JOIN cells c ON c.cell = m.cell
		WHERE m.cell = $1 AND c.expires_at > $2
		ORDER BY m.agent_id`

	rows, err := r.client.DB.QueryContext(ctx, query, cell, r.now())
	if err != nil {
		return nil, classifyError("cells.members", err)
	}
	defer rows.Close()

	members := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, classifyError("cells.members", err)
		}
		members = append(members, id)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("cells.members", err)
	}
	return members, nil
}
