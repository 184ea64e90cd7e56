package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"GeoMatch-App/internal/domain/model"
	"GeoMatch-App/internal/domain/repository"
	"GeoMatch-App/internal/infrastructure/database"
)

// PostgresPositionsRepository PostgreSQLによる位置ストア
type PostgresPositionsRepository struct {
	client *database.PostgreSQLClient
	now    func() time.Time
}

// NewPostgresPositionsRepository 新しいPostgreSQL位置ストアを作成
func NewPostgresPositionsRepository(client *database.PostgreSQLClient, now func() time.Time) repository.PositionsRepository {
	if now == nil {
		now = time.Now
	}
	return &PostgresPositionsRepository{
		client: client,
		now:    now,
	}
}

func (r *PostgresPositionsRepository) Exists(ctx context.Context, id string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM agent_positions WHERE id = $1 AND expires_at > $2)`

	var exists bool
	if err := r.client.DB.QueryRowContext(ctx, query, id, r.now()).Scan(&exists); err != nil {
		return false, classifyError("positions.exists", err)
	}
	return exists, nil
}

func (r *PostgresPositionsRepository) Get(ctx context.Context, id string) (*model.AgentPosition, error) {
	query := `SELECT id, latitude, longitude, cell, expires_at FROM agent_positions WHERE id = $1 AND expires_at > $2`

	var p model.AgentPosition
	err := r.client.DB.QueryRowContext(ctx, query, id, r.now()).
		Scan(&p.ID, &p.Latitude, &p.Longitude, &p.Cell, &p.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, classifyError("positions.get", err)
	}
	return &p, nil
}

func (r *PostgresPositionsRepository) Put(ctx context.Context, id string, latitude, longitude float64, cell string, ttl time.Duration) error {
	// 単一のUPSERT文なので読み手は旧値か新値のどちらかしか観測しない
	query := `
		INSERT INTO agent_positions (id, latitude, longitude, cell, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			cell = EXCLUDED.cell,
			expires_at = EXCLUDED.expires_at`

	if _, err := r.client.DB.ExecContext(ctx, query, id, latitude, longitude, cell, r.now().Add(ttl)); err != nil {
		return classifyError("positions.put", err)
	}
	return nil
}

func (r *PostgresPositionsRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM agent_positions WHERE id = $1`

	if _, err := r.client.DB.ExecContext(ctx, query, id); err != nil {
		return classifyError("positions.delete", err)
	}
	return nil
}
