package repository

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"GeoMatch-App/internal/infrastructure/database"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS agent_positions (
	id         TEXT PRIMARY KEY,
	latitude   DOUBLE PRECISION NOT NULL,
	longitude  DOUBLE PRECISION NOT NULL,
	cell       TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS cells (
	cell       TEXT PRIMARY KEY,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS cell_members (
	cell     TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	PRIMARY KEY (cell, agent_id)
);
CREATE INDEX IF NOT EXISTS agent_positions_expires_at_idx ON agent_positions (expires_at);
CREATE INDEX IF NOT EXISTS cells_expires_at_idx ON cells (expires_at);
`

// EnsurePostgresSchema テーブルが無ければ作成する
func EnsurePostgresSchema(ctx context.Context, client *database.PostgreSQLClient) error {
	if _, err := client.DB.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("スキーマ作成に失敗: %w", err)
	}
	return nil
}

// PurgeExpired 期限切れの行を物理削除する。読み出し側は期限でフィルタするため正しさには影響しない
func PurgeExpired(ctx context.Context, client *database.PostgreSQLClient, now time.Time) (int64, error) {
	tx, err := client.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, classifyError("purge.begin", err)
	}
	defer tx.Rollback()

	var total int64
	statements := []string{
		`DELETE FROM agent_positions WHERE expires_at <= $1`,
		`DELETE FROM cell_members m USING cells c WHERE m.cell = c.cell AND c.expires_at <= $1`,
		`DELETE FROM cells WHERE expires_at <= $1`,
	}
	for _, stmt := range statements {
		res, err := tx.ExecContext(ctx, stmt, now)
		if err != nil {
			return 0, classifyError("purge.exec", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, classifyError("purge.commit", err)
	}
	return total, nil
}

func startPostgresPurger(client *database.PostgreSQLClient, interval time.Duration, logger *zap.Logger) *janitor {
	return startJanitor(interval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()
		n, err := PurgeExpired(ctx, client, time.Now())
		if err != nil {
			logger.Warn("⚠️ 期限切れ行の削除に失敗", zap.Error(err))
			return
		}
		if n > 0 {
			logger.Debug("expired rows purged", zap.Int64("rows", n))
		}
	})
}
