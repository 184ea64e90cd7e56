package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GeoMatch-App/internal/domain/model"
	"GeoMatch-App/internal/domain/repository"
)

const testTTL = 20 * time.Second

// testPositionsRepository 位置ストア実装に共通する振る舞いを検証する
func testPositionsRepository(t *testing.T, repo repository.PositionsRepository, advance func(time.Duration)) {
	ctx := context.Background()

	t.Run("未登録", func(t *testing.T) {
		exists, err := repo.Exists(ctx, "D-missing")
		require.NoError(t, err)
		assert.False(t, exists)

		_, err = repo.Get(ctx, "D-missing")
		assert.True(t, errors.Is(err, model.ErrNotFound))
	})

	t.Run("書き込みと読み出し", func(t *testing.T) {
		require.NoError(t, repo.Put(ctx, "D1", 40.0, -70.0, "drm3b", testTTL))

		exists, err := repo.Exists(ctx, "D1")
		require.NoError(t, err)
		assert.True(t, exists)

		p, err := repo.Get(ctx, "D1")
		require.NoError(t, err)
		assert.Equal(t, "D1", p.ID)
		assert.Equal(t, 40.0, p.Latitude)
		assert.Equal(t, -70.0, p.Longitude)
		assert.Equal(t, "drm3b", p.Cell)
	})

	t.Run("上書き", func(t *testing.T) {
		require.NoError(t, repo.Put(ctx, "D1", 10.5, 10.25, "s1z0g", testTTL))
		p, err := repo.Get(ctx, "D1")
		require.NoError(t, err)
		assert.Equal(t, 10.5, p.Latitude)
		assert.Equal(t, 10.25, p.Longitude)
		assert.Equal(t, "s1z0g", p.Cell)
	})

	t.Run("削除", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "D1"))
		exists, err := repo.Exists(ctx, "D1")
		require.NoError(t, err)
		assert.False(t, exists)
		assert.NoError(t, repo.Delete(ctx, "D1"), "deleting twice is not an error")
	})

	t.Run("期限切れ", func(t *testing.T) {
		require.NoError(t, repo.Put(ctx, "P1", 1, 2, "s00twy", testTTL))
		advance(testTTL + time.Second)

		exists, err := repo.Exists(ctx, "P1")
		require.NoError(t, err)
		assert.False(t, exists)

		_, err = repo.Get(ctx, "P1")
		assert.True(t, errors.Is(err, model.ErrNotFound))
	})
}

// testCellsRepository セルインデックス実装に共通する振る舞いを検証する
func testCellsRepository(t *testing.T, repo repository.CellsRepository, advance func(time.Duration)) {
	ctx := context.Background()

	t.Run("未登録のセルは空", func(t *testing.T) {
		members, err := repo.Members(ctx, "zzzzz")
		require.NoError(t, err)
		assert.Empty(t, members)
	})

	t.Run("追加は集合として扱う", func(t *testing.T) {
		require.NoError(t, repo.Add(ctx, "drm3b", "D1", testTTL))
		require.NoError(t, repo.Add(ctx, "drm3b", "P1", testTTL))
		require.NoError(t, repo.Add(ctx, "drm3b", "D1", testTTL))

		members, err := repo.Members(ctx, "drm3b")
		require.NoError(t, err)
		assert.Equal(t, []string{"D1", "P1"}, members)
	})

	t.Run("削除", func(t *testing.T) {
		require.NoError(t, repo.Remove(ctx, "drm3b", "P1"))
		require.NoError(t, repo.Remove(ctx, "drm3b", "P-absent"))
		require.NoError(t, repo.Remove(ctx, "absent", "D1"))

		members, err := repo.Members(ctx, "drm3b")
		require.NoError(t, err)
		assert.Equal(t, []string{"D1"}, members)
	})

	t.Run("追加でセル全体のTTLが延びる", func(t *testing.T) {
		advance(15 * time.Second)
		require.NoError(t, repo.Add(ctx, "drm3b", "D2", testTTL))
		advance(15 * time.Second)

		members, err := repo.Members(ctx, "drm3b")
		require.NoError(t, err)
		assert.Equal(t, []string{"D1", "D2"}, members)
	})

	t.Run("期限切れのセルは空", func(t *testing.T) {
		advance(testTTL + time.Second)
		members, err := repo.Members(ctx, "drm3b")
		require.NoError(t, err)
		assert.Empty(t, members)
	})

	t.Run("期限切れ後の追加で古いメンバーは復活しない", func(t *testing.T) {
		require.NoError(t, repo.Add(ctx, "drm3b", "P9", testTTL))
		members, err := repo.Members(ctx, "drm3b")
		require.NoError(t, err)
		assert.Equal(t, []string{"P9"}, members)
	})
}
