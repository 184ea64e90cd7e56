package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"GeoMatch-App/internal/domain/geocell"
	"GeoMatch-App/internal/domain/helper"
	"GeoMatch-App/internal/domain/model"
	"GeoMatch-App/internal/domain/repository"
)

// LocationService 位置更新と近傍検索を提供するサービス
type LocationService interface {
	// UpdateLocation エージェントの位置を更新する（緯度経度は文字列でも受け付ける）
	UpdateLocation(ctx context.Context, agentID, latitude, longitude string) error

	// UpdatePosition UpdateLocation の数値版
	UpdatePosition(ctx context.Context, agentID string, latitude, longitude float64) error

	// FindNearby 同じセルにいる want 種別のエージェント一覧を取得
	FindNearby(ctx context.Context, agentID, latitude, longitude string, want model.Kind) ([]model.NearbyAgent, error)

	// FindNearbyAt FindNearby の数値版
	FindNearbyAt(ctx context.Context, agentID string, latitude, longitude float64, want model.Kind) ([]model.NearbyAgent, error)

	// DescribeCell セルの範囲とメンバー数を取得
	DescribeCell(ctx context.Context, cell string) (*model.CellView, error)
}

// Options LocationService の調整値
type Options struct {
	TTL                  time.Duration
	OperationTimeout     time.Duration
	HydrationConcurrency int
}

// DefaultOptions TTL 20秒
func DefaultOptions() Options {
	return Options{
		TTL:                  20 * time.Second,
		OperationTimeout:     3 * time.Second,
		HydrationConcurrency: 8,
	}
}

// locationServiceImpl LocationServiceの実装
type locationServiceImpl struct {
	positions repository.PositionsRepository
	cells     repository.CellsRepository
	opts      Options
	logger    *zap.Logger
}

// NewLocationService LocationServiceの新しいインスタンスを作成
func NewLocationService(positions repository.PositionsRepository, cells repository.CellsRepository, opts Options, logger *zap.Logger) LocationService {
	defaults := DefaultOptions()
	if opts.TTL <= 0 {
		opts.TTL = defaults.TTL
	}
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = defaults.OperationTimeout
	}
	if opts.HydrationConcurrency <= 0 {
		opts.HydrationConcurrency = defaults.HydrationConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &locationServiceImpl{
		positions: positions,
		cells:     cells,
		opts:      opts,
		logger:    logger,
	}
}

func (s *locationServiceImpl) UpdateLocation(ctx context.Context, agentID, latitude, longitude string) (err error) {
	defer recoverUnexpected(&err)

	lat, lng, err := validateLocationInput(agentID, latitude, longitude)
	if err != nil {
		return err
	}
	return s.update(ctx, agentID, lat, lng)
}

func (s *locationServiceImpl) UpdatePosition(ctx context.Context, agentID string, latitude, longitude float64) (err error) {
	defer recoverUnexpected(&err)

	if err := validatePositionInput(agentID, latitude, longitude); err != nil {
		return err
	}
	return s.update(ctx, agentID, latitude, longitude)
}

// update 移動検出 → 旧セルから削除 → 旧位置削除 → 新位置書き込み → 新セルに追加
//
// 2つのストアをまたぐトランザクションではない。途中で失敗した場合の不整合はTTLで自然に解消される。
func (s *locationServiceImpl) update(ctx context.Context, agentID string, lat, lng float64) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.OperationTimeout)
	defer cancel()

	newCell := geocell.Cell(lat, lng)

	exists, err := s.positions.Exists(ctx, agentID)
	if err != nil {
		return storageFailure(ctx, "位置の存在確認に失敗", err)
	}
	if exists {
		previous, err := s.positions.Get(ctx, agentID)
		switch {
		case errors.Is(err, model.ErrNotFound):
			// Exists と Get の間に期限切れになった
		case err != nil:
			return storageFailure(ctx, "旧位置の取得に失敗", err)
		case previous.Cell != newCell:
			if err := s.cells.Remove(ctx, previous.Cell, agentID); err != nil {
				return storageFailure(ctx, "旧セルからの削除に失敗", err)
			}
			s.logger.Debug("agent moved",
				zap.String("agent_id", agentID),
				zap.String("from", previous.Cell),
				zap.String("to", newCell))
		}
		if err := s.positions.Delete(ctx, agentID); err != nil {
			return storageFailure(ctx, "旧位置の削除に失敗", err)
		}
	}

	if err := s.positions.Put(ctx, agentID, lat, lng, newCell, s.opts.TTL); err != nil {
		return storageFailure(ctx, "位置の保存に失敗", err)
	}
	if err := s.cells.Add(ctx, newCell, agentID, s.opts.TTL); err != nil {
		return storageFailure(ctx, "セルへの追加に失敗", err)
	}
	return nil
}

func (s *locationServiceImpl) FindNearby(ctx context.Context, agentID, latitude, longitude string, want model.Kind) (result []model.NearbyAgent, err error) {
	defer recoverUnexpected(&err)

	lat, lng, err := validateQueryInput(agentID, latitude, longitude, want)
	if err != nil {
		return nil, err
	}
	return s.findNearby(ctx, lat, lng, want)
}

func (s *locationServiceImpl) FindNearbyAt(ctx context.Context, agentID string, latitude, longitude float64, want model.Kind) (result []model.NearbyAgent, err error) {
	defer recoverUnexpected(&err)

	if err := validatePositionQuery(agentID, latitude, longitude, want); err != nil {
		return nil, err
	}
	return s.findNearby(ctx, latitude, longitude, want)
}

func (s *locationServiceImpl) findNearby(ctx context.Context, lat, lng float64, want model.Kind) ([]model.NearbyAgent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.OperationTimeout)
	defer cancel()

	cell := geocell.Cell(lat, lng)
	members, err := s.cells.Members(ctx, cell)
	if err != nil {
		return nil, storageFailure(ctx, "セルメンバーの取得に失敗", err)
	}

	candidates := make([]string, 0, len(members))
	for _, id := range members {
		if model.KindOf(id) == want {
			candidates = append(candidates, id)
		}
	}

	hydrated := make([]*model.AgentPosition, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.HydrationConcurrency)
	for i, id := range candidates {
		g.Go(func() error {
			position, err := s.hydrate(gctx, cell, id)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				// 1件の取得失敗は検索全体の失敗にしない
				s.logger.Debug("hydration miss", zap.String("agent_id", id), zap.String("cell", cell), zap.Error(err))
				return nil
			}
			hydrated[i] = position
			return nil
		})
	}
	if err := g.Wait(); err != nil || ctx.Err() != nil {
		if err == nil {
			err = ctx.Err()
		}
		return nil, storageFailure(ctx, "位置の取得が打ち切られた", err)
	}

	result := make([]model.NearbyAgent, 0, len(hydrated))
	for _, position := range hydrated {
		if position == nil {
			continue
		}
		result = append(result, model.NearbyAgent{
			ID:        position.ID,
			Latitude:  position.Latitude,
			Longitude: position.Longitude,
			Cell:      position.Cell,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// hydrate セルメンバーのIDを位置情報に解決する。消えていた・別セルへ移動済みなら ErrHydrationMiss
func (s *locationServiceImpl) hydrate(ctx context.Context, cell, id string) (*model.AgentPosition, error) {
	position, err := s.positions.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrHydrationMiss, id, err)
	}
	if position.Cell != cell {
		return nil, fmt.Errorf("%w: %s is now in %s", model.ErrHydrationMiss, id, position.Cell)
	}
	return position, nil
}

func (s *locationServiceImpl) DescribeCell(ctx context.Context, cell string) (view *model.CellView, err error) {
	defer recoverUnexpected(&err)

	bound, err := geocell.Bounds(cell)
	if err != nil {
		return nil, &model.ValidationError{Problems: []string{"Cell is invalid"}}
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.OperationTimeout)
	defer cancel()

	members, err := s.cells.Members(ctx, cell)
	if err != nil {
		return nil, storageFailure(ctx, "セルメンバーの取得に失敗", err)
	}

	view = &model.CellView{
		Cell:   cell,
		Bounds: helper.BoundToGeoPolygon(bound),
	}
	for _, id := range members {
		switch model.KindOf(id) {
		case model.KindDriver:
			view.DriverCount++
		case model.KindPassenger:
			view.PassengerCount++
		}
	}
	return view, nil
}

// storageFailure ストア操作の失敗を StorageUnavailable として返す
func storageFailure(ctx context.Context, msg string, err error) error {
	switch {
	case errors.Is(err, model.ErrStorageUnavailable):
		return fmt.Errorf("%s: %w", msg, err)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", msg, model.NewStorageError(msg, model.ErrTimeout, err))
	}
	return fmt.Errorf("%s: %w: %w", msg, model.ErrUnexpected, err)
}

func recoverUnexpected(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", model.ErrUnexpected, r)
	}
}
