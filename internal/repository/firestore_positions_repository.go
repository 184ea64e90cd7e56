package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"GeoMatch-App/internal/domain/model"
	"GeoMatch-App/internal/domain/repository"
)

const positionsCollection = "agentPositions"

// firestorePosition Firestoreの位置ドキュメント。expireAt にTTLポリシーを設定して物理削除させる
type firestorePosition struct {
	Latitude  float64   `firestore:"latitude"`
	Longitude float64   `firestore:"longitude"`
	Cell      string    `firestore:"cell"`
	ExpireAt  time.Time `firestore:"expireAt"`
}

// FirestorePositionsRepository Firestoreによる位置ストア
type FirestorePositionsRepository struct {
	client *firestore.Client
	now    func() time.Time
}

// NewFirestorePositionsRepository 新しいFirestore位置ストアを作成
func NewFirestorePositionsRepository(client *firestore.Client, now func() time.Time) repository.PositionsRepository {
	if now == nil {
		now = time.Now
	}
	return &FirestorePositionsRepository{
		client: client,
		now:    now,
	}
}

func (r *FirestorePositionsRepository) Exists(ctx context.Context, id string) (bool, error) {
	_, err := r.Get(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, model.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (r *FirestorePositionsRepository) Get(ctx context.Context, id string) (*model.AgentPosition, error) {
	doc, err := r.client.Collection(positionsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, model.ErrNotFound
		}
		return nil, classifyFirestoreError("positions.get", err)
	}

	var data firestorePosition
	if err := doc.DataTo(&data); err != nil {
		return nil, fmt.Errorf("位置データ %s の変換に失敗しました: %w", id, err)
	}
	// TTLポリシーによる削除は遅延するため読み出し時にも期限を確認する
	if !r.now().Before(data.ExpireAt) {
		return nil, model.ErrNotFound
	}

	return &model.AgentPosition{
		ID:        id,
		Latitude:  data.Latitude,
		Longitude: data.Longitude,
		Cell:      data.Cell,
		ExpiresAt: data.ExpireAt,
	}, nil
}

func (r *FirestorePositionsRepository) Put(ctx context.Context, id string, latitude, longitude float64, cell string, ttl time.Duration) error {
	data := firestorePosition{
		Latitude:  latitude,
		Longitude: longitude,
		Cell:      cell,
		ExpireAt:  r.now().Add(ttl),
	}
	if _, err := r.client.Collection(positionsCollection).Doc(id).Set(ctx, data); err != nil {
		return classifyFirestoreError("positions.put", err)
	}
	return nil
}

func (r *FirestorePositionsRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.client.Collection(positionsCollection).Doc(id).Delete(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return classifyFirestoreError("positions.delete", err)
	}
	return nil
}

// classifyFirestoreError gRPCステータスコードで分類する
func classifyFirestoreError(op string, err error) error {
	switch status.Code(err) {
	case codes.DeadlineExceeded:
		return model.NewStorageError(op, model.ErrTimeout, err)
	case codes.Unavailable, codes.Unauthenticated, codes.PermissionDenied, codes.ResourceExhausted:
		return model.NewStorageError(op, model.ErrConnectionFailure, err)
	}
	return classifyError(op, err)
}
