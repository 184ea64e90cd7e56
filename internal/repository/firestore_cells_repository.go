package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"GeoMatch-App/internal/domain/repository"
)

const cellsCollection = "cellMembers"

type firestoreCell struct {
	Members  []string  `firestore:"members"`
	ExpireAt time.Time `firestore:"expireAt"`
}

// FirestoreCellsRepository Firestoreによるセルインデックス（1セル1ドキュメント）
type FirestoreCellsRepository struct {
	client *firestore.Client
	now    func() time.Time
}

// NewFirestoreCellsRepository 新しいFirestoreセルインデックスを作成
func NewFirestoreCellsRepository(client *firestore.Client, now func() time.Time) repository.CellsRepository {
	if now == nil {
		now = time.Now
	}
	return &FirestoreCellsRepository{
		client: client,
		now:    now,
	}
}

func (r *FirestoreCellsRepository) Add(ctx context.Context, cell, id string, ttl time.Duration) error {
	ref := r.client.Collection(cellsCollection).Doc(cell)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		now := r.now()
		var members []string

		doc, err := tx.Get(ref)
		switch {
		case err == nil:
			var data firestoreCell
			if err := doc.DataTo(&data); err != nil {
				return fmt.Errorf("セルデータ %s の変換に失敗しました: %w", cell, err)
			}
			if now.Before(data.ExpireAt) {
				members = data.Members
			}
		case status.Code(err) != codes.NotFound:
			return err
		}

		if !slices.Contains(members, id) {
			members = append(members, id)
		}
		return tx.Set(ref, firestoreCell{
			Members:  members,
			ExpireAt: now.Add(ttl),
		})
	})
	if err != nil {
		return classifyFirestoreError("cells.add", err)
	}
	return nil
}

func (r *FirestoreCellsRepository) Remove(ctx context.Context, cell, id string) error {
	_, err := r.client.Collection(cellsCollection).Doc(cell).Update(ctx, []firestore.Update{
		{Path: "members", Value: firestore.ArrayRemove(id)},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return classifyFirestoreError("cells.remove", err)
	}
	return nil
}

func (r *FirestoreCellsRepository) Members(ctx context.Context, cell string) ([]string, error) {
	doc, err := r.client.Collection(cellsCollection).Doc(cell).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return []string{}, nil
		}
		return nil, classifyFirestoreError("cells.members", err)
	}

	var data firestoreCell
	if err := doc.DataTo(&data); err != nil {
		return nil, fmt.Errorf("セルデータ %s の変換に失敗しました: %w", cell, err)
	}
	if !r.now().Before(data.ExpireAt) {
		return []string{}, nil
	}

	members := append([]string{}, data.Members...)
	sort.Strings(members)
	return members, nil
}
