package repository

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"Heatmap-App/internal/domain/helper"
	"Heatmap-App/internal/domain/model"
	"Heatmap-App/internal/domain/repository"
)

const (
	placesCollection    = "places"
	gridCellsCollection = "gridCells"

	// array-contains-any に渡せる値の上限
	firestoreDisjunctionLimit = 30
)

// firestorePlace placesコレクションのドキュメント（ID = external_id）
type firestorePlace struct {
	ExternalID     string    `firestore:"externalId"`
	DisplayName    string    `firestore:"displayName"`
	Address        string    `firestore:"address"`
	Location       GeoPoint  `firestore:"location"`
	CommodityTypes []string  `firestore:"commodityTypes"`
	CellID         string    `firestore:"cellId"`
	CellIDs        []string  `firestore:"cellIds"` // 所属するすべてのセル
	FetchedAt      time.Time `firestore:"fetchedAt"`
}

// firestoreGridCell gridCellsコレクションのドキュメント（ID = geohash）
type firestoreGridCell struct {
	Geohash      string     `firestore:"geohash"`
	CenterLat    float64    `firestore:"centerLat"`
	CenterLng    float64    `firestore:"centerLng"`
	FetchStatus  string     `firestore:"fetchStatus"`
	FetchedAt    *time.Time `firestore:"fetchedAt"`
	ExpiresAt    *time.Time `firestore:"expiresAt"`
	LastUpdated  time.Time  `firestore:"lastUpdated"`
	FetchedTypes []string   `firestore:"fetchedTypes"`
}

func newFirestorePlace(rec model.AmenityRecord) firestorePlace {
	doc := firestorePlace{
		ExternalID:     rec.ExternalID,
		DisplayName:    rec.DisplayName,
		Address:        rec.Address,
		Location:       LatLngToGeoPoint(rec.Location),
		CommodityTypes: append([]string{}, rec.CommodityTypes...),
		CellID:         rec.CellID,
		CellIDs:        []string{},
		FetchedAt:      rec.FetchedAt.UTC(),
	}
	if rec.CellID != "" {
		doc.CellIDs = []string{rec.CellID}
	}
	return doc
}

func (d *firestorePlace) toRecord() model.AmenityRecord {
	location, _ := GeoPointToLatLng(d.Location)
	return model.AmenityRecord{
		ExternalID:     d.ExternalID,
		DisplayName:    d.DisplayName,
		Address:        d.Address,
		Location:       location,
		CommodityTypes: d.CommodityTypes,
		CellID:         d.CellID,
		FetchedAt:      d.FetchedAt.UTC(),
	}
}

func newFirestoreGridCell(cell model.GridCell) firestoreGridCell {
	doc := firestoreGridCell{
		Geohash:      cell.Geohash,
		CenterLat:    cell.CenterLat,
		CenterLng:    cell.CenterLng,
		FetchStatus:  string(cell.FetchStatus),
		LastUpdated:  cell.LastUpdated.UTC(),
		FetchedTypes: append([]string{}, cell.FetchedTypes...),
	}
	if doc.FetchStatus == "" {
		doc.FetchStatus = string(model.FetchStatusPending)
	}
	if cell.FetchedAt != nil {
		t := cell.FetchedAt.UTC()
		doc.FetchedAt = &t
	}
	if cell.ExpiresAt != nil {
		t := cell.ExpiresAt.UTC()
		doc.ExpiresAt = &t
	}
	return doc
}

func (d *firestoreGridCell) toCell() model.GridCell {
	return model.GridCell{
		Geohash:      d.Geohash,
		CenterLat:    d.CenterLat,
		CenterLng:    d.CenterLng,
		FetchStatus:  model.FetchStatus(d.FetchStatus),
		FetchedAt:    d.FetchedAt,
		ExpiresAt:    d.ExpiresAt,
		LastUpdated:  d.LastUpdated,
		FetchedTypes: d.FetchedTypes,
	}
}

// FirestoreGridCacheRepository Firestoreを使用したグリッドキャッシュリポジトリ
type FirestoreGridCacheRepository struct {
	client *firestore.Client
}

// NewFirestoreGridCacheRepository 新しいFirestoreGridCacheRepositoryインスタンスを作成
func NewFirestoreGridCacheRepository(client *firestore.Client) *FirestoreGridCacheRepository {
	return &FirestoreGridCacheRepository{
		client: client,
	}
}

var _ repository.GridCacheRepository = (*FirestoreGridCacheRepository)(nil)

// UpsertPlace はドキュメントを新規作成し、既に存在する場合はセルIDと施設タイプを追加して ErrDuplicateKey を返す
func (r *FirestoreGridCacheRepository) UpsertPlace(ctx context.Context, place model.AmenityRecord) error {
	ref := r.client.Collection(placesCollection).Doc(place.ExternalID)

	_, err := ref.Create(ctx, newFirestorePlace(place))
	if err == nil {
		return nil
	}
	if status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("施設データの保存に失敗しました: %w", err)
	}

	var updates []firestore.Update
	if place.CellID != "" {
		updates = append(updates, firestore.Update{Path: "cellIds", Value: firestore.ArrayUnion(place.CellID)})
	}
	if types := helper.MergeTypes(nil, place.CommodityTypes); len(types) > 0 {
		values := make([]interface{}, len(types))
		for i, t := range types {
			values[i] = t
		}
		updates = append(updates, firestore.Update{Path: "commodityTypes", Value: firestore.ArrayUnion(values...)})
	}
	if len(updates) > 0 {
		if _, err := ref.Update(ctx, updates); err != nil {
			return fmt.Errorf("施設とセルの所属関係の保存に失敗しました: %w", err)
		}
	}
	return model.ErrDuplicateKey
}

func (r *FirestoreGridCacheRepository) UpsertCell(ctx context.Context, cell model.GridCell) error {
	_, err := r.client.Collection(gridCellsCollection).Doc(cell.Geohash).Set(ctx, newFirestoreGridCell(cell))
	if err != nil {
		return fmt.Errorf("グリッドセル %s の保存に失敗しました: %w", cell.Geohash, err)
	}
	return nil
}

// FindCellsByIDsWithExpiry はドキュメントIDで一括取得し、有効期限の判定はアプリ側で行う
func (r *FirestoreGridCacheRepository) FindCellsByIDsWithExpiry(ctx context.Context, ids []string, now time.Time) ([]model.GridCell, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	collection := r.client.Collection(gridCellsCollection)
	refs := make([]*firestore.DocumentRef, len(ids))
	for i, id := range ids {
		refs[i] = collection.Doc(id)
	}

	snapshots, err := r.client.GetAll(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("グリッドセルの取得に失敗しました: %w", err)
	}

	var cells []model.GridCell
	for _, snap := range snapshots {
		if snap == nil || !snap.Exists() {
			continue
		}
		var doc firestoreGridCell
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("グリッドセルデータの変換に失敗しました: %w", err)
		}
		cell := doc.toCell()
		if cell.IsValidAt(now) {
			cells = append(cells, cell)
		}
	}
	return cells, nil
}

func (r *FirestoreGridCacheRepository) FindPlacesByCellsAndType(ctx context.Context, cellIDs []string, commodityType string) ([]model.AmenityRecord, error) {
	seen := make(map[string]struct{})
	var records []model.AmenityRecord

	for start := 0; start < len(cellIDs); start += firestoreDisjunctionLimit {
		end := min(start+firestoreDisjunctionLimit, len(cellIDs))
		snapshots, err := r.client.Collection(placesCollection).
			Where("cellIds", "array-contains-any", cellIDs[start:end]).
			Documents(ctx).
			GetAll()
		if err != nil {
			return nil, fmt.Errorf("セル内の施設データ取得に失敗しました: %w", err)
		}

		for _, snap := range snapshots {
			var doc firestorePlace
			if err := snap.DataTo(&doc); err != nil {
				return nil, fmt.Errorf("施設データの変換に失敗しました: %w", err)
			}
			if _, ok := seen[doc.ExternalID]; ok {
				continue
			}
			seen[doc.ExternalID] = struct{}{}
			rec := doc.toRecord()
			if commodityType != "" && !rec.HasType(commodityType) {
				continue
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

func (r *FirestoreGridCacheRepository) GetCell(ctx context.Context, geohash string) (*model.GridCell, error) {
	snap, err := r.client.Collection(gridCellsCollection).Doc(geohash).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("グリッドセル %s の取得に失敗しました: %w", geohash, err)
	}

	var doc firestoreGridCell
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("グリッドセルデータの変換に失敗しました: %w", err)
	}
	cell := doc.toCell()
	return &cell, nil
}
