package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"Heatmap-App/internal/domain/helper"
	"Heatmap-App/internal/domain/model"
	"Heatmap-App/internal/domain/repository"
	"Heatmap-App/internal/infrastructure/database"
)

const (
	placesTable     = "places"
	placeCellsTable = "place_cells"
	gridCellsTable  = "grid_cells"
)

// SupabaseGridCacheRepository Supabase(PostgREST)経由のグリッドキャッシュ
//
// テーブル構成は database.EnsureSchema と同じ。
type SupabaseGridCacheRepository struct {
	client *database.SupabaseClient
}

func NewSupabaseGridCacheRepository(client *database.SupabaseClient) repository.GridCacheRepository {
	return &SupabaseGridCacheRepository{
		client: client,
	}
}

func (r *SupabaseGridCacheRepository) UpsertPlace(ctx context.Context, place model.AmenityRecord) error {
	row, err := newPlaceRow(place)
	if err != nil {
		return err
	}

	if row.CellID != "" {
		membership := placeCellRow{ExternalID: row.ExternalID, CellID: row.CellID}
		_, _, err := r.client.GetClient().From(placeCellsTable).
			Insert(membership, true, "external_id,cell_id", "minimal", "").
			Execute()
		if err != nil {
			return fmt.Errorf("施設とセルの所属関係の保存失敗: %w", err)
		}
	}

	_, _, err = r.client.GetClient().From(placesTable).Insert(row, false, "", "minimal", "").Execute()
	if err != nil {
		if isPostgrestDuplicate(err) {
			if err := r.mergePlaceTypes(place); err != nil {
				return err
			}
			return model.ErrDuplicateKey
		}
		return fmt.Errorf("施設データの保存失敗: %w", err)
	}
	return nil
}

// mergePlaceTypes 既存の施設行に未登録の施設タイプを追加する
func (r *SupabaseGridCacheRepository) mergePlaceTypes(place model.AmenityRecord) error {
	data, _, err := r.client.GetClient().From(placesTable).
		Select("commodity_types", "", false).
		Eq("external_id", place.ExternalID).
		Execute()
	if err != nil {
		return fmt.Errorf("施設タイプの取得失敗: %w", err)
	}
	var rows []placeRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("施設タイプのJSONアンマーシャル失敗: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}
	existing, err := decodeStrings(rows[0].CommodityTypes)
	if err != nil {
		return fmt.Errorf("施設 %s: %w", place.ExternalID, err)
	}

	merged := helper.MergeTypes(existing, place.CommodityTypes)
	if len(merged) == len(existing) {
		return nil
	}
	encoded, err := encodeStrings(merged)
	if err != nil {
		return err
	}
	_, _, err = r.client.GetClient().From(placesTable).
		Update(map[string]interface{}{"commodity_types": encoded}, "", "minimal").
		Eq("external_id", place.ExternalID).
		Execute()
	if err != nil {
		return fmt.Errorf("施設タイプの更新失敗: %w", err)
	}
	return nil
}

func (r *SupabaseGridCacheRepository) UpsertCell(ctx context.Context, cell model.GridCell) error {
	row, err := newGridCellRow(cell)
	if err != nil {
		return err
	}

	_, _, err = r.client.GetClient().From(gridCellsTable).Insert(row, true, "geohash", "minimal", "").Execute()
	if err != nil {
		return fmt.Errorf("グリッドセル %s の保存失敗: %w", cell.Geohash, err)
	}
	return nil
}

func (r *SupabaseGridCacheRepository) FindCellsByIDsWithExpiry(ctx context.Context, ids []string, now time.Time) ([]model.GridCell, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	data, _, err := r.client.GetClient().From(gridCellsTable).
		Select("*", "", false).
		In("geohash", ids).
		Eq("fetch_status", string(model.FetchStatusCached)).
		Gt("expires_at", strconv.FormatInt(toMillis(now), 10)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("有効なグリッドセルの取得失敗: %w", err)
	}
	return decodeGridCells(data)
}

func (r *SupabaseGridCacheRepository) FindPlacesByCellsAndType(ctx context.Context, cellIDs []string, commodityType string) ([]model.AmenityRecord, error) {
	if len(cellIDs) == 0 {
		return nil, nil
	}

	data, _, err := r.client.GetClient().From(placeCellsTable).
		Select("external_id", "", false).
		In("cell_id", cellIDs).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("セル所属関係の取得失敗: %w", err)
	}
	var memberships []placeCellRow
	if err := json.Unmarshal(data, &memberships); err != nil {
		return nil, fmt.Errorf("セル所属関係のJSONアンマーシャル失敗: %w", err)
	}
	if len(memberships) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(memberships))
	externalIDs := make([]string, 0, len(memberships))
	for _, m := range memberships {
		if _, ok := seen[m.ExternalID]; ok {
			continue
		}
		seen[m.ExternalID] = struct{}{}
		externalIDs = append(externalIDs, m.ExternalID)
	}

	data, _, err = r.client.GetClient().From(placesTable).
		Select("*", "", false).
		In("external_id", externalIDs).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("施設データの取得失敗: %w", err)
	}
	var rows []placeRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("施設データのJSONアンマーシャル失敗: %w", err)
	}

	records := make([]model.AmenityRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		if commodityType != "" && !rec.HasType(commodityType) {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *SupabaseGridCacheRepository) GetCell(ctx context.Context, geohash string) (*model.GridCell, error) {
	data, _, err := r.client.GetClient().From(gridCellsTable).
		Select("*", "", false).
		Eq("geohash", geohash).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("グリッドセル %s の取得失敗: %w", geohash, err)
	}
	cells, err := decodeGridCells(data)
	if err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		return nil, nil
	}
	return &cells[0], nil
}

func decodeGridCells(data []byte) ([]model.GridCell, error) {
	var rows []gridCellRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("グリッドセルデータのJSONアンマーシャル失敗: %w", err)
	}
	cells := make([]model.GridCell, 0, len(rows))
	for _, row := range rows {
		cell, err := row.toCell()
		if err != nil {
			return nil, err
		}
		cells = append(cells, cell)
	}
	return cells, nil
}

// isPostgrestDuplicate PostgRESTのエラーメッセージから一意制約違反を判定する
func isPostgrestDuplicate(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
}
