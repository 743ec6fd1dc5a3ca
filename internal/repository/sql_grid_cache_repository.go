package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"Heatmap-App/internal/domain/helper"
	"Heatmap-App/internal/domain/model"
	"Heatmap-App/internal/domain/repository"
	"Heatmap-App/internal/infrastructure/database"
)

// Dialect SQL方言ごとの差分
type Dialect struct {
	Name              string
	Placeholder       func(n int) string
	IsUniqueViolation func(err error) bool
}

// PostgresDialect lib/pq 用の方言
var PostgresDialect = Dialect{
	Name:              "postgres",
	Placeholder:       func(n int) string { return "$" + strconv.Itoa(n) },
	IsUniqueViolation: isPostgresUniqueViolation,
}

// SQLiteDialect modernc.org/sqlite 用の方言
var SQLiteDialect = Dialect{
	Name:              "sqlite",
	Placeholder:       func(int) string { return "?" },
	IsUniqueViolation: isSQLiteUniqueViolation,
}

func isPostgresUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

const (
	gridCellColumns = `geohash, center_lat, center_lng, fetch_status, fetched_at, expires_at, last_updated, fetched_types`
	placeColumns    = `p.external_id, p.display_name, p.address, p.lat, p.lng, p.commodity_types, p.cell_id, p.fetched_at`
)

// SQLGridCacheRepository database/sql によるグリッドキャッシュ（PostgreSQL・SQLite共通）
type SQLGridCacheRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLGridCacheRepository 任意の *sql.DB と方言から作成
func NewSQLGridCacheRepository(db *sql.DB, dialect Dialect) *SQLGridCacheRepository {
	return &SQLGridCacheRepository{db: db, dialect: dialect}
}

// NewPostgresGridCacheRepository PostgreSQLクライアントから作成
func NewPostgresGridCacheRepository(client *database.PostgreSQLClient) repository.GridCacheRepository {
	return NewSQLGridCacheRepository(client.DB, PostgresDialect)
}

// NewSQLiteGridCacheRepository SQLiteクライアントから作成
func NewSQLiteGridCacheRepository(client *database.SQLiteClient) repository.GridCacheRepository {
	return NewSQLGridCacheRepository(client.DB, SQLiteDialect)
}

var _ repository.GridCacheRepository = (*SQLGridCacheRepository)(nil)

// placeholders n個目から count 個のプレースホルダをカンマ区切りで返す
func (r *SQLGridCacheRepository) placeholders(start, count int) string {
	ph := make([]string, count)
	for i := range ph {
		ph[i] = r.dialect.Placeholder(start + i)
	}
	return strings.Join(ph, ", ")
}

func (r *SQLGridCacheRepository) UpsertPlace(ctx context.Context, place model.AmenityRecord) error {
	row, err := newPlaceRow(place)
	if err != nil {
		return err
	}

	if row.CellID != "" {
		membership := fmt.Sprintf(
			`INSERT INTO place_cells (external_id, cell_id) VALUES (%s) ON CONFLICT (external_id, cell_id) DO NOTHING`,
			r.placeholders(1, 2),
		)
		if _, err := r.db.ExecContext(ctx, membership, row.ExternalID, row.CellID); err != nil {
			return fmt.Errorf("施設とセルの所属関係の保存失敗: %w", err)
		}
	}

	query := fmt.Sprintf(
		`INSERT INTO places (external_id, display_name, address, lat, lng, commodity_types, cell_id, fetched_at) VALUES (%s)`,
		r.placeholders(1, 8),
	)
	_, err = r.db.ExecContext(ctx, query,
		row.ExternalID, row.DisplayName, row.Address, row.Lat, row.Lng, row.CommodityTypes, row.CellID, row.FetchedAt)
	if err != nil {
		if r.dialect.IsUniqueViolation(err) {
			if err := r.mergePlaceTypes(ctx, place); err != nil {
				return err
			}
			return model.ErrDuplicateKey
		}
		return fmt.Errorf("施設データの保存失敗: %w", err)
	}
	return nil
}

// mergePlaceTypes 既存の施設行に未登録の施設タイプを追加する
func (r *SQLGridCacheRepository) mergePlaceTypes(ctx context.Context, place model.AmenityRecord) error {
	var current string
	query := fmt.Sprintf(`SELECT commodity_types FROM places WHERE external_id = %s`, r.dialect.Placeholder(1))
	if err := r.db.QueryRowContext(ctx, query, place.ExternalID).Scan(&current); err != nil {
		return fmt.Errorf("施設タイプの取得失敗: %w", err)
	}
	existing, err := decodeStrings(current)
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
	update := fmt.Sprintf(`UPDATE places SET commodity_types = %s WHERE external_id = %s`,
		r.dialect.Placeholder(1), r.dialect.Placeholder(2))
	if _, err := r.db.ExecContext(ctx, update, encoded, place.ExternalID); err != nil {
		return fmt.Errorf("施設タイプの更新失敗: %w", err)
	}
	return nil
}

func (r *SQLGridCacheRepository) UpsertCell(ctx context.Context, cell model.GridCell) error {
	row, err := newGridCellRow(cell)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO grid_cells (%s) VALUES (%s)
		ON CONFLICT (geohash) DO UPDATE SET
			center_lat = excluded.center_lat,
			center_lng = excluded.center_lng,
			fetch_status = excluded.fetch_status,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at,
			last_updated = excluded.last_updated,
			fetched_types = excluded.fetched_types`,
		gridCellColumns, r.placeholders(1, 8),
	)
	_, err = r.db.ExecContext(ctx, query,
		row.Geohash, row.CenterLat, row.CenterLng, row.FetchStatus,
		nullMillis(row.FetchedAt), nullMillis(row.ExpiresAt), row.LastUpdated, row.FetchedTypes)
	if err != nil {
		return fmt.Errorf("グリッドセル %s の保存失敗: %w", cell.Geohash, err)
	}
	return nil
}

func (r *SQLGridCacheRepository) FindCellsByIDsWithExpiry(ctx context.Context, ids []string, now time.Time) ([]model.GridCell, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	n := len(ids)
	query := fmt.Sprintf(
		`SELECT %s FROM grid_cells WHERE geohash IN (%s) AND fetch_status = %s AND expires_at > %s`,
		gridCellColumns, r.placeholders(1, n), r.dialect.Placeholder(n+1), r.dialect.Placeholder(n+2),
	)
	args := make([]any, 0, n+2)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, string(model.FetchStatusCached), toMillis(now))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("有効なグリッドセルの取得失敗: %w", err)
	}
	defer rows.Close()

	var cells []model.GridCell
	for rows.Next() {
		cell, err := scanGridCell(rows)
		if err != nil {
			return nil, err
		}
		cells = append(cells, cell)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("グリッドセルの読み取り失敗: %w", err)
	}
	return cells, nil
}

func (r *SQLGridCacheRepository) FindPlacesByCellsAndType(ctx context.Context, cellIDs []string, commodityType string) ([]model.AmenityRecord, error) {
	if len(cellIDs) == 0 {
		return nil, nil
	}

	// 施設タイプはJSON文字列に入っているため、絞り込みはアプリ側で行う
	query := fmt.Sprintf(
		`SELECT DISTINCT %s FROM places p JOIN place_cells pc ON pc.external_id = p.external_id
		WHERE pc.cell_id IN (%s) ORDER BY p.external_id`,
		placeColumns, r.placeholders(1, len(cellIDs)),
	)
	args := make([]any, len(cellIDs))
	for i, id := range cellIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("セル内の施設データ取得失敗: %w", err)
	}
	defer rows.Close()

	var records []model.AmenityRecord
	for rows.Next() {
		var row placeRow
		if err := rows.Scan(&row.ExternalID, &row.DisplayName, &row.Address, &row.Lat, &row.Lng,
			&row.CommodityTypes, &row.CellID, &row.FetchedAt); err != nil {
			return nil, fmt.Errorf("施設データスキャンエラー: %w", err)
		}
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		if commodityType != "" && !rec.HasType(commodityType) {
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("施設データの読み取り失敗: %w", err)
	}
	return records, nil
}

func (r *SQLGridCacheRepository) GetCell(ctx context.Context, geohash string) (*model.GridCell, error) {
	query := fmt.Sprintf(`SELECT %s FROM grid_cells WHERE geohash = %s`, gridCellColumns, r.dialect.Placeholder(1))
	cell, err := scanGridCell(r.db.QueryRowContext(ctx, query, geohash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &cell, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGridCell(s rowScanner) (model.GridCell, error) {
	var row gridCellRow
	var fetchedAt, expiresAt sql.NullInt64
	if err := s.Scan(&row.Geohash, &row.CenterLat, &row.CenterLng, &row.FetchStatus,
		&fetchedAt, &expiresAt, &row.LastUpdated, &row.FetchedTypes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.GridCell{}, err
		}
		return model.GridCell{}, fmt.Errorf("グリッドセルスキャンエラー: %w", err)
	}
	if fetchedAt.Valid {
		row.FetchedAt = &fetchedAt.Int64
	}
	if expiresAt.Valid {
		row.ExpiresAt = &expiresAt.Int64
	}
	return row.toCell()
}

func nullMillis(ms *int64) sql.NullInt64 {
	if ms == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *ms, Valid: true}
}
