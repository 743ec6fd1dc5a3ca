package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements PostgreSQLとSQLiteの両方で通るDDL
//
// 時刻はUTCのUnixミリ秒で保存し、有効期限の比較をDB間で揃える。
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS grid_cells (
		geohash       TEXT PRIMARY KEY,
		center_lat    DOUBLE PRECISION NOT NULL,
		center_lng    DOUBLE PRECISION NOT NULL,
		fetch_status  TEXT NOT NULL DEFAULT 'pending',
		fetched_at    BIGINT,
		expires_at    BIGINT,
		last_updated  BIGINT NOT NULL,
		fetched_types TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS places (
		external_id     TEXT PRIMARY KEY,
		display_name    TEXT NOT NULL DEFAULT '',
		address         TEXT NOT NULL DEFAULT '',
		lat             DOUBLE PRECISION NOT NULL,
		lng             DOUBLE PRECISION NOT NULL,
		commodity_types TEXT NOT NULL DEFAULT '[]',
		cell_id         TEXT NOT NULL,
		fetched_at      BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS place_cells (
		external_id TEXT NOT NULL,
		cell_id     TEXT NOT NULL,
		PRIMARY KEY (external_id, cell_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_place_cells_cell_id ON place_cells (cell_id)`,
	`CREATE INDEX IF NOT EXISTS idx_grid_cells_expires_at ON grid_cells (expires_at)`,
}

// EnsureSchema グリッドキャッシュのテーブルとインデックスを作成する（冪等）
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("スキーマの作成に失敗: %w", err)
		}
	}
	return nil
}
