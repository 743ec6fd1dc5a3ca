package database

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// MemoryPath SQLiteをプロセス内メモリで開くためのパス
const MemoryPath = ":memory:"

// SQLiteClient 組み込みSQLiteクライアント
type SQLiteClient struct {
	DB *sql.DB
}

// NewSQLiteClient SQLiteファイルを開き、スキーマを用意する
func NewSQLiteClient(ctx context.Context, path string) (*SQLiteClient, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("SQLITE_PATH環境変数が設定されていません")
	}

	dsn := MemoryPath
	if path != MemoryPath {
		dsn = filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("SQLiteの初期化に失敗: %w", err)
	}
	// 書き込みは単一コネクションに直列化する（メモリDBは接続ごとに別DBになる）
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("SQLiteへの接続に失敗: %w", err)
	}
	if err := EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteClient{DB: db}, nil
}

// Close データベース接続を閉じる
func (sc *SQLiteClient) Close() error {
	if sc == nil || sc.DB == nil {
		return nil
	}
	return sc.DB.Close()
}

// HealthCheck データベース接続のヘルスチェック
func (sc *SQLiteClient) HealthCheck(ctx context.Context) error {
	if sc == nil || sc.DB == nil {
		return fmt.Errorf("SQLiteクライアントが初期化されていません")
	}
	return sc.DB.PingContext(ctx)
}
