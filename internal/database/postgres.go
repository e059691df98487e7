package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"wearable-sync/internal/config"
)

// NewPostgresDB 创建PostgreSQL数据库连接
// 打开连接池并用 ctx 做一次 Ping，失败时关闭已打开的池
func NewPostgresDB(ctx context.Context, cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 设置连接池参数
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}

	// 测试连接
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Close 关闭数据库连接（db 为 nil 时直接返回）
func Close(db *sql.DB) error {
	if db != nil {
		return db.Close()
	}
	return nil
}
