// Package catalog 是本地镜像的 SQL 目录
//
// 它记录哪些远端文件已经镜像到本地、meta-file 与目标的关系，
// 以及每条同步任务的断点 (Cursor)。内容本身在 storage 里。
package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stronglink/pkg/config"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 封装了 GORM 实例
type DB struct {
	conn *gorm.DB
}

// Open 按配置连接 sqlite 或 postgres，并迁移表结构
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create catalog dir: %w", err)
		}
		dialector = sqlite.Open(cfg.Path)
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Driver == "sqlite" {
		// sqlite 只允许一个写者
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	d := &DB{conn: db}
	if err := d.Migrate(); err != nil {
		return nil, err
	}
	return d, nil
}

// NewWithConn 复用已有的 GORM 连接 (测试用)
func NewWithConn(conn *gorm.DB) *DB {
	return &DB{conn: conn}
}

// Migrate 创建或更新所有表
func (d *DB) Migrate() error {
	if err := d.conn.AutoMigrate(&FileRecord{}, &MetaRecord{}, &Cursor{}); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}
	return nil
}

func (d *DB) GetConn() *gorm.DB {
	return d.conn
}

// Close 关闭底层连接池
func (d *DB) Close() error {
	sqlDB, err := d.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
