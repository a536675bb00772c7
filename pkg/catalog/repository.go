package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"stronglink/pkg/core"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrCursorNotFound   = errors.New("cursor not found")
	ErrFileNotFound     = errors.New("file not mirrored")
	ErrConcurrentUpdate = errors.New("concurrent update detected (CAS failed)")
)

// Repository 封装所有对 SQL 数据库的操作
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// -----------------------------------------------------------------------------
// 1. 同步断点 (Cursors)
// -----------------------------------------------------------------------------

func (r *Repository) GetCursor(ctx context.Context, name string) (*Cursor, error) {
	var c Cursor
	err := r.db.GetConn().WithContext(ctx).
		Where("name = ?", name).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCursorNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateCursor 以 CAS 方式推进断点
// oldVersion 为 0 表示创建；版本号不匹配时返回 ErrConcurrentUpdate
func (r *Repository) UpdateCursor(ctx context.Context, name, position string, oldVersion int64) error {
	return r.db.GetConn().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if oldVersion == 0 {
			c := Cursor{Name: name, Position: position, Version: 1}
			if err := tx.Create(&c).Error; err != nil {
				// PG 与 SQLite 的唯一约束错误不一样
				if errors.Is(err, gorm.ErrDuplicatedKey) ||
					strings.Contains(err.Error(), "UNIQUE constraint failed") {
					return ErrConcurrentUpdate
				}
				return fmt.Errorf("failed to create cursor: %w", err)
			}
			return nil
		}

		// UPDATE cursors SET position = ?, version = version + 1 WHERE name = ? AND version = ?
		result := tx.Model(&Cursor{}).
			Where("name = ? AND version = ?", name, oldVersion).
			Updates(map[string]any{
				"position":   position,
				"version":    gorm.Expr("version + 1"),
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrConcurrentUpdate
		}
		return nil
	})
}

// -----------------------------------------------------------------------------
// 2. 文件索引
// -----------------------------------------------------------------------------

// IndexEntry 把 core.Entry 投影到 files 表，重复写入被忽略 (先写者胜)
func (r *Repository) IndexEntry(ctx context.Context, e *core.Entry) error {
	rec := FileRecord{
		URI:         e.URI,
		EntryHash:   e.ID().String(),
		ContentHash: e.Content.Hash.String(),
		ContentType: e.ContentType,
		Size:        e.Size,
		Repo:        e.Repo,
		CreatedAt:   time.Unix(e.FetchedAt, 0),
	}
	err := r.db.GetConn().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uri"}},
			DoNothing: true,
		}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to index entry: %w", err)
	}
	return nil
}

func (r *Repository) GetFile(ctx context.Context, uri string) (*FileRecord, error) {
	var rec FileRecord
	err := r.db.GetConn().WithContext(ctx).
		Where("uri = ?", uri).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// HasFile 判断 uri 是否已经镜像过
func (r *Repository) HasFile(ctx context.Context, uri string) (bool, error) {
	var count int64
	err := r.db.GetConn().WithContext(ctx).
		Model(&FileRecord{}).
		Where("uri = ?", uri).
		Count(&count).Error
	return count > 0, err
}

// RecentFiles 按镜像时间倒序列出
func (r *Repository) RecentFiles(ctx context.Context, limit int) ([]FileRecord, error) {
	var recs []FileRecord
	err := r.db.GetConn().WithContext(ctx).
		Order("created_at DESC").
		Order("uri").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

// -----------------------------------------------------------------------------
// 3. Meta-file 索引
// -----------------------------------------------------------------------------

// IndexMeta 记录一个 meta-file 的目标与属性
func (r *Repository) IndexMeta(ctx context.Context, uri, target string, attrs map[string]any) error {
	data, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("failed to marshal meta attrs: %w", err)
	}
	rec := MetaRecord{
		URI:    uri,
		Target: target,
		Attrs:  datatypes.JSON(data),
	}
	err = r.db.GetConn().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uri"}},
			DoNothing: true,
		}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to index meta-file: %w", err)
	}
	return nil
}

// MetaFor 返回所有以 target 为目标的 meta-file
func (r *Repository) MetaFor(ctx context.Context, target string) ([]MetaRecord, error) {
	var recs []MetaRecord
	err := r.db.GetConn().WithContext(ctx).
		Where("target = ?", target).
		Order("uri").
		Find(&recs).Error
	return recs, err
}
