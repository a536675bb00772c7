package catalog

import (
	"time"

	"gorm.io/datatypes"
)

// FileRecord 是一个已镜像的远端文件
type FileRecord struct {
	// URI 是远端的 hash URI
	URI string `gorm:"primaryKey;type:varchar(512)"`

	// EntryHash 指向 storage 中的 core.Entry
	EntryHash string `gorm:"type:char(64);not null"`
	// ContentHash 指向 storage 中的 core.Blob
	ContentHash string `gorm:"index;type:char(64);not null"`

	ContentType string `gorm:"index;type:varchar(255)"`
	Size        int64
	Repo        string `gorm:"index;type:varchar(512)"`

	CreatedAt time.Time
}

func (FileRecord) TableName() string { return "files" }

// MetaRecord 是一个 meta-file 的投影，用于本地按目标检索属性
type MetaRecord struct {
	URI    string `gorm:"primaryKey;type:varchar(512)"`
	Target string `gorm:"index;type:varchar(512);not null"`

	// Attrs 是 meta-file 的 JSON 主体 (不含 fulltext)
	Attrs datatypes.JSON

	CreatedAt time.Time
}

func (MetaRecord) TableName() string { return "meta_files" }

// Cursor 是一条同步任务的断点：最后一个连续完成的 URI
type Cursor struct {
	// Name 标识同步任务，比如 "<repo url> <query>"
	Name string `gorm:"primaryKey;type:varchar(1024)"`

	Position string `gorm:"type:varchar(512);not null"`

	// Version 用于乐观锁 (CAS)，每次更新 +1
	Version int64 `gorm:"default:1"`

	UpdatedAt time.Time
}

func (Cursor) TableName() string { return "cursors" }
