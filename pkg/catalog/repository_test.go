package catalog

import (
	"context"
	"fmt"
	"testing"

	"stronglink/pkg/config"
	"stronglink/pkg/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestRepo 构建隔离的测试环境
func setupTestRepo(t *testing.T) *Repository {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	catalogDB := NewWithConn(db)
	require.NoError(t, catalogDB.Migrate())
	return NewRepository(catalogDB)
}

func mustEntry(t *testing.T, content, target string) *core.Entry {
	t.Helper()
	blob := core.NewBlob([]byte(content))
	e, err := core.NewEntry("hash://sha256/"+blob.ID().String(), "http://repo", "text/plain", blob, target)
	require.NoError(t, err)
	return e
}

func mustUpdateCursor(t *testing.T, repo *Repository, name, position string, oldVersion int64, msgAndArgs ...any) {
	t.Helper()
	require.NoError(t, repo.UpdateCursor(context.Background(), name, position, oldVersion), msgAndArgs...)
}

func TestOpen_SQLiteFile(t *testing.T) {
	path := t.TempDir() + "/sub/catalog.db"
	db, err := Open(context.Background(), config.DatabaseConfig{Driver: "sqlite", Path: path})
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ok, err := repo.HasFile(context.Background(), "hash://sha256/x")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = Open(context.Background(), config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestRepository_Cursor_CAS(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	name := "http://repo tag=a"

	_, err := repo.GetCursor(ctx, name)
	assert.ErrorIs(t, err, ErrCursorNotFound)

	mustUpdateCursor(t, repo, name, "hash://sha256/a", 0, "Initial creation failed")
	c, err := repo.GetCursor(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Version)

	err = repo.UpdateCursor(ctx, name, "hash://sha256/b", 999)
	assert.ErrorIs(t, err, ErrConcurrentUpdate, "Should fail when version mismatches")

	mustUpdateCursor(t, repo, name, "hash://sha256/b", 1, "Valid update failed")
	c, err = repo.GetCursor(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.Version)
	assert.Equal(t, "hash://sha256/b", c.Position)
}

func TestRepository_Cursor_ConcurrentCreate(t *testing.T) {
	repo := setupTestRepo(t)
	mustUpdateCursor(t, repo, "job", "hash://sha256/a", 0)

	// 第二个创建者也以为 oldVersion 是 0
	err := repo.UpdateCursor(context.Background(), "job", "hash://sha256/b", 0)
	assert.ErrorIs(t, err, ErrConcurrentUpdate)
}

func TestRepository_IndexEntry(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	e := mustEntry(t, "hello", "")

	_, err := repo.GetFile(ctx, e.URI)
	assert.ErrorIs(t, err, ErrFileNotFound)

	require.NoError(t, repo.IndexEntry(ctx, e))
	require.NoError(t, repo.IndexEntry(ctx, e), "重复写入应该被忽略")

	rec, err := repo.GetFile(ctx, e.URI)
	require.NoError(t, err)
	assert.Equal(t, e.ID().String(), rec.EntryHash)
	assert.Equal(t, e.Content.Hash.String(), rec.ContentHash)
	assert.Equal(t, int64(5), rec.Size)

	ok, err := repo.HasFile(ctx, e.URI)
	require.NoError(t, err)
	assert.True(t, ok)

	var count int64
	require.NoError(t, repo.db.GetConn().Model(&FileRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRepository_RecentFiles(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	for _, s := range []string{"a", "b", "c"} {
		require.NoError(t, repo.IndexEntry(ctx, mustEntry(t, s, "")))
	}

	recs, err := repo.RecentFiles(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestRepository_Meta(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	target := "hash://sha256/target"

	require.NoError(t, repo.IndexMeta(ctx, "hash://sha256/m2", target, map[string]any{"tag": "b"}))
	require.NoError(t, repo.IndexMeta(ctx, "hash://sha256/m1", target, map[string]any{"tag": "a"}))
	require.NoError(t, repo.IndexMeta(ctx, "hash://sha256/m3", "hash://sha256/other", nil))

	recs, err := repo.MetaFor(ctx, target)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "hash://sha256/m1", recs[0].URI)
	assert.JSONEq(t, `{"tag":"a"}`, string(recs[0].Attrs))
}
