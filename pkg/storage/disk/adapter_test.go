package disk

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"stronglink/pkg/core"
	"stronglink/pkg/storage"
	"stronglink/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockObject 让测试可以指定任意哈希
type mockObject struct {
	id   types.Hash
	data []byte
}

func (m mockObject) ID() types.Hash        { return m.id }
func (m mockObject) Bytes() []byte         { return m.data }
func (m mockObject) Type() core.ObjectType { return core.TypeBlob }

func TestDiskAdapter(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewAdapter(tmpDir)
	require.NoError(t, err)
	ctx := context.Background()

	blob := core.NewBlob([]byte("hello"))
	require.NoError(t, store.Put(ctx, blob))
	// 幂等
	require.NoError(t, store.Put(ctx, blob))

	// 路径应该是 tmpDir/2c/f24dba...
	_, err = os.Stat(filepath.Join(tmpDir, "2c", "f24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"))
	assert.NoError(t, err, "文件应该存在于 Sharding 目录中")

	exists, err := store.Has(ctx, blob.ID())
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Has(ctx, "ffffffff")
	require.NoError(t, err)
	assert.False(t, exists)

	reader, err := store.Get(ctx, blob.ID())
	require.NoError(t, err)
	defer reader.Close()
	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), content)

	_, err = store.Get(ctx, "ffffffff")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDiskAdapter_Entry(t *testing.T) {
	store, err := NewAdapter(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	blob := core.NewBlob([]byte("content"))
	entry, err := core.NewEntry("hash://sha256/"+blob.ID().String(), "http://repo", "text/plain", blob, "")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, entry))

	got, err := storage.GetEntry(ctx, store, entry.ID())
	require.NoError(t, err)
	assert.Equal(t, entry.URI, got.URI)
	assert.Equal(t, blob.ID(), got.Content.Hash)
}

func TestDiskAdapter_ExpandHash(t *testing.T) {
	store, err := NewAdapter(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	objA := mockObject{id: "1111aaaa00000000000000000000000000000000000000000000000000000000", data: []byte("A")}
	objB := mockObject{id: "1111bbbb00000000000000000000000000000000000000000000000000000000", data: []byte("B")}
	objC := mockObject{id: "2222cccc00000000000000000000000000000000000000000000000000000000", data: []byte("C")}
	for _, o := range []mockObject{objA, objB, objC} {
		require.NoError(t, store.Put(ctx, o))
	}

	tests := []struct {
		name     string
		input    string
		wantHash types.Hash
		wantErr  error
	}{
		{"Exact match", string(objC.id), objC.id, nil},
		{"Unique prefix (4 chars)", "2222", objC.id, nil},
		{"Upper case", "2222CCCC", objC.id, nil},
		{"Ambiguous prefix", "1111", "", storage.ErrAmbiguousHash},
		{"Not found", "ffff", "", storage.ErrNotFound},
		{"Not found in shard", "2223", "", storage.ErrNotFound},
		{"Too short", "123", "", storage.ErrPrefixTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ExpandHash(ctx, types.HashPrefix(tt.input))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHash, got)
		})
	}
}
