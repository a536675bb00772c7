// Package storage 是本地镜像的内容存储
// Blob 与 Entry 都按 sha256 寻址，写入是幂等的
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"stronglink/pkg/core"
	"stronglink/pkg/types"
)

var (
	ErrNotFound       = errors.New("object not found")
	ErrAmbiguousHash  = errors.New("ambiguous hash prefix")
	ErrPrefixTooShort = fmt.Errorf("hash prefix too short (min %d)", types.MinPrefixLen)
)

// Store 是存储后端 (本地磁盘或 S3，可以再套一层 Redis 缓存)
type Store interface {
	// Put 持久化对象，已存在时直接返回
	Put(ctx context.Context, obj core.Object) error

	// Get 返回原始数据流，不存在时返回 ErrNotFound
	Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error)

	// Has 检查对象是否存在
	Has(ctx context.Context, hash types.Hash) (bool, error)

	// ExpandHash 把短哈希扩展为完整哈希
	ExpandHash(ctx context.Context, prefix types.HashPrefix) (types.Hash, error)
}

// ReadAll 读出整个对象
func ReadAll(ctx context.Context, s Store, hash types.Hash) ([]byte, error) {
	rc, err := s.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// GetEntry 读取并解码一个 Entry
func GetEntry(ctx context.Context, s Store, hash types.Hash) (*core.Entry, error) {
	data, err := ReadAll(ctx, s, hash)
	if err != nil {
		return nil, err
	}
	return core.DecodeEntry(data)
}
