// Package pull 把远端仓库的文件镜像到本地存储
//
// Mirror 负责单个文件：下载、校验、落盘、建索引；
// Puller 负责整条同步任务：跟随查询流、并发下载、按顺序推进断点。
package pull

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"

	"stronglink/pkg/catalog"
	"stronglink/pkg/client"
	"stronglink/pkg/core"
	"stronglink/pkg/hashuri"
	"stronglink/pkg/metafile"
	"stronglink/pkg/storage"
	"stronglink/pkg/types"
)

// ErrIntegrity 表示下载的内容与 URI 中的摘要不一致
var ErrIntegrity = errors.New("content does not match its hash")

// FileSource 是能按 URI 下载文件的远端，*client.Repo 满足它
type FileSource interface {
	GetFile(ctx context.Context, uri string, opts client.FileOptions) (*client.File, error)
}

// Mirror 是本地镜像：内容在 Store 里，索引在 catalog 里
type Mirror struct {
	store   storage.Store
	catalog *catalog.Repository
	logger  *slog.Logger
}

func NewMirror(store storage.Store, cat *catalog.Repository, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{store: store, catalog: cat, logger: logger}
}

// Fetch 镜像一个文件
// 已经镜像过的直接返回已有的 Entry，fetched 为 false
func (m *Mirror) Fetch(ctx context.Context, src FileSource, repoURL, uri string) (entry *core.Entry, fetched bool, err error) {
	u, err := hashuri.Parse(uri)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %q", err, uri)
	}
	canonical := u.Canonical().String()

	has, err := m.catalog.HasFile(ctx, canonical)
	if err != nil {
		return nil, false, fmt.Errorf("catalog lookup: %w", err)
	}
	if has {
		e, err := m.Lookup(ctx, canonical)
		return e, false, err
	}

	f, err := src.GetFile(ctx, canonical, client.FileOptions{})
	if err != nil {
		return nil, false, err
	}
	// 本地支持该算法时校验摘要，不支持的只能信任服务端
	sum, ok := core.Digest(u.Algorithm, f.Data)
	switch {
	case !ok:
		m.logger.Debug("cannot verify content, unsupported algorithm",
			slog.String("uri", canonical), slog.String("algo", u.Algorithm.String()))
	case !strings.EqualFold(sum, u.Hash):
		return nil, false, fmt.Errorf("%w: %s (got %s)", ErrIntegrity, canonical, sum)
	}

	blob := core.NewBlob(f.Data)
	if err := m.store.Put(ctx, blob); err != nil {
		return nil, false, fmt.Errorf("store blob: %w", err)
	}

	target := ""
	if isMetaFile(f.Type) {
		target, err = m.indexMeta(ctx, canonical, f.Data)
		if err != nil {
			return nil, false, err
		}
	}

	entry, err = core.NewEntry(canonical, repoURL, f.Type, blob, target)
	if err != nil {
		return nil, false, err
	}
	if err := m.store.Put(ctx, entry); err != nil {
		return nil, false, fmt.Errorf("store entry: %w", err)
	}
	if err := m.catalog.IndexEntry(ctx, entry); err != nil {
		return nil, false, err
	}

	m.logger.Debug("mirrored", slog.String("uri", canonical), slog.Int64("size", blob.Size()))
	return entry, true, nil
}

func isMetaFile(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == metafile.Type
}

// indexMeta 解析 meta-file 并写入 meta_files 表，返回它的目标
// 解析失败的 meta-file 仍然作为普通文件镜像
func (m *Mirror) indexMeta(ctx context.Context, uri string, data []byte) (string, error) {
	subject, body, err := metafile.Parse(data)
	if err != nil {
		m.logger.Warn("malformed meta-file", slog.String("uri", uri), slog.String("err", err.Error()))
		return "", nil
	}
	delete(body, metafile.FullTextField)
	if err := m.catalog.IndexMeta(ctx, uri, subject, body); err != nil {
		return "", err
	}
	return subject, nil
}

// Lookup 按 URI 找到镜像记录
func (m *Mirror) Lookup(ctx context.Context, uri string) (*core.Entry, error) {
	rec, err := m.catalog.GetFile(ctx, uri)
	if err != nil {
		return nil, err
	}
	return storage.GetEntry(ctx, m.store, types.Hash(rec.EntryHash))
}

// Resolve 接受 hash URI 或本地 Entry 的短哈希
func (m *Mirror) Resolve(ctx context.Context, ref string) (*core.Entry, error) {
	if u, err := hashuri.Parse(ref); err == nil {
		return m.Lookup(ctx, u.Canonical().String())
	}
	h, err := m.store.ExpandHash(ctx, types.HashPrefix(ref))
	if err != nil {
		return nil, err
	}
	return storage.GetEntry(ctx, m.store, h)
}

// Open 返回镜像文件的内容
func (m *Mirror) Open(ctx context.Context, e *core.Entry) (io.ReadCloser, error) {
	return m.store.Get(ctx, e.Content.Hash)
}

// Recent 列出最近镜像的文件
func (m *Mirror) Recent(ctx context.Context, limit int) ([]catalog.FileRecord, error) {
	return m.catalog.RecentFiles(ctx, limit)
}

// Attributes 汇总本地已镜像的、以 target 为目标的 meta-file
func (m *Mirror) Attributes(ctx context.Context, target string) (metafile.Attributes, error) {
	recs, err := m.catalog.MetaFor(ctx, target)
	if err != nil {
		return nil, err
	}
	attrs := metafile.Attributes{}
	for _, rec := range recs {
		body, err := decodeAttrs(rec.Attrs)
		if err != nil {
			return nil, fmt.Errorf("meta-file %s: %w", rec.URI, err)
		}
		attrs.Merge(body)
	}
	return attrs, nil
}
