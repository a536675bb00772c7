package core

import (
	"fmt"
	"time"

	"stronglink/pkg/types"
)

// Entry 记录一个远端文件被镜像到本地的事实
// 它本身也按 canonical CBOR 的 sha256 寻址，和 Blob 存在同一个 Store 里
type Entry struct {
	hash     types.Hash `cbor:"-"`
	rawBytes []byte     `cbor:"-"`

	TypeVal ObjectType `cbor:"t"`

	// URI 是远端的 hash URI (已去掉 query / fragment)
	URI string `cbor:"u"`
	// Repo 是来源仓库的 URL
	Repo string `cbor:"r"`

	ContentType string `cbor:"ct"`
	Size        int64  `cbor:"sz"`
	Content     Link   `cbor:"c"`

	// Target 只有 meta-file 才有：它描述的文件
	Target string `cbor:"tg,omitempty"`

	FetchedAt int64 `cbor:"ts"`
}

// NewEntry 为已经写入本地的 Blob 创建镜像记录
func NewEntry(uri, repo, contentType string, blob *Blob, target string) (*Entry, error) {
	if uri == "" {
		return nil, fmt.Errorf("entry uri is empty")
	}
	e := &Entry{
		TypeVal:     TypeEntry,
		URI:         uri,
		Repo:        repo,
		ContentType: contentType,
		Size:        blob.Size(),
		Content:     NewLink(blob.ID()),
		Target:      target,
		FetchedAt:   time.Now().Unix(),
	}
	if err := e.seal(); err != nil {
		return nil, err
	}
	return e, nil
}

// DecodeEntry 从存储的字节还原 Entry
func DecodeEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := DecodeObject(data, &e); err != nil {
		return nil, fmt.Errorf("failed to decode entry: %w", err)
	}
	if e.TypeVal != TypeEntry {
		return nil, fmt.Errorf("unexpected object type %q", e.TypeVal)
	}
	if err := e.seal(); err != nil {
		return nil, err
	}
	return &e, nil
}

func (e *Entry) seal() error {
	h, b, err := CalculateHash(e)
	if err != nil {
		return err
	}
	e.hash = h
	e.rawBytes = b
	return nil
}

func (e *Entry) Type() ObjectType { return TypeEntry }
func (e *Entry) ID() types.Hash   { return e.hash }
func (e *Entry) Bytes() []byte    { return e.rawBytes }

// IsMeta 判断这是否是一个 meta-file 的镜像
func (e *Entry) IsMeta() bool { return e.Target != "" }
