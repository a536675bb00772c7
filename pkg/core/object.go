// Package core 定义本地镜像中的对象：原始内容 Blob 与描述它的 Entry
package core

import "stronglink/pkg/types"

// ObjectType 是本地对象的类型
type ObjectType string

const (
	TypeBlob  ObjectType = "blob"  // 文件原始内容，按 sha256 寻址
	TypeEntry ObjectType = "entry" // 一个远端文件的镜像记录 (CBOR)
)

// Object 是所有可存储对象的通用接口
type Object interface {
	Type() ObjectType

	// ID 返回对象在本地存储中的地址
	ID() types.Hash

	// Bytes 返回落盘的数据
	Bytes() []byte
}
