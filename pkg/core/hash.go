package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"stronglink/pkg/types"

	"github.com/fxamacker/cbor/v2"
)

// Entry 的编码必须是确定性的，相同内容永远得到相同的地址
var encOptions = cbor.EncOptions{
	// Map key 按 canonical 顺序排序
	Sort: cbor.SortCanonical,

	ShortestFloat: cbor.ShortestFloatNone,

	// 时间只以 Unix 整数出现，不生成 Tag 0/1
	Time:    cbor.TimeUnix,
	TimeTag: cbor.EncTagNone,

	// 容器长度必须写在头部
	IndefLength: cbor.IndefLengthForbidden,

	BigIntConvert: cbor.BigIntConvertShortest,
}

var em, _ = encOptions.EncMode()

// 解码来自磁盘或 S3 的数据，限制容器大小防止损坏数据耗尽内存
var decOptions = cbor.DecOptions{
	MaxArrayElements: 10000,
	MaxMapPairs:      10000,
	MaxNestedLevels:  100,

	IndefLength: cbor.IndefLengthForbidden,
	DupMapKey:   cbor.DupMapKeyEnforcedAPF,
	BignumTag:   cbor.BignumTagForbidden,
	TimeTag:     cbor.DecTagIgnored,
}

var dm, _ = decOptions.DecMode()

// CalculateHash 用 canonical CBOR 编码对象并计算 sha256
func CalculateHash(v any) (types.Hash, []byte, error) {
	data, err := em.Marshal(v)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal object: %w", err)
	}
	return CalculateBlobHash(data), data, nil
}

// CalculateBlobHash 计算原始数据的 sha256
func CalculateBlobHash(data []byte) types.Hash {
	sum := sha256.Sum256(data)
	return types.Hash(hex.EncodeToString(sum[:]))
}

// DecodeObject 使用严格模式解码 CBOR
func DecodeObject(data []byte, v any) error {
	return dm.Unmarshal(data, v)
}

// Digest 用 algo 计算 data 的十六进制摘要
// 第二个返回值为 false 表示本地不支持该算法，调用方无法校验内容
func Digest(algo types.Algorithm, data []byte) (string, bool) {
	switch algo {
	case types.SHA256:
		return CalculateBlobHash(data).String(), true
	}
	return "", false
}
