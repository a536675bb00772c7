// Package hashuri 负责解析与格式化内容寻址 URI: hash://<algo>/<hash>[?query][#fragment]
package hashuri

import (
	"encoding/hex"
	"errors"
	"regexp"
	"strings"

	"stronglink/pkg/types"
)

// Scheme 是内容寻址 URI 的固定前缀
const Scheme = "hash://"

var ErrInvalidURI = errors.New("invalid hash uri")

// scheme 大小写不敏感；algo 与 hash 的字符集和服务端 SLN_ALGO_FMT / SLN_HASH_FMT 一致
var uriPattern = regexp.MustCompile(`(?i)^hash://([\w.-]+)/([\w.%-]+)(?:\?([\w.%=&-]+))?(?:#([\w.%-]+))?$`)

// URI 是解析后的 hash URI
// Query 与 Fragment 不包含前导的 '?' / '#'，空字符串表示不存在
type URI struct {
	Algorithm types.Algorithm
	Hash      string
	Query     string
	Fragment  string
}

// Parse 解析 URI 字符串
// 语法不匹配时返回 ErrInvalidURI，而不是 panic，调用方必须检查错误
func Parse(s string) (URI, error) {
	m := uriPattern.FindStringSubmatch(s)
	if m == nil {
		return URI{}, ErrInvalidURI
	}
	return URI{
		Algorithm: types.NewAlgorithm(m[1]),
		Hash:      m[2],
		Query:     m[3],
		Fragment:  m[4],
	}, nil
}

// MustParse 用于常量和测试
func MustParse(s string) URI {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

// Format 按原样拼回字符串，不做任何转义
// 调用方负责保证各字段已经是 URL-safe 的
func Format(u URI) (string, error) {
	if u.Algorithm == "" || u.Hash == "" {
		return "", ErrInvalidURI
	}
	var b strings.Builder
	b.WriteString(Scheme)
	b.WriteString(string(u.Algorithm))
	b.WriteByte('/')
	b.WriteString(u.Hash)
	if u.Query != "" {
		b.WriteByte('?')
		b.WriteString(u.Query)
	}
	if u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(u.Fragment)
	}
	return b.String(), nil
}

// String 实现 fmt.Stringer，无效 URI 返回空串
func (u URI) String() string {
	s, _ := Format(u)
	return s
}

// IsZero 判断是否缺少算法或哈希
func (u URI) IsZero() bool { return u.Algorithm == "" || u.Hash == "" }

// Canonical 去掉 query 和 fragment，只保留内容地址部分
func (u URI) Canonical() URI {
	return URI{Algorithm: u.Algorithm, Hash: u.Hash}
}

// Path 返回 API 路径中使用的 "<algo>/<hash>" 片段
func (u URI) Path() string {
	return string(u.Algorithm) + "/" + u.Hash
}

// FromDigest 用原始摘要字节构造 URI (十六进制编码)
func FromDigest(algo types.Algorithm, sum []byte) URI {
	return URI{Algorithm: types.NewAlgorithm(string(algo)), Hash: hex.EncodeToString(sum)}
}
