package types

import "strings"

// Hash 代表内容摘要的十六进制表示 (通常为 SHA256 Hex String)
type Hash string

func (h Hash) String() string { return string(h) }

// Algorithm 是 hash URI 中的算法名，统一小写
type Algorithm string

const (
	// SHA256 是客户端本地计算摘要时使用的算法
	SHA256 Algorithm = "sha256"
)

func NewAlgorithm(s string) Algorithm { return Algorithm(strings.ToLower(s)) }

func (a Algorithm) String() string { return string(a) }

// HashPrefix 是用户输入的短哈希 (至少 4 个字符)
type HashPrefix string

// MinPrefixLen 是短哈希的最小长度
const MinPrefixLen = 4
