// Package metafile 处理 StrongLink 的 meta-file
//
// 格式: 第一行是主题 URI，随后一个空行，剩下的部分是 JSON 对象。
// 解析时只要求主题后面有一个行结束符，空行可有可无 (与服务端一致)。
package metafile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Type 是 meta-file 的 MIME 类型
const Type = "application/vnd.stronglink.meta"

// FullTextField 由服务端做全文索引，不参与属性聚合
const FullTextField = "fulltext"

var (
	ErrMalformed    = errors.New("malformed meta-file")
	ErrEmptySubject = errors.New("meta-file subject is empty")
)

// Build 生成 meta-file 内容，JSON 使用 4 空格缩进
func Build(subject string, meta map[string]any) ([]byte, error) {
	if subject == "" {
		return nil, ErrEmptySubject
	}
	if strings.ContainsAny(subject, "\r\n") {
		return nil, fmt.Errorf("%w: subject contains a line break", ErrMalformed)
	}
	if meta == nil {
		meta = map[string]any{}
	}
	body, err := json.MarshalIndent(meta, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal meta: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(len(subject) + 2 + len(body))
	buf.WriteString(subject)
	buf.WriteString("\n\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

// Parse 拆出主题 URI 和 JSON 主体
func Parse(data []byte) (string, map[string]any, error) {
	// 主题在第一个 \r 或 \n 处结束，其后的空白交给 JSON 解码器跳过
	end := bytes.IndexAny(data, "\r\n")
	if end < 0 {
		return "", nil, fmt.Errorf("%w: missing line break after subject", ErrMalformed)
	}
	subject := string(data[:end])
	if subject == "" {
		return "", nil, ErrEmptySubject
	}

	dec := json.NewDecoder(bytes.NewReader(data[end:]))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if body == nil {
		body = map[string]any{}
	}
	return subject, body, nil
}
