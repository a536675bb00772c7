// Package urilist 解码服务端返回的行分隔 URI 列表 (query / metafiles 的响应体)
//
// 每行以 '\n' 或 '\r' 结尾；空行是心跳，'#' 开头的是注释，二者都不会交给调用方。
package urilist

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Mode 决定每一行如何解释
type Mode int

const (
	// Plain: 一行就是一个 URI
	Plain Mode = iota
	// Meta: 一行是 "<uri> -> <target>"
	Meta
)

func (m Mode) String() string {
	if m == Meta {
		return "meta"
	}
	return "plain"
}

// MaxLineSize 单行上限，超出视为协议错误
// meta 模式下一行包含两个 URI，target 可以是任意长度的 URL
const MaxLineSize = 1 << 20

var metaLine = regexp.MustCompile(`^(.*?[^ ]) +-> +(.*)$`)

// Record 是解码出的一条记录
// Plain 模式下 Target 为空
type Record struct {
	URI    string `json:"uri"`
	Target string `json:"target,omitempty"`
}

// ParseError 表示某一行不符合 "<uri> -> <target>" 格式，对整个流是致命的
type ParseError struct {
	Line string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("urilist: malformed meta line %q", e.Line)
}

// Reader 是一个增量解码器
// 它只在读到行结束符时才产出记录，不会为了凑满缓冲区而等待，
// 所以长轮询的响应体可以被当成实时的 feed 消费。
type Reader struct {
	scanner *bufio.Scanner
	mode    Mode
	err     error // 粘滞错误，一旦失败后续 Next 都返回它
}

func NewReader(r io.Reader, mode Mode) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), MaxLineSize)
	s.Split(splitLines)
	return &Reader{scanner: s, mode: mode}
}

// Next 返回下一条记录；输入结束时返回 io.EOF
func (r *Reader) Next() (Record, error) {
	if r.err != nil {
		return Record{}, r.err
	}
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		rec, err := r.decode(line)
		if err != nil {
			r.err = err
			return Record{}, err
		}
		return rec, nil
	}
	if err := r.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			err = fmt.Errorf("urilist: line exceeds %d bytes: %w", MaxLineSize, err)
		}
		r.err = err
		return Record{}, err
	}
	r.err = io.EOF
	return Record{}, io.EOF
}

func (r *Reader) decode(line string) (Record, error) {
	if r.mode != Meta {
		return Record{URI: line}, nil
	}
	m := metaLine.FindStringSubmatch(line)
	if m == nil {
		return Record{}, &ParseError{Line: line}
	}
	return Record{URI: m[1], Target: m[2]}, nil
}

// splitLines 以 '\n' 或 '\r' 切分
// 只按 ASCII 结束符切分，所以多字节 UTF-8 字符永远不会被截断；
// EOF 时未结束的尾部数据直接丢弃 (连接可能在行中间被关闭)。
func splitLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), nil, nil
	}
	return 0, nil, nil
}

// Decode 解码一个完整的字符串，便于测试和小响应体
func Decode(s string, mode Mode) ([]Record, error) {
	r := NewReader(strings.NewReader(s), mode)
	var out []Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

// URIs 提取记录中的 URI 列表
func URIs(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.URI)
	}
	return out
}
