package urilist

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkReader 按预设的分片逐次返回数据，模拟网络上任意的包边界
type chunkReader struct {
	chunks [][]byte
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	c.chunks[0] = c.chunks[0][n:]
	if len(c.chunks[0]) == 0 {
		c.chunks = c.chunks[1:]
	}
	return n, nil
}

// splitAt 在给定的字节偏移处切分输入
func splitAt(s string, offsets ...int) *chunkReader {
	data := []byte(s)
	var chunks [][]byte
	prev := 0
	for _, off := range offsets {
		chunks = append(chunks, data[prev:off])
		prev = off
	}
	chunks = append(chunks, data[prev:])
	return &chunkReader{chunks: chunks}
}

func readAll(t *testing.T, r *Reader) []Record {
	t.Helper()
	var out []Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func TestReader_SkipsHeartbeatsAndComments(t *testing.T) {
	input := "a\n\nb\n#c\nd"

	got, err := Decode(input, Plain)
	require.NoError(t, err)
	// 尾部的 "d" 没有结束符，应被静默丢弃
	assert.Equal(t, []string{"a", "b"}, URIs(got))

	got, err = Decode(input+"\n", Plain)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "d"}, URIs(got))
}

func TestReader_ArbitraryChunkBoundaries(t *testing.T) {
	input := "a\n\nb\n#c\nd\n"
	want := []string{"a", "b", "d"}

	// 在所有可能的位置切一刀
	for i := 0; i <= len(input); i++ {
		r := NewReader(splitAt(input, i), Plain)
		assert.Equal(t, want, URIs(readAll(t, r)), "split at %d", i)
	}

	// 逐字节读取
	r := NewReader(iotest.OneByteReader(strings.NewReader(input)), Plain)
	assert.Equal(t, want, URIs(readAll(t, r)))
}

func TestReader_MultiByteSplit(t *testing.T) {
	// "ü" 是两个字节 (0xC3 0xBC)，"日" 是三个字节
	input := "hash://sha256/ü\nhash://sha256/日本\n"
	for i := 0; i <= len(input); i++ {
		for j := i; j <= len(input); j++ {
			r := NewReader(splitAt(input, i, j), Plain)
			got := URIs(readAll(t, r))
			require.Equal(t, []string{"hash://sha256/ü", "hash://sha256/日本"}, got, "split at %d,%d", i, j)
		}
	}
}

func TestReader_LineTerminators(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"LF", "a\nb\n", []string{"a", "b"}},
		{"CR", "a\rb\r", []string{"a", "b"}},
		{"CRLF", "a\r\nb\r\n", []string{"a", "b"}},
		{"Only heartbeats", "\n\n\r\n", []string{}},
		{"Comment only", "# hello\n", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.input, Plain)
			require.NoError(t, err)
			assert.Equal(t, tt.want, URIs(got))
		})
	}
}

func TestReader_MetaMode(t *testing.T) {
	got, err := Decode("x -> y\n", Meta)
	require.NoError(t, err)
	assert.Equal(t, []Record{{URI: "x", Target: "y"}}, got)

	got, err = Decode("hash://sha256/m1  ->  hash://sha256/t1\n\n# c\nhash://sha256/m2 -> hash://sha256/t2\n", Meta)
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{URI: "hash://sha256/m1", Target: "hash://sha256/t1"},
		{URI: "hash://sha256/m2", Target: "hash://sha256/t2"},
	}, got)
}

func TestReader_MetaModeMalformed(t *testing.T) {
	r := NewReader(strings.NewReader("malformed\nx -> y\n"), Meta)
	_, err := r.Next()

	var perr *ParseError
	require.True(t, errors.As(err, &perr), "expected ParseError, got %v", err)
	assert.Equal(t, "malformed", perr.Line)

	// 错误是粘滞的，后面的合法行也不会再产出
	_, err2 := r.Next()
	assert.Equal(t, err, err2)
}

func TestReader_PlainModeKeepsArrows(t *testing.T) {
	got, err := Decode("x -> y\n", Plain)
	require.NoError(t, err)
	assert.Equal(t, []string{"x -> y"}, URIs(got))
}

func TestReader_LongMetaLine(t *testing.T) {
	// 超过 bufio.Scanner 默认 64KB 的行仍然能解出来
	target := "https://example.com/?q=" + strings.Repeat("x", 100*1024)
	got, err := Decode("hash://sha256/m1 -> "+target+"\n", Meta)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hash://sha256/m1", got[0].URI)
	assert.Equal(t, target, got[0].Target)
}

func TestReader_LineTooLong(t *testing.T) {
	input := strings.Repeat("a", MaxLineSize+10) + "\n"
	r := NewReader(strings.NewReader(input), Plain)
	_, err := r.Next()
	require.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
	assert.Contains(t, err.Error(), "line exceeds")
}
