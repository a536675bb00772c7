package client

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"stronglink/pkg/urilist"
)

const (
	queryPath     = "/query"
	metafilesPath = "/metafiles"
)

// DefaultCount 是 Query 一次取回的默认条数
const DefaultCount = 50

// Direction 控制结果的排列方向
type Direction string

const (
	DirDefault Direction = ""
	DirAsc     Direction = "a"
	DirDesc    Direction = "z"
)

// QueryOptions 列出 query / metafiles 接口认识的所有参数
// 零值字段不会出现在请求里 (由服务端取默认值)，Wait 总是显式发送
type QueryOptions struct {
	Lang  string    // 查询语言，空表示服务端默认的用户语言
	Start string    // 起始位置 (上次看到的 URI)，以 "-" 开头表示反向
	Count int       // 0 表示服务端默认
	Wait  bool      // true: 服务端保持连接，持续推送新的匹配结果
	Dir   Direction // 输出方向
}

// DefaultQueryOptions 是一次性查询的默认参数：取 50 条，不等待
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{Count: DefaultCount}
}

// StreamOptions 是流式接口的默认参数：长轮询
func StreamOptions() QueryOptions {
	return QueryOptions{Wait: true}
}

// Validate 在发起请求之前检查参数
func (o QueryOptions) Validate() error {
	if o.Count < 0 {
		return fmt.Errorf("invalid count %d", o.Count)
	}
	switch o.Dir {
	case DirDefault, DirAsc, DirDesc:
	default:
		return fmt.Errorf("invalid direction %q (want %q or %q)", o.Dir, DirAsc, DirDesc)
	}
	return nil
}

func (o QueryOptions) values() url.Values {
	v := url.Values{}
	if o.Lang != "" {
		v.Set("lang", o.Lang)
	}
	if o.Start != "" {
		v.Set("start", o.Start)
	}
	if o.Count > 0 {
		v.Set("count", strconv.Itoa(o.Count))
	}
	if o.Wait {
		v.Set("wait", "1")
	} else {
		v.Set("wait", "0")
	}
	if o.Dir != DirDefault {
		v.Set("dir", string(o.Dir))
	}
	return v
}

// OpenQuery 打开 <base>/sln/query 的结果流
// opts.Wait 为 true 时这是一个长轮询：服务端推送完现有结果后保持连接，
// 有新匹配时继续推送，直到连接被关闭。
func (r *Repo) OpenQuery(ctx context.Context, q string, opts QueryOptions) (*Stream, error) {
	return r.openStream(ctx, queryPath, opts, q, urilist.Plain)
}

// OpenMetafiles 打开 <base>/sln/metafiles 的结果流，每条记录是 {uri, target}
func (r *Repo) OpenMetafiles(ctx context.Context, opts QueryOptions) (*Stream, error) {
	return r.openStream(ctx, metafilesPath, opts, "", urilist.Meta)
}

// Query 执行查询并收集完整的 URI 列表
// opts.Count 为 0 时取 DefaultCount 条；流式接口的 0 则交给服务端决定
// 如果 opts.Wait 为 true，只有在服务端关闭连接或 ctx 取消时才会返回
func (r *Repo) Query(ctx context.Context, q string, opts QueryOptions) ([]string, error) {
	if opts.Count == 0 {
		opts.Count = DefaultCount
	}
	stream, err := r.OpenQuery(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	uris := []string{}
	for {
		rec, err := stream.Next()
		if err == io.EOF {
			return uris, nil
		}
		if err != nil {
			return nil, err
		}
		uris = append(uris, rec.URI)
	}
}
