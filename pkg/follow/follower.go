// Package follow 在单次查询流之上实现"持续关注"
//
// client.Stream 不会自动重连；Follower 负责重连策略：
// 连接正常结束后立刻以较小的重叠窗口重新查询，失败后等待一段时间以完整窗口重试，
// 并对已经交付过的 URI 去重。
package follow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"stronglink/pkg/client"
	"stronglink/pkg/urilist"
)

const (
	DefaultBacklog = 50
	DefaultOverlap = 10
	DefaultRetry   = 5 * time.Second
	DefaultMaxSeen = 10000
)

// Source 是能打开查询流的远端，*client.Repo 满足它
type Source interface {
	OpenQuery(ctx context.Context, q string, opts client.QueryOptions) (*client.Stream, error)
}

// Handler 处理一条新记录，返回错误会让 Run 停止
type Handler func(ctx context.Context, rec urilist.Record) error

type Options struct {
	// Query 是基础参数；Wait 总是被置为 true，Count 由重连策略决定
	Query client.QueryOptions

	Backlog int           // 首次连接和失败重连时请求的条数
	Overlap int           // 正常结束后重连时请求的条数
	Retry   time.Duration // 失败后的等待时间
	MaxSeen int           // 去重集合的容量

	// Resume 为 true 时重连从最后交付的 URI 之后继续 (start=<last>)，
	// 而不是重新请求最近的若干条
	Resume bool

	Logger *slog.Logger
}

func (o *Options) setDefaults() {
	if o.Backlog <= 0 {
		o.Backlog = DefaultBacklog
	}
	if o.Overlap <= 0 {
		o.Overlap = DefaultOverlap
	}
	if o.Retry <= 0 {
		o.Retry = DefaultRetry
	}
	if o.MaxSeen <= 0 {
		o.MaxSeen = DefaultMaxSeen
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

type Follower struct {
	src   Source
	query string
	opts  Options
	seen  *seenSet
	last  string
}

func New(src Source, query string, opts Options) *Follower {
	opts.setDefaults()
	return &Follower{
		src:   src,
		query: query,
		opts:  opts,
		seen:  newSeenSet(opts.MaxSeen),
	}
}

// handlerError 区分调用方的错误与连接错误
type handlerError struct{ err error }

func (e *handlerError) Error() string { return e.err.Error() }

// Run 持续拉取直到 ctx 取消、handler 出错或遇到不可重试的状态码
func (f *Follower) Run(ctx context.Context, h Handler) error {
	count := f.opts.Backlog
	for {
		delivered, err := f.pull(ctx, count, h)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var herr *handlerError
		if errors.As(err, &herr) {
			return herr.err
		}
		if err == nil {
			f.opts.Logger.Debug("query stream ended, reconnecting",
				slog.String("query", f.query),
				slog.Int("delivered", delivered),
				slog.Int("overlap", f.opts.Overlap),
			)
			count = f.opts.Overlap
			continue
		}
		if permanent(err) {
			return err
		}

		f.opts.Logger.Warn("query stream failed, retrying",
			slog.String("query", f.query),
			slog.String("err", err.Error()),
			slog.Duration("retry", f.opts.Retry),
		)
		count = f.opts.Backlog

		timer := time.NewTimer(f.opts.Retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// pull 打开一次流并交付其中的新记录
// 返回 nil 表示服务端正常结束了这次连接
func (f *Follower) pull(ctx context.Context, count int, h Handler) (int, error) {
	opts := f.opts.Query
	opts.Wait = true
	opts.Count = count
	if f.opts.Resume && f.last != "" {
		opts.Start = f.last
		opts.Count = f.opts.Query.Count
	}

	stream, err := f.src.OpenQuery(ctx, f.query, opts)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	delivered := 0
	for {
		rec, err := stream.Next()
		if err == io.EOF {
			return delivered, nil
		}
		if err != nil {
			return delivered, err
		}
		if !f.seen.add(rec.URI) {
			continue
		}
		if err := h(ctx, rec); err != nil {
			return delivered, &handlerError{err: err}
		}
		f.last = rec.URI
		delivered++
	}
}

// permanent 判断错误是否重试也无济于事 (认证失败、查询语法错误等)
func permanent(err error) bool {
	var perr *urilist.ParseError
	if errors.As(err, &perr) {
		return false
	}
	code := client.StatusCode(err)
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return false
	case code >= 400 && code < 500:
		return true
	}
	return false
}

// seenSet 是容量有限的去重集合，满了以后淘汰最早加入的
type seenSet struct {
	set  map[string]struct{}
	ring []string
	next int
}

func newSeenSet(capacity int) *seenSet {
	return &seenSet{
		set:  make(map[string]struct{}, capacity),
		ring: make([]string, 0, capacity),
	}
}

// add 返回 true 表示第一次见到
func (s *seenSet) add(uri string) bool {
	if _, ok := s.set[uri]; ok {
		return false
	}
	if len(s.ring) < cap(s.ring) {
		s.ring = append(s.ring, uri)
	} else {
		delete(s.set, s.ring[s.next])
		s.ring[s.next] = uri
		s.next = (s.next + 1) % len(s.ring)
	}
	s.set[uri] = struct{}{}
	return true
}
