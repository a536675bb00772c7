package pull

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"stronglink/pkg/catalog"
	"stronglink/pkg/client"
	"stronglink/pkg/follow"
	"stronglink/pkg/hashuri"
	"stronglink/pkg/urilist"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers  = 8
	DefaultPageSize = 50
)

// Remote 是被镜像的远端仓库，*client.Repo 满足它
type Remote interface {
	follow.Source
	FileSource
	URL() string
}

type Options struct {
	Workers  int           // 并发下载数
	Retry    time.Duration // 单个文件可重试失败后的等待时间
	Overlap  int           // 持续模式下正常重连的重叠窗口
	PageSize int           // 单次模式每页条数
	// Once 为 true 时分页拉取现有结果后退出，否则持续跟随
	Once bool

	Logger *slog.Logger
}

func (o *Options) setDefaults() {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.Retry <= 0 {
		o.Retry = follow.DefaultRetry
	}
	if o.Overlap <= 0 {
		o.Overlap = follow.DefaultOverlap
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Stats 是一次同步的计数
type Stats struct {
	Fetched int64
	Skipped int64 // 本地已存在
	Failed  int64 // 放弃的文件 (校验失败、无权限等)
}

// Puller 把一条查询的结果镜像到本地
type Puller struct {
	remote  Remote
	mirror  *Mirror
	catalog *catalog.Repository
	opts    Options

	fetched atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64
}

func NewPuller(remote Remote, mirror *Mirror, cat *catalog.Repository, opts Options) *Puller {
	opts.setDefaults()
	return &Puller{remote: remote, mirror: mirror, catalog: cat, opts: opts}
}

// CursorName 标识一条同步任务
func CursorName(repoURL, query string) string {
	return repoURL + " " + query
}

func (p *Puller) stats() Stats {
	return Stats{Fetched: p.fetched.Load(), Skipped: p.skipped.Load(), Failed: p.failed.Load()}
}

// Run 同步 query 的结果，从上次的断点继续
// ctx 被取消时返回 ctx.Err()，已完成的部分已经持久化
func (p *Puller) Run(ctx context.Context, query string) (Stats, error) {
	cur, err := loadCursor(ctx, p.catalog, CursorName(p.remote.URL(), query))
	if err != nil {
		return Stats{}, err
	}
	seq := newSequencer(cur)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	var n uint64
	handle := func(_ context.Context, rec urilist.Record) error {
		i := n
		n++
		uri := rec.URI
		g.Go(func() error {
			if err := p.process(gctx, uri); err != nil {
				return err
			}
			return seq.done(gctx, i, uri)
		})
		return nil
	}

	start := time.Now()
	p.opts.Logger.Info("pull started",
		slog.String("repo", p.remote.URL()),
		slog.String("query", query),
		slog.String("start", cur.position),
	)

	var runErr error
	if p.opts.Once {
		runErr = p.pages(gctx, query, cur.position, handle)
	} else {
		f := follow.New(p.remote, query, follow.Options{
			Query:   client.QueryOptions{Start: cur.position},
			Overlap: p.opts.Overlap,
			Retry:   p.opts.Retry,
			Resume:  true,
			Logger:  p.opts.Logger,
		})
		runErr = f.Run(gctx, handle)
	}
	werr := g.Wait()

	stats := p.stats()
	elapsed := time.Since(start)
	p.opts.Logger.Info("pull finished",
		slog.Int64("fetched", stats.Fetched),
		slog.Int64("skipped", stats.Skipped),
		slog.Int64("failed", stats.Failed),
		slog.Float64("files_per_sec", float64(stats.Fetched)/elapsed.Seconds()),
	)

	// worker 的错误优先，它往往是 gctx 被取消的原因
	if werr != nil {
		return stats, werr
	}
	if runErr != nil && ctx.Err() != nil {
		return stats, ctx.Err()
	}
	return stats, runErr
}

// pages 以非等待模式分页取完现有结果
func (p *Puller) pages(ctx context.Context, query, start string, handle follow.Handler) error {
	for {
		opts := client.QueryOptions{Start: start, Count: p.opts.PageSize}
		stream, err := p.remote.OpenQuery(ctx, query, opts)
		if err != nil {
			return err
		}

		n := 0
		for {
			rec, err := stream.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				stream.Close()
				return err
			}
			if err := handle(ctx, rec); err != nil {
				stream.Close()
				return err
			}
			start = rec.URI
			n++
		}
		stream.Close()
		if n < p.opts.PageSize {
			return nil
		}
	}
}

// process 镜像一个文件，可重试的失败会一直重试直到 ctx 取消
// 返回错误表示本地故障，整个任务停止
func (p *Puller) process(ctx context.Context, uri string) error {
	for {
		_, fetched, err := p.mirror.Fetch(ctx, p.remote, p.remote.URL(), uri)
		if err == nil {
			if fetched {
				p.fetched.Add(1)
			} else {
				p.skipped.Add(1)
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch classify(err) {
		case actionRetry:
			p.opts.Logger.Warn("fetch failed, retrying",
				slog.String("uri", uri), slog.String("err", err.Error()), slog.Duration("retry", p.opts.Retry))
			timer := time.NewTimer(p.opts.Retry)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		case actionSkip:
			p.failed.Add(1)
			p.opts.Logger.Warn("skipping file", slog.String("uri", uri), slog.String("err", err.Error()))
			return nil
		default:
			return err
		}
	}
}

type action int

const (
	actionFatal action = iota
	actionRetry
	actionSkip
)

// classify 决定单个文件失败后怎么办
// 远端的临时故障重试；远端的确定性拒绝和内容问题跳过；本地故障终止
func classify(err error) action {
	var terr *client.TransportError
	if errors.As(err, &terr) {
		return actionRetry
	}
	if code := client.StatusCode(err); code != 0 {
		if code >= 500 || code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
			return actionRetry
		}
		return actionSkip
	}
	if errors.Is(err, ErrIntegrity) || errors.Is(err, hashuri.ErrInvalidURI) {
		return actionSkip
	}
	return actionFatal
}
