// Package importer 把本地目录里的文件逐个提交到仓库
package importer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"stronglink/pkg/client"
	"stronglink/pkg/hashuri"
	"stronglink/pkg/ignore"
	"stronglink/pkg/types"

	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 4

// sniffLen 是 http.DetectContentType 最多看的字节数
const sniffLen = 512

// Submitter 是能接收流式上传的仓库，*client.Repo 满足它
type Submitter interface {
	HasFile(ctx context.Context, uri string) (bool, error)
	Upload(ctx context.Context, body io.Reader, mimeType string, opts client.SubmitOptions) (*client.Submission, error)
}

type Options struct {
	Workers int
	Logger  *slog.Logger
}

// Result 是单个文件的结果，Err 非空表示这个文件失败了
type Result struct {
	Path string
	Type string
	Size int64
	URI  string
	// Existing 为 true 表示远端已有相同内容，没有上传
	Existing bool
	Err      error
}

type Stats struct {
	Submitted int64
	Existing  int64
	Ignored   int64
	Failed    int64
}

type Importer struct {
	repo Submitter
	opts Options
}

func New(repo Submitter, opts Options) *Importer {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Importer{repo: repo, opts: opts}
}

// Import 提交 root 下的所有文件 (root 也可以是单个文件)
// 单个文件失败只记入 Stats.Failed 并通过 report 通知，不中断整个导入；
// 遍历目录出错或 ctx 取消时返回错误。report 可以为 nil，调用是串行的。
func (im *Importer) Import(ctx context.Context, root string, report func(Result)) (Stats, error) {
	info, err := os.Stat(root)
	if err != nil {
		return Stats{}, err
	}
	base := root
	if !info.IsDir() {
		base = filepath.Dir(root)
	}
	matcher, err := ignore.NewMatcher(base)
	if err != nil {
		return Stats{}, fmt.Errorf("load ignore rules: %w", err)
	}

	var (
		submitted, existing, ignored, failed atomic.Int64
		mu                                   sync.Mutex
	)
	emit := func(r Result) {
		if report == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		report(r)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.opts.Workers)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if gctx.Err() != nil {
			return gctx.Err()
		}

		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		if rel != "." && matcher.Matches(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			ignored.Add(1)
			return nil
		}
		// 符号链接、设备文件等不提交
		if !d.Type().IsRegular() {
			return nil
		}

		g.Go(func() error {
			res := im.submit(gctx, path)
			if res.Err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				im.opts.Logger.Warn("import failed", slog.String("path", path), slog.String("err", res.Err.Error()))
			} else if res.Existing {
				existing.Add(1)
			} else {
				submitted.Add(1)
			}
			emit(res)
			return nil
		})
		return nil
	})
	werr := g.Wait()

	stats := Stats{Submitted: submitted.Load(), Existing: existing.Load(), Ignored: ignored.Load(), Failed: failed.Load()}
	if walkErr != nil {
		return stats, walkErr
	}
	return stats, werr
}

// submit 先在本地算出地址，远端已有的跳过，否则 PUT，服务端会校验内容与地址一致
func (im *Importer) submit(ctx context.Context, path string) Result {
	res := Result{Path: path}

	f, err := os.Open(path)
	if err != nil {
		res.Err = err
		return res
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		res.Err = err
		return res
	}
	res.Type = DetectType(path, head[:n])

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		res.Err = err
		return res
	}
	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		res.Err = err
		return res
	}
	res.Size = size
	uri := hashuri.FromDigest(types.SHA256, h.Sum(nil)).String()

	has, err := im.repo.HasFile(ctx, uri)
	if err != nil {
		res.Err = err
		return res
	}
	if has {
		res.URI = uri
		res.Existing = true
		return res
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		res.Err = err
		return res
	}
	sub, err := im.repo.Upload(ctx, f, res.Type, client.SubmitOptions{URI: uri, Size: size})
	if err != nil {
		res.Err = err
		return res
	}
	res.URI = sub.Location
	if res.URI == "" {
		res.URI = uri
	}
	return res
}

// DetectType 先看扩展名，再看内容
func DetectType(name string, head []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return http.DetectContentType(head)
}
