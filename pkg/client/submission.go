package client

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"

	"stronglink/pkg/hashuri"
	"stronglink/pkg/metafile"
	"stronglink/pkg/types"
)

// LocationHeader 携带服务端为新文件分配的 URI
const LocationHeader = "X-Location"

// SubmitOptions 控制上传目标
type SubmitOptions struct {
	// URI 非空时 PUT 到 /file/<algo>/<hash>，由服务端校验内容与地址一致
	URI string
	// Size 已知时作为 Content-Length 发送，0 表示未知 (chunked)
	Size int64
}

// Submission 是上传成功后服务端的应答
type Submission struct {
	Location string
}

// URI 解析 Location
func (s *Submission) URI() (hashuri.URI, error) {
	return hashuri.Parse(s.Location)
}

// submitTarget 决定上传方式：有 URI 就 PUT，否则 POST /file
func submitTarget(opts SubmitOptions) (method, path string, err error) {
	if opts.URI == "" {
		return http.MethodPost, "/file", nil
	}
	path, err = filePath(opts.URI)
	if err != nil {
		return "", "", err
	}
	return http.MethodPut, path, nil
}

// SubmitFile 上传内存中的数据
// 总是使用 PUT：没有给出 URI 时先在本地计算 sha256 得到地址
func (r *Repo) SubmitFile(ctx context.Context, data []byte, mimeType string, opts SubmitOptions) (*Submission, error) {
	if opts.URI == "" {
		sum := sha256.Sum256(data)
		opts.URI = hashuri.FromDigest(types.SHA256, sum[:]).String()
	}
	opts.Size = int64(len(data))
	return r.Upload(ctx, bytes.NewReader(data), mimeType, opts)
}

// Upload 从 body 流式上传一个文件
func (r *Repo) Upload(ctx context.Context, body io.Reader, mimeType string, opts SubmitOptions) (*Submission, error) {
	if mimeType == "" {
		return nil, errors.New("missing content type")
	}
	method, path, err := submitTarget(opts)
	if err != nil {
		return nil, err
	}

	req, err := r.newRequest(ctx, method, path, nil, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mimeType)
	if opts.Size > 0 {
		req.ContentLength = opts.Size
	}

	resp, err := r.do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, newStatusError(resp)
	}
	defer drain(resp)
	return &Submission{Location: resp.Header.Get(LocationHeader)}, nil
}

// SubmitMeta 为 uri 生成并上传一个 meta-file
func (r *Repo) SubmitMeta(ctx context.Context, uri string, meta map[string]any) (*Submission, error) {
	data, err := metafile.Build(uri, meta)
	if err != nil {
		return nil, err
	}
	return r.SubmitFile(ctx, data, metafile.Type, SubmitOptions{})
}

// SubmissionWriter 是一个可写的上传流
// 写入的数据经 io.Pipe 直接成为请求体，调用 Commit 结束写入并等待服务端应答。
type SubmissionWriter struct {
	pw     *io.PipeWriter
	cancel context.CancelFunc
	done   chan struct{}

	sub *Submission
	err error
}

// OpenSubmission 开始一次流式上传
// 参数错误同步返回；服务端的拒绝在 Write 或 Commit 时返回
func (r *Repo) OpenSubmission(ctx context.Context, mimeType string, opts SubmitOptions) (*SubmissionWriter, error) {
	if mimeType == "" {
		return nil, errors.New("missing content type")
	}
	if _, _, err := submitTarget(opts); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	w := &SubmissionWriter{
		pw:     pw,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(w.done)
		w.sub, w.err = r.Upload(ctx, pr, mimeType, opts)
		// 服务端可能在读完请求体之前就应答 (比如 403)，解除写端的阻塞
		if w.err != nil {
			_ = pr.CloseWithError(w.err)
		} else {
			_ = pr.CloseWithError(errors.New("submission already finished"))
		}
	}()
	return w, nil
}

// Write 实现 io.Writer
func (w *SubmissionWriter) Write(p []byte) (int, error) {
	n, err := w.pw.Write(p)
	if err != nil {
		// 管道被对端关闭，说明请求已经结束，返回真正的原因
		<-w.done
		if w.err != nil {
			return n, w.err
		}
		return n, fmt.Errorf("write submission: %w", err)
	}
	return n, nil
}

// Commit 结束请求体并等待服务端应答，成功时返回 201 的 Location
func (w *SubmissionWriter) Commit() (*Submission, error) {
	_ = w.pw.Close()
	<-w.done
	w.cancel()
	return w.sub, w.err
}

// Close 等价于 Commit，丢弃结果
func (w *SubmissionWriter) Close() error {
	_, err := w.Commit()
	return err
}

// Abort 放弃上传，请求会以错误结束
func (w *SubmissionWriter) Abort(cause error) {
	if cause == nil {
		cause = errors.New("submission aborted")
	}
	_ = w.pw.CloseWithError(cause)
	w.cancel()
	<-w.done
}
