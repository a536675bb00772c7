// Package client 是 StrongLink 仓库的 HTTP 客户端
//
// 一个 Repo 对应一个远端仓库，构造一次后复用 (内部持有 keep-alive 连接池)。
// 所有操作都接收 context.Context，取消 ctx 即中止正在进行的请求。
package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// SessionCookie 是服务端识别会话的 cookie 名
	SessionCookie = "s"

	apiPrefix = "/sln"
)

// Repo 封装了与单个 StrongLink 仓库的连接信息
// 构造后不可变，可以被多个 goroutine 并发使用
type Repo struct {
	scheme   string
	hostname string
	port     string
	basePath string // 不带结尾的 "/"
	baseURL  string // scheme://host[:port]/basePath
	session  string

	http   *http.Client
	logger *slog.Logger
}

// Option 用于定制 Repo
type Option func(*Repo)

// WithHTTPClient 替换默认的 http.Client (测试或自定义 TLS 时使用)
// 注意：长轮询请求可能无限期挂起，不要给它设置 Timeout
func WithHTTPClient(c *http.Client) Option {
	return func(r *Repo) { r.http = c }
}

// WithLogger 设置结构化日志
func WithLogger(l *slog.Logger) Option {
	return func(r *Repo) { r.logger = l }
}

// NewRepo 根据仓库 URL 和会话 token 创建客户端
// session 为空表示匿名访问，匿名身份能做什么完全由服务端决定
func NewRepo(rawURL, session string, opts ...Option) (*Repo, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid repo url %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid repo url %q: unsupported scheme %q", rawURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("invalid repo url %q: missing hostname", rawURL)
	}

	// pathname 不包含 query string，去掉结尾的 "/"
	basePath := strings.TrimRight(u.EscapedPath(), "/")

	r := &Repo{
		scheme:   u.Scheme,
		hostname: u.Hostname(),
		port:     u.Port(),
		basePath: basePath,
		baseURL:  u.Scheme + "://" + u.Host + basePath,
		session:  session,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.http == nil {
		r.http = newHTTPClient()
	}
	return r, nil
}

// newHTTPClient 创建带 keep-alive 连接池的客户端
// 不设置整体超时：query 的长轮询连接会一直保持到服务端关闭
func newHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   16,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

func (r *Repo) Hostname() string { return r.hostname }
func (r *Repo) Port() string     { return r.port }
func (r *Repo) BasePath() string { return r.basePath }
func (r *Repo) URL() string      { return r.baseURL }

// HasSession 表示是否携带了会话凭证
func (r *Repo) HasSession() bool { return r.session != "" }

func (r *Repo) String() string { return r.baseURL }

// newRequest 构造请求并附加会话 cookie
// path 是 API 相对路径 (如 "/query")，query 可以为 nil
func (r *Repo) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := r.baseURL + apiPrefix + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if r.session != "" {
		req.Header.Set("Cookie", SessionCookie+"="+r.session)
	}
	return req, nil
}

// do 发送请求，传输层错误包装为 TransportError
// 状态码不在这里解释，由具体操作决定什么算成功
func (r *Repo) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := r.http.Do(req)
	if err != nil {
		r.logger.Debug("sln request failed",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Duration("dur", time.Since(start)),
			slog.String("err", err.Error()),
		)
		return nil, &TransportError{Op: req.Method + " " + req.URL.Path, Err: err}
	}
	r.logger.Debug("sln request",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("dur", time.Since(start)),
	)
	return resp, nil
}

// drain 读完并关闭响应体，以便连接回到 keep-alive 池
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	_ = resp.Body.Close()
}
