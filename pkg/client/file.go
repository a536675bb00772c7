package client

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"stronglink/pkg/hashuri"
)

// DefaultAccept 表示接受任意表示形式
const DefaultAccept = "*/*"

// FileOptions 控制单个文件的获取
type FileOptions struct {
	Method string // 默认 GET，可以是 HEAD
	Accept string // 默认 */*
}

// File 是一次完整下载的结果
type File struct {
	Type string // 响应的 Content-Type
	Data []byte
}

// Size 返回内容字节数
func (f *File) Size() int { return len(f.Data) }

// filePath 把 URI 映射到 /file/<algo>/<hash>
// 直接拼接原始字符串，哈希中已有的百分号编码原样保留
func filePath(uri string) (string, error) {
	u, err := hashuri.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %q", err, uri)
	}
	return "/file/" + u.Path(), nil
}

// FileRequest 发出对单个文件的请求并原样返回响应
// 不解释状态码；调用方负责关闭 resp.Body
func (r *Repo) FileRequest(ctx context.Context, uri string, opts FileOptions) (*http.Response, error) {
	path, err := filePath(uri)
	if err != nil {
		return nil, err
	}
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	accept := opts.Accept
	if accept == "" {
		accept = DefaultAccept
	}

	req, err := r.newRequest(ctx, method, path, nil, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	return r.do(req)
}

// GetFile 下载整个文件到内存
// 只有 200 算成功，其它状态码返回 StatusError
func (r *Repo) GetFile(ctx context.Context, uri string, opts FileOptions) (*File, error) {
	resp, err := r.FileRequest(ctx, uri, opts)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(resp)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read " + resp.Request.URL.Path, Err: err}
	}
	return &File{Type: resp.Header.Get("Content-Type"), Data: data}, nil
}

// HasFile 用 HEAD 请求判断仓库中是否存在该文件
func (r *Repo) HasFile(ctx context.Context, uri string) (bool, error) {
	resp, err := r.FileRequest(ctx, uri, FileOptions{Method: http.MethodHead})
	if err != nil {
		return false, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		drain(resp)
		return true, nil
	case http.StatusNotFound:
		drain(resp)
		return false, nil
	}
	return false, newStatusError(resp)
}
