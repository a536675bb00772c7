package client

import (
	"context"
	"errors"
	"io"
	"iter"
	"net/http"
	"sync"

	"stronglink/pkg/urilist"
)

// State 是一次 query / metafiles 流的生命周期
// OPENING -> STREAMING -> {ENDED | FAILED}
type State int

const (
	StateOpening State = iota
	StateStreaming
	StateEnded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "OPENING"
	case StateStreaming:
		return "STREAMING"
	case StateEnded:
		return "ENDED"
	case StateFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// ErrStreamClosed 在调用方主动 Close 之后返回
var ErrStreamClosed = errors.New("stream closed")

// Stream 是一次长轮询请求的结果流
// 响应体每到一行就解码出一条记录，不会等凑满缓冲区，所以可以当实时 feed 使用。
// 流不会自动重连；断线后的重连/重叠窗口由调用方决定 (见 pkg/follow)。
//
// Next 不支持多个 goroutine 并发调用；Close 可以在任意 goroutine 调用。
type Stream struct {
	resp   *http.Response
	reader *urilist.Reader
	cancel context.CancelFunc

	mu     sync.Mutex
	state  State
	err    error
	closed bool
}

// openStream 发送 GET，检查状态码后把响应体交给行解码器
// 非 200 时解码器根本不会运行，直接返回带状态码的 StatusError
func (r *Repo) openStream(ctx context.Context, path string, opts QueryOptions, q string, mode urilist.Mode) (*Stream, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	values := opts.values()
	if path == queryPath {
		values.Set("q", q)
	}

	ctx, cancel := context.WithCancel(ctx)
	req, err := r.newRequest(ctx, http.MethodGet, path, values, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := r.do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		err := newStatusError(resp)
		cancel()
		return nil, err
	}

	return &Stream{
		resp:   resp,
		reader: urilist.NewReader(resp.Body, mode),
		cancel: cancel,
		state:  StateStreaming,
	}, nil
}

// Next 返回下一条记录
// 连接被对端正常关闭时返回 io.EOF (ENDED)，其它错误都是 FAILED，错误是粘滞的
func (s *Stream) Next() (urilist.Record, error) {
	s.mu.Lock()
	if s.err != nil {
		err := s.err
		s.mu.Unlock()
		return urilist.Record{}, err
	}
	s.mu.Unlock()

	rec, err := s.reader.Next()
	if err != nil {
		return urilist.Record{}, s.finish(err)
	}
	return rec, nil
}

func (s *Stream) finish(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}

	switch {
	case s.closed:
		err = ErrStreamClosed
		s.state = StateEnded
	case err == io.EOF:
		s.state = StateEnded
	default:
		var perr *urilist.ParseError
		if !errors.As(err, &perr) {
			err = &TransportError{Op: "read " + s.resp.Request.URL.Path, Err: err}
		}
		s.state = StateFailed
	}
	s.err = err
	s.cancel()
	_ = s.resp.Body.Close()
	return err
}

// All 以 range-over-func 的方式遍历记录
// 正常结束时不会产出 io.EOF；失败时产出一次错误后结束。迭代结束会关闭流。
func (s *Stream) All() iter.Seq2[urilist.Record, error] {
	return func(yield func(urilist.Record, error) bool) {
		defer s.Close()
		for {
			rec, err := s.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(urilist.Record{}, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Close 中止请求，之后不会再产出任何记录
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.err == nil {
		s.err = ErrStreamClosed
		s.state = StateEnded
	}
	s.cancel()
	return s.resp.Body.Close()
}

// State 返回当前状态
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err 返回终止原因；正常结束返回 nil
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == io.EOF || s.err == ErrStreamClosed {
		return nil
	}
	return s.err
}
