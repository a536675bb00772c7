package client

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError 表示服务端返回了非预期的 HTTP 状态码
// 比如 406 表示"没有可接受的表示形式"，调用方可以据此与硬性失败区分开
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("status code %d (%s)", e.Code, e.Status)
	}
	return fmt.Sprintf("status code %d", e.Code)
}

func newStatusError(resp *http.Response) *StatusError {
	defer drain(resp)
	return &StatusError{Code: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
}

// IsStatus 判断 err 链中是否有指定状态码的 StatusError
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// StatusCode 提取 err 链中的状态码，没有则返回 0
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// TransportError 是连接层面的失败 (DNS、拒绝连接、连接中断、ctx 取消等)
// 客户端内部从不重试，重连策略属于调用方
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
