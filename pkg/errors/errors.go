package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// UpstreamError 后端 REST 服务返回的非 2xx 响应
type UpstreamError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// StatusCode 提取上游状态码，非 UpstreamError 返回 0
func StatusCode(err error) int {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.StatusCode
	}
	return 0
}

// IsNotFound 上游是否返回 404
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsClientError 上游是否返回 4xx（请求本身有问题，重试无意义）
func IsClientError(err error) bool {
	code := StatusCode(err)
	return code >= 400 && code < 500
}
