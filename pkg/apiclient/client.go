package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	pkgerrors "schoolweb/pkg/errors"
	"schoolweb/pkg/session"
)

const (
	maxResponseSize = 5 * 1024 * 1024 // 5MB
	maxErrorBody    = 512
)

// Client 后端 REST 服务的 JSON 客户端
// 自动透传当前会话的 Token 与请求 ID
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// New 创建 REST 客户端
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Get 发送 GET 请求，响应 JSON 解码到 out
func (c *Client) Get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// Post 发送 POST 请求
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

// Patch 发送 PATCH 请求
func (c *Client) Patch(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPatch, path, nil, body, out)
}

// PatchQuery 发送带查询参数的 PATCH 请求
func (c *Client) PatchQuery(ctx context.Context, path string, query url.Values, body, out interface{}) error {
	return c.do(ctx, http.MethodPatch, path, query, body, out)
}

// Delete 发送 DELETE 请求
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	target := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("序列化请求体失败: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("构建请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s, ok := session.FromContext(ctx); ok {
		if s.Token != "" {
			req.Header.Set("Authorization", "Bearer "+s.Token)
		}
		if s.RequestID != "" {
			req.Header.Set("X-Request-ID", s.RequestID)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s 请求失败: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("后端请求完成",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	limited := io.LimitReader(resp.Body, maxResponseSize)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(limited, maxErrorBody))
		return &pkgerrors.UpstreamError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, limited)
		return nil
	}
	if err := json.NewDecoder(limited).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("%s %s 响应解析失败: %w", method, path, err)
	}
	return nil
}
