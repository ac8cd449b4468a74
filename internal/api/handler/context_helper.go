package handler

import (
	"github.com/gin-gonic/gin"

	"schoolweb/pkg/response"
	"schoolweb/pkg/session"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetSession 从请求 context 中提取会话（由 JWTAuth 写入）。
func MustGetSession(c *gin.Context) (*session.Session, bool) {
	s, ok := session.FromContext(c.Request.Context())
	if !ok || s.UserID == "" {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	return s, true
}
