package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"schoolweb/pkg/jwt"
	"schoolweb/pkg/response"
	"schoolweb/pkg/session"
)

// JWTAuth 平台会话认证中间件
// Token 优先取 Authorization: Bearer <token>，其次取会话 Cookie
// 校验通过后写入 gin.Context 与 request context（供后端调用透传 Token）
func JWTAuth(jwtMgr *jwt.Manager, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := extractToken(c, cookieName)
		if !ok {
			response.Unauthorized(c, 10002, "缺少认证信息")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseToken(token)
		if err != nil {
			response.Unauthorized(c, 10002, "Token 无效或已过期")
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("school_id", claims.SchoolID)
		c.Set("roles", claims.Roles)

		sess := &session.Session{
			UserID:    claims.UserID,
			SchoolID:  claims.SchoolID,
			Roles:     claims.Roles,
			Token:     token,
			RequestID: c.GetString(requestIDKey),
		}
		c.Request = c.Request.WithContext(session.NewContext(c.Request.Context(), sess))

		c.Next()
	}
}

func extractToken(c *gin.Context, cookieName string) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if cookieName != "" {
		if v, err := c.Cookie(cookieName); err == nil && v != "" {
			return v, true
		}
	}
	return "", false
}

// RoleAuth 角色权限中间件
// 检查当前用户是否具有指定角色之一
func RoleAuth(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get("roles")
		if !exists {
			response.Unauthorized(c, 10002, "未认证")
			c.Abort()
			return
		}

		roles, _ := v.([]string)
		sess := session.Session{Roles: roles}
		if sess.HasRole(allowedRoles...) {
			c.Next()
			return
		}

		response.Forbidden(c, 10003, "无权限访问")
		c.Abort()
	}
}
