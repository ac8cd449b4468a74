package session

import "context"

// Session 请求级身份信息
// 由认证中间件写入 context，供后端调用透传 Token、提示消息按用户投递
type Session struct {
	UserID    string
	SchoolID  string
	Roles     []string
	Token     string
	RequestID string
}

// HasRole 是否拥有指定角色之一
func (s *Session) HasRole(roles ...string) bool {
	for _, have := range s.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// IsStudentOnly 仅有学生角色
func (s *Session) IsStudentOnly() bool {
	if len(s.Roles) == 0 {
		return false
	}
	for _, r := range s.Roles {
		if r != "student" {
			return false
		}
	}
	return true
}

type ctxKey struct{}

// NewContext 将会话写入 context
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext 读取会话，未认证请求返回 false
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}
