package model

import "time"

// 提示类型（对应前端 alert 样式）
const (
	NoticeSuccess = "success"
	NoticeInfo    = "info"
	NoticeDanger  = "danger"
)

// Notice 一次性用户提示消息（读取后即清除）
type Notice struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
