package dto

import "schoolweb/internal/model"

// NoticeList 当前用户待展示的提示消息（读取即清除）
type NoticeList struct {
	List []model.Notice `json:"list"`
}
