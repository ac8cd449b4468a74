package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"schoolweb/internal/dto"
	"schoolweb/internal/service"
	"schoolweb/pkg/response"
)

// NoticeHandler 提示消息 HTTP 处理器
type NoticeHandler struct {
	noticeSvc service.NoticeService
}

// NewNoticeHandler 创建 NoticeHandler
func NewNoticeHandler(noticeSvc service.NoticeService) *NoticeHandler {
	return &NoticeHandler{noticeSvc: noticeSvc}
}

// DrainNotices 读取并清除当前用户的提示消息
// GET /api/v1/notices
func (h *NoticeHandler) DrainNotices(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	notices, err := h.noticeSvc.Drain(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusServiceUnavailable, 18001, "提示消息暂不可用")
		return
	}

	response.OK(c, dto.NoticeList{List: notices})
}
