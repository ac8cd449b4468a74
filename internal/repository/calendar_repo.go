package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"schoolweb/internal/model"
	"schoolweb/internal/schedule"
	"schoolweb/pkg/apiclient"
)

// CalendarRepository 日历服务访问接口
// 所有失败统一包装为 schedule.ErrCalendarUnavailable
type CalendarRepository interface {
	CreateEvent(ctx context.Context, req *model.CalendarEventRequest) (string, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

type calendarRepo struct {
	api *apiclient.Client
}

// NewCalendarRepo 创建 CalendarRepository 实例
func NewCalendarRepo(api *apiclient.Client) CalendarRepository {
	return &calendarRepo{api: api}
}

func (r *calendarRepo) CreateEvent(ctx context.Context, req *model.CalendarEventRequest) (string, error) {
	var event model.CalendarEvent
	if err := r.api.Post(ctx, "/calendar", req, &event); err != nil {
		return "", fmt.Errorf("%w: %w", schedule.ErrCalendarUnavailable, err)
	}
	if event.EventID == "" {
		return "", fmt.Errorf("%w: %w", schedule.ErrCalendarUnavailable, errors.New("响应缺少 eventId"))
	}
	return event.EventID, nil
}

func (r *calendarRepo) DeleteEvent(ctx context.Context, eventID string) error {
	if err := r.api.Delete(ctx, "/calendar/"+url.PathEscape(eventID)); err != nil {
		return fmt.Errorf("%w: %w", schedule.ErrCalendarUnavailable, err)
	}
	return nil
}
