package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"schoolweb/internal/model"
	"schoolweb/internal/repository"
	"schoolweb/pkg/dedup"
	"schoolweb/pkg/session"
)

// NoticeService 用户提示消息（一次性，读取即清除）
type NoticeService interface {
	// Push 向当前会话用户投递提示；dedupKey 非空时同一 key 只投递一次
	Push(ctx context.Context, noticeType, message, dedupKey string) error
	// Warn 投递降级告警，失败只记录日志
	Warn(ctx context.Context, subject, message string)
	// Drain 读取并清除用户的全部提示
	Drain(ctx context.Context, userID string) ([]model.Notice, error)
}

type noticeService struct {
	repo   *repository.Repository
	seen   *dedup.Queue
	ttl    time.Duration
	logger *zap.Logger
}

// NewNoticeService 创建 NoticeService 实例
// seen 记录最近投递过的 dedupKey，容量由配置决定
func NewNoticeService(repo *repository.Repository, seen *dedup.Queue, ttl time.Duration, logger *zap.Logger) NoticeService {
	return &noticeService{repo: repo, seen: seen, ttl: ttl, logger: logger}
}

func (s *noticeService) Push(ctx context.Context, noticeType, message, dedupKey string) error {
	sess, ok := session.FromContext(ctx)
	if !ok || sess.UserID == "" {
		s.logger.Debug("无会话用户，丢弃提示消息", zap.String("message", message))
		return nil
	}

	if dedupKey != "" && !s.seen.Add(dedupKey) {
		return nil
	}

	id := dedupKey
	if id == "" {
		id = uuid.New().String()
	}
	notice := &model.Notice{
		ID:        id,
		Type:      noticeType,
		Message:   message,
		CreatedAt: time.Now(),
	}
	return s.repo.Notice.Push(ctx, sess.UserID, notice, s.ttl)
}

func (s *noticeService) Warn(ctx context.Context, subject, message string) {
	key := ""
	if sess, ok := session.FromContext(ctx); ok && sess.RequestID != "" {
		key = sess.RequestID + ":" + subject
	}
	if err := s.Push(ctx, model.NoticeDanger, message, key); err != nil {
		s.logger.Warn("投递提示消息失败", zap.String("subject", subject), zap.Error(err))
	}
}

func (s *noticeService) Drain(ctx context.Context, userID string) ([]model.Notice, error) {
	notices, err := s.repo.Notice.Drain(ctx, userID)
	if err != nil {
		s.logger.Error("读取提示消息失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	if notices == nil {
		notices = []model.Notice{}
	}
	return notices, nil
}
