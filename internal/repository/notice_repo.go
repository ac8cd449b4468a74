package repository

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"schoolweb/internal/model"
	"schoolweb/pkg/redis"
)

// NoticeRepository 用户提示消息存储
// 按用户排队，Drain 读取后即清除
type NoticeRepository interface {
	Push(ctx context.Context, userID string, notice *model.Notice, ttl time.Duration) error
	Drain(ctx context.Context, userID string) ([]model.Notice, error)
}

// ── Redis 实现 ──

const noticeKeyPrefix = "notice:"

type redisNoticeRepo struct {
	rdb *redis.Client
}

// NewRedisNoticeRepo 基于 Redis 列表的提示消息存储（多实例共享）
func NewRedisNoticeRepo(rdb *redis.Client) NoticeRepository {
	return &redisNoticeRepo{rdb: rdb}
}

func (r *redisNoticeRepo) Push(ctx context.Context, userID string, notice *model.Notice, ttl time.Duration) error {
	raw, err := json.Marshal(notice)
	if err != nil {
		return err
	}
	return r.rdb.PushList(ctx, noticeKeyPrefix+userID, string(raw), ttl)
}

func (r *redisNoticeRepo) Drain(ctx context.Context, userID string) ([]model.Notice, error) {
	items, err := r.rdb.DrainList(ctx, noticeKeyPrefix+userID)
	if err != nil {
		return nil, err
	}

	notices := make([]model.Notice, 0, len(items))
	for _, item := range items {
		var n model.Notice
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			continue
		}
		notices = append(notices, n)
	}
	return notices, nil
}

// ── 内存实现（Redis 不可用时降级） ──

type memoryNoticeRepo struct {
	mu    sync.Mutex
	cache *gocache.Cache
}

// NewMemoryNoticeRepo 进程内提示消息存储，过期条目定期清理
func NewMemoryNoticeRepo() NoticeRepository {
	return &memoryNoticeRepo{cache: gocache.New(gocache.NoExpiration, 10*time.Minute)}
}

func (r *memoryNoticeRepo) Push(_ context.Context, userID string, notice *model.Notice, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var queue []model.Notice
	if v, ok := r.cache.Get(userID); ok {
		queue = v.([]model.Notice)
	}
	queue = append(queue, *notice)

	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	r.cache.Set(userID, queue, ttl)
	return nil
}

func (r *memoryNoticeRepo) Drain(_ context.Context, userID string) ([]model.Notice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.cache.Get(userID)
	if !ok {
		return []model.Notice{}, nil
	}
	r.cache.Delete(userID)
	return v.([]model.Notice), nil
}
