package dedup

import "sync"

// Queue 固定容量的去重队列
// 记录最近处理过的 ID，超出容量时淘汰最早的记录（FIFO）
type Queue struct {
	mu       sync.Mutex
	capacity int
	order    []string
	seen     map[string]struct{}
}

// NewQueue 创建去重队列，capacity <= 0 时按 1 处理
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		seen:     make(map[string]struct{}, capacity),
	}
}

// Add 记录 ID；ID 已存在时返回 false
func (q *Queue) Add(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.seen[id]; ok {
		return false
	}
	for len(q.order) >= q.capacity {
		oldest := q.order[0]
		q.order = q.order[1:]
		delete(q.seen, oldest)
	}
	q.order = append(q.order, id)
	q.seen[id] = struct{}{}
	return true
}

// Contains 是否已记录
func (q *Queue) Contains(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.seen[id]
	return ok
}

// Len 当前记录数
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}
