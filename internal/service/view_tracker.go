package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/log"
	"github.com/go-redis/redis/v8"
)

// ViewCounts 是一个学校的访问统计。
type ViewCounts struct {
	Views         int64 `json:"views"`
	ActiveViewers int64 `json:"activeViewers"`
}

// ViewTracker 记录仪表盘访问量和当前活跃访客。
// 访客在最近一次访问后的窗口期内被视为活跃。
type ViewTracker interface {
	RecordView(ctx context.Context, schoolCode, viewerID string) error
	GetCounts(ctx context.Context, schoolCode string) (ViewCounts, error)
}

// ViewerID 由 IP 和 User-Agent 派生访客标识。
func ViewerID(ip, userAgent string) string {
	sum := sha256.Sum256([]byte(ip + "|" + userAgent))
	return hex.EncodeToString(sum[:16])
}

// MemoryViewTracker 是进程内实现，重启后清零。
type MemoryViewTracker struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	views  map[string]int64
	active map[string]map[string]time.Time // schoolCode -> viewerID -> 过期时间
}

// NewMemoryViewTracker 创建进程内的访问统计。
func NewMemoryViewTracker(window time.Duration) *MemoryViewTracker {
	return &MemoryViewTracker{
		window: window,
		now:    time.Now,
		views:  make(map[string]int64),
		active: make(map[string]map[string]time.Time),
	}
}

func (t *MemoryViewTracker) RecordView(_ context.Context, schoolCode, viewerID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.views[schoolCode]++
	viewers, ok := t.active[schoolCode]
	if !ok {
		viewers = make(map[string]time.Time)
		t.active[schoolCode] = viewers
	}
	viewers[viewerID] = t.now().Add(t.window)
	return nil
}

func (t *MemoryViewTracker) GetCounts(_ context.Context, schoolCode string) (ViewCounts, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var active int64
	for _, expiry := range t.active[schoolCode] {
		if expiry.After(now) {
			active++
		}
	}
	return ViewCounts{Views: t.views[schoolCode], ActiveViewers: active}, nil
}

// Sweep 删除全部已过期的访客。
func (t *MemoryViewTracker) Sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for code, viewers := range t.active {
		for id, expiry := range viewers {
			if !expiry.After(now) {
				delete(viewers, id)
			}
		}
		if len(viewers) == 0 {
			delete(t.active, code)
		}
	}
}

// Start 启动后台清理协程，ctx 取消时退出。
func (t *MemoryViewTracker) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.Sweep()
			}
		}
	}()
}

// RedisViewTracker 把统计保存在 Redis 中，多个实例共享。
// 活跃访客是一个以过期时间（毫秒）为分数的有序集合。
type RedisViewTracker struct {
	rdb    *redis.Client
	window time.Duration
	now    func() time.Time
}

// NewRedisViewTracker 创建基于 Redis 的访问统计。
func NewRedisViewTracker(rdb *redis.Client, window time.Duration) *RedisViewTracker {
	return &RedisViewTracker{rdb: rdb, window: window, now: time.Now}
}

func viewsKey(schoolCode string) string   { return "schoolchat:views:" + schoolCode }
func viewersKey(schoolCode string) string { return "schoolchat:viewers:" + schoolCode }

func (t *RedisViewTracker) RecordView(ctx context.Context, schoolCode, viewerID string) error {
	expiry := t.now().Add(t.window)
	pipe := t.rdb.TxPipeline()
	pipe.Incr(ctx, viewsKey(schoolCode))
	pipe.ZAdd(ctx, viewersKey(schoolCode), &redis.Z{Score: float64(expiry.UnixMilli()), Member: viewerID})
	// 整个集合在最后一个访客过期后自动删除
	pipe.PExpire(ctx, viewersKey(schoolCode), t.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record view: %w", err)
	}
	return nil
}

func (t *RedisViewTracker) GetCounts(ctx context.Context, schoolCode string) (ViewCounts, error) {
	nowMs := strconv.FormatInt(t.now().UnixMilli(), 10)
	if err := t.rdb.ZRemRangeByScore(ctx, viewersKey(schoolCode), "-inf", nowMs).Err(); err != nil {
		return ViewCounts{}, fmt.Errorf("failed to evict expired viewers: %w", err)
	}
	active, err := t.rdb.ZCard(ctx, viewersKey(schoolCode)).Result()
	if err != nil {
		return ViewCounts{}, fmt.Errorf("failed to count viewers: %w", err)
	}
	views, err := t.rdb.Get(ctx, viewsKey(schoolCode)).Int64()
	if err != nil && err != redis.Nil {
		return ViewCounts{}, fmt.Errorf("failed to read views: %w", err)
	}
	return ViewCounts{Views: views, ActiveViewers: active}, nil
}

// NewViewTracker 根据配置选择实现。redis 后端需要传入已连接的客户端。
func NewViewTracker(ctx context.Context, backend string, rdb *redis.Client, window, sweepInterval time.Duration) ViewTracker {
	if backend == "redis" && rdb != nil {
		log.Info("访问统计使用 Redis 后端")
		return NewRedisViewTracker(rdb, window)
	}
	t := NewMemoryViewTracker(window)
	t.Start(ctx, sweepInterval)
	return t
}
