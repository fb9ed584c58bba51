package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JoeShih716/go-fin-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-fin-ledger/internal/app/core/usecase"
)

const keyPrefix = "ledger:summary"

// SummaryCache 以 Redis 快取餘額摘要
//
// 每個使用者有一個版本號，失效時只需 INCR 版本號，
// 舊版本的 key 不再被讀到，等 TTL 自然過期。
type SummaryCache struct {
	rdb goredis.Cmdable
	ttl time.Duration
}

var _ usecase.SummaryCache = (*SummaryCache)(nil)

func NewSummaryCache(rdb goredis.Cmdable, ttl time.Duration) *SummaryCache {
	return &SummaryCache{rdb: rdb, ttl: ttl}
}

func versionKey(userID int64) string {
	return fmt.Sprintf("%s:ver:%d", keyPrefix, userID)
}

func summaryKey(userID int64, version string, q domain.BalanceQuery) string {
	account := "all"
	if q.AccountID != nil {
		account = strconv.FormatInt(*q.AccountID, 10)
	}
	w := q.Window()
	return fmt.Sprintf("%s:%d:%s:%s:%s:%s", keyPrefix, userID, version, account, dayKey(w.From), dayKey(w.To))
}

func dayKey(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.DateOnly)
}

func (c *SummaryCache) version(ctx context.Context, userID int64) (string, error) {
	v, err := c.rdb.Get(ctx, versionKey(userID)).Result()
	if errors.Is(err, goredis.Nil) {
		return "0", nil
	}
	return v, err
}

// Get 讀取快取，沒有資料時 ok 為 false
func (c *SummaryCache) Get(ctx context.Context, userID int64, q domain.BalanceQuery) (*domain.BalanceSummary, bool, error) {
	ver, err := c.version(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	raw, err := c.rdb.Get(ctx, summaryKey(userID, ver, q)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var summary domain.BalanceSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, false, fmt.Errorf("decode cached summary: %w", err)
	}
	return &summary, true, nil
}

// Set 寫入快取
func (c *SummaryCache) Set(ctx context.Context, userID int64, q domain.BalanceQuery, summary *domain.BalanceSummary) error {
	ver, err := c.version(ctx, userID)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, summaryKey(userID, ver, q), raw, c.ttl).Err()
}

// Invalidate 讓該使用者目前所有快取失效
func (c *SummaryCache) Invalidate(ctx context.Context, userID int64) error {
	return c.rdb.Incr(ctx, versionKey(userID)).Err()
}
