package redis

import (
	"context"
	"time"
)

const monthPrefix = "schedule:month:"

// GetMonth 读取缓存的月文档原始 JSON，未命中返回 ErrCacheMiss
func (c *Client) GetMonth(ctx context.Context, month string) ([]byte, error) {
	return c.getBytes(ctx, monthPrefix+month)
}

// SetMonth 缓存月文档原始 JSON
func (c *Client) SetMonth(ctx context.Context, month string, payload []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, monthPrefix+month, payload, ttl).Err()
}

// InvalidateMonths 写入后清除受影响月份的缓存
func (c *Client) InvalidateMonths(ctx context.Context, months ...string) error {
	if len(months) == 0 {
		return nil
	}
	keys := make([]string, len(months))
	for i, m := range months {
		keys[i] = monthPrefix + m
	}
	return c.rdb.Del(ctx, keys...).Err()
}
