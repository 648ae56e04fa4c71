package redis

import (
	"context"
	"encoding/json"
	"time"
)

const sessionPrefix = "session:"

// Session 会话记录
// Kind 为 db（数据库账号登录）或 dummy（模拟用户登录）
type Session struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	UID       string    `json:"uid"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveSession 写入会话，TTL 到期即失效
func (c *Client) SaveSession(ctx context.Context, s *Session, ttl time.Duration) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, sessionPrefix+s.ID, b, ttl).Err()
}

// GetSession 读取会话，不存在时返回 ErrCacheMiss
func (c *Client) GetSession(ctx context.Context, id string) (*Session, error) {
	b, err := c.getBytes(ctx, sessionPrefix+id)
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteSession 删除会话
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, sessionPrefix+id).Err()
}
