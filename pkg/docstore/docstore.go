// Package docstore 文档存储抽象：按集合 + 键存取 JSON 文档，支持单文档读写事务。
//
// 日程以"每月一个文档"的方式聚合保存，读写成本按月计；
// 同一事务内 Get 后 Set 保证读改写原子，跨文档的一致性只在同一个事务内成立。
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	apperrors "github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/errors"
)

var (
	ErrNotFound = errors.New("文档不存在")
	// ErrConflict 并发写冲突（乐观锁或唯一键冲突）
	ErrConflict = apperrors.ErrOptimisticLock
)

// Document 文档快照
type Document struct {
	Collection string
	Key        string
	Data       json.RawMessage
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DataTo 将文档内容解码到 v
func (d *Document) DataTo(v interface{}) error {
	if len(d.Data) == 0 {
		return nil
	}
	return json.Unmarshal(d.Data, v)
}

// Ref 文档引用
type Ref struct {
	Collection string
	Key        string
}

// Doc 构造文档引用
func Doc(collection, key string) Ref {
	return Ref{Collection: collection, Key: key}
}

// 排序字段
const (
	OrderByKey       = "key"
	OrderByCreatedAt = "created_at"
)

// Query 集合查询条件
type Query struct {
	KeyPrefix string
	OrderBy   string
	Desc      bool
	Limit     int
}

type setOptions struct {
	merge bool
}

// SetOption 写入选项
type SetOption func(*setOptions)

// MergeAll 合并写：只覆盖传入的顶层字段，其余字段保留
func MergeAll() SetOption {
	return func(o *setOptions) { o.merge = true }
}

func applySetOptions(opts []SetOption) setOptions {
	var o setOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Tx 事务句柄，只在 RunTransaction 回调内有效
type Tx interface {
	Get(ref Ref) (*Document, error)
	Set(ref Ref, data interface{}, opts ...SetOption) error
}

// Store 文档存储
type Store interface {
	Get(ctx context.Context, collection, key string) (*Document, error)
	Add(ctx context.Context, collection string, data interface{}) (string, error)
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
	Close(ctx context.Context) error
}

// mergeTopLevel 以 incoming 覆盖 base 的顶层字段
func mergeTopLevel(base, incoming []byte) ([]byte, error) {
	merged := map[string]json.RawMessage{}
	if len(base) > 0 {
		if err := json.Unmarshal(base, &merged); err != nil {
			return nil, err
		}
	}
	var patch map[string]json.RawMessage
	if err := json.Unmarshal(incoming, &patch); err != nil {
		return nil, err
	}
	for k, v := range patch {
		merged[k] = v
	}
	return json.Marshal(merged)
}
