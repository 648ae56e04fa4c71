package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：文档已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("缓存未命中")
