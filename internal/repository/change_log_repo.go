package repository

import (
	"context"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/model"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/docstore"
)

// ChangeLogRepository 变更日志（只追加）
type ChangeLogRepository interface {
	Append(ctx context.Context, entry *model.ChangeLogEntry) error
	ListRecent(ctx context.Context, limit int) ([]model.ChangeLogEntry, error)
}

type changeLogRepo struct {
	store docstore.Store
}

// NewChangeLogRepo 创建 ChangeLogRepository 实例
func NewChangeLogRepo(store docstore.Store) ChangeLogRepository {
	return &changeLogRepo{store: store}
}

func (r *changeLogRepo) Append(ctx context.Context, entry *model.ChangeLogEntry) error {
	id, err := r.store.Add(ctx, model.CollectionChangeLogs, entry)
	if err != nil {
		return err
	}
	entry.ID = id
	return nil
}

func (r *changeLogRepo) ListRecent(ctx context.Context, limit int) ([]model.ChangeLogEntry, error) {
	docs, err := r.store.Query(ctx, model.CollectionChangeLogs, docstore.Query{
		OrderBy: docstore.OrderByCreatedAt,
		Desc:    true,
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}
	entries := make([]model.ChangeLogEntry, 0, len(docs))
	for i := range docs {
		var e model.ChangeLogEntry
		if err := docs[i].DataTo(&e); err != nil {
			return nil, err
		}
		e.ID = docs[i].Key
		entries = append(entries, e)
	}
	return entries, nil
}
