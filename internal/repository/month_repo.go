package repository

import (
	"context"
	"errors"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/model"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/docstore"
)

// MonthTx 单次事务内的月份文档读写
type MonthTx interface {
	// Load 读取月份列表，文档不存在时返回空列表
	Load(month string) ([]model.ScheduleRecord, error)
	// Save 以合并写方式写回 items
	Save(month string, items []model.ScheduleRecord) error
}

// MonthRepository 月份聚合日程文档访问接口
type MonthRepository interface {
	Get(ctx context.Context, month string) (*model.MonthDocument, error)
	ListAll(ctx context.Context) ([]model.MonthDocument, error)
	RunInTx(ctx context.Context, fn func(tx MonthTx) error) error
}

type monthRepo struct {
	store docstore.Store
}

// NewMonthRepo 创建 MonthRepository 实例
func NewMonthRepo(store docstore.Store) MonthRepository {
	return &monthRepo{store: store}
}

func (r *monthRepo) Get(ctx context.Context, month string) (*model.MonthDocument, error) {
	doc, err := r.store.Get(ctx, model.CollectionMonthlySchedules, month)
	if errors.Is(err, docstore.ErrNotFound) {
		return &model.MonthDocument{Month: month, Items: []model.ScheduleRecord{}}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeMonth(doc)
}

// ListAll 管理员全量加载：一次枚举全部月份文档
func (r *monthRepo) ListAll(ctx context.Context) ([]model.MonthDocument, error) {
	docs, err := r.store.Query(ctx, model.CollectionMonthlySchedules, docstore.Query{OrderBy: docstore.OrderByKey})
	if err != nil {
		return nil, err
	}
	months := make([]model.MonthDocument, 0, len(docs))
	for i := range docs {
		m, err := decodeMonth(&docs[i])
		if err != nil {
			return nil, err
		}
		months = append(months, *m)
	}
	return months, nil
}

func (r *monthRepo) RunInTx(ctx context.Context, fn func(tx MonthTx) error) error {
	return r.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		return fn(&monthTx{tx: tx})
	})
}

type monthTx struct {
	tx docstore.Tx
}

func (t *monthTx) Load(month string) ([]model.ScheduleRecord, error) {
	doc, err := t.tx.Get(docstore.Doc(model.CollectionMonthlySchedules, month))
	if errors.Is(err, docstore.ErrNotFound) {
		return []model.ScheduleRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	m, err := decodeMonth(doc)
	if err != nil {
		return nil, err
	}
	return m.Items, nil
}

func (t *monthTx) Save(month string, items []model.ScheduleRecord) error {
	if items == nil {
		items = []model.ScheduleRecord{}
	}
	return t.tx.Set(docstore.Doc(model.CollectionMonthlySchedules, month),
		map[string]interface{}{"items": items}, docstore.MergeAll())
}

func decodeMonth(doc *docstore.Document) (*model.MonthDocument, error) {
	m := &model.MonthDocument{Month: doc.Key}
	if err := doc.DataTo(m); err != nil {
		return nil, err
	}
	if m.Items == nil {
		m.Items = []model.ScheduleRecord{}
	}
	return m, nil
}
