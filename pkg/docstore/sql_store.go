package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// documentRow documents 表映射
type documentRow struct {
	Collection string         `gorm:"primaryKey;type:varchar(64)"`
	Key        string         `gorm:"column:doc_key;primaryKey;type:varchar(128)"`
	Data       datatypes.JSON `gorm:"not null"`
	Version    int64          `gorm:"not null;default:1"`
	CreatedAt  time.Time      `gorm:"index"`
	UpdatedAt  time.Time
}

func (documentRow) TableName() string { return "documents" }

func (r *documentRow) toDocument() *Document {
	return &Document{
		Collection: r.Collection,
		Key:        r.Key,
		Data:       json.RawMessage(r.Data),
		Version:    r.Version,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// SQLStore 基于 gorm 的文档存储（postgres JSONB / sqlite JSON）
type SQLStore struct {
	db       *gorm.DB
	lockRows bool
}

// NewSQLStore 创建 SQL 文档存储；sqlite 不支持 FOR UPDATE，依赖单写者串行化
func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{
		db:       db,
		lockRows: db.Dialector.Name() != "sqlite",
	}
}

// AutoMigrate 建表（sqlite；postgres 由 SQL 迁移负责）
func (s *SQLStore) AutoMigrate() error {
	return s.db.AutoMigrate(&documentRow{})
}

func (s *SQLStore) Get(ctx context.Context, collection, key string) (*Document, error) {
	var row documentRow
	err := s.db.WithContext(ctx).
		Where("collection = ? AND doc_key = ?", collection, key).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDocument(), nil
}

func (s *SQLStore) Add(ctx context.Context, collection string, data interface{}) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("序列化文档失败: %w", err)
	}
	row := documentRow{
		Collection: collection,
		Key:        uuid.New().String(),
		Data:       datatypes.JSON(payload),
		Version:    1,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", err
	}
	return row.Key, nil
}

func (s *SQLStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	tx := s.db.WithContext(ctx).Model(&documentRow{}).Where("collection = ?", collection)
	if q.KeyPrefix != "" {
		tx = tx.Where("doc_key LIKE ? ESCAPE '\\'", escapeLike(q.KeyPrefix)+"%")
	}

	column := "doc_key"
	if q.OrderBy == OrderByCreatedAt {
		column = "created_at"
	}
	tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: q.Desc})
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var rows []documentRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	docs := make([]Document, len(rows))
	for i := range rows {
		docs[i] = *rows[i].toDocument()
	}
	return docs, nil
}

func (s *SQLStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&sqlTx{
			db:   gtx,
			lock: s.lockRows,
			seen: make(map[Ref]*documentRow),
		})
	})
}

// Close 连接由调用方（gorm.DB 所有者）关闭
func (s *SQLStore) Close(context.Context) error { return nil }

// sqlTx 记录事务内读到的版本，写入时做版本校验
type sqlTx struct {
	db   *gorm.DB
	lock bool
	// nil 值表示读取时文档不存在
	seen map[Ref]*documentRow
}

func (t *sqlTx) load(ref Ref) (*documentRow, error) {
	if row, ok := t.seen[ref]; ok {
		return row, nil
	}
	q := t.db
	if t.lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row documentRow
	err := q.Where("collection = ? AND doc_key = ?", ref.Collection, ref.Key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		t.seen[ref] = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.seen[ref] = &row
	return &row, nil
}

func (t *sqlTx) Get(ref Ref) (*Document, error) {
	row, err := t.load(ref)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrNotFound
	}
	return row.toDocument(), nil
}

func (t *sqlTx) Set(ref Ref, data interface{}, opts ...SetOption) error {
	o := applySetOptions(opts)

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("序列化文档失败: %w", err)
	}

	current, err := t.load(ref)
	if err != nil {
		return err
	}

	if o.merge && current != nil {
		if payload, err = mergeTopLevel(current.Data, payload); err != nil {
			return fmt.Errorf("合并文档失败: %w", err)
		}
	}

	now := time.Now()
	if current == nil {
		row := &documentRow{
			Collection: ref.Collection,
			Key:        ref.Key,
			Data:       datatypes.JSON(payload),
			Version:    1,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		result := t.db.Clauses(clause.OnConflict{DoNothing: true}).Create(row)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrConflict
		}
		t.seen[ref] = row
		return nil
	}

	result := t.db.Model(&documentRow{}).
		Where("collection = ? AND doc_key = ? AND version = ?", ref.Collection, ref.Key, current.Version).
		Updates(map[string]interface{}{
			"data":       datatypes.JSON(payload),
			"version":    current.Version + 1,
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}

	updated := *current
	updated.Data = datatypes.JSON(payload)
	updated.Version++
	updated.UpdatedAt = now
	t.seen[ref] = &updated
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
