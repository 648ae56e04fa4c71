package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/config"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/model"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/repository"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/docstore"
	apperrors "github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/errors"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/redis"
)

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User // uid -> user
	seq   int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range m.users {
		if u.UserID == user.UserID {
			return errors.New("duplicate user_id")
		}
	}
	if user.UID == "" {
		m.seq++
		user.UID = fmt.Sprintf("uid-%03d", m.seq)
	}
	user.CreatedAt = time.Now()
	m.users[user.UID] = user
	return nil
}

func (m *mockUserRepo) GetByUID(_ context.Context, uid string) (*model.User, error) {
	if u, ok := m.users[uid]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByUserID(_ context.Context, userID string) (*model.User, error) {
	for _, u := range m.users {
		if u.UserID == userID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	m.users[user.UID] = user
	return nil
}

func (m *mockUserRepo) UpdateFields(_ context.Context, uid string, fields map[string]interface{}) error {
	u, ok := m.users[uid]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "status":
			u.Status = v.(string)
		case "role":
			u.Role = v.(string)
		case "password":
			p := v.(string)
			u.Password = &p
		case "updated_by":
			by := v.(string)
			u.UpdatedBy = &by
		}
	}
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, uid string) error {
	if _, ok := m.users[uid]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.users, uid)
	return nil
}

func (m *mockUserRepo) List(_ context.Context, filter repository.UserFilter, offset, limit int) ([]model.User, int64, error) {
	var result []model.User
	for _, u := range m.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Status != "" && u.Status != filter.Status {
			continue
		}
		if filter.Keyword != "" && !strings.Contains(u.Name, filter.Keyword) && !strings.Contains(u.UserID, filter.Keyword) {
			continue
		}
		result = append(result, *u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	total := int64(len(result))
	if offset >= len(result) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], total, nil
}

func (m *mockUserRepo) ListAll(ctx context.Context) ([]model.User, error) {
	users, _, err := m.List(ctx, repository.UserFilter{}, 0, len(m.users))
	return users, err
}

// ── Mock CommonCodeRepository ──

type mockCommonCodeRepo struct {
	codes map[string]*model.CommonCode
}

func newMockCommonCodeRepo() *mockCommonCodeRepo {
	return &mockCommonCodeRepo{codes: make(map[string]*model.CommonCode)}
}

func (m *mockCommonCodeRepo) Create(_ context.Context, code *model.CommonCode) error {
	m.codes[code.Code] = code
	return nil
}

func (m *mockCommonCodeRepo) GetByCode(_ context.Context, code string) (*model.CommonCode, error) {
	if c, ok := m.codes[code]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCommonCodeRepo) Update(_ context.Context, code *model.CommonCode) error {
	m.codes[code.Code] = code
	return nil
}

func (m *mockCommonCodeRepo) Delete(_ context.Context, code string) error {
	if _, ok := m.codes[code]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.codes, code)
	return nil
}

func (m *mockCommonCodeRepo) List(_ context.Context) ([]model.CommonCode, error) {
	var result []model.CommonCode
	for _, c := range m.codes {
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

// ── Mock SessionStore ──

type mockSessionStore struct {
	sessions    map[string]*redis.Session
	blacklisted map[string]time.Duration
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{
		sessions:    make(map[string]*redis.Session),
		blacklisted: make(map[string]time.Duration),
	}
}

func (m *mockSessionStore) SaveSession(_ context.Context, s *redis.Session, _ time.Duration) error {
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *mockSessionStore) GetSession(_ context.Context, id string) (*redis.Session, error) {
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, apperrors.ErrCacheMiss
}

func (m *mockSessionStore) DeleteSession(_ context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

func (m *mockSessionStore) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	m.blacklisted[jti] = ttl
	return nil
}

// ── Mock MonthCache ──

type mockMonthCache struct {
	mu          sync.Mutex
	payloads    map[string][]byte
	invalidated []string
}

func newMockMonthCache() *mockMonthCache {
	return &mockMonthCache{payloads: make(map[string][]byte)}
}

func (m *mockMonthCache) GetMonth(_ context.Context, month string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payloads[month]; ok {
		return p, nil
	}
	return nil, apperrors.ErrCacheMiss
}

func (m *mockMonthCache) SetMonth(_ context.Context, month string, payload []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads[month] = payload
	return nil
}

func (m *mockMonthCache) InvalidateMonths(_ context.Context, months ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, month := range months {
		delete(m.payloads, month)
		m.invalidated = append(m.invalidated, month)
	}
	return nil
}

// ── 写入指定月份时失败的 MonthRepository ──

type failingMonthRepo struct {
	repository.MonthRepository
	failMonth string
}

func (f *failingMonthRepo) RunInTx(ctx context.Context, fn func(tx repository.MonthTx) error) error {
	return f.MonthRepository.RunInTx(ctx, func(tx repository.MonthTx) error {
		return fn(&failingMonthTx{MonthTx: tx, failMonth: f.failMonth})
	})
}

type failingMonthTx struct {
	repository.MonthTx
	failMonth string
}

func (t *failingMonthTx) Save(month string, items []model.ScheduleRecord) error {
	if month == t.failMonth {
		return errors.New("模拟写入失败")
	}
	return t.MonthTx.Save(month, items)
}

// ── 测试辅助 ──

// newSQLiteRepository 内存 sqlite：关系表与 SQL 文档存储共用一个连接
func newSQLiteRepository(t *testing.T) *repository.Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.User{}, &model.CommonCode{}))
	store := docstore.NewSQLStore(db)
	require.NoError(t, store.AutoMigrate())
	return repository.NewRepository(db, store)
}

func newMockRepository() (*repository.Repository, *mockUserRepo, *mockCommonCodeRepo) {
	users := newMockUserRepo()
	codes := newMockCommonCodeRepo()
	return &repository.Repository{User: users, CommonCode: codes}, users, codes
}

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:      "test-secret-key-for-unit-testing-2026",
			AccessTokenTTL: 15 * time.Minute,
			SessionTTL:     time.Hour,
		},
		Redis:    config.RedisConfig{MonthTTL: time.Minute},
		Schedule: config.ScheduleConfig{Timezone: "Asia/Seoul", ChangeLogLimit: 30},
		Import:   config.ImportConfig{MaxColumns: 10},
	}
}

func strPtr(s string) *string { return &s }
