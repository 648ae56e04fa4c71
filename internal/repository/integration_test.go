//go:build integration

package repository_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/model"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/repository"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/docstore"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var pgDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=ewh password=ewh_password dbname=ewh_consulting_test sslmode=disable TimeZone=Asia/Seoul"
	}

	var err error
	pgDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	if err := pgDB.AutoMigrate(&model.User{}, &model.CommonCode{}); err != nil {
		fmt.Fprintf(os.Stderr, "AutoMigrate 失败: %v\n", err)
		os.Exit(1)
	}
	if err := docstore.NewSQLStore(pgDB).AutoMigrate(); err != nil {
		fmt.Fprintf(os.Stderr, "documents 建表失败: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func uniqueMonth() string {
	// 用远期年份隔离不同测试运行
	n := time.Now().UnixNano()
	return fmt.Sprintf("%04d-%02d", 3000+int(n%5000), 1+int(n/7%12))
}

// ═══════════════════════════════════════════════════════════
// Test: Month Transaction
// ═══════════════════════════════════════════════════════════

func TestMonthTx_RollbackLeavesNoDocument(t *testing.T) {
	repo := repository.NewRepository(pgDB, docstore.NewSQLStore(pgDB))
	ctx := context.Background()
	month := uniqueMonth()

	err := repo.Month.RunInTx(ctx, func(tx repository.MonthTx) error {
		if err := tx.Save(month, []model.ScheduleRecord{{ID: "r1", Date: time.Now()}}); err != nil {
			return err
		}
		return fmt.Errorf("中止")
	})
	if err == nil {
		t.Fatal("期望事务返回错误")
	}

	doc, err := repo.Month.Get(ctx, month)
	if err != nil {
		t.Fatalf("读取月份失败: %v", err)
	}
	if len(doc.Items) != 0 {
		t.Errorf("回滚后月份应为空，实际 %d 条", len(doc.Items))
	}
}

// 并发读改写同一月份：行锁串行化后所有追加都应保留
func TestMonthTx_ConcurrentAppendsSerialize(t *testing.T) {
	repo := repository.NewRepository(pgDB, docstore.NewSQLStore(pgDB))
	ctx := context.Background()
	month := uniqueMonth()

	// 先建文档，后续事务都走 FOR UPDATE 路径
	if err := repo.Month.RunInTx(ctx, func(tx repository.MonthTx) error {
		return tx.Save(month, nil)
	}); err != nil {
		t.Fatalf("初始化月份失败: %v", err)
	}

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- repo.Month.RunInTx(ctx, func(tx repository.MonthTx) error {
				items, err := tx.Load(month)
				if err != nil {
					return err
				}
				items = append(items, model.ScheduleRecord{ID: fmt.Sprintf("r%d", i), Date: time.Now()})
				return tx.Save(month, items)
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("并发写入失败: %v", err)
		}
	}

	doc, _ := repo.Month.Get(ctx, month)
	if len(doc.Items) != writers {
		t.Errorf("期望 %d 条，实际 %d 条", writers, len(doc.Items))
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Users
// ═══════════════════════════════════════════════════════════

func TestUser_UniqueUserID(t *testing.T) {
	repo := repository.NewRepository(pgDB, docstore.NewSQLStore(pgDB))
	ctx := context.Background()
	handle := fmt.Sprintf("it-%d", time.Now().UnixNano())

	u := &model.User{UserID: handle, Name: "통합", Role: model.RoleConsultant, Status: model.UserStatusPending}
	if err := repo.User.Create(ctx, u); err != nil {
		t.Fatalf("创建用户失败: %v", err)
	}
	defer repo.User.Delete(ctx, u.UID)

	dup := &model.User{UserID: handle, Name: "중복", Role: model.RoleConsultant, Status: model.UserStatusPending}
	if err := repo.User.Create(ctx, dup); err == nil {
		repo.User.Delete(ctx, dup.UID)
		t.Fatal("重复 user_id 应创建失败")
	}
}
