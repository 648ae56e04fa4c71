package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/dto"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/model"
)

// ── 测试辅助 ──

func setupTestUserService() (UserService, *mockUserRepo) {
	repo, users, _ := newMockRepository()
	return NewUserService(repo, zap.NewNop()), users
}

func seedUser(users *mockUserRepo, uid, userID, name, role, status string) *model.User {
	u := &model.User{UID: uid, UserID: userID, Name: name, Role: role, Status: status}
	users.users[uid] = u
	return u
}

// ── Register ──

func TestUserService_Register(t *testing.T) {
	svc, users := setupTestUserService()

	resp, err := svc.Register(context.Background(), &dto.RegisterUserRequest{UserID: " hong ", Name: "홍길동"})
	if err != nil {
		t.Fatalf("Register 应成功: %v", err)
	}
	if resp.Status != model.UserStatusPending || resp.Role != model.RoleConsultant {
		t.Errorf("注册后应为待审批顾问，实际 status=%s role=%s", resp.Status, resp.Role)
	}
	if resp.HasPassword {
		t.Error("注册用户不应有兜底密码")
	}
	if len(users.users) != 1 {
		t.Errorf("期望 1 个用户，实际 %d", len(users.users))
	}

	_, err = svc.Register(context.Background(), &dto.RegisterUserRequest{UserID: "hong", Name: "other"})
	if !errors.Is(err, ErrUserIDTaken) {
		t.Errorf("期望 ErrUserIDTaken，实际: %v", err)
	}
}

// ── Get / List / Update ──

func TestUserService_GetByUID_NotFound(t *testing.T) {
	svc, _ := setupTestUserService()

	_, err := svc.GetByUID(context.Background(), "nonexistent")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("期望 ErrUserNotFound，实际: %v", err)
	}
}

func TestUserService_List_Filter(t *testing.T) {
	svc, users := setupTestUserService()
	seedUser(users, "u1", "kim", "김", model.RoleConsultant, model.UserStatusApproved)
	seedUser(users, "u2", "lee", "이", model.RoleConsultant, model.UserStatusPending)
	seedUser(users, "u3", "boss", "관리자", model.RoleAdmin, model.UserStatusApproved)

	req := &dto.UserListRequest{Status: model.UserStatusPending}
	list, total, err := svc.List(context.Background(), req)
	if err != nil {
		t.Fatalf("List 应成功: %v", err)
	}
	if total != 1 || len(list) != 1 || list[0].UserID != "lee" {
		t.Errorf("期望只返回待审批的 lee，实际 total=%d list=%v", total, list)
	}
}

func TestUserService_Update(t *testing.T) {
	svc, users := setupTestUserService()
	seedUser(users, "u1", "kim", "김", model.RoleConsultant, model.UserStatusApproved)

	resp, err := svc.Update(context.Background(), "u1", &dto.UpdateUserRequest{Tel: strPtr("010-1234-5678")}, "admin-uid")
	if err != nil {
		t.Fatalf("Update 应成功: %v", err)
	}
	if resp.Tel != "010-1234-5678" || resp.Name != "김" {
		t.Errorf("只应修改 tel，实际 %+v", resp)
	}
}

// ── Approve / AssignRole ──

func TestUserService_Approve(t *testing.T) {
	svc, users := setupTestUserService()
	seedUser(users, "u1", "kim", "김", model.RoleConsultant, model.UserStatusPending)

	if err := svc.Approve(context.Background(), "u1", "admin-uid"); err != nil {
		t.Fatalf("Approve 应成功: %v", err)
	}
	if users.users["u1"].Status != model.UserStatusApproved {
		t.Error("状态应变为 approved")
	}
	if err := svc.Approve(context.Background(), "u1", "admin-uid"); !errors.Is(err, ErrUserAlreadyActive) {
		t.Errorf("重复审批期望 ErrUserAlreadyActive，实际: %v", err)
	}
}

func TestUserService_AssignRole(t *testing.T) {
	svc, users := setupTestUserService()
	seedUser(users, "u1", "kim", "김", model.RoleConsultant, model.UserStatusApproved)

	err := svc.AssignRole(context.Background(), "u1", &dto.AssignRoleRequest{Role: model.RoleAdmin}, "u1")
	if !errors.Is(err, ErrUserSelfRoleChange) {
		t.Errorf("期望 ErrUserSelfRoleChange，实际: %v", err)
	}

	if err := svc.AssignRole(context.Background(), "u1", &dto.AssignRoleRequest{Role: model.RoleAdmin}, "admin-uid"); err != nil {
		t.Fatalf("AssignRole 应成功: %v", err)
	}
	if users.users["u1"].Role != model.RoleAdmin {
		t.Error("角色应变为 admin")
	}
}

// ── Password ──

func TestUserService_SetAndResetPassword(t *testing.T) {
	svc, users := setupTestUserService()
	seedUser(users, "u1", "kim", "김", model.RoleConsultant, model.UserStatusApproved)

	if err := svc.SetPassword(context.Background(), "u1", &dto.SetPasswordRequest{Password: "newpass123"}, "admin-uid"); err != nil {
		t.Fatalf("SetPassword 应成功: %v", err)
	}
	stored := *users.users["u1"].Password
	if bcrypt.CompareHashAndPassword([]byte(stored), []byte("newpass123")) != nil {
		t.Error("存储的应为 bcrypt 哈希")
	}

	resp, err := svc.ResetPassword(context.Background(), "u1", "admin-uid")
	if err != nil {
		t.Fatalf("ResetPassword 应成功: %v", err)
	}
	if len(resp.TempPassword) != 10 {
		t.Errorf("临时密码期望 10 位，实际 %d", len(resp.TempPassword))
	}
	stored = *users.users["u1"].Password
	if bcrypt.CompareHashAndPassword([]byte(stored), []byte(resp.TempPassword)) != nil {
		t.Error("临时密码应可用于登录")
	}
}

func TestGenerateTempPassword(t *testing.T) {
	for i := 0; i < 20; i++ {
		p, err := generateTempPassword(10)
		if err != nil {
			t.Fatalf("生成失败: %v", err)
		}
		var hasLetter, hasDigit bool
		for _, r := range p {
			switch {
			case r >= '0' && r <= '9':
				hasDigit = true
			case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
				hasLetter = true
			}
		}
		if !hasLetter || !hasDigit {
			t.Errorf("密码应同时包含字母和数字: %s", p)
		}
	}
}

// ── Delete ──

func TestUserService_Delete(t *testing.T) {
	svc, users := setupTestUserService()
	seedUser(users, "u1", "kim", "김", model.RoleConsultant, model.UserStatusApproved)

	if err := svc.Delete(context.Background(), "u1", "u1"); !errors.Is(err, ErrUserSelfDelete) {
		t.Errorf("期望 ErrUserSelfDelete，实际: %v", err)
	}
	if err := svc.Delete(context.Background(), "u1", "admin-uid"); err != nil {
		t.Fatalf("Delete 应成功: %v", err)
	}
	if err := svc.Delete(context.Background(), "u1", "admin-uid"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("期望 ErrUserNotFound，实际: %v", err)
	}
}

// ── 顾问名单导入 ──

func buildRosterXLSX(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cellName, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cellName, &row); err != nil {
			t.Fatalf("写入测试表格失败: %v", err)
		}
	}
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		t.Fatalf("生成测试表格失败: %v", err)
	}
	return buf
}

func TestUserService_ParseImportFile(t *testing.T) {
	svc, _ := setupTestUserService()
	buf := buildRosterXLSX(t, [][]interface{}{
		{"이름", "아이디", "연락처"},
		{"김민지", "minji", "010-1111-2222"},
		{"", "", ""},
		{"박서연", "seoyeon", ""},
	})

	rows, err := svc.ParseImportFile(buf)
	if err != nil {
		t.Fatalf("ParseImportFile 应成功: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("期望 2 行（跳过空行），实际 %d", len(rows))
	}
	if rows[0].UserID != "minji" || rows[0].Name != "김민지" || rows[0].Tel != "010-1111-2222" {
		t.Errorf("列映射错误: %+v", rows[0])
	}
	if rows[1].Row != 4 {
		t.Errorf("行号应对应 Excel 行号 4，实际 %d", rows[1].Row)
	}
}

func TestUserService_ParseImportFile_BadHeader(t *testing.T) {
	svc, _ := setupTestUserService()
	buf := buildRosterXLSX(t, [][]interface{}{
		{"이메일", "연락처"},
		{"a@b.c", "010"},
	})

	if _, err := svc.ParseImportFile(buf); !errors.Is(err, ErrImportBadHeader) {
		t.Errorf("期望 ErrImportBadHeader，实际: %v", err)
	}
}

func TestUserService_ImportUsers(t *testing.T) {
	repo := newSQLiteRepository(t)
	svc := NewUserService(repo, zap.NewNop())
	ctx := context.Background()

	if err := repo.User.Create(ctx, &model.User{UserID: "exists", Name: "기존", Role: model.RoleConsultant, Status: model.UserStatusApproved}); err != nil {
		t.Fatalf("准备数据失败: %v", err)
	}

	resp, err := svc.ImportUsers(ctx, []ImportUserRow{
		{Row: 2, UserID: "minji", Name: "김민지"},
		{Row: 3, UserID: "minji", Name: "중복"},
		{Row: 4, UserID: "exists", Name: "기존"},
		{Row: 5, UserID: "", Name: "빈칸"},
		{Row: 6, UserID: "seoyeon", Name: "박서연"},
	}, "admin-uid")
	if err != nil {
		t.Fatalf("ImportUsers 应成功: %v", err)
	}
	if resp.Total != 5 || resp.Success != 2 || resp.Failed != 3 {
		t.Errorf("期望 total=5 success=2 failed=3，实际 %+v", resp)
	}

	u, err := repo.User.GetByUserID(ctx, "seoyeon")
	if err != nil {
		t.Fatalf("导入的用户应存在: %v", err)
	}
	if u.Status != model.UserStatusApproved || u.Role != model.RoleConsultant {
		t.Errorf("导入用户应为已审批顾问，实际 %s/%s", u.Status, u.Role)
	}
}
