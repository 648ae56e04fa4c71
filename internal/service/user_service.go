package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/dto"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/model"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/repository"
)

// ── 用户模块业务错误 ──

var (
	ErrUserNotFound       = errors.New("用户不存在")
	ErrUserIDTaken        = errors.New("登录账号已存在")
	ErrUserSelfRoleChange = errors.New("不能修改自己的角色")
	ErrUserSelfDelete     = errors.New("不能删除自己")
	ErrUserAlreadyActive  = errors.New("用户已审批通过")
)

// UserService 用户业务接口
type UserService interface {
	Register(ctx context.Context, req *dto.RegisterUserRequest) (*dto.UserResponse, error)
	GetByUID(ctx context.Context, uid string) (*dto.UserResponse, error)
	List(ctx context.Context, req *dto.UserListRequest) ([]dto.UserResponse, int64, error)
	ListAll(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, uid string, req *dto.UpdateUserRequest, callerID string) (*dto.UserResponse, error)
	Approve(ctx context.Context, uid string, callerID string) error
	AssignRole(ctx context.Context, uid string, req *dto.AssignRoleRequest, callerID string) error
	SetPassword(ctx context.Context, uid string, req *dto.SetPasswordRequest, callerID string) error
	ResetPassword(ctx context.Context, uid string, callerID string) (*dto.ResetPasswordResponse, error)
	Delete(ctx context.Context, uid string, callerID string) error
	ParseImportFile(reader io.Reader) ([]ImportUserRow, error)
	ImportUsers(ctx context.Context, rows []ImportUserRow, callerID string) (*dto.ImportUserResponse, error)
}

// ImportUserRow 顾问名单 Excel 解析后的单行数据
type ImportUserRow struct {
	Row    int
	UserID string
	Name   string
	Email  string
	Tel    string
}

type userService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewUserService 创建 UserService 实例
func NewUserService(repo *repository.Repository, logger *zap.Logger) UserService {
	return &userService{repo: repo, logger: logger}
}

// ────────────────────── Register ──────────────────────

// Register 自助注册：角色为顾问、状态为待审批
func (s *userService) Register(ctx context.Context, req *dto.RegisterUserRequest) (*dto.UserResponse, error) {
	userID := strings.TrimSpace(req.UserID)
	if _, err := s.repo.User.GetByUserID(ctx, userID); err == nil {
		return nil, ErrUserIDTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	user := &model.User{
		UserID: userID,
		Name:   strings.TrimSpace(req.Name),
		Email:  strings.TrimSpace(req.Email),
		Tel:    strings.TrimSpace(req.Tel),
		Role:   model.RoleConsultant,
		Status: model.UserStatusPending,
	}
	if err := s.repo.User.Create(ctx, user); err != nil {
		s.logger.Error("创建用户失败", zap.Error(err))
		return nil, err
	}
	return toUserResponse(user), nil
}

func (s *userService) GetByUID(ctx context.Context, uid string) (*dto.UserResponse, error) {
	user, err := s.getUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	return toUserResponse(user), nil
}

func (s *userService) List(ctx context.Context, req *dto.UserListRequest) ([]dto.UserResponse, int64, error) {
	users, total, err := s.repo.User.List(ctx, repository.UserFilter{
		Role:    req.Role,
		Status:  req.Status,
		Keyword: strings.TrimSpace(req.Keyword),
	}, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询用户列表失败", zap.Error(err))
		return nil, 0, err
	}

	list := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		list = append(list, *toUserResponse(&users[i]))
	}
	return list, total, nil
}

func (s *userService) ListAll(ctx context.Context) ([]model.User, error) {
	users, err := s.repo.User.ListAll(ctx)
	if err != nil {
		s.logger.Error("加载全部用户失败", zap.Error(err))
		return nil, err
	}
	return users, nil
}

// ────────────────────── Update ──────────────────────

func (s *userService) Update(ctx context.Context, uid string, req *dto.UpdateUserRequest, callerID string) (*dto.UserResponse, error) {
	user, err := s.getUser(ctx, uid)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		user.Email = strings.TrimSpace(*req.Email)
	}
	if req.Tel != nil {
		user.Tel = strings.TrimSpace(*req.Tel)
	}
	user.UpdatedBy = &callerID

	if err := s.repo.User.Update(ctx, user); err != nil {
		s.logger.Error("更新用户失败", zap.String("uid", uid), zap.Error(err))
		return nil, err
	}
	return toUserResponse(user), nil
}

// ────────────────────── Approve / AssignRole ──────────────────────

func (s *userService) Approve(ctx context.Context, uid string, callerID string) error {
	user, err := s.getUser(ctx, uid)
	if err != nil {
		return err
	}
	if user.Status == model.UserStatusApproved {
		return ErrUserAlreadyActive
	}
	return s.updateFields(ctx, uid, map[string]interface{}{
		"status":     model.UserStatusApproved,
		"updated_by": callerID,
	})
}

func (s *userService) AssignRole(ctx context.Context, uid string, req *dto.AssignRoleRequest, callerID string) error {
	if uid == callerID {
		return ErrUserSelfRoleChange
	}
	if _, err := s.getUser(ctx, uid); err != nil {
		return err
	}
	return s.updateFields(ctx, uid, map[string]interface{}{
		"role":       req.Role,
		"updated_by": callerID,
	})
}

// ────────────────────── Password ──────────────────────

func (s *userService) SetPassword(ctx context.Context, uid string, req *dto.SetPasswordRequest, callerID string) error {
	if _, err := s.getUser(ctx, uid); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return err
	}
	return s.updateFields(ctx, uid, map[string]interface{}{
		"password":   string(hash),
		"updated_by": callerID,
	})
}

func (s *userService) ResetPassword(ctx context.Context, uid string, callerID string) (*dto.ResetPasswordResponse, error) {
	if _, err := s.getUser(ctx, uid); err != nil {
		return nil, err
	}

	// 生成 10 位随机密码（保证包含字母和数字）
	tempPassword, err := generateTempPassword(10)
	if err != nil {
		s.logger.Error("生成临时密码失败", zap.Error(err))
		return nil, err
	}
	if err := s.SetPassword(ctx, uid, &dto.SetPasswordRequest{Password: tempPassword}, callerID); err != nil {
		return nil, err
	}
	return &dto.ResetPasswordResponse{TempPassword: tempPassword}, nil
}

// ────────────────────── Delete ──────────────────────

func (s *userService) Delete(ctx context.Context, uid string, callerID string) error {
	if uid == callerID {
		return ErrUserSelfDelete
	}

	if err := s.repo.User.Delete(ctx, uid); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		s.logger.Error("删除用户失败", zap.String("uid", uid), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── 顾问名单导入 ──────────────────────

const maxImportRows = 500

var (
	ErrImportNoData      = errors.New("Excel 文件中没有有效数据行")
	ErrImportTooManyRows = errors.New("单次导入不能超过500行")
	ErrImportBadHeader   = errors.New("Excel 表头缺少必要列（아이디/이름）")
)

// ParseImportFile 解析顾问名单，第一行为表头（支持灵活列序）
func (s *userService) ParseImportFile(reader io.Reader) ([]ImportUserRow, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("无法解析Excel文件: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	excelRows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("读取工作表失败: %w", err)
	}
	if len(excelRows) < 2 {
		return nil, ErrImportNoData
	}

	colIndex := parseHeaderIndex(excelRows[0])
	if colIndex["user_id"] < 0 || colIndex["name"] < 0 {
		return nil, ErrImportBadHeader
	}

	cell := func(row []string, key string) string {
		if idx := colIndex[key]; idx >= 0 && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	var rows []ImportUserRow
	for i := 1; i < len(excelRows); i++ {
		row := excelRows[i]
		item := ImportUserRow{
			Row:    i + 1,
			UserID: cell(row, "user_id"),
			Name:   cell(row, "name"),
			Email:  cell(row, "email"),
			Tel:    cell(row, "tel"),
		}
		// 跳过全空行
		if item.UserID == "" && item.Name == "" && item.Email == "" && item.Tel == "" {
			continue
		}
		rows = append(rows, item)
	}

	if len(rows) == 0 {
		return nil, ErrImportNoData
	}
	if len(rows) > maxImportRows {
		return nil, ErrImportTooManyRows
	}
	return rows, nil
}

// parseHeaderIndex 解析表头，返回列名 -> 列索引映射
func parseHeaderIndex(header []string) map[string]int {
	idx := map[string]int{"user_id": -1, "name": -1, "email": -1, "tel": -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "아이디", "user_id", "id":
			idx["user_id"] = i
		case "이름", "name", "성명":
			idx["name"] = i
		case "이메일", "email":
			idx["email"] = i
		case "연락처", "전화번호", "tel", "phone":
			idx["tel"] = i
		}
	}
	return idx
}

// ImportUsers 管理员批量登记顾问：先逐行校验，再在一个事务内全部写入
func (s *userService) ImportUsers(ctx context.Context, rows []ImportUserRow, callerID string) (*dto.ImportUserResponse, error) {
	resp := &dto.ImportUserResponse{Total: len(rows)}

	seen := make(map[string]int, len(rows))
	var valid []ImportUserRow
	for _, row := range rows {
		if row.UserID == "" || row.Name == "" {
			resp.Failed++
			resp.Errors = append(resp.Errors, dto.ImportUserError{Row: row.Row, Reason: "必填字段为空"})
			continue
		}
		if first, dup := seen[row.UserID]; dup {
			resp.Failed++
			resp.Errors = append(resp.Errors, dto.ImportUserError{
				Row: row.Row, Reason: fmt.Sprintf("账号与第 %d 行重复: %s", first, row.UserID),
			})
			continue
		}
		seen[row.UserID] = row.Row

		if _, err := s.repo.User.GetByUserID(ctx, row.UserID); err == nil {
			resp.Failed++
			resp.Errors = append(resp.Errors, dto.ImportUserError{
				Row: row.Row, Reason: fmt.Sprintf("账号已存在: %s", row.UserID),
			})
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("查询用户失败", zap.Error(err))
			return nil, err
		}
		valid = append(valid, row)
	}

	if len(valid) == 0 {
		return resp, nil
	}

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		for _, row := range valid {
			user := &model.User{
				UserID:    row.UserID,
				Name:      row.Name,
				Email:     row.Email,
				Tel:       row.Tel,
				Role:      model.RoleConsultant,
				Status:    model.UserStatusApproved,
				BaseModel: model.BaseModel{CreatedBy: &callerID},
			}
			if err := tx.User.Create(ctx, user); err != nil {
				s.logger.Error("导入用户写入失败，事务回滚", zap.Int("row", row.Row), zap.Error(err))
				return fmt.Errorf("第 %d 行写入数据库失败，已回滚全部导入: %w", row.Row, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp.Success = len(valid)
	return resp, nil
}

// ── 内部辅助方法 ──

func (s *userService) getUser(ctx context.Context, uid string) (*model.User, error) {
	user, err := s.repo.User.GetByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.String("uid", uid), zap.Error(err))
		return nil, err
	}
	return user, nil
}

func (s *userService) updateFields(ctx context.Context, uid string, fields map[string]interface{}) error {
	if err := s.repo.User.UpdateFields(ctx, uid, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		s.logger.Error("更新用户失败", zap.String("uid", uid), zap.Error(err))
		return err
	}
	return nil
}

// toUserResponse 将 model.User 转换为 dto.UserResponse
func toUserResponse(user *model.User) *dto.UserResponse {
	resp := &dto.UserResponse{
		UID:         user.UID,
		UserID:      user.UserID,
		Name:        user.Name,
		Email:       user.Email,
		Tel:         user.Tel,
		Role:        user.Role,
		Status:      user.Status,
		HasPassword: user.Password != nil && *user.Password != "",
	}
	if !user.CreatedAt.IsZero() {
		resp.CreatedAt = user.CreatedAt.Format(time.RFC3339)
	}
	return resp
}

// generateTempPassword 生成指定长度的临时密码（保证包含字母和数字）
func generateTempPassword(length int) (string, error) {
	const letters = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ"
	const digits = "23456789"
	const all = letters + digits

	if length < 8 {
		length = 8
	}
	result := make([]byte, length)

	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
	if err != nil {
		return "", err
	}
	result[0] = letters[n.Int64()]

	n, err = rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
	if err != nil {
		return "", err
	}
	result[1] = digits[n.Int64()]

	for i := 2; i < length; i++ {
		n, err = rand.Int(rand.Reader, big.NewInt(int64(len(all))))
		if err != nil {
			return "", err
		}
		result[i] = all[n.Int64()]
	}

	// Fisher-Yates 打乱，避免前两位固定为字母+数字
	for i := length - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		result[i], result[j.Int64()] = result[j.Int64()], result[i]
	}
	return string(result), nil
}
