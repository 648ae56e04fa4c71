package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/config"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/dto"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/model"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/repository"
	apperrors "github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/errors"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/jwt"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/redis"
)

var (
	ErrInvalidCredentials = errors.New("账号或密码错误")
	ErrUserPending        = errors.New("账号尚未审批通过")
	ErrDummyLoginDisabled = errors.New("模拟登录未开启")
	ErrSessionNotFound    = errors.New("会话不存在或已过期")
)

// 会话类型
const (
	SessionKindDB    = "db"
	SessionKindDummy = "dummy"
)

// SessionStore 会话与 Token 黑名单存储（Redis 实现；为 nil 时会话仅靠 JWT 声明）
type SessionStore interface {
	SaveSession(ctx context.Context, s *redis.Session, ttl time.Duration) error
	GetSession(ctx context.Context, id string) (*redis.Session, error)
	DeleteSession(ctx context.Context, id string) error
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
}

// SessionClaims 从已验证的 Access Token 中取出的会话信息
type SessionClaims struct {
	SessionID   string
	SessionKind string
	UID         string
	Role        string
	JTI         string
	ExpiresAt   time.Time
}

// AuthService 认证业务接口
type AuthService interface {
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	DummyLogin(ctx context.Context, req *dto.DummyLoginRequest) (*dto.TokenResponse, error)
	RestoreSession(ctx context.Context, claims SessionClaims) (*dto.SessionResponse, error)
	Logout(ctx context.Context, claims SessionClaims) error
}

type authService struct {
	cfg      *config.Config
	repo     *repository.Repository
	jwtMgr   *jwt.Manager
	sessions SessionStore
	logger   *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	sessions SessionStore,
	logger *zap.Logger,
) AuthService {
	return &authService{
		cfg:      cfg,
		repo:     repo,
		jwtMgr:   jwtMgr,
		sessions: sessions,
		logger:   logger,
	}
}

// ────────────────────── Login ──────────────────────

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	// 1. 查询用户
	user, err := s.repo.User.GetByUserID(ctx, strings.TrimSpace(req.UserID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 2. 验证密码
	if user.Password == nil || *user.Password == "" {
		return nil, ErrInvalidCredentials
	}
	legacy, ok := checkPassword(*user.Password, req.Password)
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if user.Status != model.UserStatusApproved {
		return nil, ErrUserPending
	}

	// 3. 历史明文密码重写为 bcrypt 哈希
	if legacy {
		s.upgradePassword(ctx, user.UID, req.Password)
	}

	// 4. 建立会话并签发 Token
	sess := &redis.Session{
		ID:        uuid.New().String(),
		Kind:      SessionKindDB,
		UID:       user.UID,
		UserID:    user.UserID,
		Name:      user.Name,
		Role:      user.Role,
		CreatedAt: time.Now(),
	}
	return s.issue(ctx, sess, toUserResponse(user))
}

// DummyLogin 模拟用户登录，用于演示与本地调试
func (s *authService) DummyLogin(ctx context.Context, req *dto.DummyLoginRequest) (*dto.TokenResponse, error) {
	if !s.cfg.Feature.DummyLoginEnabled {
		return nil, ErrDummyLoginDisabled
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "dummy-" + req.Role
	}
	id := uuid.New().String()
	sess := &redis.Session{
		ID:        id,
		Kind:      SessionKindDummy,
		UID:       "dummy-" + id[:8],
		UserID:    "dummy-" + id[:8],
		Name:      name,
		Role:      req.Role,
		CreatedAt: time.Now(),
	}
	return s.issue(ctx, sess, sessionUser(sess))
}

// ────────────────────── Session ──────────────────────

// RestoreSession 刷新页面后恢复会话；会话记录丢失时对数据库账号回退到查库
func (s *authService) RestoreSession(ctx context.Context, claims SessionClaims) (*dto.SessionResponse, error) {
	if s.sessions != nil {
		sess, err := s.sessions.GetSession(ctx, claims.SessionID)
		if err == nil {
			return &dto.SessionResponse{
				SessionID:   sess.ID,
				SessionKind: sess.Kind,
				User:        *sessionUser(sess),
			}, nil
		}
		if !errors.Is(err, apperrors.ErrCacheMiss) {
			s.logger.Warn("读取会话失败，回退到 Token 声明", zap.Error(err))
		}
	}

	if claims.SessionKind != SessionKindDB {
		// 模拟会话没有持久化的用户记录
		if s.sessions != nil {
			return nil, ErrSessionNotFound
		}
		return &dto.SessionResponse{
			SessionID:   claims.SessionID,
			SessionKind: claims.SessionKind,
			User:        dto.UserResponse{UID: claims.UID, UserID: claims.UID, Role: claims.Role, Status: model.UserStatusApproved},
		}, nil
	}

	user, err := s.repo.User.GetByUID(ctx, claims.UID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}
	return &dto.SessionResponse{
		SessionID:   claims.SessionID,
		SessionKind: claims.SessionKind,
		User:        *toUserResponse(user),
	}, nil
}

// Logout 删除会话并将当前 Token 拉黑至其自然过期
func (s *authService) Logout(ctx context.Context, claims SessionClaims) error {
	if s.sessions == nil {
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, claims.SessionID); err != nil {
		s.logger.Error("删除会话失败", zap.String("sid", claims.SessionID), zap.Error(err))
		return err
	}
	if claims.JTI != "" {
		if err := s.sessions.BlacklistToken(ctx, claims.JTI, time.Until(claims.ExpiresAt)); err != nil {
			s.logger.Error("Token 加入黑名单失败", zap.Error(err))
			return err
		}
	}
	return nil
}

// ── 内部辅助方法 ──

func (s *authService) issue(ctx context.Context, sess *redis.Session, user *dto.UserResponse) (*dto.TokenResponse, error) {
	if s.sessions != nil {
		if err := s.sessions.SaveSession(ctx, sess, s.sessionTTL()); err != nil {
			s.logger.Error("保存会话失败", zap.String("kind", sess.Kind), zap.Error(err))
			return nil, err
		}
	}

	accessToken, err := s.jwtMgr.GenerateAccessToken(sess.UID, sess.Role, sess.ID, sess.Kind)
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken: accessToken,
		ExpiresIn:   int(s.jwtMgr.AccessTokenTTL().Seconds()),
		SessionKind: sess.Kind,
		User:        *user,
	}, nil
}

func (s *authService) sessionTTL() time.Duration {
	if s.cfg.Auth.SessionTTL > 0 {
		return s.cfg.Auth.SessionTTL
	}
	return s.jwtMgr.AccessTokenTTL()
}

func (s *authService) upgradePassword(ctx context.Context, uid, plain string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Warn("历史密码哈希失败", zap.Error(err))
		return
	}
	if err := s.repo.User.UpdateFields(ctx, uid, map[string]interface{}{"password": string(hash)}); err != nil {
		s.logger.Warn("历史密码重写失败", zap.String("uid", uid), zap.Error(err))
	}
}

// checkPassword 校验密码；legacy 表示库中存的是历史明文
func checkPassword(stored, plain string) (legacy bool, ok bool) {
	if isBcryptHash(stored) {
		return false, bcrypt.CompareHashAndPassword([]byte(stored), []byte(plain)) == nil
	}
	return true, subtle.ConstantTimeCompare([]byte(stored), []byte(plain)) == 1
}

func isBcryptHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}

func sessionUser(sess *redis.Session) *dto.UserResponse {
	return &dto.UserResponse{
		UID:       sess.UID,
		UserID:    sess.UserID,
		Name:      sess.Name,
		Role:      sess.Role,
		Status:    model.UserStatusApproved,
		CreatedAt: sess.CreatedAt.Format(time.RFC3339),
	}
}
