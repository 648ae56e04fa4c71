package jwt

import (
	"testing"
	"time"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/config"
)

func newTestManager() *Manager {
	return NewManager(&config.AuthConfig{
		JWTSecret:      "test-secret-key-for-unit-testing-2026",
		AccessTokenTTL: 15 * time.Minute,
	})
}

func TestGenerateAndParseAccessToken(t *testing.T) {
	m := newTestManager()

	token, err := m.GenerateAccessToken("uid-1", "admin", "sid-1", "db")
	if err != nil {
		t.Fatalf("GenerateAccessToken 失败: %v", err)
	}

	claims, err := m.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken 失败: %v", err)
	}

	if claims.UID != "uid-1" {
		t.Errorf("期望 UID=uid-1，实际=%s", claims.UID)
	}
	if claims.Role != "admin" {
		t.Errorf("期望 Role=admin，实际=%s", claims.Role)
	}
	if claims.SessionID != "sid-1" || claims.SessionKind != "db" {
		t.Errorf("会话信息不符: %s/%s", claims.SessionID, claims.SessionKind)
	}
	if claims.Issuer != "ewh-consulting" {
		t.Errorf("期望 Issuer=ewh-consulting，实际=%s", claims.Issuer)
	}
	if claims.ID == "" {
		t.Error("JTI 不应为空")
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 || ttl > 16*time.Minute {
		t.Errorf("TTL 期望约15分钟，实际=%v", ttl)
	}
}

func TestGenerateAccessToken_UniqueJTI(t *testing.T) {
	m := newTestManager()

	a, _ := m.GenerateAccessToken("uid-1", "consultant", "sid-1", "db")
	b, _ := m.GenerateAccessToken("uid-1", "consultant", "sid-1", "db")
	ca, _ := m.ParseToken(a)
	cb, _ := m.ParseToken(b)
	if ca.ID == cb.ID {
		t.Error("两次签发的 JTI 不应相同")
	}
}

func TestParseToken_InvalidToken(t *testing.T) {
	m := newTestManager()

	if _, err := m.ParseToken("invalid.token.string"); err != ErrTokenInvalid {
		t.Errorf("期望 ErrTokenInvalid，实际: %v", err)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	m1 := newTestManager()
	m2 := NewManager(&config.AuthConfig{
		JWTSecret:      "different-secret-key",
		AccessTokenTTL: 15 * time.Minute,
	})

	token, _ := m1.GenerateAccessToken("uid-1", "admin", "sid-1", "db")
	if _, err := m2.ParseToken(token); err == nil {
		t.Error("不同密钥签名的 token 不应通过验证")
	}
}

func TestParseToken_ExpiredToken(t *testing.T) {
	m := NewManager(&config.AuthConfig{
		JWTSecret:      "test-secret-key-for-unit-testing-2026",
		AccessTokenTTL: -time.Minute,
	})

	token, _ := m.GenerateAccessToken("uid-1", "admin", "sid-1", "dummy")
	_, err := m.ParseToken(token)
	if err != ErrTokenExpired {
		t.Errorf("期望 ErrTokenExpired，实际: %v", err)
	}
}
