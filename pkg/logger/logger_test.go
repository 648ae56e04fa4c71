package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/config"
)

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		l, err := NewLogger(&config.LogConfig{Level: "debug", Format: format})
		if err != nil {
			t.Fatalf("format=%s 初始化失败: %v", format, err)
		}
		l.Debug("ok")
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	if _, err := NewLogger(&config.LogConfig{Level: "verbose", Format: "json"}); err == nil {
		t.Fatal("无效日志级别应返回错误")
	}
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := NewLogger(&config.LogConfig{Level: "info", Format: "json", Output: []string{path}})
	if err != nil {
		t.Fatalf("初始化失败: %v", err)
	}
	Named(l, "schedule").Info("reconcile done")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取日志文件失败: %v", err)
	}
	line := string(data)
	for _, want := range []string{`"service":"ewh-consulting"`, `"logger":"schedule"`, `"msg":"reconcile done"`} {
		if !strings.Contains(line, want) {
			t.Errorf("日志缺少 %s: %s", want, line)
		}
	}
}

func TestNamed_Nil(t *testing.T) {
	Named(nil, "x").Info("不应 panic")
}
