package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/config"
)

const serviceName = "ewh-consulting"

// NewLogger 根据配置初始化 Zap 日志实例
//
// console 格式用于本地排查；json 格式供日志采集，时间统一为 ISO8601。
func NewLogger(cfg *config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("无效的日志级别 %q: %w", cfg.Level, err)
	}

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         "json",
		EncoderConfig:    encoderConfig(cfg.Format),
		OutputPaths:      outputs(cfg.Output),
		ErrorOutputPaths: []string{"stderr"},
	}
	if cfg.Format == "console" {
		zapCfg.Encoding = "console"
		zapCfg.Development = true
	} else {
		zapCfg.Sampling = &zap.SamplingConfig{Initial: 100, Thereafter: 100}
	}

	logger, err := zapCfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("初始化日志器失败: %w", err)
	}
	return logger.With(zap.String("service", serviceName)), nil
}

// Named 为子模块派生日志器，nil 时返回空实现
func Named(l *zap.Logger, module string) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.Named(module)
}

func encoderConfig(format string) zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "console" {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return ec
}

func outputs(paths []string) []string {
	if len(paths) == 0 {
		return []string{"stdout"}
	}
	return paths
}
