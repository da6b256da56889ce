package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Log *zap.Logger
)

func init() {
	// 默认初始化一个 Nop Logger，防止未 Init 就调用导致 panic
	Log = zap.NewNop()
}

// Init initializes the global logger.
// env: "production" 输出 JSON，其余输出彩色 console；level 为空时使用 env 的默认级别。
func Init(env, level string) error {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return err
		}
		config.Level = zap.NewAtomicLevelAt(lvl)
	}

	// CLI 的标准输出留给命令结果，日志统一写 stderr
	config.OutputPaths = []string{"stderr"}

	l, err := config.Build()
	if err != nil {
		return err
	}
	Log = l
	zap.ReplaceGlobals(Log)
	return nil
}

// Named returns a child of the global logger, or l itself when l is non-nil.
// Services use it to accept an injected logger while falling back to the global one.
func Named(l *zap.Logger, name string) *zap.Logger {
	if l != nil {
		return l.Named(name)
	}
	return Log.Named(name)
}

// Sync flushes any buffered log entries
func Sync() {
	_ = Log.Sync()
}

// Helper functions for direct usage
func Info(msg string, fields ...zap.Field) {
	Log.Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	Log.Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	Log.Fatal(msg, fields...)
}
