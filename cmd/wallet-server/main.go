package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"wallet-vault/internal/app"
	"wallet-vault/internal/server"
	"wallet-vault/pkg/config"
	"wallet-vault/pkg/logger"
)

func main() {
	cfgFile := flag.String("config", "", "配置文件路径")
	flag.Parse()

	// 0. 初始化 Config
	// 日志尚未初始化，直接写 stderr
	if err := config.Init(*cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, "加载配置失败:", err)
		os.Exit(1)
	}

	// 1. 初始化 Logger
	if err := logger.Init(config.Global.App.Env, config.Global.App.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, "初始化日志失败:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// 2. 组装存储、会话缓存、链上探测与各服务
	a, err := app.New(context.Background(), &config.Global)
	if err != nil {
		logger.Fatal("应用初始化失败", zap.Error(err))
	}

	// 3. 启动 HTTP 服务 (阻塞直到收到退出信号)
	srv := server.New(server.Config{HttpAddr: config.Global.App.HttpAddr}, server.NewHTTPRouter(a))
	runErr := srv.Run()

	// 4. 退出后资源清理
	logger.Info("正在释放资源...")
	if err := a.Close(); err != nil {
		logger.Error("释放资源失败", zap.Error(err))
	}
	if runErr != nil {
		logger.Error("HTTP Server failure", zap.Error(runErr))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("系统已退出")
}
