package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wallet-vault/pkg/logger"
)

type Config struct {
	HttpAddr        string
	ShutdownTimeout time.Duration
}

type App struct {
	httpServer *http.Server
	timeout    time.Duration
}

func New(cfg Config, httpHandler *gin.Engine) *App {
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &App{
		httpServer: &http.Server{
			Addr:              cfg.HttpAddr,
			Handler:           httpHandler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		timeout: timeout,
	}
}

// Run 启动服务并阻塞，直到收到关闭信号或监听失败
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP Server", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP Server forced to shutdown", zap.Error(err))
		return err
	}
	logger.Info("Server exited properly")
	return nil
}
