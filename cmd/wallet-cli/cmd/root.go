package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"wallet-vault/internal/app"
	"wallet-vault/pkg/config"
	"wallet-vault/pkg/logger"
	"wallet-vault/pkg/validator"
)

var cfgFile string

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "wallet-cli",
	Short: "本地加密钱包金库命令行工具",
	Long: `管理本地加密保存的以太坊钱包与代币列表。
支持生成 / 导入钱包、BIP-44 账户发现、余额刷新与遗留数据迁移。`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(cfgFile); err != nil {
			return err
		}
		if err := logger.Init(config.Global.App.Env, config.Global.App.LogLevel); err != nil {
			return err
		}
		validator.Init()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径 (默认查找 ./config.yaml 与 ./config/config.yaml)")
}

// withApp 组装应用、执行 fn 并释放资源
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, err := app.New(ctx, &config.Global)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
