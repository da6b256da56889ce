package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"wallet-vault/internal/app"
)

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "验证密码并在会话缓存中保持解锁",
	Long: `验证密码后把它缓存到会话中，TTL 内的后续命令无需再次输入。
只有 session.backend=redis 时会话才能跨进程保留。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, _ := cmd.Flags().GetDuration("ttl")
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			pw, err := readSecret("输入金库密码: ")
			if err != nil {
				return err
			}
			ok, err := a.Unlock(ctx, pw, ttl)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("⚠️  密码正确，但会话缓存不可用，后续命令仍需输入密码")
				return nil
			}
			if a.Config.Session.Backend != "redis" {
				fmt.Println("⚠️  当前会话缓存只在本进程内有效")
			}
			fmt.Println("✅ 已解锁")
			return nil
		})
	},
}

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "清除会话缓存",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			a.Lock(ctx)
			fmt.Println("✅ 已锁定")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(unlockCmd, lockCmd)
	unlockCmd.Flags().Duration("ttl", 0, "会话有效期 (默认 session.ttl)")
}
