package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wallet-vault/internal/app"
	"wallet-vault/internal/model"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "管理钱包的代币列表",
}

var tokensListCmd = &cobra.Command{
	Use:   "list <wallet-id>",
	Short: "列出钱包的代币",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			pw, err := password(ctx, a)
			if err != nil {
				return err
			}
			if _, err := a.Wallets.Get(ctx, args[0], pw); err != nil {
				return err
			}
			tokens, err := a.Tokens.List(ctx, args[0], pw)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SYMBOL\tNAME\tCONTRACT\tBALANCE\tVERIFIED")
			for _, t := range tokens {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", t.Symbol, t.Name, t.ContractAddress, t.Balance.String(), t.Verified)
			}
			return w.Flush()
		})
	},
}

var tokensAddCmd = &cobra.Command{
	Use:   "add <wallet-id>",
	Short: "手动添加代币",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contract, _ := cmd.Flags().GetString("contract")
		name, _ := cmd.Flags().GetString("name")
		symbol, _ := cmd.Flags().GetString("symbol")
		decimals, _ := cmd.Flags().GetInt("decimals")
		network, _ := cmd.Flags().GetString("network")

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			pw, err := password(ctx, a)
			if err != nil {
				return err
			}
			if _, err := a.Wallets.Get(ctx, args[0], pw); err != nil {
				return err
			}
			if network == "" {
				network = a.Config.Probe.Network
			}
			rec, err := a.Tokens.Add(ctx, args[0], model.TokenRecord{
				ContractAddress: contract,
				Name:            name,
				Symbol:          symbol,
				Decimals:        decimals,
				NetworkLabel:    network,
			}, pw)
			if err != nil {
				return err
			}
			fmt.Printf("✅ 已添加 %s (%s)\n", rec.Symbol, rec.ContractAddress)
			return nil
		})
	},
}

var tokensRemoveCmd = &cobra.Command{
	Use:   "remove <wallet-id> <contract>",
	Short: "删除代币",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			pw, err := password(ctx, a)
			if err != nil {
				return err
			}
			return a.Tokens.Remove(ctx, args[0], args[1], pw)
		})
	},
}

var tokensMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "把旧版明文代币数据迁移进加密金库",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			pw, err := password(ctx, a)
			if err != nil {
				return err
			}
			res, err := a.Tokens.Migrate(ctx, pw)
			if err != nil {
				return err
			}
			if !res.Migrated {
				fmt.Println("没有需要迁移的数据")
				return nil
			}
			fmt.Printf("✅ 迁移 %d 个钱包的 %d 个代币，跳过 %d 条\n", res.Wallets, res.Tokens, res.Skipped)
			if !res.LegacyRemoved {
				fmt.Println("⚠️  旧数据删除失败，下次迁移时会重试")
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(tokensCmd)
	tokensCmd.AddCommand(tokensListCmd, tokensAddCmd, tokensRemoveCmd, tokensMigrateCmd)

	tokensAddCmd.Flags().String("contract", "", "合约地址 (0x...)")
	tokensAddCmd.Flags().String("name", "", "代币名称")
	tokensAddCmd.Flags().String("symbol", "", "代币符号")
	tokensAddCmd.Flags().Int("decimals", 18, "小数位数")
	tokensAddCmd.Flags().String("network", "", "网络标签 (默认 probe.network)")
}
