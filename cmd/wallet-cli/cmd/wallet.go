package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wallet-vault/internal/app"
	"wallet-vault/internal/model"
	"wallet-vault/internal/service/discovery"
	"wallet-vault/pkg/address"
)

func printWallets(wallets []model.WalletRecord, activeID string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\tID\tALIAS\tADDRESS\tBALANCE\tUPDATED")
	for _, rec := range wallets {
		v := rec.View(activeID)
		mark := ""
		if v.Active {
			mark = "*"
		}
		updated := "-"
		if !v.BalanceUpdatedAt.IsZero() {
			updated = v.BalanceUpdatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", mark, v.ID, v.Alias, v.Address, v.CachedBalance.String(), updated)
	}
	_ = w.Flush()
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "列出金库中的钱包",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			pw, err := password(ctx, a)
			if err != nil {
				return err
			}
			listing, err := a.Wallets.List(ctx, pw)
			if err != nil {
				return err
			}
			if len(listing.Wallets) == 0 {
				fmt.Println("金库中还没有钱包，使用 generate 或 import 创建。")
				return nil
			}
			printWallets(listing.Wallets, listing.ActiveID)
			return nil
		})
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "生成新的助记词钱包并加入金库",
	RunE: func(cmd *cobra.Command, args []string) error {
		words, _ := cmd.Flags().GetInt("words")
		alias, _ := cmd.Flags().GetString("alias")
		bits := 128
		switch words {
		case 12:
		case 24:
			bits = 256
		default:
			return fmt.Errorf("--words 只能是 12 或 24")
		}

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			pw, err := password(ctx, a)
			if err != nil {
				return err
			}
			data, err := a.Discovery.GenerateWallet(bits)
			if err != nil {
				return err
			}
			rec, err := a.Wallets.Add(ctx, data, pw, alias)
			if err != nil {
				return err
			}

			fmt.Printf("✅ 钱包已创建: %s (%s)\n", rec.Alias, rec.Address)
			if confirm("是否现在显示助记词以便备份?") {
				fmt.Println("---------------------------------------------------")
				fmt.Println("助记词 (请抄写在纸上并安全保管):")
				fmt.Println(data.Mnemonic)
				fmt.Println("---------------------------------------------------")
			}
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "从私钥或助记词导入钱包",
	Long: `从私钥或助记词导入钱包。密钥材料通过提示输入，不接受命令行参数。
--mnemonic 时按 --index 派生 m/44'/60'/0'/0/<index>。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		useMnemonic, _ := cmd.Flags().GetBool("mnemonic")
		index, _ := cmd.Flags().GetUint32("index")
		alias, _ := cmd.Flags().GetString("alias")

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			var data model.WalletData
			if useMnemonic {
				m, err := readSecret("输入助记词: ")
				if err != nil {
					return err
				}
				acc, err := a.Discovery.Derive(m, index)
				if err != nil {
					return err
				}
				data = discovery.ToWalletData(*acc, m)
			} else {
				k, err := readSecret("输入私钥 (hex): ")
				if err != nil {
					return err
				}
				key, addr, err := address.NewETHGenerator().FromPrivateKeyHex(k)
				if err != nil {
					return err
				}
				data = model.WalletData{Address: addr, PrivateKey: key, IsImported: true}
			}

			pw, err := password(ctx, a)
			if err != nil {
				return err
			}
			rec, err := a.Wallets.Add(ctx, data, pw, alias)
			if err != nil {
				return err
			}
			fmt.Printf("✅ 已导入: %s (%s)\n", rec.Alias, rec.Address)
			return nil
		})
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <wallet-id>",
	Short: "删除钱包及其代币列表",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			pw, err := password(ctx, a)
			if err != nil {
				return err
			}
			rec, err := a.Wallets.Get(ctx, args[0], pw)
			if err != nil {
				return err
			}
			if !confirm(fmt.Sprintf("确认删除钱包 %s (%s)? 没有备份将无法恢复", rec.Alias, rec.Address)) {
				return errors.New("已取消")
			}
			if err := a.Wallets.Remove(ctx, rec.ID, pw); err != nil {
				return err
			}
			fmt.Println("✅ 已删除")
			return nil
		})
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <wallet-id> <alias>",
	Short: "修改钱包别名",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			pw, err := password(ctx, a)
			if err != nil {
				return err
			}
			return a.Wallets.Rename(ctx, args[0], args[1], pw)
		})
	},
}

var useCmd = &cobra.Command{
	Use:   "use <wallet-id>",
	Short: "设置活动钱包",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			pw, err := password(ctx, a)
			if err != nil {
				return err
			}
			return a.Wallets.SetActive(ctx, args[0], pw)
		})
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "刷新全部钱包的原生余额与代币余额",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			pw, err := password(ctx, a)
			if err != nil {
				return err
			}
			sum, err := a.RefreshAll(ctx, pw)
			if sum != nil && sum.Wallets != nil {
				active, _, _ := a.Wallets.Active(ctx)
				printWallets(sum.Wallets.Wallets, active)
				for _, f := range sum.Wallets.Failures {
					fmt.Printf("⚠️  %s 余额刷新失败: %v\n", f.Address, f.Err)
				}
			}
			if err != nil {
				return err
			}
			fmt.Printf("代币: 更新 %d, 新增 %d, 失败钱包 %d\n", sum.Tokens.Updated, sum.Tokens.Added, sum.Tokens.Failed)
			return nil
		})
	},
}

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "删除全部钱包、代币与会话 (不可恢复)",
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes && !confirm("确认删除全部金库数据? 此操作不可恢复") {
			return errors.New("已取消")
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.DestroyAll(ctx); err != nil {
				return err
			}
			fmt.Println("✅ 金库已清空")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(listCmd, generateCmd, importCmd, removeCmd, renameCmd, useCmd, refreshCmd, destroyCmd)

	generateCmd.Flags().Int("words", 12, "助记词单词数 (12 或 24)")
	generateCmd.Flags().String("alias", "", "钱包别名")

	importCmd.Flags().Bool("mnemonic", false, "从助记词导入 (默认从私钥导入)")
	importCmd.Flags().Uint32("index", 0, "助记词派生索引")
	importCmd.Flags().String("alias", "", "钱包别名")

	destroyCmd.Flags().BoolP("yes", "y", false, "跳过确认")
}
