package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wallet-vault/internal/app"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "按 BIP-44 顺序派生并探测有链上活动的账户",
	Long: `从索引 0 开始派生 m/44'/60'/0'/0/i 并查询余额、交易数与代币，
连续 discovery.threshold 个无活动账户后停止。停止点之后的休眠账户不会被发现，
可以用 import --mnemonic --index 手动导入。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		doImport, _ := cmd.Flags().GetBool("import")

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			m, err := readSecret("输入助记词: ")
			if err != nil {
				return err
			}
			res, err := a.Discovery.Discover(ctx, m)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tADDRESS\tBALANCE\tTXS\tTOKENS\tACTIVE")
			for _, acc := range res.Accounts {
				active := "no"
				if acc.HasActivity {
					active = "yes"
				}
				if acc.ProbeFailures > 0 {
					active += " (探测失败)"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\n", acc.Index, acc.Address, acc.Balance.String(), acc.TransactionCount, acc.TokenCount, active)
			}
			_ = w.Flush()
			fmt.Printf("共探测 %d 个账户，其中 %d 个有活动\n", len(res.Accounts), len(res.Active))

			if !doImport || len(res.Active) == 0 {
				return nil
			}
			indexes := make([]uint32, 0, len(res.Active))
			for _, acc := range res.Active {
				indexes = append(indexes, acc.Index)
			}
			pw, err := password(ctx, a)
			if err != nil {
				return err
			}
			imported, err := a.ImportDiscovered(ctx, m, indexes, pw)
			if err != nil {
				return err
			}
			fmt.Printf("✅ 导入 %d 个账户，跳过已存在的 %d 个\n", len(imported.Added), len(imported.Skipped))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().Bool("import", false, "把有活动的账户导入金库")
}
