package probe

import (
	"context"

	"github.com/shopspring/decimal"

	"wallet-vault/internal/model"
)

// ChainProbe 链上状态查询能力。三个方法相互独立、尽力而为，
// 调用方必须为每次调用单独设置超时。
type ChainProbe interface {
	// NativeBalance 原生币余额 (ETH)
	NativeBalance(ctx context.Context, address string) (decimal.Decimal, error)
	// RecentTransactionCount 近期交易数，最多返回 limit
	RecentTransactionCount(ctx context.Context, address string, limit int) (int, error)
	// NonZeroTokenBalances 余额非零的代币
	NonZeroTokenBalances(ctx context.Context, address string) ([]model.TokenRecord, error)
}

// 探测种类，用于日志与监控标签
const (
	KindNativeBalance = "native_balance"
	KindTxCount       = "tx_count"
	KindTokens        = "tokens"
)
