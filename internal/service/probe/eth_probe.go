package probe

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"wallet-vault/internal/model"
	"wallet-vault/pkg/config"
)

// balanceOf(address) 的函数选择器
var balanceOfSelector = []byte{0x70, 0xa0, 0x82, 0x31}

const ethDecimals = 18

// rpcClient 是 EthProbe 用到的 ethclient 子集
type rpcClient interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// EthProbe 通过以太坊 JSON-RPC 实现 ChainProbe
// 交易数使用账户 nonce 近似 (即发出的交易数)，代币余额只查询配置的观察列表
type EthProbe struct {
	client  rpcClient
	limiter *rate.Limiter
	tokens  []config.TokenWatch
	network string
}

// DialEthProbe 连接 RPC 节点
func DialEthProbe(ctx context.Context, cfg config.ProbeConfig) (*EthProbe, error) {
	client, err := ethclient.DialContext(ctx, cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.RpcUrl, err)
	}
	return newEthProbe(client, cfg), nil
}

func newEthProbe(client rpcClient, cfg config.ProbeConfig) *EthProbe {
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &EthProbe{
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		tokens:  cfg.Tokens,
		network: cfg.Network,
	}
}

func (p *EthProbe) Close() {
	p.client.Close()
}

func (p *EthProbe) NativeBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return decimal.Zero, err
	}
	wei, err := p.client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(wei, -ethDecimals), nil
}

func (p *EthProbe) RecentTransactionCount(ctx context.Context, address string, limit int) (int, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	nonce, err := p.client.NonceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return 0, err
	}
	if limit > 0 && nonce > uint64(limit) {
		return limit, nil
	}
	if nonce > math.MaxInt32 {
		return math.MaxInt32, nil
	}
	return int(nonce), nil
}

// NonZeroTokenBalances 依次查询观察列表中每个合约的 balanceOf。
// 任意一个合约查询失败即返回错误，调用方把整个探测视为失败。
func (p *EthProbe) NonZeroTokenBalances(ctx context.Context, address string) ([]model.TokenRecord, error) {
	owner := common.HexToAddress(address)
	now := time.Now()

	var out []model.TokenRecord
	for _, w := range p.tokens {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		contract := common.HexToAddress(w.Address)
		res, err := p.client.CallContract(ctx, ethereum.CallMsg{
			To:   &contract,
			Data: balanceOfCalldata(owner),
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("balanceOf %s: %w", w.Symbol, err)
		}

		raw := new(big.Int).SetBytes(res)
		if raw.Sign() == 0 {
			continue
		}
		out = append(out, model.TokenRecord{
			ContractAddress: strings.ToLower(contract.Hex()),
			Name:            w.Name,
			Symbol:          w.Symbol,
			Decimals:        w.Decimals,
			Balance:         decimal.NewFromBigInt(raw, -int32(w.Decimals)),
			RawBalance:      raw.String(),
			NetworkLabel:    p.network,
			LastUpdatedAt:   now,
		})
	}
	return out, nil
}

func balanceOfCalldata(owner common.Address) []byte {
	data := make([]byte, 0, 4+32)
	data = append(data, balanceOfSelector...)
	return append(data, common.LeftPadBytes(owner.Bytes(), 32)...)
}
