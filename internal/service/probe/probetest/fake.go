// Package probetest 提供可编排的 ChainProbe 实现，供各服务的测试使用。
package probetest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"wallet-vault/internal/model"
)

// Account 是某个地址的预设链上状态
type Account struct {
	Balance decimal.Decimal
	TxCount int
	Tokens  []model.TokenRecord
	// Err 非空时三个探测都返回该错误
	Err error
	// Delay 每次探测前等待的时间，ctx 先结束则返回 ctx.Err()
	Delay time.Duration
}

// Fake 是线程安全的 ChainProbe。未登记的地址视为无活动。
type Fake struct {
	mu       sync.Mutex
	accounts map[string]Account
	calls    map[string]int
	order    []string
}

func New() *Fake {
	return &Fake{
		accounts: make(map[string]Account),
		calls:    make(map[string]int),
	}
}

// Set 登记地址状态 (地址大小写不敏感)
func (f *Fake) Set(address string, a Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[strings.ToLower(address)] = a
}

// Calls 返回该地址被 NativeBalance 探测的次数
func (f *Fake) Calls(address string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[strings.ToLower(address)]
}

// Probed 按首次探测顺序返回被探测过的地址
func (f *Fake) Probed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

func (f *Fake) lookup(ctx context.Context, address string, record bool) (Account, error) {
	key := strings.ToLower(address)
	f.mu.Lock()
	a := f.accounts[key]
	if record {
		if f.calls[key] == 0 {
			f.order = append(f.order, key)
		}
		f.calls[key]++
	}
	f.mu.Unlock()

	if a.Delay > 0 {
		select {
		case <-time.After(a.Delay):
		case <-ctx.Done():
			return a, ctx.Err()
		}
	}
	return a, a.Err
}

func (f *Fake) NativeBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	a, err := f.lookup(ctx, address, true)
	if err != nil {
		return decimal.Zero, err
	}
	return a.Balance, nil
}

func (f *Fake) RecentTransactionCount(ctx context.Context, address string, limit int) (int, error) {
	a, err := f.lookup(ctx, address, false)
	if err != nil {
		return 0, err
	}
	if limit > 0 && a.TxCount > limit {
		return limit, nil
	}
	return a.TxCount, nil
}

func (f *Fake) NonZeroTokenBalances(ctx context.Context, address string) ([]model.TokenRecord, error) {
	a, err := f.lookup(ctx, address, false)
	if err != nil {
		return nil, err
	}
	return append([]model.TokenRecord(nil), a.Tokens...), nil
}
