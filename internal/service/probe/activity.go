package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"wallet-vault/internal/model"
	"wallet-vault/pkg/errno"
	"wallet-vault/pkg/logger"
	"wallet-vault/pkg/monitor"
)

// Runner 给每次 ChainProbe 调用加上超时、错误归类、日志与监控，
// 并把三个探测组合为一次 Activity 查询
type Runner struct {
	probe   ChainProbe
	timeout time.Duration
	txLimit int
	metrics *monitor.Metrics
	log     *zap.Logger
}

type RunnerOption func(*Runner)

func WithMetrics(m *monitor.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) { r.log = l }
}

// NewRunner timeout 为单次探测超时，txLimit 为交易数查询上限
func NewRunner(p ChainProbe, timeout time.Duration, txLimit int, opts ...RunnerOption) *Runner {
	r := &Runner{
		probe:   p,
		timeout: timeout,
		txLimit: txLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logger.Named(r.log, "probe")
	return r
}

// call 在独立的超时上下文中执行 fn
func call[T any](ctx context.Context, r *Runner, kind, address string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	v, err := fn(ctx)
	err = classify(ctx, err)
	r.metrics.ObserveProbe(kind, err, time.Since(start))
	if err != nil {
		r.log.Debug("probe failed", zap.String("kind", kind), zap.String("address", address), zap.Error(err))
	}
	return v, err
}

// classify 超时归为 ErrProbeTimeout，其余错误归为 ErrProbeUnavailable
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, errno.ErrProbeTimeout) || errors.Is(err, errno.ErrProbeUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", errno.ErrProbeTimeout, err)
	}
	return fmt.Errorf("%w: %v", errno.ErrProbeUnavailable, err)
}

func (r *Runner) NativeBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	return call(ctx, r, KindNativeBalance, address, func(ctx context.Context) (decimal.Decimal, error) {
		return r.probe.NativeBalance(ctx, address)
	})
}

func (r *Runner) RecentTransactionCount(ctx context.Context, address string) (int, error) {
	return call(ctx, r, KindTxCount, address, func(ctx context.Context) (int, error) {
		return r.probe.RecentTransactionCount(ctx, address, r.txLimit)
	})
}

func (r *Runner) NonZeroTokenBalances(ctx context.Context, address string) ([]model.TokenRecord, error) {
	return call(ctx, r, KindTokens, address, func(ctx context.Context) ([]model.TokenRecord, error) {
		return r.probe.NonZeroTokenBalances(ctx, address)
	})
}

// Activity 并发执行三个探测。单个探测失败不影响其他探测，
// 失败项视为 "无活动"；只要任一成功探测显示有余额、交易或代币即认为有活动。
func (r *Runner) Activity(ctx context.Context, address string) model.Activity {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		act     model.Activity
		balance decimal.Decimal
		txCount int
		tokens  []model.TokenRecord
	)

	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		act.Failures++
		if act.Err == nil {
			act.Err = err
		}
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		v, err := r.NativeBalance(ctx, address)
		if err != nil {
			fail(err)
			return
		}
		balance = v
	}()
	go func() {
		defer wg.Done()
		v, err := r.RecentTransactionCount(ctx, address)
		if err != nil {
			fail(err)
			return
		}
		txCount = v
	}()
	go func() {
		defer wg.Done()
		v, err := r.NonZeroTokenBalances(ctx, address)
		if err != nil {
			fail(err)
			return
		}
		tokens = v
	}()
	wg.Wait()

	act.Balance = balance
	act.TransactionCount = txCount
	act.Tokens = tokens
	act.HasActivity = balance.IsPositive() || txCount > 0 || len(tokens) > 0
	return act
}
