package vault

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"wallet-vault/internal/model"
	"wallet-vault/internal/service/probe"
)

// RefreshFailure 一条记录的探测失败原因
type RefreshFailure struct {
	WalletID string
	Address  string
	Err      error
}

// RefreshReport 余额刷新结果。失败只按条计数，不会让整批失败。
type RefreshReport struct {
	Wallets   []model.WalletRecord
	Succeeded int
	Failed    int
	Failures  []RefreshFailure
}

type balanceResult struct {
	balance decimal.Decimal
	err     error
}

// RefreshBalances 并发探测每个钱包的原生余额并写回 CachedBalance。
// 每次探测有独立超时，单个失败或超时不会取消其他探测；失败记录保留原缓存值。
// 探测在锁外进行，写回时重新读取金库并按 id 合并，期间被删除的钱包直接跳过。
func (s *Service) RefreshBalances(ctx context.Context, password string, p probe.ChainProbe) (report *RefreshReport, err error) {
	defer func() { s.metrics.ObserveVaultOp("wallet", "refresh", err) }()

	s.mu.Lock()
	snapshot, _, err := s.load(ctx, password)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	runner := probe.NewRunner(p, s.probeTimeout, 0, probe.WithMetrics(s.metrics), probe.WithLogger(s.log))
	results := make([]balanceResult, len(snapshot))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, rec := range snapshot {
		g.Go(func() error {
			bal, err := runner.NativeBalance(ctx, rec.Address)
			results[i] = balanceResult{balance: bal, err: err}
			return nil
		})
	}
	_ = g.Wait()

	report = &RefreshReport{}
	updated := make(map[string]decimal.Decimal, len(snapshot))
	for i, rec := range snapshot {
		if results[i].err != nil {
			report.Failed++
			report.Failures = append(report.Failures, RefreshFailure{WalletID: rec.ID, Address: rec.Address, Err: results[i].err})
			continue
		}
		report.Succeeded++
		updated[rec.ID] = results[i].balance
	}
	s.metrics.ObserveRefresh("wallet", report.Succeeded, report.Failed)

	s.mu.Lock()
	defer s.mu.Unlock()

	records, _, err := s.load(ctx, password)
	if err != nil {
		return nil, err
	}
	if len(updated) > 0 {
		now := s.clock.Now().UTC()
		for i := range records {
			if bal, ok := updated[records[i].ID]; ok {
				records[i].CachedBalance = bal
				records[i].BalanceUpdatedAt = now
			}
		}
		if err := s.save(ctx, records, password); err != nil {
			return nil, err
		}
	}

	if report.Failed > 0 {
		s.log.Warn("balance refresh partially failed",
			zap.Int("succeeded", report.Succeeded), zap.Int("failed", report.Failed))
	}
	report.Wallets = records
	return report, nil
}
