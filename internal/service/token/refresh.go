package token

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"wallet-vault/internal/model"
	"wallet-vault/internal/service/probe"
)

// RefreshReport 代币余额刷新结果，按钱包计数
type RefreshReport struct {
	Succeeded int
	Failed    int
	// Updated 已有代币中余额被更新的数量，Added 新发现并加入列表的数量
	Updated int
	Added   int
	Errors  map[string]error // walletID -> 探测错误
}

type walletProbe struct {
	tokens []model.TokenRecord
	err    error
}

// RefreshBalances 刷新单个钱包的代币余额，见 RefreshAll
func (s *Service) RefreshBalances(ctx context.Context, walletID, owner, password string, p probe.ChainProbe) (*RefreshReport, error) {
	return s.RefreshAll(ctx, map[string]string{walletID: owner}, password, p)
}

// RefreshAll 并发查询 owners (walletID -> 地址) 中每个钱包的非零代币余额。
// 列表中已有且出现在探测结果里的代币更新余额，探测结果里没有的代币保持不变；
// 探测结果中新出现的代币经清洗校验后加入列表 (Verified=false)。
// 某个钱包探测失败只计入 Failed，不影响其他钱包。
func (s *Service) RefreshAll(ctx context.Context, owners map[string]string, password string, p probe.ChainProbe) (report *RefreshReport, err error) {
	defer func() { s.metrics.ObserveVaultOp("token", "refresh", err) }()

	// 先校验密码，避免探测后才发现无法写回
	s.mu.Lock()
	_, err = s.load(ctx, password)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(owners))
	for id := range owners {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	runner := probe.NewRunner(p, s.probeTimeout, 0, probe.WithMetrics(s.metrics), probe.WithLogger(s.log))
	results := make([]walletProbe, len(ids))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			tokens, err := runner.NonZeroTokenBalances(ctx, owners[id])
			results[i] = walletProbe{tokens: tokens, err: err}
			return nil
		})
	}
	_ = g.Wait()

	report = &RefreshReport{Errors: map[string]error{}}
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.load(ctx, password)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	for i, id := range ids {
		if results[i].err != nil {
			report.Failed++
			report.Errors[id] = results[i].err
			continue
		}
		report.Succeeded++

		list := tokens[id]
		for _, found := range results[i].tokens {
			found, err := sanitize(found)
			if err != nil {
				s.log.Debug("skip invalid token from probe", zap.String("wallet_id", id), zap.Error(err))
				continue
			}
			if j := indexOf(list, found.ContractAddress); j >= 0 {
				list[j].Balance = found.Balance
				list[j].RawBalance = found.RawBalance
				list[j].LastUpdatedAt = now
				report.Updated++
				continue
			}
			found.Verified = false
			found.AddedAt = now
			found.LastUpdatedAt = now
			list = append(list, found)
			report.Added++
		}
		if len(list) > 0 {
			tokens[id] = list
		}
	}
	s.metrics.ObserveRefresh("token", report.Succeeded, report.Failed)

	if report.Updated+report.Added > 0 {
		if err := s.save(ctx, tokens, password); err != nil {
			return nil, err
		}
	}
	if report.Failed > 0 {
		s.log.Warn("token refresh partially failed",
			zap.Int("succeeded", report.Succeeded), zap.Int("failed", report.Failed))
	}
	return report, nil
}
