package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"wallet-vault/internal/model"
	"wallet-vault/internal/service/discovery"
	"wallet-vault/internal/service/token"
	"wallet-vault/internal/service/vault"
	"wallet-vault/pkg/errno"
)

// Password 显式密码优先，否则尝试会话缓存；都没有时返回 ErrPasswordRequired
func (a *App) Password(ctx context.Context, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if pw, ok := a.Sessions.Recall(ctx); ok {
		return pw, nil
	}
	return "", errno.ErrPasswordRequired
}

// Unlock 校验密码后把它记入会话缓存。金库尚未创建时任何密码都被接受 (首次运行)。
// ttl<=0 使用 session.ttl 配置。返回值表示会话是否成功建立。
func (a *App) Unlock(ctx context.Context, password string, ttl time.Duration) (bool, error) {
	if password == "" {
		return false, errno.ErrPasswordRequired
	}
	if _, err := a.Wallets.List(ctx, password); err != nil {
		return false, err
	}
	if ttl <= 0 {
		ttl = a.Config.Session.TTL
	}
	return a.Sessions.Remember(ctx, password, ttl), nil
}

// Lock 清除会话
func (a *App) Lock(ctx context.Context) {
	a.Sessions.Clear(ctx)
}

// DestroyAll 删除两个金库与会话。各步骤互不依赖，全部执行后合并错误。
func (a *App) DestroyAll(ctx context.Context) error {
	var errs []error
	if err := a.Wallets.Destroy(ctx); err != nil {
		errs = append(errs, fmt.Errorf("wallets: %w", err))
	}
	if err := a.Tokens.Destroy(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tokens: %w", err))
	}
	a.Sessions.Clear(ctx)

	if err := errors.Join(errs...); err != nil {
		return err
	}
	a.log.Warn("all vault data destroyed")
	return nil
}

// ImportResult ImportDiscovered 的结果
type ImportResult struct {
	Added []model.WalletRecord
	// Skipped 已存在于金库中的地址
	Skipped []string
}

// ImportDiscovered 按索引派生账户并加入钱包金库，已存在的地址跳过
func (a *App) ImportDiscovered(ctx context.Context, mnemonic string, indexes []uint32, password string) (*ImportResult, error) {
	if len(indexes) == 0 {
		return nil, fmt.Errorf("%w: indexes", errno.ErrMissingRequiredField)
	}

	res := &ImportResult{}
	for _, i := range indexes {
		acc, err := a.Discovery.Derive(mnemonic, i)
		if err != nil {
			return res, err
		}
		rec, err := a.Wallets.Add(ctx, discovery.ToWalletData(*acc, mnemonic), password, fmt.Sprintf("Account %d", i))
		if errors.Is(err, errno.ErrDuplicateAddress) {
			res.Skipped = append(res.Skipped, acc.Address)
			continue
		}
		if err != nil {
			return res, err
		}
		res.Added = append(res.Added, *rec)
	}
	return res, nil
}

// RefreshSummary 一次全量刷新的结果
type RefreshSummary struct {
	Wallets *vault.RefreshReport
	Tokens  *token.RefreshReport
}

// RefreshAll 刷新全部钱包的原生余额，再刷新各钱包的代币余额
func (a *App) RefreshAll(ctx context.Context, password string) (*RefreshSummary, error) {
	wallets, err := a.Wallets.RefreshBalances(ctx, password, a.Probe)
	if err != nil {
		return nil, err
	}

	owners := make(map[string]string, len(wallets.Wallets))
	for _, w := range wallets.Wallets {
		owners[w.ID] = w.Address
	}
	tokens, err := a.Tokens.RefreshAll(ctx, owners, password, a.Probe)
	if err != nil {
		return &RefreshSummary{Wallets: wallets}, err
	}

	a.log.Info("refresh finished",
		zap.Int("wallets_ok", wallets.Succeeded),
		zap.Int("wallets_failed", wallets.Failed),
		zap.Int("token_wallets_ok", tokens.Succeeded),
		zap.Int("token_wallets_failed", tokens.Failed))
	return &RefreshSummary{Wallets: wallets, Tokens: tokens}, nil
}
