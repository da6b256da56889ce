package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"wallet-vault/internal/model"
	"wallet-vault/pkg/errno"
	"wallet-vault/pkg/store"
)

// MigrationResult 遗留明文代币数据的迁移结果
type MigrationResult struct {
	// Migrated 为 false 表示没有遗留数据，本次为空操作
	Migrated bool `json:"migrated"`
	Wallets  int  `json:"wallets"`
	Tokens   int  `json:"tokens"`
	// Skipped 无效或与现有记录重复而被跳过的条目
	Skipped int `json:"skipped"`
	// LegacyRemoved 遗留数据是否已删除。加密写入成功但删除失败时为 false，再次迁移会重复尝试。
	LegacyRemoved bool `json:"legacy_removed"`
}

// Migrate 把 store.KeyLegacyTokens 下的明文代币数据 (JSON: walletID -> 代币列表)
// 合并进加密金库，写入成功后再删除遗留数据。
// 没有密码时拒绝执行；没有遗留数据时为空操作；任何失败都保留遗留数据。
func (s *Service) Migrate(ctx context.Context, password string) (res *MigrationResult, err error) {
	defer func() { s.metrics.ObserveVaultOp("token", "migrate", err) }()

	if password == "" {
		return nil, errno.ErrPasswordRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.store.Get(ctx, store.KeyLegacyTokens)
	if errors.Is(err, store.ErrNotFound) {
		return &MigrationResult{}, nil
	}
	if err != nil {
		return nil, err
	}

	var legacy model.TokenMap
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, fmt.Errorf("decode legacy tokens: %w", err)
	}

	tokens, err := s.load(ctx, password)
	if err != nil {
		return nil, err
	}

	res = &MigrationResult{Migrated: true}
	now := s.clock.Now().UTC()
	for walletID, list := range legacy {
		if walletID == "" {
			res.Skipped += len(list)
			continue
		}
		added := 0
		for _, t := range list {
			t, err := sanitize(t)
			if err != nil || indexOf(tokens[walletID], t.ContractAddress) >= 0 {
				res.Skipped++
				continue
			}
			if t.AddedAt.IsZero() {
				t.AddedAt = now
			}
			if t.LastUpdatedAt.IsZero() {
				t.LastUpdatedAt = now
			}
			tokens[walletID] = append(tokens[walletID], t)
			added++
		}
		if added > 0 {
			res.Wallets++
			res.Tokens += added
		}
	}

	if err := s.save(ctx, tokens, password); err != nil {
		return nil, fmt.Errorf("write migrated tokens: %w", err)
	}

	if err := s.store.Delete(ctx, store.KeyLegacyTokens); err != nil {
		s.log.Warn("legacy tokens migrated but not removed", zap.Error(err))
		return res, nil
	}
	res.LegacyRemoved = true

	s.log.Info("legacy tokens migrated",
		zap.Int("wallets", res.Wallets), zap.Int("tokens", res.Tokens), zap.Int("skipped", res.Skipped))
	return res, nil
}
