// Package store 是金库的持久化边界：按固定 key 读写不透明字节。
package store

import (
	"context"
	"errors"
	"fmt"

	"wallet-vault/pkg/errno"
)

// 金库使用的固定 key
const (
	KeyWallets      = "vault/wallets"
	KeyTokens       = "vault/tokens"
	KeyActiveWallet = "vault/active_wallet"
	KeyLegacyTokens = "legacy/tokens"
)

// ErrNotFound key 不存在
var ErrNotFound = errors.New("store: key not found")

// Store 定义键值持久化接口
type Store interface {
	// Get 读取 key，不存在时返回 ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)
	// Put 覆盖写入 key
	Put(ctx context.Context, key string, value []byte) error
	// Delete 删除 key，key 不存在不报错
	Delete(ctx context.Context, key string) error
	Close() error
}

// unavailable 把后端 I/O 错误包装为 errno.ErrStorageUnavailable
func unavailable(op, key string, err error) error {
	return fmt.Errorf("%w: %s %s: %v", errno.ErrStorageUnavailable, op, key, err)
}
