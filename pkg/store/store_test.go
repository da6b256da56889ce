package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"wallet-vault/pkg/errno"
)

// testStore 对任意后端执行相同的读写语义检查
func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, KeyWallets)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, KeyWallets, []byte("blob-1")))
	got, err := s.Get(ctx, KeyWallets)
	require.NoError(t, err)
	require.Equal(t, []byte("blob-1"), got)

	// 覆盖写
	require.NoError(t, s.Put(ctx, KeyWallets, []byte("blob-2")))
	got, err = s.Get(ctx, KeyWallets)
	require.NoError(t, err)
	require.Equal(t, []byte("blob-2"), got)

	// key 之间互不影响
	require.NoError(t, s.Put(ctx, KeyActiveWallet, []byte("id")))
	require.NoError(t, s.Delete(ctx, KeyWallets))
	_, err = s.Get(ctx, KeyWallets)
	require.ErrorIs(t, err, ErrNotFound)
	got, err = s.Get(ctx, KeyActiveWallet)
	require.NoError(t, err)
	require.Equal(t, []byte("id"), got)

	// 删除不存在的 key 不报错
	require.NoError(t, s.Delete(ctx, KeyLegacyTokens))
	require.NoError(t, s.Delete(ctx, KeyActiveWallet))
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStoreCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	in := []byte("abc")
	require.NoError(t, s.Put(ctx, "k", in))
	in[0] = 'X'

	out, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), out)
	out[0] = 'Y'

	again, _ := s.Get(ctx, "k")
	require.Equal(t, []byte("abc"), again)
}

func TestBoltStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vault.db")
	s, err := OpenBolt(path)
	require.NoError(t, err)
	testStore(t, s)

	// 重新打开后数据仍在
	require.NoError(t, s.Put(context.Background(), KeyTokens, []byte("tokens")))
	require.NoError(t, s.Close())

	s, err = OpenBolt(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(context.Background(), KeyTokens)
	require.NoError(t, err)
	require.Equal(t, []byte("tokens"), got)
}

func TestBoltStoreClosed(t *testing.T) {
	s, err := OpenBolt(filepath.Join(t.TempDir(), "vault.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.Put(context.Background(), KeyWallets, []byte("x"))
	require.ErrorIs(t, err, errno.ErrStorageUnavailable)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("WALLET_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("WALLET_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := ConnectRedis(ctx, addr, "", 0)
	require.NoError(t, err)

	s := NewRedisStore(client, "wallet-vault-test:"+t.Name()+":")
	defer s.Close()
	testStore(t, s)
}

func TestSQLStore(t *testing.T) {
	dsn := os.Getenv("WALLET_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("WALLET_TEST_POSTGRES_DSN not set")
	}
	db, err := ConnectPostgres(dsn)
	require.NoError(t, err)
	s, err := NewSQLStore(db)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	for _, k := range []string{KeyWallets, KeyActiveWallet, KeyLegacyTokens} {
		require.NoError(t, s.Delete(ctx, k))
	}
	testStore(t, s)
}

func TestConnectRedisUnreachable(t *testing.T) {
	_, err := ConnectRedis(context.Background(), "127.0.0.1:1", "", 0)
	require.ErrorIs(t, err, errno.ErrStorageUnavailable)
}
