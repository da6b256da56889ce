package token

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"wallet-vault/internal/model"
	"wallet-vault/internal/service/probe/probetest"
	"wallet-vault/pkg/envelope"
	"wallet-vault/pkg/errno"
	"wallet-vault/pkg/store"
)

const (
	usdt  = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
	dai   = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
	owner = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
)

var testKDF = envelope.KDFParams{LogN: 10, R: 8, P: 1}

func newTestService(t *testing.T, opts ...Option) (*Service, *store.MemoryStore) {
	t.Helper()
	sealer, err := envelope.New(envelope.WithKDFParams(testKDF))
	require.NoError(t, err)
	st := store.NewMemoryStore()
	return NewService(st, sealer, opts...), st
}

func usdtToken() model.TokenRecord {
	return model.TokenRecord{ContractAddress: usdt, Name: "Tether USD", Symbol: "USDT", Decimals: 6, NetworkLabel: "ethereum"}
}

func TestAddAndList(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	list, err := s.List(ctx, "w1", "pw")
	require.NoError(t, err)
	assert.Empty(t, list)

	rec, err := s.Add(ctx, "w1", usdtToken(), "pw")
	require.NoError(t, err)
	assert.Equal(t, "0xdac17f958d2ee523a2206206994597c13d831ec7", rec.ContractAddress)
	assert.Equal(t, "0", rec.RawBalance)
	assert.False(t, rec.AddedAt.IsZero())

	list, err = s.List(ctx, "w1", "pw")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "USDT", list[0].Symbol)

	// 其他钱包不受影响
	list, err = s.List(ctx, "w2", "pw")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAddRejectsInvalidInput(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	_, err := s.Add(ctx, "w1", usdtToken(), "pw")
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(*model.TokenRecord)
		want   error
	}{
		{"bad address", func(r *model.TokenRecord) { r.ContractAddress = "not-a-hex-address" }, errno.ErrInvalidAddressFormat},
		{"short address", func(r *model.TokenRecord) { r.ContractAddress = "0x1234" }, errno.ErrInvalidAddressFormat},
		{"missing symbol", func(r *model.TokenRecord) { r.ContractAddress = dai; r.Symbol = "" }, errno.ErrMissingRequiredField},
		{"name is only markup", func(r *model.TokenRecord) { r.ContractAddress = dai; r.Name = "<script>alert(1)</script>" }, errno.ErrMissingRequiredField},
		{"duplicate any case", func(r *model.TokenRecord) { r.ContractAddress = "0xDAC17F958D2EE523A2206206994597C13D831EC7" }, errno.ErrDuplicateToken},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tok := usdtToken()
			c.mutate(&tok)
			_, err := s.Add(ctx, "w1", tok, "pw")
			assert.ErrorIs(t, err, c.want)

			list, err := s.List(ctx, "w1", "pw")
			require.NoError(t, err)
			assert.Len(t, list, 1, "token list unchanged")
		})
	}
}

func TestAddSanitizesText(t *testing.T) {
	s, _ := newTestService(t)

	tok := model.TokenRecord{
		ContractAddress: dai,
		Name:            `<a href="javascript:alert(1)">Dai</a> Stablecoin`,
		Symbol:          "DAI<img src=x>EXTRA-LONG-SYMBOL",
		Decimals:        18,
		NetworkLabel:    "<b>mainnet</b>",
	}
	rec, err := s.Add(context.Background(), "w1", tok, "pw")
	require.NoError(t, err)
	assert.Equal(t, "Dai Stablecoin", rec.Name)
	assert.Equal(t, "DAIEXTRA-LONG-SY", rec.Symbol)
	assert.Equal(t, "mainnet", rec.NetworkLabel)
}

func TestWrongPassword(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	_, err := s.Add(ctx, "w1", usdtToken(), "pw1")
	require.NoError(t, err)

	_, err = s.List(ctx, "w1", "pw2")
	assert.ErrorIs(t, err, errno.ErrWrongPasswordOrCorrupted)
	assert.ErrorIs(t, s.Clear(ctx, "w1", "pw2"), errno.ErrWrongPasswordOrCorrupted)
}

func TestRemoveUpdateClear(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	_, err := s.Add(ctx, "w1", usdtToken(), "pw")
	require.NoError(t, err)
	dTok := usdtToken()
	dTok.ContractAddress, dTok.Symbol, dTok.Name = dai, "DAI", "Dai"
	_, err = s.Add(ctx, "w1", dTok, "pw")
	require.NoError(t, err)
	_, err = s.Add(ctx, "w2", usdtToken(), "pw")
	require.NoError(t, err)

	require.NoError(t, s.UpdateBalance(ctx, "w1", usdt, decimal.RequireFromString("12.5"), "12500000", "pw"))
	list, _ := s.List(ctx, "w1", "pw")
	assert.Equal(t, "12.5", list[0].Balance.String())
	assert.Equal(t, "12500000", list[0].RawBalance)

	assert.ErrorIs(t, s.UpdateBalance(ctx, "w1", owner, decimal.Zero, "0", "pw"), errno.ErrNotFound)
	assert.ErrorIs(t, s.Remove(ctx, "w1", "nope", "pw"), errno.ErrInvalidAddressFormat)
	assert.ErrorIs(t, s.Remove(ctx, "w3", usdt, "pw"), errno.ErrNotFound)

	require.NoError(t, s.Remove(ctx, "w1", usdt, "pw"))
	list, _ = s.List(ctx, "w1", "pw")
	require.Len(t, list, 1)
	assert.Equal(t, "DAI", list[0].Symbol)

	require.NoError(t, s.Clear(ctx, "w1", "pw"))
	list, _ = s.List(ctx, "w1", "pw")
	assert.Empty(t, list)
	list, _ = s.List(ctx, "w2", "pw")
	assert.Len(t, list, 1, "other wallets keep their tokens")

	// 清空不存在的钱包是空操作
	require.NoError(t, s.Clear(ctx, "ghost", "pw"))
}

func TestStaleTokenDataWarns(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tc := clock.NewTestClock(start)
	sealer, err := envelope.New(envelope.WithKDFParams(testKDF), envelope.WithClock(tc), envelope.WithMaxAge(365*24*time.Hour))
	require.NoError(t, err)

	core, logs := observer.New(zap.WarnLevel)
	s := NewService(store.NewMemoryStore(), sealer, WithClock(tc), WithLogger(zap.New(core)))
	ctx := context.Background()

	_, err = s.Add(ctx, "w1", usdtToken(), "pw")
	require.NoError(t, err)

	tc.SetTime(start.Add(400 * 24 * time.Hour))
	list, err := s.List(ctx, "w1", "pw")
	require.NoError(t, err)
	assert.Len(t, list, 1, "stale data is still returned")
	assert.Equal(t, 1, logs.FilterMessageSnippet("older than the configured max age").Len())
}

func TestRefreshBalances(t *testing.T) {
	s, _ := newTestService(t, WithProbe(50*time.Millisecond, 2))
	ctx := context.Background()

	_, err := s.Add(ctx, "w1", usdtToken(), "pw")
	require.NoError(t, err)

	fake := probetest.New()
	fake.Set(owner, probetest.Account{Tokens: []model.TokenRecord{
		{ContractAddress: usdt, Name: "Tether USD", Symbol: "USDT", Decimals: 6, Balance: decimal.RequireFromString("3"), RawBalance: "3000000"},
		{ContractAddress: dai, Name: "Dai", Symbol: "DAI", Decimals: 18, Balance: decimal.RequireFromString("1"), RawBalance: "1000000000000000000"},
		{ContractAddress: "bogus", Name: "x", Symbol: "x"},
	}})

	report, err := s.RefreshBalances(ctx, "w1", owner, "pw", fake)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Added)

	list, err := s.List(ctx, "w1", "pw")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "3", list[0].Balance.String())
	assert.Equal(t, "DAI", list[1].Symbol)
	assert.False(t, list[1].Verified)
}

func TestRefreshAllIsolatesFailures(t *testing.T) {
	s, _ := newTestService(t, WithProbe(30*time.Millisecond, 4))
	ctx := context.Background()

	_, err := s.Add(ctx, "good", usdtToken(), "pw")
	require.NoError(t, err)
	_, err = s.Add(ctx, "slow", usdtToken(), "pw")
	require.NoError(t, err)

	const slowOwner = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
	const badOwner = "0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB"
	fake := probetest.New()
	fake.Set(owner, probetest.Account{Tokens: []model.TokenRecord{
		{ContractAddress: usdt, Name: "Tether USD", Symbol: "USDT", Decimals: 6, Balance: decimal.NewFromInt(5), RawBalance: "5000000"},
	}})
	fake.Set(slowOwner, probetest.Account{Delay: time.Second})
	fake.Set(badOwner, probetest.Account{Err: errors.New("rpc down")})

	report, err := s.RefreshAll(ctx, map[string]string{"good": owner, "slow": slowOwner, "bad": badOwner}, "pw", fake)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
	assert.ErrorIs(t, report.Errors["slow"], errno.ErrProbeTimeout)
	assert.ErrorIs(t, report.Errors["bad"], errno.ErrProbeUnavailable)

	list, _ := s.List(ctx, "good", "pw")
	assert.Equal(t, "5", list[0].Balance.String())
	list, _ = s.List(ctx, "slow", "pw")
	assert.True(t, list[0].Balance.IsZero(), "failed wallet keeps its cached balance")
}

func writeLegacy(t *testing.T, st *store.MemoryStore, m model.TokenMap) {
	t.Helper()
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, st.Put(context.Background(), store.KeyLegacyTokens, raw))
}

func TestMigrate(t *testing.T) {
	s, st := newTestService(t)
	ctx := context.Background()

	_, err := s.Add(ctx, "w1", usdtToken(), "pw")
	require.NoError(t, err)

	writeLegacy(t, st, model.TokenMap{
		"w1": {
			{ContractAddress: usdt, Name: "dup", Symbol: "USDT"},
			{ContractAddress: dai, Name: "Dai", Symbol: "DAI", Decimals: 18},
		},
		"w2": {
			{ContractAddress: "garbage", Name: "bad", Symbol: "BAD"},
			{ContractAddress: usdt, Name: "Tether USD", Symbol: "USDT", Decimals: 6},
		},
	})

	res, err := s.Migrate(ctx, "pw")
	require.NoError(t, err)
	assert.True(t, res.Migrated)
	assert.True(t, res.LegacyRemoved)
	assert.Equal(t, 2, res.Wallets)
	assert.Equal(t, 2, res.Tokens)
	assert.Equal(t, 2, res.Skipped)

	_, err = st.Get(ctx, store.KeyLegacyTokens)
	assert.ErrorIs(t, err, store.ErrNotFound)

	list, _ := s.List(ctx, "w1", "pw")
	assert.Len(t, list, 2)
	assert.Equal(t, "Tether USD", list[0].Name, "existing record wins over legacy duplicate")
	list, _ = s.List(ctx, "w2", "pw")
	assert.Len(t, list, 1)

	// 再次运行为空操作
	res, err = s.Migrate(ctx, "pw")
	require.NoError(t, err)
	assert.False(t, res.Migrated)
}

func TestMigrateRequiresPassword(t *testing.T) {
	s, st := newTestService(t)
	writeLegacy(t, st, model.TokenMap{"w1": {usdtToken()}})

	_, err := s.Migrate(context.Background(), "")
	assert.ErrorIs(t, err, errno.ErrPasswordRequired)

	_, err = st.Get(context.Background(), store.KeyLegacyTokens)
	assert.NoError(t, err, "legacy store untouched")
}

type failingPutStore struct {
	*store.MemoryStore
}

func (f failingPutStore) Put(context.Context, string, []byte) error {
	return errno.ErrStorageUnavailable
}

func TestMigrateKeepsLegacyOnFailure(t *testing.T) {
	s, st := newTestService(t)
	ctx := context.Background()

	_, err := s.Add(ctx, "w1", usdtToken(), "pw")
	require.NoError(t, err)
	writeLegacy(t, st, model.TokenMap{"w2": {usdtToken()}})

	// 密码错误
	_, err = s.Migrate(ctx, "wrong")
	assert.ErrorIs(t, err, errno.ErrWrongPasswordOrCorrupted)
	_, err = st.Get(ctx, store.KeyLegacyTokens)
	assert.NoError(t, err)

	// 加密写入失败
	broken := NewService(failingPutStore{st}, s.sealer)
	_, err = broken.Migrate(ctx, "pw")
	assert.ErrorIs(t, err, errno.ErrStorageUnavailable)
	_, err = st.Get(ctx, store.KeyLegacyTokens)
	assert.NoError(t, err)

	// 损坏的遗留数据
	require.NoError(t, st.Put(ctx, store.KeyLegacyTokens, []byte("{not json")))
	_, err = s.Migrate(ctx, "pw")
	assert.Error(t, err)
	_, err = st.Get(ctx, store.KeyLegacyTokens)
	assert.NoError(t, err)
}

func TestDestroy(t *testing.T) {
	s, st := newTestService(t)
	ctx := context.Background()

	_, err := s.Add(ctx, "w1", usdtToken(), "pw")
	require.NoError(t, err)
	writeLegacy(t, st, model.TokenMap{})

	require.NoError(t, s.Destroy(ctx))
	_, err = st.Get(ctx, store.KeyTokens)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.Get(ctx, store.KeyLegacyTokens)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
