package probe

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-vault/internal/model"
	"wallet-vault/internal/service/probe/probetest"
	"wallet-vault/pkg/config"
	"wallet-vault/pkg/errno"
	"wallet-vault/pkg/monitor"
)

const (
	addrA = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	addrB = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
	usdt  = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
)

func TestActivity(t *testing.T) {
	fake := probetest.New()
	fake.Set(addrA, probetest.Account{Balance: decimal.RequireFromString("1.5"), TxCount: 3})
	fake.Set(addrB, probetest.Account{Tokens: []model.TokenRecord{{Symbol: "USDT"}}})

	r := NewRunner(fake, time.Second, 10)

	act := r.Activity(context.Background(), addrA)
	assert.True(t, act.HasActivity)
	assert.True(t, act.Balance.Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, 3, act.TransactionCount)
	assert.Zero(t, act.Failures)

	act = r.Activity(context.Background(), addrB)
	assert.True(t, act.HasActivity, "token balance alone counts as activity")

	act = r.Activity(context.Background(), "0x0000000000000000000000000000000000000001")
	assert.False(t, act.HasActivity)
}

func TestActivityTimeoutIsNotFatal(t *testing.T) {
	fake := probetest.New()
	fake.Set(addrA, probetest.Account{Balance: decimal.NewFromInt(1), Delay: time.Second})

	reg := prometheus.NewRegistry()
	r := NewRunner(fake, 20*time.Millisecond, 10, WithMetrics(monitor.New(reg)))

	start := time.Now()
	act := r.Activity(context.Background(), addrA)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.False(t, act.HasActivity)
	assert.Equal(t, 3, act.Failures)
	assert.ErrorIs(t, act.Err, errno.ErrProbeTimeout)
}

func TestRunnerClassifiesErrors(t *testing.T) {
	fake := probetest.New()
	fake.Set(addrA, probetest.Account{Err: errors.New("connection refused")})

	m := monitor.New(prometheus.NewRegistry())
	r := NewRunner(fake, time.Second, 10, WithMetrics(m))

	_, err := r.NativeBalance(context.Background(), addrA)
	assert.ErrorIs(t, err, errno.ErrProbeUnavailable)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProbeCallsTotal.WithLabelValues(KindNativeBalance, "error")))
}

type fakeRPC struct {
	balance  *big.Int
	nonce    uint64
	balances map[common.Address]*big.Int
	calls    []ethereum.CallMsg
	err      error
}

func (f *fakeRPC) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return f.balance, f.err
}

func (f *fakeRPC) NonceAt(context.Context, common.Address, *big.Int) (uint64, error) {
	return f.nonce, f.err
}

func (f *fakeRPC) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, msg)
	v := f.balances[*msg.To]
	if v == nil {
		v = new(big.Int)
	}
	return common.LeftPadBytes(v.Bytes(), 32), nil
}

func (f *fakeRPC) Close() {}

func TestEthProbe(t *testing.T) {
	oneEth, _ := new(big.Int).SetString("1500000000000000000", 10)
	rpc := &fakeRPC{
		balance: oneEth,
		nonce:   42,
		balances: map[common.Address]*big.Int{
			common.HexToAddress(usdt): big.NewInt(2_500_000),
		},
	}
	p := newEthProbe(rpc, config.ProbeConfig{
		Network: "ethereum",
		Tokens: []config.TokenWatch{
			{Address: usdt, Name: "Tether USD", Symbol: "USDT", Decimals: 6},
			{Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Name: "Dai", Symbol: "DAI", Decimals: 18},
		},
	})
	ctx := context.Background()

	bal, err := p.NativeBalance(ctx, addrA)
	require.NoError(t, err)
	assert.Equal(t, "1.5", bal.String())

	n, err := p.RecentTransactionCount(ctx, addrA, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	n, err = p.RecentTransactionCount(ctx, addrA, 100)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	tokens, err := p.NonZeroTokenBalances(ctx, addrA)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "0xdac17f958d2ee523a2206206994597c13d831ec7", tokens[0].ContractAddress)
	assert.Equal(t, "2.5", tokens[0].Balance.String())
	assert.Equal(t, "2500000", tokens[0].RawBalance)
	assert.Equal(t, "ethereum", tokens[0].NetworkLabel)

	require.Len(t, rpc.calls, 2)
	data := rpc.calls[0].Data
	assert.Equal(t, balanceOfSelector, data[:4])
	assert.Equal(t, common.HexToAddress(addrA).Bytes(), data[16:])
}

func TestEthProbeRateLimitHonoursContext(t *testing.T) {
	p := newEthProbe(&fakeRPC{balance: big.NewInt(0)}, config.ProbeConfig{Rate: 0.001, Burst: 1})
	ctx := context.Background()

	_, err := p.NativeBalance(ctx, addrA)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = p.NativeBalance(ctx, addrA)
	assert.Error(t, err)
}
