package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-vault/internal/app"
	"wallet-vault/internal/handler"
	"wallet-vault/internal/handler/response"
	"wallet-vault/internal/model"
	"wallet-vault/internal/service/probe/probetest"
	"wallet-vault/pkg/config"
	"wallet-vault/pkg/errno"
	"wallet-vault/pkg/store"
)

const (
	abandon = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	// 私钥 1 对应的地址
	keyOne     = "0000000000000000000000000000000000000000000000000000000000000001"
	keyOneAddr = "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"
	usdt       = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	cfg := &config.Config{
		Storage:   config.StorageConfig{Backend: "memory"},
		Session:   config.SessionConfig{Backend: "memory", TTL: time.Minute},
		Envelope:  config.EnvelopeConfig{ScryptLogN: 10, ScryptR: 8, ScryptP: 1},
		Discovery: config.DiscoveryConfig{Threshold: 2, MaxAccounts: 5, PathTemplate: "m/44'/60'/0'/0/%d"},
		Probe:     config.ProbeConfig{Timeout: time.Second, TxLimit: 10, Concurrency: 2},
	}
	a, err := app.New(context.Background(), cfg, app.WithStore(store.NewMemoryStore()), app.WithProbe(probetest.New()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return NewHTTPRouter(a)
}

func do(t *testing.T, r http.Handler, method, path string, body any, password string) envelope {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if password != "" {
		req.Header.Set(handler.PasswordHeader, password)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	require.Equal(t, response.StatusOf(env.Code), w.Code, w.Body.String())
	return env
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t)

	env := do(t, r, http.MethodGet, "/health", nil, "")
	assert.Equal(t, errno.OK.Code, env.Code)

	do(t, r, http.MethodGet, "/api/v1/wallets", nil, "pw")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "wallet_vault_operations_total")
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestPasswordRequired(t *testing.T) {
	r := newTestRouter(t)

	env := do(t, r, http.MethodGet, "/api/v1/wallets", nil, "")
	assert.Equal(t, errno.ErrPasswordRequired.Code, env.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallets", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionUnlock(t *testing.T) {
	r := newTestRouter(t)

	env := do(t, r, http.MethodPost, "/api/v1/wallets/import", gin.H{"private_key": keyOne, "alias": "Main"}, "pw")
	require.Equal(t, errno.OK.Code, env.Code, env.Msg)

	env = do(t, r, http.MethodPost, "/api/v1/session/unlock", gin.H{"password": "wrong"}, "")
	assert.Equal(t, errno.ErrWrongPasswordOrCorrupted.Code, env.Code)

	env = do(t, r, http.MethodPost, "/api/v1/session/unlock", gin.H{"password": "pw"}, "")
	require.Equal(t, errno.OK.Code, env.Code, env.Msg)

	env = do(t, r, http.MethodGet, "/api/v1/wallets", nil, "")
	require.Equal(t, errno.OK.Code, env.Code, env.Msg)
	var listing struct {
		Wallets  []model.WalletView `json:"wallets"`
		ActiveID string             `json:"active_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &listing))
	require.Len(t, listing.Wallets, 1)
	assert.Equal(t, keyOneAddr, listing.Wallets[0].Address)
	assert.True(t, listing.Wallets[0].Active)
	assert.NotContains(t, string(env.Data), keyOne)

	do(t, r, http.MethodPost, "/api/v1/session/lock", nil, "")
	env = do(t, r, http.MethodGet, "/api/v1/wallets", nil, "")
	assert.Equal(t, errno.ErrPasswordRequired.Code, env.Code)
}

func TestImportWallet(t *testing.T) {
	r := newTestRouter(t)

	env := do(t, r, http.MethodPost, "/api/v1/wallets/import", gin.H{"private_key": "0x" + keyOne}, "pw")
	require.Equal(t, errno.OK.Code, env.Code, env.Msg)
	var view model.WalletView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, keyOneAddr, view.Address)
	assert.Equal(t, "Wallet 1", view.Alias)
	assert.True(t, view.Active, "first wallet becomes active")

	env = do(t, r, http.MethodPost, "/api/v1/wallets/import", gin.H{"private_key": keyOne}, "pw")
	assert.Equal(t, errno.ErrDuplicateAddress.Code, env.Code)

	env = do(t, r, http.MethodPost, "/api/v1/wallets/import", gin.H{"mnemonic": abandon, "index": 0}, "pw")
	require.Equal(t, errno.OK.Code, env.Code, env.Msg)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", view.Address)
	assert.True(t, view.HasMnemonic)
	assert.False(t, view.Active)

	cases := []struct {
		name string
		body gin.H
		code int
	}{
		{"empty body", gin.H{}, errno.ErrBind.Code},
		{"both sources", gin.H{"private_key": keyOne, "mnemonic": abandon}, errno.ErrBind.Code},
		{"bad private key", gin.H{"private_key": "xyz"}, errno.ErrBind.Code},
		{"bad mnemonic", gin.H{"mnemonic": "one two three"}, errno.ErrInvalidMnemonic.Code},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			env := do(t, r, http.MethodPost, "/api/v1/wallets/import", c.body, "pw")
			assert.Equal(t, c.code, env.Code, env.Msg)
		})
	}
}

func TestGenerateWallet(t *testing.T) {
	r := newTestRouter(t)

	env := do(t, r, http.MethodPost, "/api/v1/wallets/generate", gin.H{"alias": "<b>Savings</b>", "words": 24}, "pw")
	require.Equal(t, errno.OK.Code, env.Code, env.Msg)
	var out struct {
		Wallet   model.WalletView `json:"wallet"`
		Mnemonic string           `json:"mnemonic"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Len(t, strings.Fields(out.Mnemonic), 24)
	assert.Equal(t, "Savings", out.Wallet.Alias)
	assert.True(t, out.Wallet.Active)

	env = do(t, r, http.MethodPost, "/api/v1/wallets/generate", gin.H{"words": 13}, "pw")
	assert.Equal(t, errno.ErrBind.Code, env.Code)
}

func TestWalletLifecycleWithTokens(t *testing.T) {
	r := newTestRouter(t)

	env := do(t, r, http.MethodPost, "/api/v1/wallets/import", gin.H{"private_key": keyOne}, "pw")
	require.Equal(t, errno.OK.Code, env.Code, env.Msg)
	var view model.WalletView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	tokens := "/api/v1/wallets/" + view.ID + "/tokens"

	env = do(t, r, http.MethodPost, tokens, gin.H{"contract_address": "0x123", "name": "Bad", "symbol": "BAD"}, "pw")
	assert.Equal(t, errno.ErrInvalidAddressFormat.Code, env.Code)

	env = do(t, r, http.MethodPost, tokens, gin.H{"contract_address": usdt, "symbol": "USDT"}, "pw")
	assert.Equal(t, errno.ErrMissingRequiredField.Code, env.Code)

	env = do(t, r, http.MethodPost, tokens, gin.H{"contract_address": usdt, "name": "Tether", "symbol": "USDT", "decimals": 6}, "pw")
	require.Equal(t, errno.OK.Code, env.Code, env.Msg)

	env = do(t, r, http.MethodPost, tokens, gin.H{"contract_address": strings.ToLower(usdt), "name": "Tether", "symbol": "USDT"}, "pw")
	assert.Equal(t, errno.ErrDuplicateToken.Code, env.Code)

	env = do(t, r, http.MethodGet, tokens, nil, "pw")
	require.Equal(t, errno.OK.Code, env.Code)
	var list struct {
		Tokens []model.TokenRecord `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Tokens, 1)

	env = do(t, r, http.MethodPatch, "/api/v1/wallets/"+view.ID, gin.H{"alias": "Renamed"}, "pw")
	require.Equal(t, errno.OK.Code, env.Code, env.Msg)

	env = do(t, r, http.MethodGet, "/api/v1/wallets/active", nil, "pw")
	require.Equal(t, errno.OK.Code, env.Code, env.Msg)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "Renamed", view.Alias)

	env = do(t, r, http.MethodDelete, "/api/v1/wallets/"+view.ID, nil, "pw")
	require.Equal(t, errno.OK.Code, env.Code, env.Msg)

	env = do(t, r, http.MethodGet, tokens, nil, "pw")
	assert.Equal(t, errno.ErrNotFound.Code, env.Code)

	env = do(t, r, http.MethodGet, "/api/v1/wallets/active", nil, "pw")
	assert.Equal(t, errno.ErrNoActiveWallet.Code, env.Code)
}

func TestSetActiveUnknownWallet(t *testing.T) {
	r := newTestRouter(t)

	env := do(t, r, http.MethodPut, "/api/v1/wallets/active", gin.H{"id": "missing"}, "pw")
	assert.Equal(t, errno.ErrNotFound.Code, env.Code)
}

func TestDiscovery(t *testing.T) {
	r := newTestRouter(t)

	env := do(t, r, http.MethodPost, "/api/v1/discovery", gin.H{"mnemonics": []string{abandon, "not valid"}}, "")
	require.Equal(t, errno.OK.Code, env.Code, env.Msg)
	var out struct {
		Results []struct {
			Accounts []model.DiscoveredAccount `json:"accounts"`
			Code     int                       `json:"code"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.Len(t, out.Results, 2)
	assert.Len(t, out.Results[0].Accounts, 2)
	assert.Equal(t, errno.ErrInvalidMnemonic.Code, out.Results[1].Code)
	assert.NotContains(t, string(env.Data), "private")

	env = do(t, r, http.MethodPost, "/api/v1/discovery/import", gin.H{"mnemonic": abandon, "indexes": []int{0, 1}}, "pw")
	require.Equal(t, errno.OK.Code, env.Code, env.Msg)
	var imported struct {
		Added []model.WalletView `json:"added"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &imported))
	assert.Len(t, imported.Added, 2)
}

func TestRefreshAndMigrate(t *testing.T) {
	r := newTestRouter(t)

	do(t, r, http.MethodPost, "/api/v1/wallets/import", gin.H{"private_key": keyOne}, "pw")

	env := do(t, r, http.MethodPost, "/api/v1/wallets/refresh", nil, "pw")
	require.Equal(t, errno.OK.Code, env.Code, env.Msg)
	var out struct {
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, 1, out.Succeeded)
	assert.Zero(t, out.Failed)

	env = do(t, r, http.MethodPost, "/api/v1/tokens/migrate", nil, "pw")
	require.Equal(t, errno.OK.Code, env.Code, env.Msg)
	assert.JSONEq(t, `{"migrated":false,"wallets":0,"tokens":0,"skipped":0,"legacy_removed":false}`, string(env.Data))
}

func TestDestroyVault(t *testing.T) {
	r := newTestRouter(t)

	do(t, r, http.MethodPost, "/api/v1/wallets/import", gin.H{"private_key": keyOne}, "pw")

	env := do(t, r, http.MethodDelete, "/api/v1/vault", gin.H{"confirm": false}, "")
	assert.Equal(t, errno.ErrMissingRequiredField.Code, env.Code)

	env = do(t, r, http.MethodDelete, "/api/v1/vault", gin.H{"confirm": true}, "")
	require.Equal(t, errno.OK.Code, env.Code, env.Msg)

	env = do(t, r, http.MethodGet, "/api/v1/wallets", nil, "new password")
	require.Equal(t, errno.OK.Code, env.Code, env.Msg)
	var listing struct {
		Wallets []model.WalletView `json:"wallets"`
		Created bool               `json:"created"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &listing))
	assert.Empty(t, listing.Wallets)
	assert.False(t, listing.Created)
}
