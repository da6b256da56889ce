// Package token 实现按钱包 id 分组的代币元数据加密金库。
//
// 所有钱包的代币列表 (model.TokenMap) 作为一个加密信封存放在 store.KeyTokens 下。
package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"wallet-vault/internal/model"
	"wallet-vault/pkg/address"
	"wallet-vault/pkg/envelope"
	"wallet-vault/pkg/errno"
	"wallet-vault/pkg/logger"
	"wallet-vault/pkg/monitor"
	"wallet-vault/pkg/store"
	"wallet-vault/pkg/validator"
)

// 自由文本字段的长度上限
const (
	maxNameLen    = 64
	maxSymbolLen  = 16
	maxNetworkLen = 32

	defaultProbeTimeout = 8 * time.Second
	defaultConcurrency  = 4
)

// Service 是 TokenVault 的实现
type Service struct {
	store  store.Store
	sealer *envelope.Sealer

	clock        clock.Clock
	probeTimeout time.Duration
	concurrency  int
	metrics      *monitor.Metrics
	log          *zap.Logger

	mu sync.Mutex
}

type Option func(*Service)

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithProbe 设置代币余额刷新时单次探测的超时与并发数
func WithProbe(timeout time.Duration, concurrency int) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.probeTimeout = timeout
		}
		if concurrency > 0 {
			s.concurrency = concurrency
		}
	}
}

func WithMetrics(m *monitor.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService 构造函数。sealer 的过期阈值用于代币数据的过期提醒 (默认一年)。
func NewService(st store.Store, sealer *envelope.Sealer, opts ...Option) *Service {
	s := &Service{
		store:        st,
		sealer:       sealer,
		clock:        clock.NewDefaultClock(),
		probeTimeout: defaultProbeTimeout,
		concurrency:  defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.Named(s.log, "token_vault")
	return s
}

func (s *Service) load(ctx context.Context, password string) (model.TokenMap, error) {
	raw, err := s.store.Get(ctx, store.KeyTokens)
	if errors.Is(err, store.ErrNotFound) {
		return model.TokenMap{}, nil
	}
	if err != nil {
		return nil, err
	}

	var tokens model.TokenMap
	meta, err := s.sealer.Open(string(raw), password, &tokens)
	if err != nil {
		return nil, fmt.Errorf("open token vault: %w", err)
	}
	if meta.Stale {
		s.log.Warn("token data is older than the configured max age, balances may be outdated",
			zap.Time("written_at", meta.Timestamp))
	}
	if tokens == nil {
		tokens = model.TokenMap{}
	}
	return tokens, nil
}

func (s *Service) save(ctx context.Context, tokens model.TokenMap, password string) error {
	ct, err := s.sealer.Seal(tokens, password)
	if err != nil {
		return fmt.Errorf("seal token vault: %w", err)
	}
	return s.store.Put(ctx, store.KeyTokens, []byte(ct))
}

func indexOf(list []model.TokenRecord, contract string) int {
	for i := range list {
		if list[i].ContractAddress == contract {
			return i
		}
	}
	return -1
}

// sanitize 清洗自由文本并校验必填字段与地址格式，返回规范化后的记录
func sanitize(t model.TokenRecord) (model.TokenRecord, error) {
	t.ContractAddress = strings.TrimSpace(t.ContractAddress)
	t.Name = validator.Sanitize(t.Name, maxNameLen)
	t.Symbol = validator.Sanitize(t.Symbol, maxSymbolLen)
	t.NetworkLabel = validator.Sanitize(t.NetworkLabel, maxNetworkLen)
	t.RawBalance = strings.TrimSpace(t.RawBalance)

	if err := validator.Struct(t); err != nil {
		return t, err
	}
	t.ContractAddress = strings.ToLower(t.ContractAddress)
	if t.RawBalance == "" {
		t.RawBalance = "0"
	}
	return t, nil
}

// List 返回钱包的代币列表，没有记录时返回空列表
func (s *Service) List(ctx context.Context, walletID, password string) ([]model.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.load(ctx, password)
	if err != nil {
		return nil, err
	}
	return append([]model.TokenRecord{}, tokens[walletID]...), nil
}

// Add 清洗并校验后新增代币。地址格式错误、缺少必填字段或合约已存在时整体拒绝，列表不变。
func (s *Service) Add(ctx context.Context, walletID string, token model.TokenRecord, password string) (rec *model.TokenRecord, err error) {
	defer func() { s.metrics.ObserveVaultOp("token", "add", err) }()

	if walletID == "" {
		return nil, fmt.Errorf("%w: wallet id", errno.ErrMissingRequiredField)
	}
	token, err = sanitize(token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.load(ctx, password)
	if err != nil {
		return nil, err
	}
	if indexOf(tokens[walletID], token.ContractAddress) >= 0 {
		return nil, fmt.Errorf("%w: %s", errno.ErrDuplicateToken, token.ContractAddress)
	}

	now := s.clock.Now().UTC()
	token.AddedAt = now
	token.LastUpdatedAt = now
	tokens[walletID] = append(tokens[walletID], token)

	if err := s.save(ctx, tokens, password); err != nil {
		return nil, err
	}
	s.log.Info("token added", zap.String("wallet_id", walletID),
		zap.String("contract", token.ContractAddress), zap.String("symbol", token.Symbol))
	return &token, nil
}

// Remove 删除代币，不存在时返回 ErrNotFound
func (s *Service) Remove(ctx context.Context, walletID, contract, password string) (err error) {
	defer func() { s.metrics.ObserveVaultOp("token", "remove", err) }()

	contract, err = address.Normalize(contract)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.load(ctx, password)
	if err != nil {
		return err
	}
	list := tokens[walletID]
	i := indexOf(list, contract)
	if i < 0 {
		return fmt.Errorf("%w: token %s", errno.ErrNotFound, contract)
	}
	list = append(list[:i], list[i+1:]...)
	if len(list) == 0 {
		delete(tokens, walletID)
	} else {
		tokens[walletID] = list
	}
	return s.save(ctx, tokens, password)
}

// UpdateBalance 更新代币的展示余额
func (s *Service) UpdateBalance(ctx context.Context, walletID, contract string, balance decimal.Decimal, rawBalance, password string) (err error) {
	defer func() { s.metrics.ObserveVaultOp("token", "update_balance", err) }()

	contract, err = address.Normalize(contract)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.load(ctx, password)
	if err != nil {
		return err
	}
	list := tokens[walletID]
	i := indexOf(list, contract)
	if i < 0 {
		return fmt.Errorf("%w: token %s", errno.ErrNotFound, contract)
	}
	list[i].Balance = balance
	list[i].RawBalance = rawBalance
	list[i].LastUpdatedAt = s.clock.Now().UTC()
	return s.save(ctx, tokens, password)
}

// Clear 删除钱包的全部代币。钱包没有代币时不写入。
func (s *Service) Clear(ctx context.Context, walletID, password string) (err error) {
	defer func() { s.metrics.ObserveVaultOp("token", "clear", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.load(ctx, password)
	if err != nil {
		return err
	}
	if _, ok := tokens[walletID]; !ok {
		return nil
	}
	delete(tokens, walletID)
	return s.save(ctx, tokens, password)
}

// Destroy 删除整个代币金库与遗留明文数据
func (s *Service) Destroy(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, store.KeyTokens); err != nil {
		return err
	}
	return s.store.Delete(ctx, store.KeyLegacyTokens)
}
