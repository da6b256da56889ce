// Package discovery 实现 BIP-44 账户发现。
//
// 对一个助记词依次派生 m/44'/60'/0'/0/i 并探测链上活动，连续 threshold 个无活动账户
// 或达到 maxAccounts 时停止。这是启发式规则：停止点之后的休眠账户不会被发现，
// 需要时由用户手动按索引导入 (Derive)。
package discovery

import (
	"context"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"wallet-vault/internal/model"
	"wallet-vault/internal/service/probe"
	"wallet-vault/pkg/address"
	"wallet-vault/pkg/bip32"
	"wallet-vault/pkg/bip39"
	"wallet-vault/pkg/logger"
	"wallet-vault/pkg/monitor"
)

const (
	DefaultPathTemplate = "m/44'/60'/0'/0/%d"
	DefaultThreshold    = 3
	DefaultMaxAccounts  = 20

	defaultConcurrency = 2
)

// Result 一次发现的结果：Accounts 为全部被探测的账户 (按索引递增)，Active 为其中有活动的子集
type Result struct {
	Accounts []model.DiscoveredAccount
	Active   []model.DiscoveredAccount
	// ProbeFailures 探测失败 (按无活动处理) 的账户数
	ProbeFailures int
}

// BatchResult DiscoverAll 中单个助记词的结果
type BatchResult struct {
	Result *Result
	Err    error
}

// Service 是 AccountDiscoverer 的实现
type Service struct {
	runner    *probe.Runner
	mnemonics *bip39.MnemonicService
	ethGen    *address.ETHGenerator

	pathTemplate string
	threshold    int
	maxAccounts  int
	concurrency  int

	metrics *monitor.Metrics
	log     *zap.Logger
}

type Option func(*Service)

// WithLimits 设置连续无活动阈值与最多探测的账户数，非正数保持默认值
func WithLimits(threshold, maxAccounts int) Option {
	return func(s *Service) {
		if threshold > 0 {
			s.threshold = threshold
		}
		if maxAccounts > 0 {
			s.maxAccounts = maxAccounts
		}
	}
}

// WithPathTemplate 设置派生路径模板，必须包含一个 %d
func WithPathTemplate(tpl string) Option {
	return func(s *Service) {
		if tpl != "" {
			s.pathTemplate = tpl
		}
	}
}

// WithConcurrency DiscoverAll 同时处理的助记词数量
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithMetrics(m *monitor.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService runner 负责单次探测的超时与错误归类
func NewService(runner *probe.Runner, opts ...Option) *Service {
	s := &Service{
		runner:       runner,
		mnemonics:    bip39.NewMnemonicService(),
		ethGen:       address.NewETHGenerator(),
		pathTemplate: DefaultPathTemplate,
		threshold:    DefaultThreshold,
		maxAccounts:  DefaultMaxAccounts,
		concurrency:  defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.Named(s.log, "discovery")
	return s
}

// keyring 缓存一个助记词的主密钥，逐个索引派生
type keyring struct {
	s      *Service
	wallet *bip32.Wallet
}

func (s *Service) open(mnemonic string) (*keyring, error) {
	m, err := s.mnemonics.Parse(mnemonic)
	if err != nil {
		return nil, err
	}
	seed := s.mnemonics.MnemonicToSeed(m, "")
	defer clear(seed)

	w, err := bip32.NewMasterKeyFromSeed(seed, nil)
	if err != nil {
		return nil, err
	}
	return &keyring{s: s, wallet: w}, nil
}

func (k *keyring) derive(index uint32) (model.DiscoveredAccount, error) {
	path := bip32.FormatPath(k.s.pathTemplate, index)
	key, err := k.wallet.DerivePath(path)
	if err != nil {
		return model.DiscoveredAccount{}, fmt.Errorf("derive %s: %w", path, err)
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return model.DiscoveredAccount{}, fmt.Errorf("derive %s: %w", path, err)
	}
	addr, err := k.s.ethGen.FromECPubKey(priv.PubKey())
	if err != nil {
		return model.DiscoveredAccount{}, err
	}
	return model.DiscoveredAccount{
		Index:          index,
		Address:        addr,
		PrivateKey:     hex.EncodeToString(priv.Serialize()),
		DerivationPath: path,
	}, nil
}

// Derive 按索引派生单个账户，不做链上探测
func (s *Service) Derive(mnemonic string, index uint32) (*model.DiscoveredAccount, error) {
	k, err := s.open(mnemonic)
	if err != nil {
		return nil, err
	}
	acc, err := k.derive(index)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// Discover 从索引 0 开始顺序派生并探测。助记词无效时在任何探测之前返回 errno.ErrInvalidMnemonic。
// 索引 0 总会被探测并包含在结果中；探测失败或超时的账户按无活动处理。
func (s *Service) Discover(ctx context.Context, mnemonic string) (*Result, error) {
	k, err := s.open(mnemonic)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	inactiveRun := 0
	for i := 0; i < s.maxAccounts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		acc, err := k.derive(uint32(i))
		if err != nil {
			return nil, err
		}

		act := s.runner.Activity(ctx, acc.Address)
		acc.HasActivity = act.HasActivity
		acc.Balance = act.Balance
		acc.TransactionCount = act.TransactionCount
		acc.TokenCount = len(act.Tokens)
		acc.ProbeFailures = act.Failures
		if act.Failures > 0 {
			res.ProbeFailures++
		}

		res.Accounts = append(res.Accounts, acc)
		s.metrics.ObserveDiscovered(acc.HasActivity)

		if acc.HasActivity {
			res.Active = append(res.Active, acc)
			inactiveRun = 0
			continue
		}
		inactiveRun++
		if inactiveRun >= s.threshold {
			break
		}
	}

	s.log.Info("discovery finished",
		zap.Int("probed", len(res.Accounts)),
		zap.Int("active", len(res.Active)),
		zap.Int("probe_failures", res.ProbeFailures))
	return res, nil
}

// DiscoverAll 并发处理多个相互独立的助记词，结果顺序与输入一致。
// 单个助记词失败只记录在对应的 BatchResult 中。
func (s *Service) DiscoverAll(ctx context.Context, mnemonics []string) []BatchResult {
	results := make([]BatchResult, len(mnemonics))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, m := range mnemonics {
		g.Go(func() error {
			res, err := s.Discover(ctx, m)
			results[i] = BatchResult{Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// GenerateWallet 生成新助记词 (bitSize 为 128 或 256) 并派生索引 0 的账户
func (s *Service) GenerateWallet(bitSize int) (model.WalletData, error) {
	mnemonic, err := s.mnemonics.GenerateMnemonic(bitSize)
	if err != nil {
		return model.WalletData{}, err
	}
	acc, err := s.Derive(mnemonic, 0)
	if err != nil {
		return model.WalletData{}, err
	}
	data := ToWalletData(*acc, mnemonic)
	data.IsImported = false
	return data, nil
}

// ToWalletData 把发现的账户转换为导入金库用的 WalletData
func ToWalletData(acc model.DiscoveredAccount, mnemonic string) model.WalletData {
	return model.WalletData{
		Address:        acc.Address,
		PrivateKey:     acc.PrivateKey,
		Mnemonic:       bip39.Normalize(mnemonic),
		DerivationPath: acc.DerivationPath,
		IsImported:     true,
	}
}
