// Package vault 实现多钱包加密金库。
//
// 全部钱包记录作为一个加密信封存放在 store.KeyWallets 下，每次修改都是
// 读取、解密、修改、重新加密、整体写回。活动钱包 id 不敏感，明文存放在
// store.KeyActiveWallet 下。同一进程内的修改由互斥锁串行化；跨进程时后写者覆盖先写者。
package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"
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

const (
	maxAliasLen = 64

	defaultProbeTimeout = 8 * time.Second
	defaultConcurrency  = 4
)

// TokenCleaner 删除钱包时级联清理其代币列表
type TokenCleaner interface {
	Clear(ctx context.Context, walletID, password string) error
}

// Listing 是 List 的结果。Missing 为 true 表示金库从未写入过 (首次运行)。
type Listing struct {
	Wallets  []model.WalletRecord
	Missing  bool
	ActiveID string
}

// Service 是 WalletVault 的实现
type Service struct {
	store  store.Store
	sealer *envelope.Sealer
	tokens TokenCleaner

	clock        clock.Clock
	probeTimeout time.Duration
	concurrency  int
	metrics      *monitor.Metrics
	log          *zap.Logger

	mu sync.Mutex
}

type Option func(*Service)

func WithTokenCleaner(t TokenCleaner) Option {
	return func(s *Service) { s.tokens = t }
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithProbe 设置余额刷新时单次探测的超时与并发数
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

// NewService 构造函数
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
	s.log = logger.Named(s.log, "wallet_vault")
	return s
}

// load 读取并解密钱包列表。blob 不存在时返回 missing=true 与空列表。
func (s *Service) load(ctx context.Context, password string) (records []model.WalletRecord, missing bool, err error) {
	raw, err := s.store.Get(ctx, store.KeyWallets)
	if errors.Is(err, store.ErrNotFound) {
		return []model.WalletRecord{}, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	meta, err := s.sealer.Open(string(raw), password, &records)
	if err != nil {
		return nil, false, fmt.Errorf("open wallet vault: %w", err)
	}
	if meta.Stale {
		s.log.Warn("wallet vault data is stale", zap.Time("written_at", meta.Timestamp))
	}
	if records == nil {
		records = []model.WalletRecord{}
	}
	return records, false, nil
}

func (s *Service) save(ctx context.Context, records []model.WalletRecord, password string) error {
	ct, err := s.sealer.Seal(records, password)
	if err != nil {
		return fmt.Errorf("seal wallet vault: %w", err)
	}
	return s.store.Put(ctx, store.KeyWallets, []byte(ct))
}

func (s *Service) readActive(ctx context.Context) (string, error) {
	raw, err := s.store.Get(ctx, store.KeyActiveWallet)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (s *Service) writeActive(ctx context.Context, id string) error {
	if id == "" {
		return s.store.Delete(ctx, store.KeyActiveWallet)
	}
	return s.store.Put(ctx, store.KeyActiveWallet, []byte(id))
}

// reconcileActive 保证活动指针指向存在的记录：悬空或缺失时改指第一条记录，列表为空时清除
func (s *Service) reconcileActive(ctx context.Context, records []model.WalletRecord) (string, error) {
	active, err := s.readActive(ctx)
	if err != nil {
		return "", err
	}
	if indexOf(records, active) >= 0 || (active == "" && len(records) == 0) {
		return active, nil
	}

	next := firstID(records)
	s.log.Warn("active wallet pointer is dangling, reassigning", zap.String("stale_id", active), zap.String("new_id", next))
	if err := s.writeActive(ctx, next); err != nil {
		return "", err
	}
	return next, nil
}

func firstID(records []model.WalletRecord) string {
	if len(records) == 0 {
		return ""
	}
	return records[0].ID
}

func indexOf(records []model.WalletRecord, id string) int {
	for i := range records {
		if records[i].ID == id {
			return i
		}
	}
	return -1
}

// List 解密并返回全部钱包，同时校正活动指针
func (s *Service) List(ctx context.Context, password string) (listing *Listing, err error) {
	defer func() { s.metrics.ObserveVaultOp("wallet", "list", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	records, missing, err := s.load(ctx, password)
	if err != nil {
		return nil, err
	}
	active, err := s.reconcileActive(ctx, records)
	if err != nil {
		return nil, err
	}
	return &Listing{Wallets: records, Missing: missing, ActiveID: active}, nil
}

// Get 按 id 查找钱包
func (s *Service) Get(ctx context.Context, id, password string) (*model.WalletRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, _, err := s.load(ctx, password)
	if err != nil {
		return nil, err
	}
	i := indexOf(records, id)
	if i < 0 {
		return nil, fmt.Errorf("%w: wallet %s", errno.ErrNotFound, id)
	}
	return &records[i], nil
}

// Add 新增钱包。地址 (大小写不敏感) 已存在时返回 ErrDuplicateAddress 且金库不变；
// 金库中的第一条记录自动成为活动钱包。
func (s *Service) Add(ctx context.Context, data model.WalletData, password, alias string) (rec *model.WalletRecord, err error) {
	defer func() { s.metrics.ObserveVaultOp("wallet", "add", err) }()

	addr, err := address.Checksum(data.Address)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(data.PrivateKey) == "" {
		return nil, fmt.Errorf("%w: private key", errno.ErrMissingRequiredField)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, missing, err := s.load(ctx, password)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if strings.EqualFold(r.Address, addr) {
			return nil, fmt.Errorf("%w: %s", errno.ErrDuplicateAddress, addr)
		}
	}

	alias = validator.Sanitize(alias, maxAliasLen)
	if alias == "" {
		alias = fmt.Sprintf("Wallet %d", len(records)+1)
	}
	record := model.WalletRecord{
		ID:             uuid.NewString(),
		Address:        addr,
		PrivateKey:     data.PrivateKey,
		Mnemonic:       data.Mnemonic,
		DerivationPath: data.DerivationPath,
		Alias:          alias,
		CreatedAt:      s.clock.Now().UTC(),
		IsImported:     data.IsImported,
	}
	prev := records
	records = append(records[:len(records):len(records)], record)

	if err := s.save(ctx, records, password); err != nil {
		return nil, err
	}
	if len(records) == 1 {
		if err := s.writeActive(ctx, record.ID); err != nil {
			s.rollbackAdd(ctx, prev, missing, password)
			return nil, err
		}
	}

	s.log.Info("wallet added", zap.Object("wallet", record))
	return &record, nil
}

// rollbackAdd 活动指针写入失败后撤回新记录，使重试不会遇到 ErrDuplicateAddress
func (s *Service) rollbackAdd(ctx context.Context, prev []model.WalletRecord, missing bool, password string) {
	var err error
	if missing {
		err = s.store.Delete(ctx, store.KeyWallets)
	} else {
		err = s.save(ctx, prev, password)
	}
	if err != nil {
		s.log.Error("rollback of added wallet failed", zap.Error(err))
	}
}

// Remove 删除钱包并级联删除其代币列表；若删除的是活动钱包，活动指针改指剩余的第一条或清除。
// 活动指针先于列表写入：新指针指向的记录在新旧列表中都存在，列表写入失败时指针恢复原值。
func (s *Service) Remove(ctx context.Context, id, password string) (err error) {
	defer func() { s.metrics.ObserveVaultOp("wallet", "remove", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	records, _, err := s.load(ctx, password)
	if err != nil {
		return err
	}
	i := indexOf(records, id)
	if i < 0 {
		return fmt.Errorf("%w: wallet %s", errno.ErrNotFound, id)
	}
	removed := records[i]
	records = append(records[:i], records[i+1:]...)

	active, err := s.readActive(ctx)
	if err != nil {
		return err
	}
	next := active
	if indexOf(records, active) < 0 {
		next = firstID(records)
	}
	if next != active {
		if err := s.writeActive(ctx, next); err != nil {
			return err
		}
	}

	if err := s.save(ctx, records, password); err != nil {
		if next != active {
			if rerr := s.writeActive(ctx, active); rerr != nil {
				s.log.Error("restore active wallet pointer failed", zap.String("id", active), zap.Error(rerr))
			}
		}
		return err
	}

	if s.tokens != nil {
		if err := s.tokens.Clear(ctx, id, password); err != nil {
			return fmt.Errorf("wallet %s removed but clearing its tokens failed: %w", id, err)
		}
	}

	s.log.Info("wallet removed", zap.Object("wallet", removed))
	return nil
}

// Rename 修改别名，别名经过清洗，清洗后为空返回 ErrMissingRequiredField
func (s *Service) Rename(ctx context.Context, id, alias, password string) (err error) {
	defer func() { s.metrics.ObserveVaultOp("wallet", "rename", err) }()

	alias = validator.Sanitize(alias, maxAliasLen)
	if alias == "" {
		return fmt.Errorf("%w: alias", errno.ErrMissingRequiredField)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, _, err := s.load(ctx, password)
	if err != nil {
		return err
	}
	i := indexOf(records, id)
	if i < 0 {
		return fmt.Errorf("%w: wallet %s", errno.ErrNotFound, id)
	}
	records[i].Alias = alias
	return s.save(ctx, records, password)
}

// SetActive 设置活动钱包，id 必须存在于金库中
func (s *Service) SetActive(ctx context.Context, id, password string) (err error) {
	defer func() { s.metrics.ObserveVaultOp("wallet", "set_active", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	records, _, err := s.load(ctx, password)
	if err != nil {
		return err
	}
	if indexOf(records, id) < 0 {
		return fmt.Errorf("%w: wallet %s", errno.ErrNotFound, id)
	}
	return s.writeActive(ctx, id)
}

// Active 返回活动钱包 id。Add/Remove 的写入顺序保证指针只指向已持久化的记录，
// 回滚本身失败时由下一次 List 校正。
func (s *Service) Active(ctx context.Context) (string, bool, error) {
	id, err := s.readActive(ctx)
	if err != nil {
		return "", false, err
	}
	return id, id != "", nil
}

// ActiveWallet 返回活动钱包记录，没有活动钱包时返回 ErrNoActiveWallet
func (s *Service) ActiveWallet(ctx context.Context, password string) (*model.WalletRecord, error) {
	listing, err := s.List(ctx, password)
	if err != nil {
		return nil, err
	}
	i := indexOf(listing.Wallets, listing.ActiveID)
	if i < 0 {
		return nil, errno.ErrNoActiveWallet
	}
	return &listing.Wallets[i], nil
}

// Destroy 删除整个金库 (加密 blob 与活动指针)。会话由调用方清除。
func (s *Service) Destroy(ctx context.Context) (err error) {
	defer func() { s.metrics.ObserveVaultOp("wallet", "destroy", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, store.KeyWallets); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, store.KeyActiveWallet); err != nil {
		return err
	}
	s.log.Info("wallet vault destroyed")
	return nil
}
