// Package session 在非持久化缓存中保存解锁密码的短期重加密副本，
// 使应用在 TTL 内无需再次输入密码即可重新打开金库。
//
// 注意：这里缓存的是密码本身 (以随机会话 token 为密钥 AES-GCM 加密，token 与密文存放在同一条目中)。
// 能读取缓存条目的人即可还原密码。这是 "保持解锁" 体验的产品取舍，
// 改为缓存派生能力令牌会改变自动解锁的可观察行为，因此未在此处加固。
package session

import (
	"context"
	"errors"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"go.uber.org/zap"

	"wallet-vault/internal/model"
	"wallet-vault/pkg/cache"
	"wallet-vault/pkg/crypto_util"
	"wallet-vault/pkg/logger"
	"wallet-vault/pkg/monitor"
	"wallet-vault/pkg/safe_random"
)

// Key 会话条目在缓存中的固定 key
const Key = "session/entry"

var aad = []byte("wallet-vault/session/v1")

// Service 是 SessionCache 的实现
type Service struct {
	cache   cache.Cache
	clock   clock.Clock
	metrics *monitor.Metrics
	log     *zap.Logger
}

type Option func(*Service)

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithMetrics(m *monitor.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService 构造函数。c 必须是进程退出即失效的缓存层。
func NewService(c cache.Cache, opts ...Option) *Service {
	s := &Service{
		cache: c,
		clock: clock.NewDefaultClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.Named(s.log, "session")
	return s
}

// Remember 生成新的会话 token 并缓存加密后的密码，失败时返回 false 而不是报错
func (s *Service) Remember(ctx context.Context, password string, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}

	raw, token, err := safe_random.NewSessionToken()
	if err != nil {
		s.log.Warn("generate session token failed", zap.Error(err))
		return false
	}
	defer crypto_util.Wipe(raw)

	enc, err := crypto_util.SealAESGCM(raw, []byte(password), aad)
	if err != nil {
		s.log.Warn("encrypt session password failed", zap.Error(err))
		return false
	}

	now := s.clock.Now()
	entry := model.SessionEntry{
		SessionToken:      token,
		EncryptedPassword: enc,
		CreatedAt:         now,
		ExpiresAt:         now.Add(ttl),
	}
	if err := s.cache.Set(ctx, Key, entry, ttl); err != nil {
		s.log.Warn("store session failed", zap.Error(err))
		return false
	}

	s.metrics.ObserveSession("remember")
	s.log.Debug("session remembered", zap.Time("expires_at", entry.ExpiresAt))
	return true
}

// load 读取未过期的条目；过期条目会被删除，与不存在同等对待
func (s *Service) load(ctx context.Context) (*model.SessionEntry, bool) {
	var entry model.SessionEntry
	if err := s.cache.Get(ctx, Key, &entry); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("read session failed", zap.Error(err))
		}
		return nil, false
	}
	if entry.Expired(s.clock.Now()) {
		s.metrics.ObserveSession("expired")
		s.Clear(ctx)
		return nil, false
	}
	return &entry, true
}

// Recall 返回缓存的密码。条目不存在、已过期或无法解密时返回 false。
func (s *Service) Recall(ctx context.Context) (string, bool) {
	entry, ok := s.load(ctx)
	if !ok {
		s.metrics.ObserveSession("recall_miss")
		return "", false
	}

	key, err := safe_random.ParseSessionToken(entry.SessionToken)
	if err != nil {
		s.log.Warn("malformed session entry, clearing", zap.Error(err))
		s.Clear(ctx)
		return "", false
	}
	defer crypto_util.Wipe(key)

	password, err := crypto_util.OpenAESGCM(key, entry.EncryptedPassword, aad)
	if err != nil {
		s.log.Warn("session entry failed authentication, clearing")
		s.Clear(ctx)
		return "", false
	}

	s.metrics.ObserveSession("recall_hit")
	return string(password), true
}

// Extend 把过期时间推迟到 now + ttl；没有有效会话时返回 false
func (s *Service) Extend(ctx context.Context, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	entry, ok := s.load(ctx)
	if !ok {
		return false
	}

	entry.ExpiresAt = s.clock.Now().Add(ttl)
	if err := s.cache.Set(ctx, Key, entry, ttl); err != nil {
		s.log.Warn("extend session failed", zap.Error(err))
		return false
	}
	s.metrics.ObserveSession("extend")
	return true
}

// Clear 无条件删除会话条目。显式锁定与删除全部钱包时必须调用。
func (s *Service) Clear(ctx context.Context) {
	if err := s.cache.Delete(ctx, Key); err != nil {
		s.log.Warn("clear session failed", zap.Error(err))
	}
	s.metrics.ObserveSession("clear")
}
