// Package app 按配置组装存储、缓存、信封、探测与各个服务，供 HTTP 服务与 CLI 共用。
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"wallet-vault/internal/service/discovery"
	"wallet-vault/internal/service/probe"
	"wallet-vault/internal/service/session"
	"wallet-vault/internal/service/token"
	"wallet-vault/internal/service/vault"
	"wallet-vault/pkg/cache"
	"wallet-vault/pkg/config"
	"wallet-vault/pkg/envelope"
	"wallet-vault/pkg/logger"
	"wallet-vault/pkg/monitor"
	"wallet-vault/pkg/store"
)

// App 持有全部服务与底层资源
type App struct {
	Config   *config.Config
	Registry *prometheus.Registry
	Metrics  *monitor.Metrics

	Store store.Store
	Cache cache.Cache
	Probe probe.ChainProbe

	Wallets   *vault.Service
	Tokens    *token.Service
	Sessions  *session.Service
	Discovery *discovery.Service

	log     *zap.Logger
	closers []func() error
}

type options struct {
	store store.Store
	cache cache.Cache
	probe probe.ChainProbe
	clock clock.Clock
	log   *zap.Logger
}

type Option func(*options)

// WithStore 使用给定存储，忽略 storage 配置
func WithStore(st store.Store) Option {
	return func(o *options) { o.store = st }
}

// WithCache 使用给定会话缓存，忽略 session.backend 配置
func WithCache(c cache.Cache) Option {
	return func(o *options) { o.cache = c }
}

// WithProbe 使用给定链上探测器，不再拨号 probe.rpc_url
func WithProbe(p probe.ChainProbe) Option {
	return func(o *options) { o.probe = p }
}

func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// New 组装应用。任何一步失败都会关闭已打开的资源。
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	o := options{clock: clock.NewDefaultClock()}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		Config:   cfg,
		Registry: prometheus.NewRegistry(),
		log:      logger.Named(o.log, "app"),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = monitor.New(a.Registry)

	var rdb *redis.Client
	redisClient := func() (*redis.Client, error) {
		if rdb != nil {
			return rdb, nil
		}
		r := cfg.Storage.Redis
		c, err := store.ConnectRedis(ctx, r.Addr, r.Password, r.DB)
		if err != nil {
			return nil, err
		}
		rdb = c
		a.closers = append(a.closers, c.Close)
		return c, nil
	}

	a.Store = o.store
	if a.Store == nil {
		if a.Store, err = openStore(cfg.Storage, redisClient); err != nil {
			return nil, err
		}
		// redis 客户端由 redisClient 统一关闭
		if cfg.Storage.Backend != "redis" {
			a.closers = append(a.closers, a.Store.Close)
		}
	}

	a.Cache = o.cache
	if a.Cache == nil {
		switch cfg.Session.Backend {
		case "redis":
			c, err := redisClient()
			if err != nil {
				return nil, err
			}
			a.Cache = cache.NewRedisCache(c, cfg.Storage.Redis.Prefix)
		default:
			a.Cache = cache.NewMemoryCache(cfg.Session.TTL, time.Minute)
		}
	}

	a.Probe = o.probe
	if a.Probe == nil {
		p, err := probe.DialEthProbe(ctx, cfg.Probe)
		if err != nil {
			return nil, err
		}
		a.Probe = p
		a.closers = append(a.closers, func() error { p.Close(); return nil })
	}

	sealer, err := envelope.New(
		envelope.WithKDFParams(envelope.KDFParams{
			LogN: cfg.Envelope.ScryptLogN,
			R:    cfg.Envelope.ScryptR,
			P:    cfg.Envelope.ScryptP,
		}),
		envelope.WithClock(o.clock),
	)
	if err != nil {
		return nil, fmt.Errorf("envelope: %w", err)
	}

	a.Tokens = token.NewService(a.Store, sealer.ForMaxAge(cfg.Envelope.TokenMaxAge),
		token.WithClock(o.clock),
		token.WithProbe(cfg.Probe.Timeout, cfg.Probe.Concurrency),
		token.WithMetrics(a.Metrics),
		token.WithLogger(o.log),
	)
	a.Wallets = vault.NewService(a.Store, sealer.ForMaxAge(cfg.Envelope.WalletMaxAge),
		vault.WithTokenCleaner(a.Tokens),
		vault.WithClock(o.clock),
		vault.WithProbe(cfg.Probe.Timeout, cfg.Probe.Concurrency),
		vault.WithMetrics(a.Metrics),
		vault.WithLogger(o.log),
	)
	a.Sessions = session.NewService(a.Cache,
		session.WithClock(o.clock),
		session.WithMetrics(a.Metrics),
		session.WithLogger(o.log),
	)

	runner := probe.NewRunner(a.Probe, cfg.Probe.Timeout, cfg.Probe.TxLimit,
		probe.WithMetrics(a.Metrics),
		probe.WithLogger(o.log),
	)
	a.Discovery = discovery.NewService(runner,
		discovery.WithLimits(cfg.Discovery.Threshold, cfg.Discovery.MaxAccounts),
		discovery.WithPathTemplate(cfg.Discovery.PathTemplate),
		discovery.WithConcurrency(cfg.Probe.Concurrency),
		discovery.WithMetrics(a.Metrics),
		discovery.WithLogger(o.log),
	)

	a.log.Info("app initialized",
		zap.String("storage", describeStore(cfg.Storage.Backend, o.store != nil)),
		zap.String("session", cfg.Session.Backend))
	return a, nil
}

func openStore(cfg config.StorageConfig, redisClient func() (*redis.Client, error)) (store.Store, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "redis":
		c, err := redisClient()
		if err != nil {
			return nil, err
		}
		return store.NewRedisStore(c, cfg.Redis.Prefix), nil
	case "postgres":
		db, err := store.ConnectPostgres(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		return store.NewSQLStore(db)
	default:
		return store.OpenBolt(cfg.Path)
	}
}

func describeStore(backend string, injected bool) string {
	if injected {
		return "injected"
	}
	return backend
}

// Close 逆序释放资源
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
