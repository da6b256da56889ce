package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Session   SessionConfig   `mapstructure:"session"`
	Envelope  EnvelopeConfig  `mapstructure:"envelope"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Probe     ProbeConfig     `mapstructure:"probe"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	HttpAddr string `mapstructure:"http_addr"`
}

type StorageConfig struct {
	Backend  string      `mapstructure:"backend"` // "bolt", "redis", "postgres" or "memory"
	Path     string      `mapstructure:"path"`    // bolt 数据文件路径
	Redis    RedisConfig `mapstructure:"redis"`
	Postgres string      `mapstructure:"postgres_dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type SessionConfig struct {
	Backend string        `mapstructure:"backend"` // "memory" or "redis"
	TTL     time.Duration `mapstructure:"ttl"`
}

type EnvelopeConfig struct {
	ScryptLogN   uint8         `mapstructure:"scrypt_log_n"`
	ScryptR      uint32        `mapstructure:"scrypt_r"`
	ScryptP      uint32        `mapstructure:"scrypt_p"`
	TokenMaxAge  time.Duration `mapstructure:"token_max_age"`
	WalletMaxAge time.Duration `mapstructure:"wallet_max_age"` // 0 表示不检查
}

type DiscoveryConfig struct {
	Threshold    int    `mapstructure:"threshold"`
	MaxAccounts  int    `mapstructure:"max_accounts"`
	PathTemplate string `mapstructure:"path_template"`
}

type ProbeConfig struct {
	RpcUrl      string        `mapstructure:"rpc_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	TxLimit     int           `mapstructure:"tx_limit"`
	Rate        float64       `mapstructure:"rate"` // 每秒请求数，<=0 表示不限速
	Burst       int           `mapstructure:"burst"`
	Concurrency int           `mapstructure:"concurrency"`
	Network     string        `mapstructure:"network"`
	Tokens      []TokenWatch  `mapstructure:"tokens"`
}

// TokenWatch 是 EthProbe 查询 balanceOf 的 ERC-20 合约列表项
type TokenWatch struct {
	Address  string `mapstructure:"address"`
	Name     string `mapstructure:"name"`
	Symbol   string `mapstructure:"symbol"`
	Decimals int    `mapstructure:"decimals"`
}

var Global Config

// Init 加载配置到 Global
func Init(cfgFile string) error {
	cfg, err := Load(cfgFile)
	if err != nil {
		return err
	}
	Global = *cfg
	return nil
}

// Load 读取配置文件与环境变量。cfgFile 为空时在 "." 和 "./config" 下查找 config.yaml。
// 环境变量使用 WALLET_ 前缀，例如 WALLET_STORAGE_BACKEND=redis。
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config") // name of config file (without extension)
		v.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// 环境变量设置
	v.SetEnvPrefix("wallet")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 设置默认值
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// Config file not found; defaults and environment variables apply
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "bolt", "redis", "postgres", "memory":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Session.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	if c.Discovery.Threshold < 1 {
		return fmt.Errorf("discovery.threshold must be >= 1, got %d", c.Discovery.Threshold)
	}
	if c.Discovery.MaxAccounts < 1 {
		return fmt.Errorf("discovery.max_accounts must be >= 1, got %d", c.Discovery.MaxAccounts)
	}
	if !strings.Contains(c.Discovery.PathTemplate, "%d") {
		return fmt.Errorf("discovery.path_template must contain %%d, got %q", c.Discovery.PathTemplate)
	}
	if c.Probe.Timeout <= 0 {
		return fmt.Errorf("probe.timeout must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "")
	v.SetDefault("app.http_addr", "127.0.0.1:8787")

	v.SetDefault("storage.backend", "bolt")
	v.SetDefault("storage.path", "wallet-vault.db")
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.prefix", "wallet-vault:")
	v.SetDefault("storage.postgres_dsn", "")

	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.ttl", 15*time.Minute)

	v.SetDefault("envelope.scrypt_log_n", 15)
	v.SetDefault("envelope.scrypt_r", 8)
	v.SetDefault("envelope.scrypt_p", 1)
	v.SetDefault("envelope.token_max_age", 365*24*time.Hour)
	v.SetDefault("envelope.wallet_max_age", time.Duration(0))

	v.SetDefault("discovery.threshold", 3)
	v.SetDefault("discovery.max_accounts", 20)
	v.SetDefault("discovery.path_template", "m/44'/60'/0'/0/%d")

	v.SetDefault("probe.rpc_url", "https://cloudflare-eth.com")
	v.SetDefault("probe.timeout", 8*time.Second)
	v.SetDefault("probe.tx_limit", 10)
	v.SetDefault("probe.rate", 5.0)
	v.SetDefault("probe.burst", 5)
	v.SetDefault("probe.concurrency", 4)
	v.SetDefault("probe.network", "ethereum")
}
