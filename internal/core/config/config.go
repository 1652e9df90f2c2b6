package config

import (
	"time"

	redisclient "github.com/vietddude/breadwatch/internal/infra/redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server       ServerConfig       `yaml:"server"`
	Chain        ChainConfig        `yaml:"chain"`
	ENS          ChainConfig        `yaml:"ens"`
	Token        TokenConfig        `yaml:"token"`
	Pool         PoolConfig         `yaml:"pool"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	Names        NamesConfig        `yaml:"names"`
	Wallet       WalletConfig       `yaml:"wallet"`
	Redis        redisclient.Config `yaml:"redis"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ChainConfig holds settings for an EVM chain reached over JSON-RPC.
type ChainConfig struct {
	ChainID   uint64           `yaml:"id"`
	Name      string           `yaml:"name"`
	Timeout   time.Duration    `yaml:"timeout"`
	Providers []ProviderConfig `yaml:"providers"`
}

// ProviderConfig holds settings for an RPC provider.
type ProviderConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// TokenConfig describes the Bread token contract.
type TokenConfig struct {
	Address     string `yaml:"address"`
	Symbol      string `yaml:"symbol"`
	Decimals    int32  `yaml:"decimals"`
	DeployBlock uint64 `yaml:"deploy_block"` // fromBlock of the historical mint query
}

// OwnerParam selects what the pending endpoint is queried with.
type OwnerParam string

const (
	OwnerParamAddress OwnerParam = "address"
	OwnerParamAlias   OwnerParam = "alias"
)

// PoolConfig holds settings for the off-chain pool endpoint.
type PoolConfig struct {
	URL        string        `yaml:"url"`
	Interval   time.Duration `yaml:"interval"`
	Timeout    time.Duration `yaml:"timeout"`
	OwnerParam OwnerParam    `yaml:"owner_param"`
}

// SubscriptionConfig controls the live log poller.
type SubscriptionConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	ReplayBlocks uint64        `yaml:"replay_blocks"`
	HeadCacheTTL time.Duration `yaml:"head_cache_ttl"`
	MaxRange     uint64        `yaml:"max_range"`
}

// NamesConfig controls reverse name resolution.
type NamesConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Registry  string        `yaml:"registry"`
	CacheSize int           `yaml:"cache_size"`
	TTL       time.Duration `yaml:"ttl"`
}

// WalletConfig holds the signing key and the identity connected at startup.
type WalletConfig struct {
	PrivateKey     string `yaml:"private_key"`
	DefaultAddress string `yaml:"default_address"`
}
