package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/breadwatch/internal/core/domain"
)

// DefaultENSRegistry is the ENS registry address on Ethereum mainnet.
const DefaultENSRegistry = "0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e"

// DefaultPoolURL is the public pool endpoint reporting pending bread.
const DefaultPoolURL = "https://pool.mainnet.rpc.buidlguidl.com:48546"

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML content, expanding environment variables first.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Chain.Timeout == 0 {
		cfg.Chain.Timeout = 10 * time.Second
	}
	if cfg.ENS.Timeout == 0 {
		cfg.ENS.Timeout = 10 * time.Second
	}
	if cfg.ENS.ChainID == 0 {
		cfg.ENS.ChainID = 1
	}
	if cfg.Token.Decimals == 0 {
		cfg.Token.Decimals = domain.DefaultDecimals
	}
	if cfg.Token.Symbol == "" {
		cfg.Token.Symbol = "BGBRD"
	}
	if cfg.Pool.URL == "" {
		cfg.Pool.URL = DefaultPoolURL
	}
	if cfg.Pool.Interval == 0 {
		cfg.Pool.Interval = 5 * time.Second
	}
	if cfg.Pool.Timeout == 0 {
		cfg.Pool.Timeout = 10 * time.Second
	}
	if cfg.Pool.OwnerParam == "" {
		cfg.Pool.OwnerParam = OwnerParamAddress
	}
	if cfg.Subscription.PollInterval == 0 {
		cfg.Subscription.PollInterval = 4 * time.Second
	}
	if cfg.Subscription.ReplayBlocks == 0 {
		cfg.Subscription.ReplayBlocks = 64
	}
	if cfg.Subscription.HeadCacheTTL == 0 {
		cfg.Subscription.HeadCacheTTL = 2 * time.Second
	}
	if cfg.Subscription.MaxRange == 0 {
		cfg.Subscription.MaxRange = 2000
	}
	if cfg.Names.Registry == "" {
		cfg.Names.Registry = DefaultENSRegistry
	}
	if cfg.Names.CacheSize == 0 {
		cfg.Names.CacheSize = 1024
	}
	if cfg.Names.TTL == 0 {
		cfg.Names.TTL = time.Hour
	}
}

// Validate checks the settings that have no sensible default.
func (c *AppConfig) Validate() error {
	if c.Token.Address == "" {
		return fmt.Errorf("token.address is required")
	}
	if _, err := domain.ParseAddress(c.Token.Address); err != nil {
		return fmt.Errorf("token.address: %w", err)
	}
	if len(c.Chain.Providers) == 0 {
		return fmt.Errorf("chain.providers: at least one provider is required")
	}
	switch c.Pool.OwnerParam {
	case OwnerParamAddress, OwnerParamAlias:
	default:
		return fmt.Errorf("pool.owner_param: unknown value %q", c.Pool.OwnerParam)
	}
	if c.Wallet.DefaultAddress != "" {
		if _, err := domain.ParseAddress(c.Wallet.DefaultAddress); err != nil {
			return fmt.Errorf("wallet.default_address: %w", err)
		}
	}
	return nil
}
