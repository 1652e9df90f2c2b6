package config

import (
	"os"
	"testing"
	"time"
)

const minimalConfig = `
token:
  address: "0x1111111111111111111111111111111111111111"
chain:
  id: 8453
  providers:
    - name: primary
      url: ${TEST_RPC_URL}
`

func TestLoad_EnvSubstitution(t *testing.T) {
	os.Setenv("TEST_RPC_URL", "http://localhost:8545")
	defer os.Unsetenv("TEST_RPC_URL")

	tmpFile, err := os.CreateTemp("", "config_*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write([]byte(minimalConfig)); err != nil {
		t.Fatalf("Failed to write to temp file: %v", err)
	}
	tmpFile.Close()

	cfg, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Chain.Providers[0].URL != "http://localhost:8545" {
		t.Errorf("Expected URL http://localhost:8545, got %s", cfg.Chain.Providers[0].URL)
	}
}

func TestParse_Defaults(t *testing.T) {
	os.Setenv("TEST_RPC_URL", "http://localhost:8545")
	defer os.Unsetenv("TEST_RPC_URL")

	cfg, err := Parse([]byte(minimalConfig))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Pool.Interval != 5*time.Second {
		t.Errorf("expected 5s pool interval, got %v", cfg.Pool.Interval)
	}
	if cfg.Pool.OwnerParam != OwnerParamAddress {
		t.Errorf("expected address owner param, got %s", cfg.Pool.OwnerParam)
	}
	if cfg.Token.Decimals != 18 {
		t.Errorf("expected 18 decimals, got %d", cfg.Token.Decimals)
	}
	if cfg.Names.Registry != DefaultENSRegistry {
		t.Errorf("unexpected registry %s", cfg.Names.Registry)
	}
}

func TestParse_Durations(t *testing.T) {
	content := minimalConfig + `
pool:
  url: https://pool.example
  interval: 2s
  owner_param: alias
subscription:
  poll_interval: 750ms
`
	cfg, err := Parse([]byte(content))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Pool.Interval != 2*time.Second {
		t.Errorf("expected 2s, got %v", cfg.Pool.Interval)
	}
	if cfg.Subscription.PollInterval != 750*time.Millisecond {
		t.Errorf("expected 750ms, got %v", cfg.Subscription.PollInterval)
	}
	if cfg.Pool.OwnerParam != OwnerParamAlias {
		t.Errorf("expected alias owner param, got %s", cfg.Pool.OwnerParam)
	}
}

func TestParse_Validation(t *testing.T) {
	tests := map[string]string{
		"missing token": `
chain:
  providers: [{name: a, url: http://x}]
`,
		"bad token": `
token: {address: nope}
chain:
  providers: [{name: a, url: http://x}]
`,
		"no providers": `
token: {address: "0x1111111111111111111111111111111111111111"}
`,
		"bad owner param": `
token: {address: "0x1111111111111111111111111111111111111111"}
chain:
  providers: [{name: a, url: http://x}]
pool: {owner_param: ens}
`,
	}

	for name, content := range tests {
		if _, err := Parse([]byte(content)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}
