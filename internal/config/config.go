package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level lotkeep.yaml configuration.
type Config struct {
	Data      DataConfig       `yaml:"data"`
	Chain     ChainConfig      `yaml:"chain"`
	Prices    PriceConfig      `yaml:"prices"`
	Exchanges []ExchangeConfig `yaml:"exchanges,omitempty"`
	Notify    NotifyConfig     `yaml:"notify,omitempty"`
	Log       LogConfig        `yaml:"log"`
}

// NotifyConfig points sync notifications at a webhook.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url,omitempty"`
}

// DataConfig locates the ledger database and its sidecar files.
type DataConfig struct {
	Dir string `yaml:"dir"`
}

// ChainConfig points at the RPC endpoint used for reconciliation.
type ChainConfig struct {
	RPCURL  string `yaml:"rpc_url"`
	Timeout string `yaml:"timeout"` // Go duration string
}

// PriceConfig selects the price oracle.
type PriceConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key,omitempty"`
}

// ExchangeConfig holds credentials for one exchange client.
type ExchangeConfig struct {
	Name      string `yaml:"name"`
	APIKey    string `yaml:"api_key,omitempty"`
	APISecret string `yaml:"api_secret,omitempty"`
	// NoDepositHistory marks exchanges whose API cannot report completed
	// deposits.
	NoDepositHistory bool `yaml:"no_deposit_history,omitempty"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads a lotkeep.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new ledger.
func Default(dataDir string) *Config {
	return &Config{
		Data: DataConfig{
			Dir: dataDir,
		},
		Chain: ChainConfig{
			RPCURL:  "https://api.mainnet-beta.solana.com",
			Timeout: "30s",
		},
		Prices: PriceConfig{
			Provider: "coingecko",
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// DefaultPath returns the config path inside dataDir.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "lotkeep.yaml")
}
