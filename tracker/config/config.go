package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kelseyhightower/envconfig"
)

const (
	configSubdir   = "config"
	configFileName = "routingd_config.json"

	// EnvPrefix prefixes every environment override, e.g. ROUTINGD_LOG_LEVEL.
	EnvPrefix = "ROUTINGD"
)

//go:embed default_config.json
var defaultConfigJSON []byte

func validateConfig(cfg *Config) error {
	if cfg.LogLevel < 0 || cfg.LogLevel > 5 {
		return fmt.Errorf("log level must be between 0 and 5")
	}

	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	// Storage defaults
	if cfg.DatabaseFile == "" {
		cfg.DatabaseFile = "routing.db"
	}
	if cfg.SnapshotIntervalSeconds == 0 {
		cfg.SnapshotIntervalSeconds = 30
	}

	if cfg.APIListenAddr == "" {
		cfg.APIListenAddr = ":9001"
	}

	// Timeout/recovery defaults
	if cfg.LocalHopTimeoutMs == 0 {
		cfg.LocalHopTimeoutMs = 3000
	}
	if cfg.CrossDomainTimeoutMs == 0 {
		cfg.CrossDomainTimeoutMs = 60000
	}
	if cfg.RecoverySweepIntervalMs == 0 {
		cfg.RecoverySweepIntervalMs = 1000
	}
	if cfg.StuckAfterSeconds == 0 {
		cfg.StuckAfterSeconds = 3600
	}
	if cfg.MaxRecoveryAttempts < 0 {
		return fmt.Errorf("max recovery attempts must not be negative")
	}
	if cfg.LocalHopTimeoutMs < 0 || cfg.CrossDomainTimeoutMs < 0 {
		return fmt.Errorf("hop timeouts must be positive")
	}

	if cfg.PrimaryChain.ChainID == "" {
		return fmt.Errorf("primary chain id is required")
	}
	if cfg.RelayChain.ChainID == "" {
		return fmt.Errorf("relay chain id is required")
	}

	seenChains := map[string]bool{
		cfg.PrimaryChain.ChainID: true,
		cfg.RelayChain.ChainID:   true,
	}
	for _, ch := range cfg.CosmosChains {
		if ch.ChainID == "" {
			return fmt.Errorf("cosmos chain id is required")
		}
		if seenChains[ch.ChainID] {
			return fmt.Errorf("duplicate cosmos chain %q", ch.ChainID)
		}
		seenChains[ch.ChainID] = true
	}

	seenPrefixes := make(map[string]bool)
	for _, ch := range cfg.EvmChains {
		if ch.ChainPrefix == "" {
			return fmt.Errorf("evm chain prefix is required")
		}
		if seenPrefixes[ch.ChainPrefix] {
			return fmt.Errorf("duplicate evm chain prefix %q", ch.ChainPrefix)
		}
		seenPrefixes[ch.ChainPrefix] = true
		if !common.IsHexAddress(ch.GravityContract) {
			return fmt.Errorf("evm chain %q has an invalid gravity contract address", ch.ChainPrefix)
		}
	}

	return nil
}

// applyHomeDefaults fills the directories that default to a location under the node home.
func applyHomeDefaults(cfg *Config, basePath string) {
	if cfg.DatabaseDir == "" {
		cfg.DatabaseDir = filepath.Join(basePath, "data")
	}
	if cfg.SnapshotDir == "" {
		cfg.SnapshotDir = filepath.Join(basePath, "snapshots")
	}
}

// Save writes the given config to <basePath>/config/routingd_config.json.
func Save(cfg *Config, basePath string) error {
	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	configDir := filepath.Join(basePath, configSubdir)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configDir, configFileName)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load reads the config from <basePath>/config/routingd_config.json, applies
// ROUTINGD_* environment overrides, fills defaults and validates the result.
func Load(basePath string) (Config, error) {
	configFile := filepath.Join(basePath, configSubdir, configFileName)
	data, err := os.ReadFile(filepath.Clean(configFile))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	applyHomeDefaults(&cfg, basePath)
	if err := validateConfig(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadDefaultConfig loads the default configuration from embedded JSON
func LoadDefaultConfig() (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(defaultConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal default config: %w", err)
	}
	return &cfg, nil
}
