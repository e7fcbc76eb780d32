package config

import (
	"strings"
	"time"
)

type Config struct {
	// Log Config
	LogLevel   int    `json:"log_level" envconfig:"LOG_LEVEL"`     // e.g., 0 = debug, 1 = info, etc.
	LogFormat  string `json:"log_format" envconfig:"LOG_FORMAT"`   // "json" or "console"
	LogSampler bool   `json:"log_sampler" envconfig:"LOG_SAMPLER"` // if true, samples logs (e.g., 1 in 5)

	// Storage Config
	DatabaseDir             string `json:"database_dir" envconfig:"DATABASE_DIR"`                           // Directory of the SQLite file (default: <home>/data)
	DatabaseFile            string `json:"database_file" envconfig:"DATABASE_FILE"`                         // SQLite file name (default: routing.db)
	SnapshotDir             string `json:"snapshot_dir" envconfig:"SNAPSHOT_DIR"`                           // One JSON file per live interpreter (default: <home>/snapshots)
	SnapshotIntervalSeconds int    `json:"snapshot_interval_seconds" envconfig:"SNAPSHOT_INTERVAL_SECONDS"` // How often live interpreters are snapshotted (default: 30)

	// API Config
	APIListenAddr string `json:"api_listen_addr" envconfig:"API_LISTEN_ADDR"` // HTTP listen address (default: :9001)

	// Timeout/Recovery Config
	LocalHopTimeoutMs       int `json:"local_hop_timeout_ms" envconfig:"LOCAL_HOP_TIMEOUT_MS"`             // Deadline for chain-local hops (default: 3000)
	CrossDomainTimeoutMs    int `json:"cross_domain_timeout_ms" envconfig:"CROSS_DOMAIN_TIMEOUT_MS"`       // Deadline for hops awaiting bridge relay (default: 60000)
	MaxRecoveryAttempts     int `json:"max_recovery_attempts" envconfig:"MAX_RECOVERY_ATTEMPTS"`           // Empty searches before an interpreter fails, 0 = unbounded (default: 20)
	RecoverySweepIntervalMs int `json:"recovery_sweep_interval_ms" envconfig:"RECOVERY_SWEEP_INTERVAL_MS"` // How often expired deadlines are swept (default: 1000)
	StuckAfterSeconds       int `json:"stuck_after_seconds" envconfig:"STUCK_AFTER_SECONDS"`               // Age after which a PENDING tail is reported as stuck (default: 3600)

	// Chains
	PrimaryChain CosmosChainConfig   `json:"primary_chain" ignored:"true"` // The primary Cosmos chain
	RelayChain   CosmosChainConfig   `json:"relay_chain" ignored:"true"`   // The bridge chain between EVM chains and the primary chain
	CosmosChains []CosmosChainConfig `json:"cosmos_chains" ignored:"true"` // Other Cosmos chains reached from the primary chain
	EvmChains    []EvmChainConfig    `json:"evm_chains" ignored:"true"`    // EVM chains with a gravity contract
}

// CosmosChainConfig describes one Cosmos chain the tracker talks to.
type CosmosChainConfig struct {
	ChainID string `json:"chain_id"`          // e.g. Oraichain
	RPCURL  string `json:"rpc_url,omitempty"` // Tendermint RPC endpoint, also used for the websocket

	// Channel on the primary chain leading to this chain. For the relay chain it
	// is the channel the primary chain uses to send back to the bridge.
	Channel string `json:"channel,omitempty"`
}

// EvmChainConfig describes one EVM chain with a gravity bridge contract.
type EvmChainConfig struct {
	ChainPrefix     string `json:"chain_prefix"`      // Bridge prefix of the chain, e.g. oraib or eth-mainnet
	WsURL           string `json:"ws_url,omitempty"`  // Websocket endpoint for log subscription
	RPCURL          string `json:"rpc_url,omitempty"` // HTTP endpoint for receipts (defaults to WsURL)
	GravityContract string `json:"gravity_contract"`  // Address of the gravity contract
}

// EvmPrefixes returns the configured EVM chain prefixes.
func (c *Config) EvmPrefixes() []string {
	prefixes := make([]string, 0, len(c.EvmChains))
	for _, ch := range c.EvmChains {
		if ch.ChainPrefix != "" {
			prefixes = append(prefixes, ch.ChainPrefix)
		}
	}
	return prefixes
}

// EvmChain returns the EVM chain with the given prefix.
func (c *Config) EvmChain(prefix string) (EvmChainConfig, bool) {
	for _, ch := range c.EvmChains {
		if strings.EqualFold(ch.ChainPrefix, prefix) {
			return ch, true
		}
	}
	return EvmChainConfig{}, false
}

// CosmosChain returns a configured Cosmos chain (primary, relay or other) by chain id.
func (c *Config) CosmosChain(chainID string) (CosmosChainConfig, bool) {
	if chainID == c.PrimaryChain.ChainID {
		return c.PrimaryChain, true
	}
	if chainID == c.RelayChain.ChainID {
		return c.RelayChain, true
	}
	for _, ch := range c.CosmosChains {
		if ch.ChainID == chainID {
			return ch, true
		}
	}
	return CosmosChainConfig{}, false
}

// CosmosChainForChannel returns the chain reached through the given primary chain channel.
func (c *Config) CosmosChainForChannel(channel string) (CosmosChainConfig, bool) {
	for _, ch := range c.CosmosChains {
		if ch.Channel == channel {
			return ch, true
		}
	}
	return CosmosChainConfig{}, false
}

func (c *Config) LocalHopTimeout() time.Duration {
	return time.Duration(c.LocalHopTimeoutMs) * time.Millisecond
}

func (c *Config) CrossDomainTimeout() time.Duration {
	return time.Duration(c.CrossDomainTimeoutMs) * time.Millisecond
}

func (c *Config) RecoverySweepInterval() time.Duration {
	return time.Duration(c.RecoverySweepIntervalMs) * time.Millisecond
}

func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalSeconds) * time.Second
}

func (c *Config) StuckAfter() time.Duration {
	return time.Duration(c.StuckAfterSeconds) * time.Second
}
