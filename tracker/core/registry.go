package core

import (
	"github.com/oraichain/ibc-routing/tracker/config"
	"github.com/oraichain/ibc-routing/tracker/decoder"
)

// RegistryFromConfig builds the routing knowledge the decoders need. A Cosmos
// chain is observed only when it has an RPC endpoint to subscribe to.
func RegistryFromConfig(cfg config.Config) decoder.Registry {
	reg := decoder.Registry{
		EvmPrefixes:    cfg.EvmPrefixes(),
		RelayChannel:   cfg.RelayChain.Channel,
		CosmosChannels: make(map[string]decoder.CosmosChainRef, len(cfg.CosmosChains)),
	}
	for _, ch := range cfg.CosmosChains {
		if ch.Channel == "" {
			continue
		}
		reg.CosmosChannels[ch.Channel] = decoder.CosmosChainRef{
			ChainID:  ch.ChainID,
			Observed: ch.RPCURL != "",
		}
	}
	return reg
}
