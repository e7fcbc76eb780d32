package decoder

import (
	"strings"

	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/oraichain/ibc-routing/tracker/store"
)

// CosmosChainRef is a Cosmos chain reachable from the primary chain.
type CosmosChainRef struct {
	ChainID  string
	Observed bool // the tracker subscribes to this chain
}

// Registry is the static routing knowledge the decoders need to classify packets.
type Registry struct {
	// EvmPrefixes are the bridge prefixes of the EVM chains, e.g. "oraib", "eth-mainnet".
	EvmPrefixes []string
	// RelayChannel is the primary chain channel leading to the bridge chain.
	RelayChannel string
	// CosmosChannels maps a primary chain channel to the chain it leads to.
	CosmosChannels map[string]CosmosChainRef
}

// PrefixIn returns the longest EVM prefix contained in s, or "".
func (r Registry) PrefixIn(s string) string {
	best := ""
	for _, p := range r.EvmPrefixes {
		if p != "" && len(p) > len(best) && strings.Contains(s, p) {
			best = p
		}
	}
	return best
}

// HasEvmPrefix reports whether s names an EVM chain destination.
func (r Registry) HasEvmPrefix(s string) bool {
	return r.PrefixIn(s) != ""
}

// Classify decides where a packet sent from the primary chain is heading.
//
// A packet is relay-bound (and will continue to an EVM chain) when it leaves through
// the relay channel or its denom or receiver carries an EVM chain prefix. Anything
// else goes to a Cosmos chain.
func (r Registry) Classify(p Packet) Forward {
	f := Forward{Packet: p}

	prefix := r.PrefixIn(p.Data.Denom)
	if prefix == "" && isEvmReceiver(p.Data.Receiver) {
		prefix = r.PrefixIn(p.Data.Receiver)
	}

	if prefix != "" || (r.RelayChannel != "" && p.SrcChannel == r.RelayChannel) {
		f.Target = store.DomainRelay
		f.EvmChainPrefix = prefix
		return f
	}

	f.Target = store.DomainCosmos
	if ref, ok := r.CosmosChannels[p.SrcChannel]; ok {
		f.ChainID = ref.ChainID
		f.Observed = ref.Observed
	}
	return f
}

// ReceiverHRP returns the bech32 prefix of a Cosmos address, or "" if it is not one.
func ReceiverHRP(addr string) string {
	hrp, _, err := bech32.DecodeAndConvert(addr)
	if err != nil {
		return ""
	}
	return hrp
}

// isEvmReceiver reports whether addr looks like "<prefix>0x<hex>" rather than a
// bech32 address.
func isEvmReceiver(addr string) bool {
	return ReceiverHRP(addr) == "" && strings.Contains(addr, "0x")
}
