package hopstore

import (
	"strings"

	"github.com/oraichain/ibc-routing/tracker/store"
)

// linked reports whether next continues prev. One transaction can carry hops of
// several transfers (batched recv_packets, an auto-forward of many deposits), so
// a shared tx hash only narrows the candidates: the hops must also agree on the key
// they were correlated by. decided is false when either side lacks that key.
//
//	evm deposit  -> relay        event nonce and chain prefix
//	relay        -> primary      the packet the relay hop sent
//	relay        -> evm arrival  claim event nonce and chain prefix
//	primary      -> relay/cosmos the packet in the primary hop's next_* fields
func linked(prev, next store.Record) (ok, decided bool) {
	switch p := prev.(type) {
	case *store.EvmRecord:
		n, isRelay := next.(*store.RelayRecord)
		if !isRelay || p.EventNonce == 0 || n.EventNonce == 0 {
			return false, false
		}
		return p.EventNonce == n.EventNonce && samePrefix(p.EvmChainPrefix, n.EvmChainPrefix), true

	case *store.RelayRecord:
		switch n := next.(type) {
		case *store.PrimaryRecord:
			if p.PacketSequence == 0 || n.PacketSequence == 0 {
				return false, false
			}
			return samePacket(p.PacketSequence, p.SrcChannel, p.DstChannel, n.PacketSequence, n.SrcChannel, n.DstChannel), true
		case *store.EvmRecord:
			if p.EventNonce == 0 || n.EventNonce == 0 {
				return false, false
			}
			return p.EventNonce == n.EventNonce && samePrefix(p.EvmChainPrefix, n.EvmChainPrefix), true
		}

	case *store.PrimaryRecord:
		if p.NextPacketSequence == 0 {
			return false, false
		}
		switch n := next.(type) {
		case *store.RelayRecord:
			if n.PacketSequence == 0 {
				return false, false
			}
			return samePacket(p.NextPacketSequence, p.NextSrcChannel, p.NextDstChannel, n.PacketSequence, n.SrcChannel, n.DstChannel), true
		case *store.CosmosRecord:
			if n.PacketSequence == 0 {
				return false, false
			}
			return samePacket(p.NextPacketSequence, p.NextSrcChannel, p.NextDstChannel, n.PacketSequence, n.SrcChannel, n.DstChannel), true
		}
	}
	return false, false
}

// pickLinked returns the first candidate linked to record. Candidates that cannot
// be decided are only used when no candidate matched by key.
func pickLinked(candidates []store.Record, link func(store.Record) (bool, bool)) store.Record {
	var fallback store.Record
	for _, c := range candidates {
		ok, decided := link(c)
		if decided && ok {
			return c
		}
		if !decided && fallback == nil {
			fallback = c
		}
	}
	return fallback
}

// samePacket compares packet keys; a channel missing on either side is not compared.
func samePacket(seqA uint64, srcA, dstA string, seqB uint64, srcB, dstB string) bool {
	if seqA != seqB {
		return false
	}
	if srcA != "" && srcB != "" && srcA != srcB {
		return false
	}
	return dstA == "" || dstB == "" || dstA == dstB
}

// samePrefix compares stored chain prefixes; rows written without one still link by nonce.
func samePrefix(a, b string) bool {
	return a == "" || b == "" || strings.EqualFold(a, b)
}
