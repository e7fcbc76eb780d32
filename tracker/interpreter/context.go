package interpreter

import (
	"fmt"

	"github.com/oraichain/ibc-routing/tracker/decoder"
	"github.com/oraichain/ibc-routing/tracker/store"
)

// PacketKey identifies an IBC packet.
type PacketKey struct {
	Sequence   uint64 `json:"sequence"`
	SrcChannel string `json:"src_channel"`
	DstChannel string `json:"dst_channel"`
}

func packetKeyOf(p decoder.Packet) PacketKey {
	return PacketKey{Sequence: p.Sequence, SrcChannel: p.SrcChannel, DstChannel: p.DstChannel}
}

// Matches reports whether p is the packet k identifies.
func (k PacketKey) Matches(p decoder.Packet) bool {
	return p.Matches(k.Sequence, k.SrcChannel, k.DstChannel)
}

// RecordKey addresses one persisted hop by the unique key of its table.
type RecordKey struct {
	Domain         store.Domain `json:"domain"`
	TxHash         string       `json:"tx_hash"`
	EventNonce     uint64       `json:"event_nonce,omitempty"`
	EvmChainPrefix string       `json:"evm_chain_prefix,omitempty"`
	Packet         PacketKey    `json:"packet"`
}

// Where returns the equality predicate selecting the hop.
func (k RecordKey) Where() map[string]any {
	if k.Domain == store.DomainEvm {
		return map[string]any{
			store.ColumnEventNonce:     k.EventNonce,
			store.ColumnEvmChainPrefix: k.EvmChainPrefix,
		}
	}
	return map[string]any{
		store.ColumnPacketSequence: k.Packet.Sequence,
		store.ColumnSrcChannel:     k.Packet.SrcChannel,
		store.ColumnDstChannel:     k.Packet.DstChannel,
	}
}

// Context is the correlation state an instance carries between transitions.
// Every field is captured when the previous state committed; it serialises to
// JSON for snapshots.
type Context struct {
	Origin       store.Domain `json:"origin"`
	OriginTxHash string       `json:"origin_tx_hash,omitempty"`
	// OriginKey identifies the transfer; empty until the source event is seen.
	OriginKey string `json:"origin_key,omitempty"`

	EvmChainPrefix string `json:"evm_chain_prefix,omitempty"`
	EventNonce     uint64 `json:"event_nonce,omitempty"`

	// Packet is the IBC packet the current state waits for.
	Packet             *PacketKey `json:"packet,omitempty"`
	DestinationChainID string     `json:"destination_chain_id,omitempty"`

	TxID       uint64 `json:"tx_id,omitempty"`
	BatchNonce uint64 `json:"batch_nonce,omitempty"`

	// Predecessor is the last hop persisted, finalised by the next transition.
	Predecessor *RecordKey `json:"predecessor,omitempty"`

	FailureCode    string `json:"failure_code,omitempty"`
	FailureMessage string `json:"failure_message,omitempty"`
}

// OriginKeyOf returns the origin key a start event would give its instance.
func OriginKeyOf(ev decoder.Event) (string, bool) {
	switch e := ev.(type) {
	case decoder.EvmTransferEvent:
		return evmOriginKey(e.EvmChainPrefix, e.EventNonce), true
	case decoder.TransferBackEvent:
		return primaryOriginKey(packetKeyOf(e.Forward.Packet)), true
	}
	return "", false
}

// OriginDomainOf returns the origin an instance must start with to accept ev.
func OriginDomainOf(ev decoder.Event) (store.Domain, bool) {
	switch ev.(type) {
	case decoder.EvmTransferEvent:
		return store.DomainEvm, true
	case decoder.TransferBackEvent:
		return store.DomainPrimary, true
	}
	return "", false
}

func evmOriginKey(prefix string, nonce uint64) string {
	return fmt.Sprintf("evm/%s/%d", prefix, nonce)
}

func primaryOriginKey(p PacketKey) string {
	return fmt.Sprintf("primary/%s/%s/%d", p.SrcChannel, p.DstChannel, p.Sequence)
}
