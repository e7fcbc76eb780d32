package decoder

import (
	transfertypes "github.com/cosmos/ibc-go/v10/modules/apps/transfer/types"
	"github.com/oraichain/ibc-routing/tracker/store"
)

// Kind tags each event variant.
type Kind string

const (
	KindEvmTransfer      Kind = "evm_transfer"
	KindEvmBatchExecuted Kind = "evm_batch_executed"
	KindAutoForward      Kind = "auto_forward"
	KindRecvPacket       Kind = "recv_packet"
	KindTransferBack     Kind = "transfer_back"
	KindAckPacket        Kind = "ack_packet"
	KindBatchCreated     Kind = "batch_created"
	KindBatchClaim       Kind = "batch_claim"
)

// Event is a decoded, correlation-ready chain event.
type Event interface {
	Kind() Kind
	Origin() Source
}

// Source says where and in which transaction an event was observed.
type Source struct {
	Domain  store.Domain
	ChainID string
	TxHash  string
	Height  uint64
}

func (s Source) Origin() Source { return s }

// Packet is an IBC packet as seen in send/recv/ack events.
type Packet struct {
	Sequence   uint64
	SrcPort    string
	SrcChannel string
	DstPort    string
	DstChannel string
	Data       transfertypes.FungibleTokenPacketData
}

// Matches reports whether p is the packet identified by (sequence, src, dst).
func (p Packet) Matches(sequence uint64, srcChannel, dstChannel string) bool {
	return p.Sequence == sequence && p.SrcChannel == srcChannel && p.DstChannel == dstChannel
}

// Forward is a packet sent onwards in the same transaction that received one,
// classified by where it is heading.
type Forward struct {
	Packet Packet
	Target store.Domain // DomainRelay (on to an EVM chain) or DomainCosmos
	// ChainID of the destination Cosmos chain, when known.
	ChainID string
	// Observed is true when the destination chain has its own subscription, so its
	// recv_packet can be awaited directly instead of the ack on the primary chain.
	Observed bool
	// EvmChainPrefix is set for relay-bound packets.
	EvmChainPrefix string
}

// EvmTransferEvent is a gravity SendToCosmosEvent: a deposit on an EVM chain.
type EvmTransferEvent struct {
	Source
	EventNonce     uint64
	EvmChainPrefix string
	TokenContract  string
	Sender         string
	Amount         string
	Destination    Route
}

func (EvmTransferEvent) Kind() Kind { return KindEvmTransfer }

// EvmBatchExecutedEvent is a gravity TransactionBatchExecutedEvent: a batch
// released on the EVM chain.
type EvmBatchExecutedEvent struct {
	Source
	BatchNonce     uint64
	EventNonce     uint64
	EvmChainPrefix string
	TokenContract  string
}

func (EvmBatchExecutedEvent) Kind() Kind { return KindEvmBatchExecuted }

// AutoForwardEvent is the bridge chain executing a deposit and forwarding it over IBC.
type AutoForwardEvent struct {
	Source
	EventNonce     uint64
	EvmChainPrefix string
	Packet         Packet
}

func (AutoForwardEvent) Kind() Kind { return KindAutoForward }

// RecvPacketEvent is a chain receiving an IBC packet, with the acknowledgement it
// wrote and whatever it sent onwards in the same transaction.
type RecvPacketEvent struct {
	Source
	Packet     Packet
	Ack        string
	AckSuccess bool
	Forward    *Forward
	// Bridge chain only: the outgoing EVM transfer created for this packet.
	OutgoingTxID   uint64
	EvmChainPrefix string
}

func (RecvPacketEvent) Kind() Kind { return KindRecvPacket }

// TransferBackEvent is the primary chain sending value back towards a remote chain
// without having received it in the same transaction. It starts a new transfer.
type TransferBackEvent struct {
	Source
	Sender  string
	Forward Forward
}

func (TransferBackEvent) Kind() Kind { return KindTransferBack }

// AckPacketEvent is the primary chain processing the acknowledgement of a packet it sent.
type AckPacketEvent struct {
	Source
	Packet  Packet
	Success bool
	Error   string
}

func (AckPacketEvent) Kind() Kind { return KindAckPacket }

// BatchCreatedEvent is the bridge chain grouping outgoing transfers into a batch.
type BatchCreatedEvent struct {
	Source
	BatchNonce     uint64
	TxIDs          []uint64
	EvmChainPrefix string
	TokenContract  string
}

func (BatchCreatedEvent) Kind() Kind { return KindBatchCreated }

// Contains reports whether the batch includes the outgoing transfer id.
func (e BatchCreatedEvent) Contains(txID uint64) bool {
	for _, id := range e.TxIDs {
		if id == txID {
			return true
		}
	}
	return false
}

// BatchClaimEvent is the bridge chain attesting that a batch was executed on the EVM chain.
type BatchClaimEvent struct {
	Source
	BatchNonce     uint64
	EventNonce     uint64
	EvmChainPrefix string
	TokenContract  string
}

func (BatchClaimEvent) Kind() Kind { return KindBatchClaim }
