// Package store contains the GORM-backed SQLite models holding every observed hop
// of a tracked transfer.
//
// Database Structure (database file: routing.db):
//
//	routing.db
//	├── evm_state           (SourceChainRecord: EVM deposits and EVM-side arrivals)
//	├── relay_chain_state   (RelayChainRecord: bridge chain forward, batch and claim)
//	├── primary_chain_state (PrimaryChainRecord: primary chain receive and forward)
//	└── cosmos_state        (OtherCosmosRecord: arrivals on any other Cosmos chain)
//
// Rows are linked through prev_state/prev_tx_hash (backwards) and next_state (forwards).
package store

import (
	"gorm.io/gorm"
)

// Status of a persisted hop. A hop flips from PENDING to FINISHED exactly once,
// when its successor hop is observed.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusFinished Status = "FINISHED"
)

// Column names shared by the where/patch maps built across the tracker.
const (
	ColumnTxHash             = "tx_hash"
	ColumnStatus             = "status"
	ColumnPrevState          = "prev_state"
	ColumnPrevTxHash         = "prev_tx_hash"
	ColumnNextState          = "next_state"
	ColumnEventNonce         = "event_nonce"
	ColumnEvmChainPrefix     = "evm_chain_prefix"
	ColumnBatchNonce         = "batch_nonce"
	ColumnTxID               = "tx_id"
	ColumnDenom              = "denom"
	ColumnPacketSequence     = "packet_sequence"
	ColumnSrcChannel         = "src_channel"
	ColumnDstChannel         = "dst_channel"
	ColumnNextPacketSequence = "next_packet_sequence"
	ColumnChainID            = "chain_id"
)

// HopLink holds the fields every hop carries regardless of its domain.
type HopLink struct {
	TxHash     string `gorm:"index" json:"txHash"`     // Transaction hash on the hop's own chain
	Height     uint64 `json:"height"`                  // Block height of that transaction
	PrevState  Domain `json:"prevState"`               // Domain of the predecessor hop, empty for an origin
	PrevTxHash string `gorm:"index" json:"prevTxHash"` // Transaction hash of the predecessor hop
	NextState  Domain `json:"nextState"`               // Domain the transfer continues to, empty for a destination
	Status     Status `gorm:"index" json:"status"`     // PENDING until the successor is observed
}

// Record is implemented by every hop model.
type Record interface {
	Domain() Domain
	Link() *HopLink
	Base() *gorm.Model
}

// EvmRecord is an EVM-side hop: either a deposit into the gravity contract or the
// arrival of a batch released back to the EVM chain.
type EvmRecord struct {
	gorm.Model `json:"-"`
	HopLink
	EventNonce           uint64 `gorm:"uniqueIndex:idx_evm_nonce_prefix" json:"eventNonce"`
	EvmChainPrefix       string `gorm:"uniqueIndex:idx_evm_nonce_prefix" json:"evmChainPrefix"`
	FromAmount           string `json:"fromAmount"`
	DestinationChannelID string `json:"destinationChannelId"`
	DestinationDenom     string `json:"destinationDenom"`
	DestinationReceiver  string `json:"destinationReceiver"`
	OraiBridgeChannelID  string `json:"oraiBridgeChannelId"`
	OraiReceiver         string `json:"oraiReceiver"`
}

// TableName specifies the table name for EvmRecord.
func (EvmRecord) TableName() string { return DomainEvm.TableName() }

func (*EvmRecord) Domain() Domain      { return DomainEvm }
func (r *EvmRecord) Link() *HopLink    { return &r.HopLink }
func (r *EvmRecord) Base() *gorm.Model { return &r.Model }

// RelayRecord is a bridge chain hop. BatchNonce and EventNonce are filled in later,
// as the batch and claim sub-events of the same hop arrive.
//
// An outgoing tx id is unique per EVM chain; hops that queued nothing (tx id 0)
// are exempt. A batch releases several outgoing txs, so (batch_nonce, denom,
// evm_chain_prefix) is a lookup key shared by every hop of one batch.
type RelayRecord struct {
	gorm.Model `json:"-"`
	HopLink
	EventNonce     uint64 `gorm:"index" json:"eventNonce"`
	BatchNonce     uint64 `gorm:"index:idx_relay_batch" json:"batchNonce"`
	TxID           uint64 `gorm:"uniqueIndex:idx_relay_tx_id,where:tx_id <> 0" json:"txId"`
	EvmChainPrefix string `gorm:"uniqueIndex:idx_relay_tx_id;index:idx_relay_batch" json:"evmChainPrefix"`
	PacketSequence uint64 `gorm:"uniqueIndex:idx_relay_packet" json:"packetSequence"`
	Amount         string `json:"amount"`
	Denom          string `gorm:"index:idx_relay_batch" json:"denom"`
	Memo           string `json:"memo"`
	Receiver       string `json:"receiver"`
	Sender         string `json:"sender"`
	SrcPort        string `json:"srcPort"`
	SrcChannel     string `gorm:"uniqueIndex:idx_relay_packet" json:"srcChannel"`
	DstPort        string `json:"dstPort"`
	DstChannel     string `gorm:"uniqueIndex:idx_relay_packet" json:"dstChannel"`
}

// TableName specifies the table name for RelayRecord.
func (RelayRecord) TableName() string { return DomainRelay.TableName() }

func (*RelayRecord) Domain() Domain      { return DomainRelay }
func (r *RelayRecord) Link() *HopLink    { return &r.HopLink }
func (r *RelayRecord) Base() *gorm.Model { return &r.Model }

// PrimaryRecord is a primary chain hop. The next* fields describe the packet the
// primary chain sent onwards in the same transaction, if any.
type PrimaryRecord struct {
	gorm.Model `json:"-"`
	HopLink
	PacketSequence       uint64 `gorm:"uniqueIndex:idx_primary_packet" json:"packetSequence"`
	PacketAck            string `json:"packetAck"`
	Sender               string `json:"sender"`
	LocalReceiver        string `json:"localReceiver"`
	NextPacketSequence   uint64 `gorm:"index" json:"nextPacketSequence"`
	NextMemo             string `json:"nextMemo"`
	NextAmount           string `json:"nextAmount"`
	NextReceiver         string `json:"nextReceiver"`
	NextDestinationDenom string `json:"nextDestinationDenom"`
	NextSrcChannel       string `json:"nextSrcChannel"`
	NextDstChannel       string `json:"nextDstChannel"`
	SrcChannel           string `gorm:"uniqueIndex:idx_primary_packet" json:"srcChannel"`
	DstChannel           string `gorm:"uniqueIndex:idx_primary_packet" json:"dstChannel"`
}

// TableName specifies the table name for PrimaryRecord.
func (PrimaryRecord) TableName() string { return DomainPrimary.TableName() }

func (*PrimaryRecord) Domain() Domain      { return DomainPrimary }
func (r *PrimaryRecord) Link() *HopLink    { return &r.HopLink }
func (r *PrimaryRecord) Base() *gorm.Model { return &r.Model }

// CosmosRecord is a hop on any Cosmos chain other than the bridge and primary chains.
type CosmosRecord struct {
	gorm.Model `json:"-"`
	HopLink
	ChainID        string `gorm:"index" json:"chainId"`
	PacketSequence uint64 `gorm:"uniqueIndex:idx_cosmos_packet" json:"packetSequence"`
	PacketAck      string `json:"packetAck"`
	Amount         string `json:"amount"`
	Denom          string `json:"denom"`
	Memo           string `json:"memo"`
	Receiver       string `json:"receiver"`
	Sender         string `json:"sender"`
	SrcPort        string `json:"srcPort"`
	SrcChannel     string `gorm:"uniqueIndex:idx_cosmos_packet" json:"srcChannel"`
	DstPort        string `json:"dstPort"`
	DstChannel     string `gorm:"uniqueIndex:idx_cosmos_packet" json:"dstChannel"`
}

// TableName specifies the table name for CosmosRecord.
func (CosmosRecord) TableName() string { return DomainCosmos.TableName() }

func (*CosmosRecord) Domain() Domain      { return DomainCosmos }
func (r *CosmosRecord) Link() *HopLink    { return &r.HopLink }
func (r *CosmosRecord) Base() *gorm.Model { return &r.Model }

// Models lists every hop model, in domain order, for schema migration.
func Models() []any {
	return []any{
		&EvmRecord{},
		&RelayRecord{},
		&PrimaryRecord{},
		&CosmosRecord{},
	}
}
