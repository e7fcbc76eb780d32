package store

import "fmt"

// Domain names a protocol domain. It doubles as the prev_state/next_state value
// persisted on every hop and selects the table that holds the domain's hops.
type Domain string

const (
	DomainEvm     Domain = "evm"
	DomainRelay   Domain = "relay"
	DomainPrimary Domain = "primary"
	DomainCosmos  Domain = "cosmos"
)

// Domains lists every domain in path order.
var Domains = []Domain{DomainEvm, DomainRelay, DomainPrimary, DomainCosmos}

// Valid reports whether d is one of the known domains.
func (d Domain) Valid() bool {
	switch d {
	case DomainEvm, DomainRelay, DomainPrimary, DomainCosmos:
		return true
	default:
		return false
	}
}

// TableName returns the table holding hops of this domain.
func (d Domain) TableName() string {
	switch d {
	case DomainEvm:
		return "evm_state"
	case DomainRelay:
		return "relay_chain_state"
	case DomainPrimary:
		return "primary_chain_state"
	case DomainCosmos:
		return "cosmos_state"
	default:
		return ""
	}
}

// HasPacketSequence reports whether hops of this domain are keyed by an IBC packet.
func (d Domain) HasPacketSequence() bool {
	return d == DomainRelay || d == DomainPrimary || d == DomainCosmos
}

// NewRecord returns an empty model for the domain.
func NewRecord(d Domain) (Record, error) {
	switch d {
	case DomainEvm:
		return &EvmRecord{}, nil
	case DomainRelay:
		return &RelayRecord{}, nil
	case DomainPrimary:
		return &PrimaryRecord{}, nil
	case DomainCosmos:
		return &CosmosRecord{}, nil
	default:
		return nil, fmt.Errorf("unknown domain %q", string(d))
	}
}

// NewRecordSlice returns a pointer to an empty slice of the domain's model, for
// use as a gorm Find destination, together with a function flattening it.
func NewRecordSlice(d Domain) (any, func() []Record, error) {
	switch d {
	case DomainEvm:
		var rows []*EvmRecord
		return &rows, func() []Record { return toRecords(rows) }, nil
	case DomainRelay:
		var rows []*RelayRecord
		return &rows, func() []Record { return toRecords(rows) }, nil
	case DomainPrimary:
		var rows []*PrimaryRecord
		return &rows, func() []Record { return toRecords(rows) }, nil
	case DomainCosmos:
		var rows []*CosmosRecord
		return &rows, func() []Record { return toRecords(rows) }, nil
	default:
		return nil, nil, fmt.Errorf("unknown domain %q", string(d))
	}
}

func toRecords[T Record](rows []T) []Record {
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, r)
	}
	return out
}
