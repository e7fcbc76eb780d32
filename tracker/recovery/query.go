// Package recovery compensates for missed push notifications: when an interpreter
// waits past its deadline, the historical transaction index of the chain it waits
// on is searched and the results are replayed through the same decoders and
// transitions as live events.
package recovery

import (
	"fmt"
	"strings"

	channeltypes "github.com/cosmos/ibc-go/v10/modules/core/04-channel/types"

	"github.com/oraichain/ibc-routing/tracker/decoder"
	"github.com/oraichain/ibc-routing/tracker/interpreter"
	"github.com/oraichain/ibc-routing/tracker/store"
)

// Search is a historical transaction search on one chain.
type Search struct {
	Domain  store.Domain
	ChainID string // only set for DomainCosmos
	Query   string // CometBFT tx_search query
}

// SearchFor builds the search that finds the event an interpreter in state is
// waiting for. It returns false for states that cannot be recovered by searching.
func SearchFor(state interpreter.State, c interpreter.Context) (Search, bool) {
	switch state {
	case interpreter.StateAwaitingRelayForward:
		if c.Predecessor != nil && c.Predecessor.Domain == store.DomainEvm {
			return Search{
				Domain: store.DomainRelay,
				Query:  typedEq(decoder.EventTypeAutoForward, decoder.AttrKeyNonce, c.EventNonce),
			}, true
		}
		if c.Packet == nil {
			return Search{}, false
		}
		return Search{Domain: store.DomainRelay, Query: packetQuery(channeltypes.EventTypeRecvPacket, *c.Packet)}, true

	case interpreter.StateAwaitingPrimaryRecv:
		if c.Packet == nil {
			return Search{}, false
		}
		return Search{Domain: store.DomainPrimary, Query: packetQuery(channeltypes.EventTypeRecvPacket, *c.Packet)}, true

	case interpreter.StateAwaitingRelayBatch:
		if c.TxID == 0 {
			return Search{}, false
		}
		return Search{
			Domain: store.DomainRelay,
			Query:  fmt.Sprintf("%s.%s CONTAINS '%d'", decoder.EventTypeBatchCreated, decoder.AttrKeyBatchTxIDs, c.TxID),
		}, true

	case interpreter.StateAwaitingRelayClaim:
		return Search{
			Domain: store.DomainRelay,
			Query:  typedEq(decoder.EventTypeBatchClaim, decoder.AttrKeyBatchNonce, c.BatchNonce),
		}, true

	case interpreter.StateAwaitingCosmosRecv:
		if c.Packet == nil || c.DestinationChainID == "" {
			return Search{}, false
		}
		return Search{
			Domain:  store.DomainCosmos,
			ChainID: c.DestinationChainID,
			Query:   packetQuery(channeltypes.EventTypeRecvPacket, *c.Packet),
		}, true

	case interpreter.StateAwaitingPrimaryAck:
		if c.Packet == nil {
			return Search{}, false
		}
		return Search{Domain: store.DomainPrimary, Query: packetQuery(channeltypes.EventTypeAcknowledgePacket, *c.Packet)}, true
	}
	return Search{}, false
}

func packetQuery(eventType string, p interpreter.PacketKey) string {
	return strings.Join([]string{
		fmt.Sprintf("%s.%s='%d'", eventType, channeltypes.AttributeKeySequence, p.Sequence),
		fmt.Sprintf("%s.%s='%s'", eventType, channeltypes.AttributeKeySrcChannel, p.SrcChannel),
		fmt.Sprintf("%s.%s='%s'", eventType, channeltypes.AttributeKeyDstChannel, p.DstChannel),
	}, " AND ")
}

// typedEq matches an attribute of a typed (protobuf) event. Typed events index
// their values JSON-encoded, so integers are stored quoted.
func typedEq(eventType, key string, value uint64) string {
	return fmt.Sprintf(`%s.%s='"%d"'`, eventType, key, value)
}
