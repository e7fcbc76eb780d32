package decoder

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdkmath "cosmossdk.io/math"
	abci "github.com/cometbft/cometbft/abci/types"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"
	transfertypes "github.com/cosmos/ibc-go/v10/modules/apps/transfer/types"
	channeltypes "github.com/cosmos/ibc-go/v10/modules/core/04-channel/types"
	"github.com/oraichain/ibc-routing/tracker/store"
	"github.com/spf13/cast"
)

// Bridge chain event types and attribute keys.
const (
	EventTypeAutoForward  = "gravity.v1.EventSendToCosmosExecutedIbcAutoForward"
	EventTypeOutgoingTxID = "gravity.v1.EventOutgoingTxId"
	EventTypeBatchCreated = "gravity.v1.EventOutgoingBatch"
	EventTypeBatchClaim   = "gravity.v1.EventBatchSendToEthClaim"
	EventTypeWasm         = "wasm"

	AttrKeyNonce          = "nonce"
	AttrKeyReceiver       = "receiver"
	AttrKeyToken          = "token"
	AttrKeyAmount         = "amount"
	AttrKeyChannel        = "channel"
	AttrKeyEvmChainPrefix = "evm_chain_prefix"
	AttrKeyTxID           = "tx_id"
	AttrKeyBatchNonce     = "batch_nonce"
	AttrKeyBatchTxIDs     = "batch_tx_ids"
	AttrKeyTokenContract  = "token_contract"
	AttrKeyDenom          = "denom"
	AttrKeyAction         = "action"
	AttrKeyPacketData     = "packet_data"
	AttrKeyPacketAck      = "packet_ack"

	// ActionTransferBack is the wasm action of a user sending value back to its remote chain.
	ActionTransferBack = "transfer_back_to_remote_chain"
)

// RawTx is a transaction result as delivered by a websocket subscription or a
// historical search.
type RawTx struct {
	Hash   string
	Height uint64
	Events []abci.Event
}

// RawTxFromResult converts a tx_search / tx result.
func RawTxFromResult(res *coretypes.ResultTx) RawTx {
	return RawTx{
		Hash:   res.Hash.String(),
		Height: uint64(res.Height),
		Events: res.TxResult.Events,
	}
}

// RawTxFromEventData converts a websocket Tx event.
func RawTxFromEventData(data cmttypes.EventDataTx) RawTx {
	return RawTx{
		Hash:   fmt.Sprintf("%X", cmttypes.Tx(data.Tx).Hash()),
		Height: uint64(data.Height),
		Events: data.Result.Events,
	}
}

// DecodeCosmosTx extracts every event of interest for domain from one transaction.
// Events that fail to decode are dropped and reported in the returned error; the
// events that did decode are returned regardless.
func (d *Decoder) DecodeCosmosTx(domain store.Domain, chainID string, tx RawTx) ([]Event, error) {
	src := Source{Domain: domain, ChainID: chainID, TxHash: tx.Hash, Height: tx.Height}
	events := NormalizeEvents(tx.Events)

	var (
		out  []Event
		errs []error
	)
	switch domain {
	case store.DomainRelay:
		out, errs = d.decodeRelayTx(src, events)
	case store.DomainPrimary:
		out, errs = d.decodePrimaryTx(src, events)
	case store.DomainCosmos:
		out, errs = d.decodeCosmosTx(src, events)
	default:
		return nil, decodeError(string(domain), "no cosmos decoder for domain", nil)
	}
	return out, errors.Join(errs...)
}

func (d *Decoder) decodeRelayTx(src Source, events []RawEvent) ([]Event, []error) {
	var (
		out  []Event
		errs []error
	)

	paired := make(map[int]bool)
	for _, e := range events {
		switch e.Type {
		case EventTypeAutoForward:
			ev, err := d.decodeAutoForward(src, e, events, paired)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			out = append(out, ev)
		case EventTypeBatchCreated:
			ev, err := d.decodeBatchCreated(src, e)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			out = append(out, ev)
		case EventTypeBatchClaim:
			ev, err := d.decodeBatchClaim(src, e)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			out = append(out, ev)
		}
	}

	for _, seg := range segmentsAt(events, channeltypes.EventTypeRecvPacket) {
		ev, err := d.decodeRecv(src, seg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if outgoing, ok := first(seg, EventTypeOutgoingTxID); ok {
			txID, err := outgoing.Attributes.Uint64(EventTypeOutgoingTxID, AttrKeyTxID)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			ev.OutgoingTxID = txID
		}
		ev.EvmChainPrefix = d.registry.PrefixIn(ev.Packet.Data.Receiver)
		if ev.EvmChainPrefix == "" {
			ev.EvmChainPrefix = d.registry.PrefixIn(ev.Packet.Data.Denom)
		}
		out = append(out, ev)
	}
	return out, errs
}

func (d *Decoder) decodePrimaryTx(src Source, events []RawEvent) ([]Event, []error) {
	var (
		out  []Event
		errs []error
	)

	recvSegments := segmentsAt(events, channeltypes.EventTypeRecvPacket)
	for _, seg := range recvSegments {
		ev, err := d.decodeRecv(src, seg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if send, ok := first(seg, channeltypes.EventTypeSendPacket); ok {
			packet, err := decodePacket(send, true)
			if err != nil {
				errs = append(errs, err)
			} else {
				fwd := d.registry.Classify(packet)
				ev.Forward = &fwd
			}
		}
		out = append(out, ev)
	}

	// A send without a receive in the same transaction starts a transfer on the primary chain.
	if len(recvSegments) == 0 {
		transferBack := hasWasmAction(events, ActionTransferBack)
		for _, e := range events {
			if e.Type != channeltypes.EventTypeSendPacket {
				continue
			}
			packet, err := decodePacket(e, true)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			fwd := d.registry.Classify(packet)
			if !transferBack && fwd.Target != store.DomainRelay {
				continue
			}
			out = append(out, TransferBackEvent{
				Source:  src,
				Sender:  packet.Data.Sender,
				Forward: fwd,
			})
		}
	}

	for _, seg := range segmentsAt(events, channeltypes.EventTypeAcknowledgePacket) {
		packet, err := decodePacket(seg[0], false)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ev := AckPacketEvent{Source: src, Packet: packet, Success: true}
		for _, e := range seg {
			if e.Type != transfertypes.EventTypePacket {
				continue
			}
			if msg := e.Attributes.Get(transfertypes.AttributeKeyAckError); msg != "" {
				ev.Success = false
				ev.Error = msg
			}
			if v, ok := e.Attributes[transfertypes.AttributeKeyAckSuccess]; ok && v == "false" {
				ev.Success = false
			}
		}
		out = append(out, ev)
	}
	return out, errs
}

func (d *Decoder) decodeCosmosTx(src Source, events []RawEvent) ([]Event, []error) {
	var (
		out  []Event
		errs []error
	)
	for _, seg := range segmentsAt(events, channeltypes.EventTypeRecvPacket) {
		ev, err := d.decodeRecv(src, seg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, ev)
	}
	return out, errs
}

// decodeRecv decodes the recv_packet heading seg and the acknowledgement written for it.
func (d *Decoder) decodeRecv(src Source, seg []RawEvent) (RecvPacketEvent, error) {
	packet, err := decodePacket(seg[0], true)
	if err != nil {
		return RecvPacketEvent{}, err
	}
	ev := RecvPacketEvent{Source: src, Packet: packet, AckSuccess: true}

	for _, e := range seg {
		if e.Type != channeltypes.EventTypeWriteAck {
			continue
		}
		ackPacket, err := decodePacket(e, false)
		if err != nil || !ackPacket.Matches(packet.Sequence, packet.SrcChannel, packet.DstChannel) {
			continue
		}
		if ack, ok := e.Attributes.Bytes(AttrKeyPacketAck, channeltypes.AttributeKeyAckHex); ok {
			ev.Ack = string(ack)
			ev.AckSuccess = ackSucceeded(ev.Ack)
		}
		break
	}
	return ev, nil
}

func (d *Decoder) decodeAutoForward(src Source, e RawEvent, events []RawEvent, paired map[int]bool) (AutoForwardEvent, error) {
	nonce, err := e.Attributes.Uint64(e.Type, AttrKeyNonce)
	if err != nil {
		return AutoForwardEvent{}, err
	}

	prefix := e.Attributes.Get(AttrKeyEvmChainPrefix)
	if prefix == "" {
		prefix = d.registry.PrefixIn(e.Attributes.Get(AttrKeyToken))
	}
	if prefix == "" {
		return AutoForwardEvent{}, missingAttribute(e.Type, AttrKeyEvmChainPrefix)
	}

	receiver := e.Attributes.Get(AttrKeyReceiver)
	idx := -1
	for i, candidate := range events {
		if candidate.Type != channeltypes.EventTypeSendPacket || paired[i] {
			continue
		}
		if idx < 0 {
			idx = i
		}
		if receiver != "" && sendReceiver(candidate) == receiver {
			idx = i
			break
		}
	}
	if idx < 0 {
		return AutoForwardEvent{}, decodeError(string(src.Domain), "auto-forward without send_packet", nil).
			WithContext("event_nonce", nonce)
	}
	paired[idx] = true

	packet, err := decodePacket(events[idx], true)
	if err != nil {
		return AutoForwardEvent{}, err
	}
	return AutoForwardEvent{
		Source:         src,
		EventNonce:     nonce,
		EvmChainPrefix: prefix,
		Packet:         packet,
	}, nil
}

func (d *Decoder) decodeBatchCreated(src Source, e RawEvent) (BatchCreatedEvent, error) {
	batchNonce, err := e.Attributes.Uint64(e.Type, AttrKeyBatchNonce)
	if err != nil {
		return BatchCreatedEvent{}, err
	}
	rawIDs, err := e.Attributes.Require(e.Type, AttrKeyBatchTxIDs)
	if err != nil {
		return BatchCreatedEvent{}, err
	}
	ids, err := parseIDList(rawIDs)
	if err != nil {
		return BatchCreatedEvent{}, invalidAttribute(e.Type, AttrKeyBatchTxIDs, err)
	}
	prefix, err := d.batchPrefix(e)
	if err != nil {
		return BatchCreatedEvent{}, err
	}
	return BatchCreatedEvent{
		Source:         src,
		BatchNonce:     batchNonce,
		TxIDs:          ids,
		EvmChainPrefix: prefix,
		TokenContract:  e.Attributes.Get(AttrKeyTokenContract),
	}, nil
}

func (d *Decoder) decodeBatchClaim(src Source, e RawEvent) (BatchClaimEvent, error) {
	batchNonce, err := e.Attributes.Uint64(e.Type, AttrKeyBatchNonce)
	if err != nil {
		return BatchClaimEvent{}, err
	}
	eventNonce, err := e.Attributes.Uint64(e.Type, AttrKeyNonce)
	if err != nil {
		return BatchClaimEvent{}, err
	}
	prefix, err := d.batchPrefix(e)
	if err != nil {
		return BatchClaimEvent{}, err
	}
	return BatchClaimEvent{
		Source:         src,
		BatchNonce:     batchNonce,
		EventNonce:     eventNonce,
		EvmChainPrefix: prefix,
		TokenContract:  e.Attributes.Get(AttrKeyTokenContract),
	}, nil
}

// batchPrefix resolves the EVM chain a batch event belongs to. Batch nonces are
// counted per EVM chain, so an event whose chain cannot be resolved is rejected.
func (d *Decoder) batchPrefix(e RawEvent) (string, error) {
	if prefix := e.Attributes.Get(AttrKeyEvmChainPrefix); prefix != "" {
		return prefix, nil
	}
	if prefix := d.registry.PrefixIn(e.Attributes.Get(AttrKeyTokenContract)); prefix != "" {
		return prefix, nil
	}
	if prefix := d.registry.PrefixIn(e.Attributes.Get(AttrKeyDenom)); prefix != "" {
		return prefix, nil
	}
	if len(d.registry.EvmPrefixes) == 1 {
		return d.registry.EvmPrefixes[0], nil
	}
	return "", missingAttribute(e.Type, AttrKeyEvmChainPrefix)
}

// decodePacket reads the packet attributes shared by send/recv/ack events.
func decodePacket(e RawEvent, requireData bool) (Packet, error) {
	seq, err := e.Attributes.Uint64(e.Type, channeltypes.AttributeKeySequence)
	if err != nil {
		return Packet{}, err
	}
	p := Packet{
		Sequence:   seq,
		SrcPort:    e.Attributes.Get(channeltypes.AttributeKeySrcPort),
		SrcChannel: e.Attributes.Get(channeltypes.AttributeKeySrcChannel),
		DstPort:    e.Attributes.Get(channeltypes.AttributeKeyDstPort),
		DstChannel: e.Attributes.Get(channeltypes.AttributeKeyDstChannel),
	}
	if p.SrcChannel == "" || p.DstChannel == "" {
		return Packet{}, missingAttribute(e.Type, channeltypes.AttributeKeySrcChannel)
	}

	raw, ok := e.Attributes.Bytes(AttrKeyPacketData, channeltypes.AttributeKeyDataHex)
	if !ok {
		if requireData {
			return Packet{}, missingAttribute(e.Type, AttrKeyPacketData)
		}
		return p, nil
	}
	if err := json.Unmarshal(raw, &p.Data); err != nil {
		return Packet{}, invalidAttribute(e.Type, AttrKeyPacketData, err)
	}
	if p.Data.Amount != "" {
		amount, ok := sdkmath.NewIntFromString(p.Data.Amount)
		if !ok {
			return Packet{}, invalidAttribute(e.Type, AttrKeyPacketData, fmt.Errorf("amount %q is not an integer", p.Data.Amount))
		}
		p.Data.Amount = amount.String()
	}
	return p, nil
}

func sendReceiver(e RawEvent) string {
	raw, ok := e.Attributes.Bytes(AttrKeyPacketData, channeltypes.AttributeKeyDataHex)
	if !ok {
		return ""
	}
	var data transfertypes.FungibleTokenPacketData
	if err := json.Unmarshal(raw, &data); err != nil {
		return ""
	}
	return data.Receiver
}

type ackPayload struct {
	Result string `json:"result"`
	Error  string `json:"error"`
}

// ackSucceeded interprets a written acknowledgement. JSON acks succeed when they
// carry a result and no error; anything else succeeds unless it mentions an error.
func ackSucceeded(raw string) bool {
	var ack ackPayload
	if err := json.Unmarshal([]byte(raw), &ack); err == nil {
		return ack.Error == "" && ack.Result != ""
	}
	return raw != "" && !strings.Contains(strings.ToLower(raw), "error")
}

// segmentsAt splits events into runs that each start with an event of eventType
// and extend up to the next one. Events before the first match are dropped.
func segmentsAt(events []RawEvent, eventType string) [][]RawEvent {
	var (
		segments [][]RawEvent
		current  []RawEvent
	)
	for _, e := range events {
		if e.Type == eventType {
			if current != nil {
				segments = append(segments, current)
			}
			current = []RawEvent{e}
			continue
		}
		if current != nil {
			current = append(current, e)
		}
	}
	if current != nil {
		segments = append(segments, current)
	}
	return segments
}

func first(events []RawEvent, eventType string) (RawEvent, bool) {
	for _, e := range events {
		if e.Type == eventType {
			return e, true
		}
	}
	return RawEvent{}, false
}

func hasWasmAction(events []RawEvent, action string) bool {
	for _, e := range events {
		if e.Type == EventTypeWasm && e.Attributes.Get(AttrKeyAction) == action {
			return true
		}
	}
	return false
}

// parseIDList accepts "1,2,3" as well as "[1,2,3]" and `["1","2"]`.
func parseIDList(raw string) ([]uint64, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]uint64, 0, len(parts))
	for _, part := range parts {
		id, err := cast.ToUint64E(strings.Trim(strings.TrimSpace(part), `"`))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
