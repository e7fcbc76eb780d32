package interpreter

import (
	"strings"

	"github.com/oraichain/ibc-routing/tracker/decoder"
	trackererrors "github.com/oraichain/ibc-routing/tracker/errors"
	"github.com/oraichain/ibc-routing/tracker/store"
)

// Step is the outcome of offering one event to an instance.
type Step struct {
	State   State
	Context Context
	Effects []Effect
	// Matched is false when the event belongs to another transfer; State and
	// Context are then returned unchanged.
	Matched bool
	// Err explains a transition into StateFailed.
	Err error
}

// Transition computes the next state for an instance in state with context c that
// receives ev. It has no side effects: persistence is described by Step.Effects.
func Transition(state State, c Context, ev decoder.Event) Step {
	miss := Step{State: state, Context: c}
	if state.Terminal() || ev == nil {
		return miss
	}

	var (
		step Step
		ok   bool
	)
	switch state {
	case StateAwaitingSource:
		step, ok = onSource(c, ev)
	case StateAwaitingRelayForward:
		step, ok = onRelayForward(c, ev)
	case StateAwaitingPrimaryRecv:
		step, ok = onPrimaryRecv(c, ev)
	case StateAwaitingRelayBatch:
		step, ok = onRelayBatch(c, ev)
	case StateAwaitingRelayClaim:
		step, ok = onRelayClaim(c, ev)
	case StateAwaitingCosmosRecv:
		step, ok = onCosmosRecv(c, ev)
	case StateAwaitingPrimaryAck:
		step, ok = onPrimaryAck(c, ev)
	}
	if !ok {
		return miss
	}
	step.Matched = true
	return step
}

func onSource(c Context, ev decoder.Event) (Step, bool) {
	switch e := ev.(type) {
	case decoder.EvmTransferEvent:
		if c.Origin != "" && c.Origin != store.DomainEvm {
			return Step{}, false
		}
		rec := &store.EvmRecord{
			HopLink: store.HopLink{
				TxHash:    e.TxHash,
				Height:    e.Height,
				NextState: store.DomainRelay,
				Status:    store.StatusPending,
			},
			EventNonce:          e.EventNonce,
			EvmChainPrefix:      e.EvmChainPrefix,
			FromAmount:          e.Amount,
			OraiBridgeChannelID: e.Destination.Channel,
			OraiReceiver:        e.Destination.Receiver,
		}
		if m := e.Destination.Memo; m != nil {
			rec.DestinationChannelID = m.DestinationChannel
			rec.DestinationDenom = m.DestinationDenom
			rec.DestinationReceiver = m.DestinationReceiver
		}

		next := c
		next.Origin = store.DomainEvm
		next.OriginTxHash = e.TxHash
		next.OriginKey, _ = OriginKeyOf(e)
		next.EvmChainPrefix = e.EvmChainPrefix
		next.EventNonce = e.EventNonce
		next.Predecessor = &RecordKey{
			Domain:         store.DomainEvm,
			TxHash:         e.TxHash,
			EventNonce:     e.EventNonce,
			EvmChainPrefix: e.EvmChainPrefix,
		}
		return Step{
			State:   StateAwaitingRelayForward,
			Context: next,
			Effects: []Effect{InsertEffect{Record: rec}},
		}, true

	case decoder.TransferBackEvent:
		if c.Origin != store.DomainPrimary {
			return Step{}, false
		}
		fwd := e.Forward
		rec := &store.PrimaryRecord{
			HopLink: store.HopLink{
				TxHash:    e.TxHash,
				Height:    e.Height,
				NextState: fwd.Target,
				Status:    store.StatusPending,
			},
			// No packet was received, so the hop is keyed by the packet it sent.
			PacketSequence: fwd.Packet.Sequence,
			SrcChannel:     fwd.Packet.SrcChannel,
			DstChannel:     fwd.Packet.DstChannel,
			Sender:         e.Sender,
		}
		setNext(rec, fwd)

		next := c
		next.OriginTxHash = e.TxHash
		next.OriginKey, _ = OriginKeyOf(e)
		next.Predecessor = &RecordKey{
			Domain: store.DomainPrimary,
			TxHash: e.TxHash,
			Packet: packetKeyOf(fwd.Packet),
		}
		state, next := forwardLeg(next, fwd)
		return Step{
			State:   state,
			Context: next,
			Effects: []Effect{InsertEffect{Record: rec}},
		}, true
	}
	return Step{}, false
}

func onRelayForward(c Context, ev decoder.Event) (Step, bool) {
	pred := c.Predecessor
	if pred == nil {
		return Step{}, false
	}

	if pred.Domain == store.DomainEvm {
		e, ok := ev.(decoder.AutoForwardEvent)
		if !ok || e.EventNonce != c.EventNonce || !samePrefix(e.EvmChainPrefix, c.EvmChainPrefix) {
			return Step{}, false
		}
		rec := relayRecord(e.Source, e.Packet, pred)
		rec.NextState = store.DomainPrimary
		rec.Status = store.StatusPending
		rec.EventNonce = e.EventNonce
		rec.EvmChainPrefix = c.EvmChainPrefix

		key := packetKeyOf(e.Packet)
		next := c
		next.Packet = &key
		next.Predecessor = &RecordKey{Domain: store.DomainRelay, TxHash: e.TxHash, Packet: key}
		return Step{
			State:   StateAwaitingPrimaryRecv,
			Context: next,
			Effects: []Effect{InsertEffect{Record: rec}, finish(pred, nil)},
		}, true
	}

	e, ok := ev.(decoder.RecvPacketEvent)
	if !ok || e.Domain != store.DomainRelay || c.Packet == nil || !c.Packet.Matches(e.Packet) {
		return Step{}, false
	}
	if !e.AckSuccess {
		return fail(c, trackererrors.NewAckFailureError(string(store.DomainRelay), "bridge chain rejected packet: "+e.Ack)), true
	}

	prefix := e.EvmChainPrefix
	if prefix == "" {
		prefix = c.EvmChainPrefix
	}
	rec := relayRecord(e.Source, e.Packet, pred)
	rec.EvmChainPrefix = prefix

	key := packetKeyOf(e.Packet)
	next := c
	next.Packet = nil
	next.EvmChainPrefix = prefix
	next.Predecessor = &RecordKey{Domain: store.DomainRelay, TxHash: e.TxHash, Packet: key}

	if e.OutgoingTxID == 0 {
		// Nothing was queued for the EVM chain: the value stays on the bridge chain.
		rec.Status = store.StatusFinished
		return Step{
			State:   StateDone,
			Context: next,
			Effects: []Effect{InsertEffect{Record: rec}, finish(pred, nil)},
		}, true
	}

	rec.NextState = store.DomainEvm
	rec.Status = store.StatusPending
	rec.TxID = e.OutgoingTxID
	next.TxID = e.OutgoingTxID
	return Step{
		State:   StateAwaitingRelayBatch,
		Context: next,
		Effects: []Effect{InsertEffect{Record: rec}, finish(pred, nil)},
	}, true
}

func onPrimaryRecv(c Context, ev decoder.Event) (Step, bool) {
	e, ok := ev.(decoder.RecvPacketEvent)
	if !ok || e.Domain != store.DomainPrimary || c.Packet == nil || !c.Packet.Matches(e.Packet) || c.Predecessor == nil {
		return Step{}, false
	}
	if !e.AckSuccess {
		return fail(c, trackererrors.NewAckFailureError(string(store.DomainPrimary), "primary chain rejected packet: "+e.Ack)), true
	}

	pred := c.Predecessor
	rec := &store.PrimaryRecord{
		HopLink: store.HopLink{
			TxHash:     e.TxHash,
			Height:     e.Height,
			PrevState:  pred.Domain,
			PrevTxHash: pred.TxHash,
		},
		PacketSequence: e.Packet.Sequence,
		PacketAck:      e.Ack,
		Sender:         e.Packet.Data.Sender,
		LocalReceiver:  e.Packet.Data.Receiver,
		SrcChannel:     e.Packet.SrcChannel,
		DstChannel:     e.Packet.DstChannel,
	}

	next := c
	next.Packet = nil
	next.Predecessor = &RecordKey{Domain: store.DomainPrimary, TxHash: e.TxHash, Packet: packetKeyOf(e.Packet)}
	effects := []Effect{InsertEffect{Record: rec}, finish(pred, nil)}

	if e.Forward == nil {
		rec.Status = store.StatusFinished
		return Step{State: StateDone, Context: next, Effects: effects}, true
	}

	rec.Status = store.StatusPending
	rec.NextState = e.Forward.Target
	setNext(rec, *e.Forward)
	state, next := forwardLeg(next, *e.Forward)
	return Step{State: state, Context: next, Effects: effects}, true
}

func onRelayBatch(c Context, ev decoder.Event) (Step, bool) {
	e, ok := ev.(decoder.BatchCreatedEvent)
	if !ok || c.TxID == 0 || c.Predecessor == nil || !e.Contains(c.TxID) || !samePrefix(e.EvmChainPrefix, c.EvmChainPrefix) {
		return Step{}, false
	}
	next := c
	next.BatchNonce = e.BatchNonce
	return Step{
		State:   StateAwaitingRelayClaim,
		Context: next,
		Effects: []Effect{UpdateEffect{
			Domain:   store.DomainRelay,
			Patch:    map[string]any{store.ColumnBatchNonce: e.BatchNonce},
			Where:    c.Predecessor.Where(),
			Required: true,
		}},
	}, true
}

func onRelayClaim(c Context, ev decoder.Event) (Step, bool) {
	var (
		src        decoder.Source
		batchNonce uint64
		eventNonce uint64
		prefix     string
	)
	switch e := ev.(type) {
	case decoder.BatchClaimEvent:
		src, batchNonce, eventNonce, prefix = e.Source, e.BatchNonce, e.EventNonce, e.EvmChainPrefix
	case decoder.EvmBatchExecutedEvent:
		src, batchNonce, eventNonce, prefix = e.Source, e.BatchNonce, e.EventNonce, e.EvmChainPrefix
	default:
		return Step{}, false
	}
	if c.Predecessor == nil || batchNonce != c.BatchNonce || !samePrefix(prefix, c.EvmChainPrefix) {
		return Step{}, false
	}

	pred := c.Predecessor
	rec := &store.EvmRecord{
		HopLink: store.HopLink{
			TxHash:     src.TxHash,
			Height:     src.Height,
			PrevState:  store.DomainRelay,
			PrevTxHash: pred.TxHash,
			Status:     store.StatusFinished,
		},
		EventNonce:     eventNonce,
		EvmChainPrefix: c.EvmChainPrefix,
	}

	next := c
	next.Predecessor = &RecordKey{
		Domain:         store.DomainEvm,
		TxHash:         src.TxHash,
		EventNonce:     eventNonce,
		EvmChainPrefix: c.EvmChainPrefix,
	}
	return Step{
		State:   StateDone,
		Context: next,
		Effects: []Effect{
			finish(pred, map[string]any{store.ColumnEventNonce: eventNonce}),
			InsertEffect{Record: rec},
		},
	}, true
}

func onCosmosRecv(c Context, ev decoder.Event) (Step, bool) {
	e, ok := ev.(decoder.RecvPacketEvent)
	if !ok || e.Domain != store.DomainCosmos || c.Packet == nil || !c.Packet.Matches(e.Packet) || c.Predecessor == nil {
		return Step{}, false
	}
	if c.DestinationChainID != "" && e.ChainID != c.DestinationChainID {
		return Step{}, false
	}
	if !e.AckSuccess {
		return fail(c, trackererrors.NewAckFailureError(string(store.DomainCosmos), e.ChainID+" rejected packet: "+e.Ack)), true
	}

	pred := c.Predecessor
	rec := cosmosRecord(e.Source, e.Packet, pred)
	rec.ChainID = e.ChainID
	rec.PacketAck = e.Ack

	next := c
	next.Packet = nil
	next.Predecessor = &RecordKey{Domain: store.DomainCosmos, TxHash: e.TxHash, Packet: packetKeyOf(e.Packet)}
	return Step{
		State:   StateDone,
		Context: next,
		Effects: []Effect{InsertEffect{Record: rec}, finish(pred, nil)},
	}, true
}

func onPrimaryAck(c Context, ev decoder.Event) (Step, bool) {
	e, ok := ev.(decoder.AckPacketEvent)
	if !ok || e.Domain != store.DomainPrimary || c.Packet == nil || !c.Packet.Matches(e.Packet) || c.Predecessor == nil {
		return Step{}, false
	}
	if !e.Success {
		msg := "destination rejected packet"
		if e.Error != "" {
			msg += ": " + e.Error
		}
		return fail(c, trackererrors.NewAckFailureError(string(store.DomainCosmos), msg)), true
	}

	// The destination chain is not observed; its hop is recorded from the ack the
	// primary chain processed.
	pred := c.Predecessor
	rec := cosmosRecord(e.Source, e.Packet, pred)
	rec.ChainID = c.DestinationChainID

	next := c
	next.Packet = nil
	next.Predecessor = &RecordKey{Domain: store.DomainCosmos, TxHash: e.TxHash, Packet: packetKeyOf(e.Packet)}
	return Step{
		State:   StateDone,
		Context: next,
		Effects: []Effect{InsertEffect{Record: rec}, finish(pred, nil)},
	}, true
}

// forwardLeg picks the state that waits for a forwarded packet.
func forwardLeg(c Context, fwd decoder.Forward) (State, Context) {
	key := packetKeyOf(fwd.Packet)
	c.Packet = &key
	if fwd.Target == store.DomainRelay {
		if fwd.EvmChainPrefix != "" {
			c.EvmChainPrefix = fwd.EvmChainPrefix
		}
		return StateAwaitingRelayForward, c
	}
	c.DestinationChainID = fwd.ChainID
	if fwd.Observed {
		return StateAwaitingCosmosRecv, c
	}
	return StateAwaitingPrimaryAck, c
}

func setNext(rec *store.PrimaryRecord, fwd decoder.Forward) {
	rec.NextPacketSequence = fwd.Packet.Sequence
	rec.NextMemo = fwd.Packet.Data.Memo
	rec.NextAmount = fwd.Packet.Data.Amount
	rec.NextReceiver = fwd.Packet.Data.Receiver
	rec.NextDestinationDenom = fwd.Packet.Data.Denom
	rec.NextSrcChannel = fwd.Packet.SrcChannel
	rec.NextDstChannel = fwd.Packet.DstChannel
}

func relayRecord(src decoder.Source, p decoder.Packet, pred *RecordKey) *store.RelayRecord {
	return &store.RelayRecord{
		HopLink: store.HopLink{
			TxHash:     src.TxHash,
			Height:     src.Height,
			PrevState:  pred.Domain,
			PrevTxHash: pred.TxHash,
		},
		PacketSequence: p.Sequence,
		Amount:         p.Data.Amount,
		Denom:          p.Data.Denom,
		Memo:           p.Data.Memo,
		Receiver:       p.Data.Receiver,
		Sender:         p.Data.Sender,
		SrcPort:        p.SrcPort,
		SrcChannel:     p.SrcChannel,
		DstPort:        p.DstPort,
		DstChannel:     p.DstChannel,
	}
}

func cosmosRecord(src decoder.Source, p decoder.Packet, pred *RecordKey) *store.CosmosRecord {
	return &store.CosmosRecord{
		HopLink: store.HopLink{
			TxHash:     src.TxHash,
			Height:     src.Height,
			PrevState:  pred.Domain,
			PrevTxHash: pred.TxHash,
			Status:     store.StatusFinished,
		},
		PacketSequence: p.Sequence,
		Amount:         p.Data.Amount,
		Denom:          p.Data.Denom,
		Memo:           p.Data.Memo,
		Receiver:       p.Data.Receiver,
		Sender:         p.Data.Sender,
		SrcPort:        p.SrcPort,
		SrcChannel:     p.SrcChannel,
		DstPort:        p.DstPort,
		DstChannel:     p.DstChannel,
	}
}

func fail(c Context, err *trackererrors.TrackerError) Step {
	next := c
	next.FailureCode = string(err.Code)
	next.FailureMessage = err.Message
	return Step{State: StateFailed, Context: next, Err: err}
}

// samePrefix reports whether both prefixes name the same EVM chain. Nonces are
// per-chain counters, so an unknown prefix never matches.
func samePrefix(got, want string) bool {
	return got != "" && want != "" && strings.EqualFold(got, want)
}
