package interpreter

import "github.com/oraichain/ibc-routing/tracker/store"

// State is a lifecycle checkpoint of one tracked transfer.
type State string

const (
	StateAwaitingSource       State = "awaiting_source"
	StateAwaitingRelayForward State = "awaiting_relay_forward"
	StateAwaitingRelayBatch   State = "awaiting_relay_batch"
	StateAwaitingRelayClaim   State = "awaiting_relay_claim"
	StateAwaitingPrimaryRecv  State = "awaiting_primary_recv"
	StateAwaitingPrimaryAck   State = "awaiting_primary_ack"
	StateAwaitingCosmosRecv   State = "awaiting_cosmos_recv"
	StateDone                 State = "done"
	StateFailed               State = "failed"
)

// Terminal reports whether no event can move the instance any further.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	switch s {
	case StateAwaitingSource, StateAwaitingRelayForward, StateAwaitingRelayBatch, StateAwaitingRelayClaim,
		StateAwaitingPrimaryRecv, StateAwaitingPrimaryAck, StateAwaitingCosmosRecv, StateDone, StateFailed:
		return true
	}
	return false
}

// DeadlineClass selects which configured timeout applies while waiting in a state.
type DeadlineClass int

const (
	// DeadlineNone means the state waits indefinitely.
	DeadlineNone DeadlineClass = iota
	// DeadlineLocal applies to hops that complete on the same chain or within one IBC relay.
	DeadlineLocal
	// DeadlineCross applies to hops that wait for the bridge to move value between domains.
	DeadlineCross
)

func (c DeadlineClass) String() string {
	switch c {
	case DeadlineLocal:
		return "local"
	case DeadlineCross:
		return "cross"
	default:
		return "none"
	}
}

// DeadlineClassOf returns the deadline class of waiting in state with the given context.
func DeadlineClassOf(state State, c Context) DeadlineClass {
	switch state {
	case StateAwaitingRelayForward:
		if c.Predecessor != nil && c.Predecessor.Domain == store.DomainEvm {
			return DeadlineCross
		}
		return DeadlineLocal
	case StateAwaitingRelayBatch, StateAwaitingRelayClaim:
		return DeadlineCross
	case StateAwaitingPrimaryRecv, StateAwaitingCosmosRecv, StateAwaitingPrimaryAck:
		return DeadlineLocal
	default:
		return DeadlineNone
	}
}
