// Package query reconstructs the hop chain of a transfer from the hop tables.
// It only reads, so it runs alongside the live interpreters without locking.
package query

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	trackererrors "github.com/oraichain/ibc-routing/tracker/errors"
	"github.com/oraichain/ibc-routing/tracker/hopstore"
	"github.com/oraichain/ibc-routing/tracker/store"
)

const defaultStuckAfter = time.Hour

var ErrEmptyTxHash = errors.New("tx hash is empty")

// Hint says where to look for the transaction first. EvmChainPrefix selects the
// EVM table; ChainID selects the chain with that id; neither means the primary chain.
type Hint struct {
	EvmChainPrefix string `json:"evmChainPrefix,omitempty"`
	ChainID        string `json:"chainId,omitempty"`
}

// Hop is one persisted step of a route.
type Hop struct {
	State store.Domain `json:"state"`
	Data  store.Record `json:"data"`
}

// Route is the ordered hop chain of one transfer.
type Route struct {
	Hops   []Hop        `json:"routes"`
	Status store.Status `json:"status"`
	// Stuck is set when the last hop has been PENDING for longer than the
	// configured threshold.
	Stuck bool `json:"stuck"`
}

// Config holds configuration for the query engine.
type Config struct {
	Store          *hopstore.Store
	PrimaryChainID string
	RelayChainID   string
	StuckAfter     time.Duration
	Now            func() time.Time
	Logger         zerolog.Logger
}

// Engine answers route queries.
type Engine struct {
	store          *hopstore.Store
	primaryChainID string
	relayChainID   string
	stuckAfter     time.Duration
	now            func() time.Time
	logger         zerolog.Logger
}

func NewEngine(cfg Config) *Engine {
	stuckAfter := cfg.StuckAfter
	if stuckAfter == 0 {
		stuckAfter = defaultStuckAfter
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:          cfg.Store,
		primaryChainID: cfg.PrimaryChainID,
		relayChainID:   cfg.RelayChainID,
		stuckAfter:     stuckAfter,
		now:            now,
		logger:         cfg.Logger.With().Str("component", "query_engine").Logger(),
	}
}

// Route returns the route of the first transfer txHash took part in. A tx hash
// that is not recorded yields an empty route, not an error.
func (e *Engine) Route(ctx context.Context, txHash string, hint Hint) (Route, error) {
	routes, err := e.Routes(ctx, txHash, hint)
	if err != nil || len(routes) == 0 {
		return Route{Hops: []Hop{}}, err
	}
	return routes[0], nil
}

// Routes returns one route per hop recorded for txHash. A single transaction can
// belong to several transfers, e.g. a batch claim releasing many deposits.
func (e *Engine) Routes(ctx context.Context, txHash string, hint Hint) ([]Route, error) {
	if strings.TrimSpace(txHash) == "" {
		return nil, ErrEmptyTxHash
	}
	start, err := e.locate(ctx, txHash, hint)
	if err != nil {
		return nil, err
	}

	routes := make([]Route, 0, len(start))
	for _, rec := range start {
		r, err := e.walk(ctx, rec)
		if err != nil {
			return nil, err
		}
		routes = append(routes, r)
	}
	return routes, nil
}

// locate finds the hops created by txHash, trying the hinted domain first.
func (e *Engine) locate(ctx context.Context, txHash string, hint Hint) ([]store.Record, error) {
	type probe struct {
		domain store.Domain
		where  map[string]any
	}
	evmHash := evmTxHash(txHash)
	cosmosHash := cosmosTxHash(txHash)

	var probes []probe
	switch {
	case hint.EvmChainPrefix != "":
		probes = append(probes, probe{store.DomainEvm, map[string]any{
			store.ColumnTxHash:         evmHash,
			store.ColumnEvmChainPrefix: hint.EvmChainPrefix,
		}})
	case hint.ChainID != "" && hint.ChainID == e.relayChainID:
		probes = append(probes, probe{store.DomainRelay, map[string]any{store.ColumnTxHash: cosmosHash}})
	case hint.ChainID != "" && hint.ChainID != e.primaryChainID:
		probes = append(probes, probe{store.DomainCosmos, map[string]any{
			store.ColumnTxHash:  cosmosHash,
			store.ColumnChainID: hint.ChainID,
		}})
	default:
		probes = append(probes, probe{store.DomainPrimary, map[string]any{store.ColumnTxHash: cosmosHash}})
	}
	// Fall back to every table when the hint was wrong.
	probes = append(probes,
		probe{store.DomainPrimary, map[string]any{store.ColumnTxHash: cosmosHash}},
		probe{store.DomainRelay, map[string]any{store.ColumnTxHash: cosmosHash}},
		probe{store.DomainCosmos, map[string]any{store.ColumnTxHash: cosmosHash}},
		probe{store.DomainEvm, map[string]any{store.ColumnTxHash: evmHash}},
		// EVM arrivals proven by a bridge chain claim carry the claim's hash.
		probe{store.DomainEvm, map[string]any{store.ColumnTxHash: cosmosHash}},
	)

	for _, p := range probes {
		found, err := e.store.Select(ctx, p.domain, hopstore.SelectOptions{Where: p.where})
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			return found, nil
		}
	}
	return nil, nil
}

// walk follows prev links to the origin, then successor links to the tail.
func (e *Engine) walk(ctx context.Context, rec store.Record) (Route, error) {
	seen := mapset.NewThreadUnsafeSet[string]()
	seen.Add(recordKey(rec))

	var back []store.Record
	for cur := rec; ; {
		prev, err := e.store.FindPredecessor(ctx, cur)
		if err != nil {
			return Route{}, err
		}
		if prev == nil {
			break
		}
		if !seen.Add(recordKey(prev)) {
			return Route{}, cycleError(prev)
		}
		back = append(back, prev)
		cur = prev
	}

	hops := make([]Hop, 0, len(back)+1)
	for i := len(back) - 1; i >= 0; i-- {
		hops = append(hops, Hop{State: back[i].Domain(), Data: back[i]})
	}
	hops = append(hops, Hop{State: rec.Domain(), Data: rec})

	for cur := rec; ; {
		next, err := e.store.FindSuccessor(ctx, cur)
		if err != nil {
			return Route{}, err
		}
		if next == nil {
			break
		}
		if !seen.Add(recordKey(next)) {
			return Route{}, cycleError(next)
		}
		hops = append(hops, Hop{State: next.Domain(), Data: next})
		cur = next
	}

	tail := hops[len(hops)-1].Data
	r := Route{Hops: hops, Status: tail.Link().Status}
	if r.Status == store.StatusPending {
		r.Stuck = e.now().Sub(tail.Base().UpdatedAt) > e.stuckAfter
	}
	return r, nil
}

func recordKey(r store.Record) string {
	return fmt.Sprintf("%s/%d", r.Domain(), r.Base().ID)
}

func cycleError(r store.Record) error {
	return trackererrors.NewInternalError(string(r.Domain()), "hop chain contains a cycle", nil).
		WithContext("tx_hash", r.Link().TxHash)
}

func evmTxHash(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	if !strings.HasPrefix(h, "0x") {
		h = "0x" + h
	}
	return h
}

func cosmosTxHash(h string) string {
	h = strings.TrimSpace(h)
	h = strings.TrimPrefix(strings.TrimPrefix(h, "0x"), "0X")
	return strings.ToUpper(h)
}

// CheckAmounts verifies that the amount and denom each hop sends on equal what
// the following hop received.
func CheckAmounts(r Route) error {
	var errs []error
	for i := 0; i+1 < len(r.Hops); i++ {
		sent, sentDenom, ok := outgoing(r.Hops[i].Data)
		if !ok {
			continue
		}
		recv, recvDenom, ok := incoming(r.Hops[i+1].Data)
		if !ok {
			continue
		}
		if !amountsEqual(sent, recv) {
			errs = append(errs, errors.Errorf("hop %d sent %s but hop %d received %s", i, sent, i+1, recv))
		}
		if sentDenom != "" && recvDenom != "" && sentDenom != recvDenom {
			errs = append(errs, errors.Errorf("hop %d sent denom %s but hop %d received %s", i, sentDenom, i+1, recvDenom))
		}
	}
	return stderrors.Join(errs...)
}

func outgoing(r store.Record) (amount, denom string, ok bool) {
	switch rec := r.(type) {
	case *store.EvmRecord:
		if rec.NextState != store.DomainRelay || rec.FromAmount == "" {
			return "", "", false
		}
		return rec.FromAmount, "", true
	case *store.PrimaryRecord:
		if rec.NextPacketSequence == 0 {
			return "", "", false
		}
		return rec.NextAmount, rec.NextDestinationDenom, true
	}
	return "", "", false
}

func incoming(r store.Record) (amount, denom string, ok bool) {
	switch rec := r.(type) {
	case *store.RelayRecord:
		return rec.Amount, rec.Denom, true
	case *store.CosmosRecord:
		return rec.Amount, rec.Denom, true
	}
	return "", "", false
}

func amountsEqual(a, b string) bool {
	x, ok := sdkmath.NewIntFromString(a)
	if !ok {
		return a == b
	}
	y, ok := sdkmath.NewIntFromString(b)
	if !ok {
		return false
	}
	return x.Equal(y)
}
