package query

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oraichain/ibc-routing/tracker/db"
	"github.com/oraichain/ibc-routing/tracker/hopstore"
	"github.com/oraichain/ibc-routing/tracker/store"
)

const depositHash = "0x9f2c8a4bfb0dcf1b0c6fb8f0a27e1e9a3f6b7e2d5c4a3b2c1d0e9f8a7b6c5d4e"

func newStore(t *testing.T) *hopstore.Store {
	t.Helper()
	database, err := db.OpenInMemoryDB(true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return hopstore.NewStore(database, zerolog.Nop())
}

func insert(t *testing.T, hs *hopstore.Store, recs ...store.Record) {
	t.Helper()
	for _, r := range recs {
		ok, err := hs.Insert(context.Background(), r)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

// seedEvmToPrimary stores the three hops of a deposit that ends on the primary chain.
func seedEvmToPrimary(t *testing.T, hs *hopstore.Store, primaryStatus store.Status) {
	insert(t, hs,
		&store.EvmRecord{
			HopLink:        store.HopLink{TxHash: depositHash, NextState: store.DomainRelay, Status: store.StatusFinished},
			EventNonce:     63593,
			EvmChainPrefix: "oraib",
			FromAmount:     "10000000000000000",
		},
		&store.RelayRecord{
			HopLink: store.HopLink{
				TxHash: "RELAY1", PrevState: store.DomainEvm, PrevTxHash: depositHash,
				NextState: store.DomainPrimary, Status: store.StatusFinished,
			},
			PacketSequence: 18337, SrcChannel: "channel-0", DstChannel: "channel-1",
			Amount: "10000000000000000", Denom: "oraib0x55d398326f99059fF775485246999027B3197955",
		},
		&store.PrimaryRecord{
			HopLink: store.HopLink{
				TxHash: "PRIMARY1", PrevState: store.DomainRelay, PrevTxHash: "RELAY1", Status: primaryStatus,
			},
			PacketSequence: 18337, SrcChannel: "channel-0", DstChannel: "channel-1",
		},
	)
}

func TestRouteFromEveryHop(t *testing.T) {
	hs := newStore(t)
	seedEvmToPrimary(t, hs, store.StatusFinished)
	e := NewEngine(Config{Store: hs, RelayChainID: "oraibridge-subnet-2", PrimaryChainID: "Oraichain", Logger: zerolog.Nop()})

	tests := []struct {
		name string
		hash string
		hint Hint
	}{
		{"evm hint", depositHash, Hint{EvmChainPrefix: "oraib"}},
		{"evm hash without prefix and upper case", "9F2C8A4BFB0DCF1B0C6FB8F0A27E1E9A3F6B7E2D5C4A3B2C1D0E9F8A7B6C5D4E", Hint{}},
		{"relay chain id", "RELAY1", Hint{ChainID: "oraibridge-subnet-2"}},
		{"primary default", "primary1", Hint{}},
		{"wrong hint falls back", "RELAY1", Hint{ChainID: "cosmoshub-4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := e.Route(context.Background(), tt.hash, tt.hint)
			require.NoError(t, err)
			require.Len(t, r.Hops, 3)
			assert.Equal(t, []store.Domain{store.DomainEvm, store.DomainRelay, store.DomainPrimary},
				[]store.Domain{r.Hops[0].State, r.Hops[1].State, r.Hops[2].State})
			assert.Equal(t, store.StatusFinished, r.Status)
			assert.False(t, r.Stuck)
			assert.NoError(t, CheckAmounts(r))
		})
	}
}

func TestRouteUnknownHash(t *testing.T) {
	e := NewEngine(Config{Store: newStore(t), Logger: zerolog.Nop()})
	r, err := e.Route(context.Background(), "ABCDEF", Hint{})
	require.NoError(t, err)
	assert.Empty(t, r.Hops)

	_, err = e.Route(context.Background(), " ", Hint{})
	assert.ErrorIs(t, err, ErrEmptyTxHash)
}

func TestRouteStuck(t *testing.T) {
	hs := newStore(t)
	seedEvmToPrimary(t, hs, store.StatusPending)

	fresh := NewEngine(Config{Store: hs, StuckAfter: time.Hour, Logger: zerolog.Nop()})
	r, err := fresh.Route(context.Background(), "PRIMARY1", Hint{})
	require.NoError(t, err)
	assert.Equal(t, store.StatusPending, r.Status)
	assert.False(t, r.Stuck)

	later := NewEngine(Config{
		Store:      hs,
		StuckAfter: time.Hour,
		Now:        func() time.Time { return time.Now().Add(2 * time.Hour) },
		Logger:     zerolog.Nop(),
	})
	r, err = later.Route(context.Background(), "PRIMARY1", Hint{})
	require.NoError(t, err)
	assert.True(t, r.Stuck)
}

func TestRouteCycleGuard(t *testing.T) {
	hs := newStore(t)
	insert(t, hs,
		&store.RelayRecord{
			HopLink:        store.HopLink{TxHash: "A", PrevState: store.DomainPrimary, PrevTxHash: "B", NextState: store.DomainPrimary},
			PacketSequence: 1, SrcChannel: "channel-1", DstChannel: "channel-0",
		},
		&store.PrimaryRecord{
			HopLink:        store.HopLink{TxHash: "B", PrevState: store.DomainRelay, PrevTxHash: "A", NextState: store.DomainRelay},
			PacketSequence: 1, SrcChannel: "channel-1", DstChannel: "channel-0",
			NextPacketSequence: 1, NextSrcChannel: "channel-1", NextDstChannel: "channel-0",
		},
	)
	e := NewEngine(Config{Store: hs, Logger: zerolog.Nop()})
	_, err := e.Route(context.Background(), "A", Hint{ChainID: "relay"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestRouteDepositsSharingRelayTx(t *testing.T) {
	const (
		depositA = "0x1111111111111111111111111111111111111111111111111111111111111111"
		depositB = "0x2222222222222222222222222222222222222222222222222222222222222222"
	)
	deposit := func(hash string, nonce uint64) *store.EvmRecord {
		return &store.EvmRecord{
			HopLink:        store.HopLink{TxHash: hash, NextState: store.DomainRelay, Status: store.StatusFinished},
			EventNonce:     nonce,
			EvmChainPrefix: "oraib",
			FromAmount:     "10000000000000000",
		}
	}
	// One relayer tx auto-forwards both deposits.
	forward := func(prev string, nonce, seq uint64) *store.RelayRecord {
		return &store.RelayRecord{
			HopLink: store.HopLink{
				TxHash: "RELAY1", PrevState: store.DomainEvm, PrevTxHash: prev,
				NextState: store.DomainPrimary, Status: store.StatusFinished,
			},
			EventNonce: nonce, EvmChainPrefix: "oraib",
			PacketSequence: seq, SrcChannel: "channel-0", DstChannel: "channel-1",
			Amount: "10000000000000000",
		}
	}
	recv := func(hash string, seq uint64) *store.PrimaryRecord {
		return &store.PrimaryRecord{
			HopLink:        store.HopLink{TxHash: hash, PrevState: store.DomainRelay, PrevTxHash: "RELAY1", Status: store.StatusFinished},
			PacketSequence: seq, SrcChannel: "channel-0", DstChannel: "channel-1",
		}
	}

	hs := newStore(t)
	insert(t, hs,
		deposit(depositA, 63593), deposit(depositB, 63594),
		forward(depositA, 63593, 1), forward(depositB, 63594, 2),
		recv("PRIMARY1", 1), recv("PRIMARY2", 2),
	)
	e := NewEngine(Config{Store: hs, RelayChainID: "oraibridge-subnet-2", PrimaryChainID: "Oraichain", Logger: zerolog.Nop()})
	ctx := context.Background()

	hashes := func(r Route) []string {
		out := make([]string, 0, len(r.Hops))
		for _, h := range r.Hops {
			out = append(out, h.Data.Link().TxHash)
		}
		return out
	}

	r, err := e.Route(ctx, depositB, Hint{EvmChainPrefix: "oraib"})
	require.NoError(t, err)
	assert.Equal(t, []string{depositB, "RELAY1", "PRIMARY2"}, hashes(r))
	assert.Equal(t, uint64(2), r.Hops[1].Data.(*store.RelayRecord).PacketSequence)

	r, err = e.Route(ctx, "PRIMARY2", Hint{})
	require.NoError(t, err)
	assert.Equal(t, []string{depositB, "RELAY1", "PRIMARY2"}, hashes(r))

	r, err = e.Route(ctx, "PRIMARY1", Hint{})
	require.NoError(t, err)
	assert.Equal(t, []string{depositA, "RELAY1", "PRIMARY1"}, hashes(r))

	// The relay tx belongs to both transfers.
	routes, err := e.Routes(ctx, "RELAY1", Hint{ChainID: "oraibridge-subnet-2"})
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, []string{depositA, "RELAY1", "PRIMARY1"}, hashes(routes[0]))
	assert.Equal(t, []string{depositB, "RELAY1", "PRIMARY2"}, hashes(routes[1]))
}

func TestCheckAmountsMismatch(t *testing.T) {
	r := Route{Hops: []Hop{
		{State: store.DomainPrimary, Data: &store.PrimaryRecord{
			NextPacketSequence: 7, NextAmount: "100", NextDestinationDenom: "uatom",
		}},
		{State: store.DomainCosmos, Data: &store.CosmosRecord{Amount: "99", Denom: "uosmo"}},
	}}
	err := CheckAmounts(r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sent 100")
	assert.Contains(t, err.Error(), "denom uatom")

	r.Hops[1].Data = &store.CosmosRecord{Amount: "0100", Denom: "uatom"}
	assert.NoError(t, CheckAmounts(r))
}
