package recovery

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oraichain/ibc-routing/tracker/db"
	"github.com/oraichain/ibc-routing/tracker/decoder"
	"github.com/oraichain/ibc-routing/tracker/decoder/decodertest"
	"github.com/oraichain/ibc-routing/tracker/hopstore"
	"github.com/oraichain/ibc-routing/tracker/interpreter"
	"github.com/oraichain/ibc-routing/tracker/manager"
	"github.com/oraichain/ibc-routing/tracker/metrics"
	"github.com/oraichain/ibc-routing/tracker/store"
)

const (
	usdtOnBsc    = "oraib0x55d398326f99059fF775485246999027B3197955"
	oraiReceiver = "orai1hvr9d72r5um9lvt0rpkd4r75vrsqtw6yujhqs2"
)

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) SearchTxs(ctx context.Context, domain store.Domain, chainID, query string) ([]decoder.RawTx, error) {
	args := m.Called(ctx, domain, chainID, query)
	txs, _ := args.Get(0).([]decoder.RawTx)
	return txs, args.Error(1)
}

type fixture struct {
	manager  *manager.Manager
	hops     *hopstore.Store
	searcher *mockSearcher
	sweeper  *Sweeper
}

func setup(t *testing.T, maxAttempts int) *fixture {
	t.Helper()
	database, err := db.OpenInMemoryDB(true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	hs := hopstore.NewStore(database, zerolog.Nop())
	m := manager.New(manager.Config{
		Store: hs,
		Options: interpreter.Options{
			LocalTimeout:        time.Second,
			CrossTimeout:        time.Second,
			MaxRecoveryAttempts: maxAttempts,
		},
		Logger: zerolog.Nop(),
	})
	searcher := &mockSearcher{}
	sw := NewSweeper(Config{
		Manager: m,
		Decoder: decoder.New(decoder.Registry{
			EvmPrefixes:  []string{"oraib"},
			RelayChannel: "channel-1",
		}),
		Searcher: searcher,
		Metrics:  metrics.New(),
		// Every deadline is in the past from the sweeper's point of view.
		Now:    func() time.Time { return time.Now().Add(time.Hour) },
		Logger: zerolog.Nop(),
	})
	return &fixture{manager: m, hops: hs, searcher: searcher, sweeper: sw}
}

func (f *fixture) startEvmTransfer(t *testing.T, nonce uint64) *interpreter.Interpreter {
	t.Helper()
	ev := decoder.EvmTransferEvent{
		Source:         decoder.Source{Domain: store.DomainEvm, ChainID: "oraib", TxHash: "0xdeposit", Height: 1},
		EventNonce:     nonce,
		EvmChainPrefix: "oraib",
		Amount:         "10000000000000000",
		Destination:    decoder.Route{Channel: "channel-1", Receiver: oraiReceiver},
	}
	key, ok := interpreter.OriginKeyOf(ev)
	require.True(t, ok)
	it, created := f.manager.Claim(key, store.DomainEvm)
	require.True(t, created)
	matched, err := it.Deliver(context.Background(), ev)
	require.NoError(t, err)
	require.True(t, matched)
	require.Equal(t, interpreter.StateAwaitingRelayForward, it.State())
	return it
}

var inbound = decodertest.PacketSpec{
	Sequence:   18337,
	SrcChannel: "channel-0",
	DstChannel: "channel-1",
	Denom:      usdtOnBsc,
	Amount:     "10000000000000000",
	Sender:     "oraib1sender",
	Receiver:   oraiReceiver,
}

func TestSweepFollowsMissedHops(t *testing.T) {
	f := setup(t, 3)
	it := f.startEvmTransfer(t, 63593)

	f.searcher.On("SearchTxs", mock.Anything, store.DomainRelay, "",
		`gravity.v1.EventSendToCosmosExecutedIbcAutoForward.nonce='"63593"'`).
		Return([]decoder.RawTx{decodertest.Tx("RELAY1", 10,
			decodertest.SendPacket(inbound),
			decodertest.AutoForward(63593, "oraib", oraiReceiver, usdtOnBsc, inbound.Amount, "channel-0"),
		)}, nil).Once()
	f.searcher.On("SearchTxs", mock.Anything, store.DomainPrimary, "",
		"recv_packet.packet_sequence='18337' AND recv_packet.packet_src_channel='channel-0' AND recv_packet.packet_dst_channel='channel-1'").
		Return([]decoder.RawTx{decodertest.Tx("PRIMARY1", 20,
			decodertest.RecvPacket(inbound),
			decodertest.WriteAck(inbound, decodertest.SuccessAck),
		)}, nil).Once()

	advanced := f.sweeper.Sweep(context.Background())
	assert.Equal(t, 1, advanced)
	assert.Equal(t, interpreter.StateDone, it.State())
	assert.Equal(t, 0, f.manager.Count())
	f.searcher.AssertExpectations(t)

	ctx := context.Background()
	relay, err := f.hops.FindByTxHash(ctx, store.DomainRelay, "RELAY1")
	require.NoError(t, err)
	require.Len(t, relay, 1)
	assert.Equal(t, store.StatusFinished, relay[0].Link().Status)

	primary, err := f.hops.FindByTxHash(ctx, store.DomainPrimary, "PRIMARY1")
	require.NoError(t, err)
	require.Len(t, primary, 1)
	assert.Equal(t, store.DomainRelay, primary[0].Link().PrevState)
}

func TestSweepStopsWhenCaughtUp(t *testing.T) {
	f := setup(t, 3)
	it := f.startEvmTransfer(t, 63593)

	f.searcher.On("SearchTxs", mock.Anything, store.DomainRelay, "", mock.Anything).
		Return([]decoder.RawTx{decodertest.Tx("RELAY1", 10,
			decodertest.SendPacket(inbound),
			decodertest.AutoForward(63593, "oraib", oraiReceiver, usdtOnBsc, inbound.Amount, "channel-0"),
		)}, nil).Once()
	f.searcher.On("SearchTxs", mock.Anything, store.DomainPrimary, "", mock.Anything).
		Return(nil, nil).Once()

	assert.Equal(t, 1, f.sweeper.Sweep(context.Background()))
	assert.Equal(t, interpreter.StateAwaitingPrimaryRecv, it.State())
	// Catching up is not an empty search against the new state.
	assert.Equal(t, 0, it.Attempts())
	assert.Equal(t, 1, f.manager.Count())
}

func TestSweepIgnoresUnrelatedResults(t *testing.T) {
	f := setup(t, 3)
	it := f.startEvmTransfer(t, 63593)

	// Same nonce on a different EVM chain.
	other := inbound
	other.Denom = "eth-mainnet0xdac17f958d2ee523a2206206994597c13d831ec7"
	f.searcher.On("SearchTxs", mock.Anything, store.DomainRelay, "", mock.Anything).
		Return([]decoder.RawTx{decodertest.Tx("RELAYX", 10,
			decodertest.SendPacket(other),
			decodertest.AutoForward(63593, "eth-mainnet", oraiReceiver, other.Denom, other.Amount, "channel-0"),
		)}, nil).Once()

	assert.Equal(t, 0, f.sweeper.Sweep(context.Background()))
	assert.Equal(t, interpreter.StateAwaitingRelayForward, it.State())
	assert.Equal(t, 1, it.Attempts())
}

func TestSweepExhaustsRecovery(t *testing.T) {
	f := setup(t, 2)
	it := f.startEvmTransfer(t, 63593)

	f.searcher.On("SearchTxs", mock.Anything, store.DomainRelay, "", mock.Anything).Return(nil, nil).Twice()

	f.sweeper.Sweep(context.Background())
	assert.Equal(t, interpreter.StateAwaitingRelayForward, it.State())
	assert.Equal(t, 1, f.manager.Count())

	f.sweeper.Sweep(context.Background())
	assert.Equal(t, interpreter.StateFailed, it.State())
	assert.Equal(t, "TIMEOUT_EXHAUSTED", it.Context().FailureCode)
	assert.Equal(t, 0, f.manager.Count())
	f.searcher.AssertExpectations(t)
}

func TestSweepSearchErrorIsNotAnAttempt(t *testing.T) {
	f := setup(t, 1)
	it := f.startEvmTransfer(t, 63593)

	f.searcher.On("SearchTxs", mock.Anything, store.DomainRelay, "", mock.Anything).
		Return(nil, errors.New("connection refused")).Once()

	assert.Equal(t, 0, f.sweeper.Sweep(context.Background()))
	assert.Equal(t, interpreter.StateAwaitingRelayForward, it.State())
	assert.Equal(t, 0, it.Attempts())
}

func TestSweepSkipsInstancesWithinDeadline(t *testing.T) {
	f := setup(t, 3)
	f.sweeper.now = func() time.Time { return time.Now().Add(-time.Hour) }
	f.startEvmTransfer(t, 63593)

	assert.Equal(t, 0, f.sweeper.Sweep(context.Background()))
	f.searcher.AssertNotCalled(t, "SearchTxs", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
