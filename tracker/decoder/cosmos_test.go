package decoder_test

import (
	"fmt"
	"testing"

	abci "github.com/cometbft/cometbft/abci/types"
	cmttypes "github.com/cometbft/cometbft/types"
	channeltypes "github.com/cosmos/ibc-go/v10/modules/core/04-channel/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oraichain/ibc-routing/tracker/decoder"
	"github.com/oraichain/ibc-routing/tracker/decoder/decodertest"
	trackererrors "github.com/oraichain/ibc-routing/tracker/errors"
	"github.com/oraichain/ibc-routing/tracker/store"
)

const (
	usdtOnBsc     = "oraib0x55d398326f99059fF775485246999027B3197955"
	evmReceiver   = "oraib0x8754032Ac7966A909e2E753308dF56bb08DabD69"
	oraiReceiver  = "orai1hvr9d72r5um9lvt0rpkd4r75vrsqtw6yujhqs2"
	bridgeAddress = "oraib1hvr9d72r5um9lvt0rpkd4r75vrsqtw6y86jn8t"
)

func newDecoder() *decoder.Decoder {
	return decoder.New(decoder.Registry{
		EvmPrefixes:  []string{"oraib", "eth-mainnet", "trontrx-mainnet"},
		RelayChannel: "channel-1",
		CosmosChannels: map[string]decoder.CosmosChainRef{
			"channel-15": {ChainID: "cosmoshub-4", Observed: true},
			"channel-13": {ChainID: "osmosis-1"},
		},
	})
}

// inbound is the packet the bridge chain forwards to the primary chain.
func inbound(seq uint64) decodertest.PacketSpec {
	return decodertest.PacketSpec{
		Sequence:   seq,
		SrcChannel: "channel-0",
		DstChannel: "channel-1",
		Denom:      usdtOnBsc,
		Amount:     "10000000000000000",
		Sender:     bridgeAddress,
		Receiver:   oraiReceiver,
	}
}

// outbound is the packet the primary chain sends back to the bridge chain.
func outbound(seq uint64) decodertest.PacketSpec {
	return decodertest.PacketSpec{
		Sequence:   seq,
		SrcChannel: "channel-1",
		DstChannel: "channel-0",
		Denom:      usdtOnBsc,
		Amount:     "10000000000000000",
		Sender:     oraiReceiver,
		Receiver:   evmReceiver,
	}
}

func TestDecodeRelayAutoForward(t *testing.T) {
	d := newDecoder()
	tx := decodertest.Tx("A1", 100,
		decodertest.AutoForward(63593, "oraib", oraiReceiver, usdtOnBsc, "10000000000000000", "channel-0"),
		decodertest.SendPacket(inbound(18337)),
	)

	events, err := d.DecodeCosmosTx(store.DomainRelay, "oraibridge-subnet-2", tx)
	require.NoError(t, err)
	require.Len(t, events, 1)

	af, ok := events[0].(decoder.AutoForwardEvent)
	require.True(t, ok)
	assert.Equal(t, uint64(63593), af.EventNonce)
	assert.Equal(t, "oraib", af.EvmChainPrefix)
	assert.Equal(t, uint64(18337), af.Packet.Sequence)
	assert.Equal(t, "channel-0", af.Packet.SrcChannel)
	assert.Equal(t, "channel-1", af.Packet.DstChannel)
	assert.Equal(t, "10000000000000000", af.Packet.Data.Amount)
	assert.Equal(t, store.DomainRelay, af.Origin().Domain)
	assert.Equal(t, "A1", af.Origin().TxHash)
	assert.Equal(t, uint64(100), af.Origin().Height)
}

func TestDecodeRelayAutoForwardPairsByReceiver(t *testing.T) {
	d := newDecoder()
	other := inbound(18338)
	other.Receiver = "orai1other"

	tx := decodertest.Tx("A2", 100,
		decodertest.SendPacket(other),
		decodertest.SendPacket(inbound(18337)),
		decodertest.AutoForward(63593, "oraib", oraiReceiver, usdtOnBsc, "1", "channel-0"),
		decodertest.AutoForward(63594, "oraib", "orai1other", usdtOnBsc, "1", "channel-0"),
	)
	events, err := d.DecodeCosmosTx(store.DomainRelay, "oraibridge-subnet-2", tx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(18337), events[0].(decoder.AutoForwardEvent).Packet.Sequence)
	assert.Equal(t, uint64(18338), events[1].(decoder.AutoForwardEvent).Packet.Sequence)
}

func TestDecodeRelayAutoForwardWithoutSendPacket(t *testing.T) {
	d := newDecoder()
	tx := decodertest.Tx("A3", 100,
		decodertest.AutoForward(1, "oraib", oraiReceiver, usdtOnBsc, "1", "channel-0"),
	)
	events, err := d.DecodeCosmosTx(store.DomainRelay, "oraibridge-subnet-2", tx)
	require.Error(t, err)
	assert.Empty(t, events)
	assert.True(t, trackererrors.IsTrackerError(err, trackererrors.ErrCodeDecode))
}

func TestDecodeRelayRecvWithOutgoingTx(t *testing.T) {
	d := newDecoder()
	p := outbound(22607)
	tx := decodertest.Tx("B1", 200,
		decodertest.RecvPacket(p),
		decodertest.OutgoingTxID(5121),
		decodertest.WriteAck(p, decodertest.SuccessAck),
	)

	events, err := d.DecodeCosmosTx(store.DomainRelay, "oraibridge-subnet-2", tx)
	require.NoError(t, err)
	require.Len(t, events, 1)

	recv := events[0].(decoder.RecvPacketEvent)
	assert.Equal(t, uint64(5121), recv.OutgoingTxID)
	assert.Equal(t, "oraib", recv.EvmChainPrefix)
	assert.True(t, recv.AckSuccess)
	assert.Equal(t, decodertest.SuccessAck, recv.Ack)
	assert.Nil(t, recv.Forward)
}

func TestDecodeRelayBatchEvents(t *testing.T) {
	d := newDecoder()
	tx := decodertest.Tx("C1", 300,
		decodertest.BatchCreated(911, "oraib", 5120, 5121),
		decodertest.BatchClaim(911, 70001, "oraib"),
	)

	events, err := d.DecodeCosmosTx(store.DomainRelay, "oraibridge-subnet-2", tx)
	require.NoError(t, err)
	require.Len(t, events, 2)

	batch := events[0].(decoder.BatchCreatedEvent)
	assert.Equal(t, uint64(911), batch.BatchNonce)
	assert.Equal(t, []uint64{5120, 5121}, batch.TxIDs)
	assert.True(t, batch.Contains(5121))
	assert.False(t, batch.Contains(1))

	claim := events[1].(decoder.BatchClaimEvent)
	assert.Equal(t, uint64(911), claim.BatchNonce)
	assert.Equal(t, uint64(70001), claim.EventNonce)
	assert.Equal(t, "oraib", claim.EvmChainPrefix)
}

func TestDecodeBatchTxIDsCommaSeparated(t *testing.T) {
	d := newDecoder()
	tx := decodertest.Tx("C2", 300, decodertest.Event(decoder.EventTypeBatchCreated,
		decoder.AttrKeyBatchNonce, "3",
		decoder.AttrKeyBatchTxIDs, "7, 8,9",
		decoder.AttrKeyEvmChainPrefix, "oraib",
	))
	events, err := d.DecodeCosmosTx(store.DomainRelay, "oraibridge-subnet-2", tx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, []uint64{7, 8, 9}, events[0].(decoder.BatchCreatedEvent).TxIDs)
}

func TestDecodeBatchEventsResolveChainPrefix(t *testing.T) {
	d := newDecoder()

	t.Run("from token denom", func(t *testing.T) {
		tx := decodertest.Tx("C3", 301, decodertest.Event(decoder.EventTypeBatchCreated,
			decoder.AttrKeyBatchNonce, "5",
			decoder.AttrKeyBatchTxIDs, "9",
			decoder.AttrKeyDenom, "eth-mainnet0xdAC17F958D2ee523a2206206994597C13D831ec7",
		))
		events, err := d.DecodeCosmosTx(store.DomainRelay, "oraibridge-subnet-2", tx)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "eth-mainnet", events[0].(decoder.BatchCreatedEvent).EvmChainPrefix)
	})

	t.Run("unresolvable", func(t *testing.T) {
		tx := decodertest.Tx("C4", 302,
			decodertest.Event(decoder.EventTypeBatchCreated,
				decoder.AttrKeyBatchNonce, "5",
				decoder.AttrKeyBatchTxIDs, "9",
			),
			decodertest.Event(decoder.EventTypeBatchClaim,
				decoder.AttrKeyBatchNonce, "5",
				decoder.AttrKeyNonce, "70002",
			),
		)
		events, err := d.DecodeCosmosTx(store.DomainRelay, "oraibridge-subnet-2", tx)
		require.Error(t, err)
		assert.True(t, trackererrors.IsTrackerError(err, trackererrors.ErrCodeDecode))
		assert.Empty(t, events)
	})

	t.Run("single configured chain", func(t *testing.T) {
		single := decoder.New(decoder.Registry{EvmPrefixes: []string{"oraib"}})
		tx := decodertest.Tx("C5", 303, decodertest.Event(decoder.EventTypeBatchClaim,
			decoder.AttrKeyBatchNonce, "5",
			decoder.AttrKeyNonce, "70002",
		))
		events, err := single.DecodeCosmosTx(store.DomainRelay, "oraibridge-subnet-2", tx)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "oraib", events[0].(decoder.BatchClaimEvent).EvmChainPrefix)
	})
}

func TestDecodePrimaryRecvWithForward(t *testing.T) {
	d := newDecoder()
	in, out := inbound(18337), outbound(22607)
	tx := decodertest.Tx("D1", 400,
		decodertest.RecvPacket(in),
		decodertest.SendPacket(out),
		decodertest.WriteAck(in, decodertest.SuccessAck),
	)

	events, err := d.DecodeCosmosTx(store.DomainPrimary, "Oraichain", tx)
	require.NoError(t, err)
	require.Len(t, events, 1)

	recv := events[0].(decoder.RecvPacketEvent)
	assert.Equal(t, uint64(18337), recv.Packet.Sequence)
	assert.True(t, recv.AckSuccess)
	require.NotNil(t, recv.Forward)
	assert.Equal(t, store.DomainRelay, recv.Forward.Target)
	assert.Equal(t, "oraib", recv.Forward.EvmChainPrefix)
	assert.Equal(t, uint64(22607), recv.Forward.Packet.Sequence)
}

func TestDecodePrimaryRecvToCosmos(t *testing.T) {
	d := newDecoder()
	in := inbound(18337)
	out := decodertest.PacketSpec{
		Sequence: 901, SrcChannel: "channel-15", DstChannel: "channel-301",
		Denom: "uatom", Amount: "5", Sender: oraiReceiver, Receiver: "cosmos1g4h64yjt0fvzv5v2j8tyfnpe5kmnetejvfgs7g",
	}
	tx := decodertest.Tx("D2", 401,
		decodertest.RecvPacket(in),
		decodertest.SendPacket(out),
		decodertest.WriteAck(in, decodertest.SuccessAck),
	)
	events, err := d.DecodeCosmosTx(store.DomainPrimary, "Oraichain", tx)
	require.NoError(t, err)
	require.Len(t, events, 1)

	fwd := events[0].(decoder.RecvPacketEvent).Forward
	require.NotNil(t, fwd)
	assert.Equal(t, store.DomainCosmos, fwd.Target)
	assert.Equal(t, "cosmoshub-4", fwd.ChainID)
	assert.True(t, fwd.Observed)
}

func TestDecodePrimaryFailedAck(t *testing.T) {
	d := newDecoder()
	in := inbound(18337)
	tx := decodertest.Tx("D3", 402,
		decodertest.RecvPacket(in),
		decodertest.WriteAck(in, decodertest.ErrorAck),
	)
	events, err := d.DecodeCosmosTx(store.DomainPrimary, "Oraichain", tx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	recv := events[0].(decoder.RecvPacketEvent)
	assert.False(t, recv.AckSuccess)
	assert.Nil(t, recv.Forward)
}

func TestDecodePrimaryMultipleSegments(t *testing.T) {
	d := newDecoder()
	a, b := inbound(1), inbound(2)
	outA := outbound(10)
	tx := decodertest.Tx("D4", 403,
		decodertest.RecvPacket(a),
		decodertest.SendPacket(outA),
		decodertest.WriteAck(a, decodertest.SuccessAck),
		decodertest.RecvPacket(b),
		decodertest.WriteAck(b, decodertest.ErrorAck),
	)
	events, err := d.DecodeCosmosTx(store.DomainPrimary, "Oraichain", tx)
	require.NoError(t, err)
	require.Len(t, events, 2)

	first := events[0].(decoder.RecvPacketEvent)
	second := events[1].(decoder.RecvPacketEvent)
	require.NotNil(t, first.Forward)
	assert.Equal(t, uint64(10), first.Forward.Packet.Sequence)
	assert.True(t, first.AckSuccess)
	assert.Nil(t, second.Forward)
	assert.False(t, second.AckSuccess)
}

func TestDecodePrimaryTransferBack(t *testing.T) {
	d := newDecoder()

	t.Run("wasm action", func(t *testing.T) {
		out := decodertest.PacketSpec{
			Sequence: 55, SrcChannel: "channel-13", DstChannel: "channel-216",
			Denom: "uosmo", Amount: "9", Sender: oraiReceiver, Receiver: "osmo1receiver",
		}
		tx := decodertest.Tx("E1", 500,
			decodertest.WasmAction(decoder.ActionTransferBack),
			decodertest.SendPacket(out),
		)
		events, err := d.DecodeCosmosTx(store.DomainPrimary, "Oraichain", tx)
		require.NoError(t, err)
		require.Len(t, events, 1)
		tb := events[0].(decoder.TransferBackEvent)
		assert.Equal(t, oraiReceiver, tb.Sender)
		assert.Equal(t, store.DomainCosmos, tb.Forward.Target)
		assert.Equal(t, "osmosis-1", tb.Forward.ChainID)
	})

	t.Run("relay bound without action", func(t *testing.T) {
		tx := decodertest.Tx("E2", 501, decodertest.SendPacket(outbound(22607)))
		events, err := d.DecodeCosmosTx(store.DomainPrimary, "Oraichain", tx)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, store.DomainRelay, events[0].(decoder.TransferBackEvent).Forward.Target)
	})

	t.Run("plain cosmos send is ignored", func(t *testing.T) {
		out := decodertest.PacketSpec{
			Sequence: 56, SrcChannel: "channel-15", DstChannel: "channel-301",
			Denom: "orai", Amount: "1", Sender: oraiReceiver, Receiver: "cosmos1receiver",
		}
		tx := decodertest.Tx("E3", 502, decodertest.SendPacket(out))
		events, err := d.DecodeCosmosTx(store.DomainPrimary, "Oraichain", tx)
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

func TestDecodePrimaryAckPacket(t *testing.T) {
	d := newDecoder()
	out := decodertest.PacketSpec{Sequence: 77, SrcChannel: "channel-13", DstChannel: "channel-216"}

	tx := decodertest.Tx("F1", 600,
		decodertest.AckPacket(out),
		decodertest.AckResult(false, "insufficient funds"),
		decodertest.AckPacket(outbound(78)),
		decodertest.AckResult(true, ""),
	)
	events, err := d.DecodeCosmosTx(store.DomainPrimary, "Oraichain", tx)
	require.NoError(t, err)
	require.Len(t, events, 2)

	failed := events[0].(decoder.AckPacketEvent)
	assert.Equal(t, uint64(77), failed.Packet.Sequence)
	assert.False(t, failed.Success)
	assert.Equal(t, "insufficient funds", failed.Error)

	ok := events[1].(decoder.AckPacketEvent)
	assert.True(t, ok.Success)
}

func TestDecodeDropsMalformedEvents(t *testing.T) {
	d := newDecoder()
	tx := decodertest.Tx("G1", 700,
		decodertest.Event(channeltypes.EventTypeRecvPacket, channeltypes.AttributeKeySrcChannel, "channel-0"),
		decodertest.RecvPacket(inbound(3)),
	)
	events, err := d.DecodeCosmosTx(store.DomainCosmos, "cosmoshub-4", tx)
	require.Error(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(3), events[0].(decoder.RecvPacketEvent).Packet.Sequence)
}

func TestDecodeCosmosDomainIgnoresForward(t *testing.T) {
	d := newDecoder()
	in := decodertest.PacketSpec{
		Sequence: 901, SrcChannel: "channel-301", DstChannel: "channel-15",
		Denom: "transfer/channel-301/orai", Amount: "5", Sender: oraiReceiver, Receiver: "cosmos1receiver",
	}
	tx := decodertest.Tx("H1", 800,
		decodertest.RecvPacket(in),
		decodertest.SendPacket(outbound(1)),
		decodertest.WriteAck(in, decodertest.SuccessAck),
	)
	events, err := d.DecodeCosmosTx(store.DomainCosmos, "cosmoshub-4", tx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Nil(t, events[0].(decoder.RecvPacketEvent).Forward)
}

func TestDecodeUnknownDomain(t *testing.T) {
	_, err := newDecoder().DecodeCosmosTx(store.DomainEvm, "oraib", decodertest.Tx("X", 1))
	require.Error(t, err)
}

func TestRawTxFromEventData(t *testing.T) {
	raw := []byte("signed-tx-bytes")
	data := cmttypes.EventDataTx{TxResult: abci.TxResult{
		Height: 42,
		Tx:     raw,
		Result: abci.ExecTxResult{Events: []abci.Event{decodertest.RecvPacket(inbound(1))}},
	}}

	tx := decoder.RawTxFromEventData(data)
	assert.Equal(t, fmt.Sprintf("%X", cmttypes.Tx(raw).Hash()), tx.Hash)
	assert.Equal(t, uint64(42), tx.Height)
	assert.Len(t, tx.Events, 1)
}
