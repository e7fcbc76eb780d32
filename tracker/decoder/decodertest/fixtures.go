// Package decodertest builds raw chain data in the shape nodes deliver it, for
// tests that drive transfers through the decoders.
package decodertest

import (
	"encoding/json"
	"fmt"
	"math/big"

	abci "github.com/cometbft/cometbft/abci/types"
	transfertypes "github.com/cosmos/ibc-go/v10/modules/apps/transfer/types"
	channeltypes "github.com/cosmos/ibc-go/v10/modules/core/04-channel/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/oraichain/ibc-routing/tracker/decoder"
)

// Event builds an abci.Event from alternating key/value pairs.
func Event(eventType string, kv ...string) abci.Event {
	if len(kv)%2 != 0 {
		panic("decodertest.Event: odd number of key/value arguments")
	}
	attrs := make([]abci.EventAttribute, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		attrs = append(attrs, abci.EventAttribute{Key: kv[i], Value: kv[i+1], Index: true})
	}
	return abci.Event{Type: eventType, Attributes: attrs}
}

// PacketSpec describes one transfer packet.
type PacketSpec struct {
	Sequence   uint64
	SrcChannel string
	DstChannel string
	Denom      string
	Amount     string
	Sender     string
	Receiver   string
	Memo       string
}

func (p PacketSpec) data() string {
	raw, err := json.Marshal(transfertypes.FungibleTokenPacketData{
		Denom:    p.Denom,
		Amount:   p.Amount,
		Sender:   p.Sender,
		Receiver: p.Receiver,
		Memo:     p.Memo,
	})
	if err != nil {
		panic(err)
	}
	return string(raw)
}

func (p PacketSpec) attrs(withData bool) []string {
	kv := []string{
		channeltypes.AttributeKeySequence, fmt.Sprint(p.Sequence),
		channeltypes.AttributeKeySrcPort, transfertypes.PortID,
		channeltypes.AttributeKeySrcChannel, p.SrcChannel,
		channeltypes.AttributeKeyDstPort, transfertypes.PortID,
		channeltypes.AttributeKeyDstChannel, p.DstChannel,
	}
	if withData {
		kv = append(kv, decoder.AttrKeyPacketData, p.data())
	}
	return kv
}

// SendPacket is the send_packet event for p.
func SendPacket(p PacketSpec) abci.Event {
	return Event(channeltypes.EventTypeSendPacket, p.attrs(true)...)
}

// RecvPacket is the recv_packet event for p.
func RecvPacket(p PacketSpec) abci.Event {
	return Event(channeltypes.EventTypeRecvPacket, p.attrs(true)...)
}

// WriteAck is the write_acknowledgement event for p carrying ack.
func WriteAck(p PacketSpec, ack string) abci.Event {
	kv := append(p.attrs(true), decoder.AttrKeyPacketAck, ack)
	return Event(channeltypes.EventTypeWriteAck, kv...)
}

// AckPacket is the acknowledge_packet event for p.
func AckPacket(p PacketSpec) abci.Event {
	return Event(channeltypes.EventTypeAcknowledgePacket, p.attrs(false)...)
}

// AckResult is the fungible_token_packet event emitted alongside an acknowledgement.
func AckResult(success bool, errMsg string) abci.Event {
	kv := []string{transfertypes.AttributeKeyAckSuccess, fmt.Sprint(success)}
	if errMsg != "" {
		kv = append(kv, transfertypes.AttributeKeyAckError, errMsg)
	}
	return Event(transfertypes.EventTypePacket, kv...)
}

// SuccessAck and ErrorAck are JSON acknowledgements as written by the transfer module.
const (
	SuccessAck = `{"result":"AQ=="}`
	ErrorAck   = `{"error":"ABCI code: 5: error handling packet: see events for details"}`
)

// AutoForward is the bridge chain event for a deposit forwarded over IBC.
func AutoForward(nonce uint64, prefix, receiver, token, amount, channel string) abci.Event {
	return Event(decoder.EventTypeAutoForward,
		decoder.AttrKeyNonce, fmt.Sprint(nonce),
		decoder.AttrKeyReceiver, receiver,
		decoder.AttrKeyToken, token,
		decoder.AttrKeyAmount, amount,
		decoder.AttrKeyChannel, channel,
		decoder.AttrKeyEvmChainPrefix, prefix,
	)
}

// OutgoingTxID is the bridge chain event assigning an outgoing EVM transfer id.
func OutgoingTxID(id uint64) abci.Event {
	return Event(decoder.EventTypeOutgoingTxID,
		"message", "send_to_evm",
		decoder.AttrKeyTxID, fmt.Sprint(id),
	)
}

// BatchCreated is the bridge chain event grouping outgoing transfers into a batch.
func BatchCreated(batchNonce uint64, prefix string, ids ...uint64) abci.Event {
	raw, _ := json.Marshal(ids)
	return Event(decoder.EventTypeBatchCreated,
		decoder.AttrKeyBatchNonce, fmt.Sprint(batchNonce),
		decoder.AttrKeyBatchTxIDs, string(raw),
		decoder.AttrKeyEvmChainPrefix, prefix,
		decoder.AttrKeyTokenContract, "0x55d398326f99059fF775485246999027B3197955",
	)
}

// BatchClaim is the bridge chain event attesting a batch execution.
func BatchClaim(batchNonce, eventNonce uint64, prefix string) abci.Event {
	return Event(decoder.EventTypeBatchClaim,
		decoder.AttrKeyNonce, fmt.Sprint(eventNonce),
		decoder.AttrKeyBatchNonce, fmt.Sprint(batchNonce),
		decoder.AttrKeyTokenContract, "0x55d398326f99059fF775485246999027B3197955",
		decoder.AttrKeyEvmChainPrefix, prefix,
	)
}

// WasmAction is a wasm event carrying an action attribute.
func WasmAction(action string) abci.Event {
	return Event(decoder.EventTypeWasm, "_contract_address", "orai195269awwnt5m6c843q6w7hp8rt0k7syfu9de4h0wz384slshuzps8y7ccm", decoder.AttrKeyAction, action)
}

// Tx wraps events into a RawTx.
func Tx(hash string, height uint64, events ...abci.Event) decoder.RawTx {
	return decoder.RawTx{Hash: hash, Height: height, Events: events}
}

// SendToCosmosLog is the gravity contract log of a deposit.
func SendToCosmosLog(txHash string, block uint64, token, sender common.Address, destination string, amount *big.Int, nonce uint64) types.Log {
	ev := decoder.GravityABI.Events[decoder.EventSendToCosmos]
	data, err := ev.Inputs.NonIndexed().Pack(destination, amount, new(big.Int).SetUint64(nonce))
	if err != nil {
		panic(err)
	}
	return types.Log{
		Topics: []common.Hash{
			ev.ID,
			common.BytesToHash(token.Bytes()),
			common.BytesToHash(sender.Bytes()),
		},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.HexToHash(txHash),
	}
}

// BatchExecutedLog is the gravity contract log of a released batch.
func BatchExecutedLog(txHash string, block uint64, batchNonce uint64, token common.Address, eventNonce uint64) types.Log {
	ev := decoder.GravityABI.Events[decoder.EventBatchExecuted]
	data, err := ev.Inputs.NonIndexed().Pack(new(big.Int).SetUint64(eventNonce))
	if err != nil {
		panic(err)
	}
	return types.Log{
		Topics: []common.Hash{
			ev.ID,
			common.BigToHash(new(big.Int).SetUint64(batchNonce)),
			common.BytesToHash(token.Bytes()),
		},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.HexToHash(txHash),
	}
}
