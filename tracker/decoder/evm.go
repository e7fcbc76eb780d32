package decoder

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/oraichain/ibc-routing/tracker/store"
)

const (
	EventSendToCosmos  = "SendToCosmosEvent"
	EventBatchExecuted = "TransactionBatchExecutedEvent"
)

const gravityABIJSON = `[
  {
    "anonymous": false,
    "name": "SendToCosmosEvent",
    "type": "event",
    "inputs": [
      {"indexed": true,  "name": "_tokenContract", "type": "address"},
      {"indexed": true,  "name": "_sender",        "type": "address"},
      {"indexed": false, "name": "_destination",   "type": "string"},
      {"indexed": false, "name": "_amount",        "type": "uint256"},
      {"indexed": false, "name": "_eventNonce",    "type": "uint256"}
    ]
  },
  {
    "anonymous": false,
    "name": "TransactionBatchExecutedEvent",
    "type": "event",
    "inputs": [
      {"indexed": true,  "name": "_batchNonce", "type": "uint256"},
      {"indexed": true,  "name": "_token",      "type": "address"},
      {"indexed": false, "name": "_eventNonce", "type": "uint256"}
    ]
  }
]`

// GravityABI is the subset of the gravity bridge contract ABI the tracker reads.
var GravityABI = mustParseABI(gravityABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// GravityTopics returns the event signatures to filter gravity contract logs on.
func GravityTopics() []common.Hash {
	return []common.Hash{
		GravityABI.Events[EventSendToCosmos].ID,
		GravityABI.Events[EventBatchExecuted].ID,
	}
}

// DecodeEvmLog decodes one gravity contract log observed on the EVM chain with
// the given bridge prefix. Logs of other events return (nil, nil).
func (d *Decoder) DecodeEvmLog(prefix string, lg types.Log) (Event, error) {
	if len(lg.Topics) == 0 {
		return nil, decodeError(string(store.DomainEvm), "log has no topics", nil)
	}
	src := Source{
		Domain:  store.DomainEvm,
		ChainID: prefix,
		TxHash:  lg.TxHash.Hex(),
		Height:  lg.BlockNumber,
	}

	switch lg.Topics[0] {
	case GravityABI.Events[EventSendToCosmos].ID:
		return decodeSendToCosmos(src, prefix, lg)
	case GravityABI.Events[EventBatchExecuted].ID:
		return decodeBatchExecuted(src, prefix, lg)
	default:
		return nil, nil
	}
}

func decodeSendToCosmos(src Source, prefix string, lg types.Log) (Event, error) {
	if len(lg.Topics) < 3 {
		return nil, decodeError(string(store.DomainEvm), EventSendToCosmos+" log is missing indexed topics", nil)
	}
	values := make(map[string]any)
	if err := GravityABI.UnpackIntoMap(values, EventSendToCosmos, lg.Data); err != nil {
		return nil, decodeError(string(store.DomainEvm), "unpack "+EventSendToCosmos, err)
	}

	destination, _ := values["_destination"].(string)
	amount, _ := values["_amount"].(*big.Int)
	nonce, err := uint64Value(values, "_eventNonce")
	if err != nil || amount == nil {
		return nil, decodeError(string(store.DomainEvm), EventSendToCosmos+" has invalid numeric fields", err)
	}

	route, err := ParseRoute(destination)
	if err != nil {
		return nil, decodeError(string(store.DomainEvm), "invalid destination", err).
			WithContext("event_nonce", nonce)
	}

	return EvmTransferEvent{
		Source:         src,
		EventNonce:     nonce,
		EvmChainPrefix: prefix,
		TokenContract:  common.BytesToAddress(lg.Topics[1].Bytes()).Hex(),
		Sender:         common.BytesToAddress(lg.Topics[2].Bytes()).Hex(),
		Amount:         amount.String(),
		Destination:    route,
	}, nil
}

func decodeBatchExecuted(src Source, prefix string, lg types.Log) (Event, error) {
	if len(lg.Topics) < 3 {
		return nil, decodeError(string(store.DomainEvm), EventBatchExecuted+" log is missing indexed topics", nil)
	}
	values := make(map[string]any)
	if err := GravityABI.UnpackIntoMap(values, EventBatchExecuted, lg.Data); err != nil {
		return nil, decodeError(string(store.DomainEvm), "unpack "+EventBatchExecuted, err)
	}
	eventNonce, err := uint64Value(values, "_eventNonce")
	if err != nil {
		return nil, decodeError(string(store.DomainEvm), EventBatchExecuted+" has an invalid event nonce", err)
	}
	batchNonce := new(big.Int).SetBytes(lg.Topics[1].Bytes())
	if !batchNonce.IsUint64() {
		return nil, decodeError(string(store.DomainEvm), EventBatchExecuted+" batch nonce overflows", nil)
	}

	return EvmBatchExecutedEvent{
		Source:         src,
		BatchNonce:     batchNonce.Uint64(),
		EventNonce:     eventNonce,
		EvmChainPrefix: prefix,
		TokenContract:  common.BytesToAddress(lg.Topics[2].Bytes()).Hex(),
	}, nil
}

func uint64Value(values map[string]any, key string) (uint64, error) {
	v, ok := values[key].(*big.Int)
	if !ok || v == nil {
		return 0, missingAttribute("evm log", key)
	}
	if !v.IsUint64() {
		return 0, invalidAttribute("evm log", key, nil)
	}
	return v.Uint64(), nil
}
