package handlers

import (
	"context"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/oraichain/ibc-routing/tracker/decoder"
	"github.com/oraichain/ibc-routing/tracker/metrics"
	"github.com/oraichain/ibc-routing/tracker/store"
)

// EvmHandler handles gravity contract logs of every configured EVM chain.
type EvmHandler struct {
	decoder    *decoder.Decoder
	dispatcher *Dispatcher
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

func NewEvmHandler(dec *decoder.Decoder, dispatcher *Dispatcher, mt *metrics.Metrics, logger zerolog.Logger) *EvmHandler {
	return &EvmHandler{
		decoder:    dec,
		dispatcher: dispatcher,
		metrics:    mt,
		logger:     logger.With().Str("component", "evm_handler").Logger(),
	}
}

// HandleLogs decodes and dispatches the logs of the EVM chain identified by prefix.
// Logs that fail to decode are dropped.
func (h *EvmHandler) HandleLogs(ctx context.Context, prefix string, logs []types.Log) error {
	events := make([]decoder.Event, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			continue
		}
		ev, err := h.decoder.DecodeEvmLog(prefix, l)
		if err != nil {
			h.metrics.ObserveDropped(string(store.DomainEvm))
			h.logger.Warn().Err(err).
				Str("evm_chain_prefix", prefix).
				Str("tx_hash", l.TxHash.Hex()).
				Uint("log_index", l.Index).
				Msg("dropped undecodable log")
			continue
		}
		if ev != nil {
			events = append(events, ev)
		}
	}
	if len(events) == 0 {
		return nil
	}
	return h.dispatcher.Dispatch(ctx, events)
}

// CosmosHandler handles the transactions of one Cosmos chain: the relay chain, the
// primary chain or another Cosmos chain.
type CosmosHandler struct {
	domain     store.Domain
	chainID    string
	decoder    *decoder.Decoder
	dispatcher *Dispatcher
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

func NewCosmosHandler(domain store.Domain, chainID string, dec *decoder.Decoder, dispatcher *Dispatcher, mt *metrics.Metrics, logger zerolog.Logger) *CosmosHandler {
	return &CosmosHandler{
		domain:     domain,
		chainID:    chainID,
		decoder:    dec,
		dispatcher: dispatcher,
		metrics:    mt,
		logger: logger.With().
			Str("component", "cosmos_handler").
			Str("domain", string(domain)).
			Str("chain_id", chainID).
			Logger(),
	}
}

func (h *CosmosHandler) Domain() store.Domain { return h.domain }
func (h *CosmosHandler) ChainID() string      { return h.chainID }

// HandleTx decodes and dispatches one transaction. Events that fail to decode are
// dropped; the rest of the transaction is still dispatched.
func (h *CosmosHandler) HandleTx(ctx context.Context, tx decoder.RawTx) error {
	events, err := h.decoder.DecodeCosmosTx(h.domain, h.chainID, tx)
	if err != nil {
		h.metrics.ObserveDropped(string(h.domain))
		h.logger.Warn().Err(err).Str("tx_hash", tx.Hash).Uint64("height", tx.Height).Msg("dropped undecodable events")
	}
	if len(events) == 0 {
		return nil
	}
	return h.dispatcher.Dispatch(ctx, events)
}
