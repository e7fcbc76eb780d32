package core

import (
	"context"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/oraichain/ibc-routing/tracker/decoder"
	trackererrors "github.com/oraichain/ibc-routing/tracker/errors"
	"github.com/oraichain/ibc-routing/tracker/handlers"
	"github.com/oraichain/ibc-routing/tracker/query"
	"github.com/oraichain/ibc-routing/tracker/store"
)

var (
	ErrUnknownEvmChain    = errors.New("unknown evm chain prefix")
	ErrUnknownCosmosChain = errors.New("unknown chain id")
	ErrNoGravityLogs      = errors.New("transaction has no gravity contract logs")
)

// EvmSource fetches the gravity logs of one EVM transaction.
type EvmSource interface {
	LogsForTx(ctx context.Context, hash string) ([]types.Log, error)
}

// CosmosSource fetches one Cosmos transaction.
type CosmosSource interface {
	TxByHash(ctx context.Context, hash string) (decoder.RawTx, error)
}

type evmRoute struct {
	prefix string
	source EvmSource
}

type cosmosRoute struct {
	source  CosmosSource
	handler *handlers.CosmosHandler
}

// Ingester feeds transactions submitted through the API into the same handlers
// the live listeners use.
type Ingester struct {
	primaryChainID string
	evmHandler     *handlers.EvmHandler
	logger         zerolog.Logger

	mu     sync.RWMutex
	evm    map[string]evmRoute    // lower-cased prefix -> configured prefix and source
	cosmos map[string]cosmosRoute // chain id -> source and handler
}

func NewIngester(primaryChainID string, evmHandler *handlers.EvmHandler, logger zerolog.Logger) *Ingester {
	return &Ingester{
		primaryChainID: primaryChainID,
		evmHandler:     evmHandler,
		logger:         logger.With().Str("component", "ingester").Logger(),
		evm:            make(map[string]evmRoute),
		cosmos:         make(map[string]cosmosRoute),
	}
}

// AddEvm registers the source of the EVM chain with the given prefix.
func (in *Ingester) AddEvm(prefix string, src EvmSource) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.evm[strings.ToLower(prefix)] = evmRoute{prefix: prefix, source: src}
}

// AddCosmos registers the source of the chain handled by h.
func (in *Ingester) AddCosmos(src CosmosSource, h *handlers.CosmosHandler) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.cosmos[h.ChainID()] = cosmosRoute{source: src, handler: h}
}

// Ingest fetches txHash from the chain the hint selects and processes it. Neither
// hint selects the primary chain.
func (in *Ingester) Ingest(ctx context.Context, txHash string, hint query.Hint) error {
	if hint.EvmChainPrefix != "" {
		return in.ingestEvm(ctx, txHash, hint.EvmChainPrefix)
	}
	chainID := hint.ChainID
	if chainID == "" {
		chainID = in.primaryChainID
	}
	return in.ingestCosmos(ctx, txHash, chainID)
}

func (in *Ingester) ingestEvm(ctx context.Context, txHash, prefix string) error {
	in.mu.RLock()
	route, ok := in.evm[strings.ToLower(prefix)]
	in.mu.RUnlock()
	if !ok {
		return errors.Wrap(ErrUnknownEvmChain, prefix)
	}

	logs, err := route.source.LogsForTx(ctx, txHash)
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		return trackererrors.NewValidationError(string(store.DomainEvm), ErrNoGravityLogs.Error()).
			WithContext("tx_hash", txHash)
	}
	in.logger.Info().Str("tx_hash", txHash).Str("evm_chain_prefix", route.prefix).Int("logs", len(logs)).Msg("ingesting evm transaction")
	return in.evmHandler.HandleLogs(ctx, route.prefix, logs)
}

func (in *Ingester) ingestCosmos(ctx context.Context, txHash, chainID string) error {
	in.mu.RLock()
	route, ok := in.cosmos[chainID]
	in.mu.RUnlock()
	if !ok {
		return errors.Wrap(ErrUnknownCosmosChain, chainID)
	}

	tx, err := route.source.TxByHash(ctx, txHash)
	if err != nil {
		return err
	}
	in.logger.Info().Str("tx_hash", txHash).Str("chain_id", chainID).Msg("ingesting cosmos transaction")
	return route.handler.HandleTx(ctx, tx)
}
