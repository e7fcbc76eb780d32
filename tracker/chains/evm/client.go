// Package evm watches the gravity bridge contract of each configured EVM chain.
package evm

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/oraichain/ibc-routing/tracker/decoder"
	trackererrors "github.com/oraichain/ibc-routing/tracker/errors"
	"github.com/oraichain/ibc-routing/tracker/store"
)

var (
	ErrEmptyURL      = errors.New("evm rpc url is empty")
	ErrEmptyPrefix   = errors.New("evm chain prefix is empty")
	ErrInvalidTxHash = errors.New("invalid transaction hash")
)

// EthClient is the part of ethclient.Client the tracker uses.
type EthClient interface {
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	TransactionReceipt(ctx context.Context, txHash ethcommon.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

// Client talks to one EVM chain about its gravity contract.
type Client struct {
	prefix   string
	contract ethcommon.Address
	eth      EthClient
	logger   zerolog.Logger
}

// Dial connects to url (ws:// or wss:// for subscriptions, http(s):// for lookups only).
func Dial(ctx context.Context, prefix, url, contract string, logger zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(url) == "" {
		return nil, ErrEmptyURL
	}
	eth, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, trackererrors.NewNetworkError(string(store.DomainEvm), "failed to dial "+url, err).
			WithContext("evm_chain_prefix", prefix)
	}
	return NewClientWithEth(prefix, contract, eth, logger)
}

// NewClientWithEth wraps an existing connection.
func NewClientWithEth(prefix, contract string, eth EthClient, logger zerolog.Logger) (*Client, error) {
	if prefix == "" {
		return nil, ErrEmptyPrefix
	}
	if !ethcommon.IsHexAddress(contract) {
		return nil, errors.Errorf("invalid gravity contract address %q", contract)
	}
	return &Client{
		prefix:   prefix,
		contract: ethcommon.HexToAddress(contract),
		eth:      eth,
		logger:   logger.With().Str("component", "evm_client").Str("evm_chain_prefix", prefix).Logger(),
	}, nil
}

func (c *Client) Prefix() string              { return c.prefix }
func (c *Client) Contract() ethcommon.Address { return c.contract }

// FilterQuery selects the gravity events of the contract between from and to;
// nil bounds are open.
func (c *Client) FilterQuery(from, to *big.Int) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: from,
		ToBlock:   to,
		Addresses: []ethcommon.Address{c.contract},
		Topics:    [][]ethcommon.Hash{decoder.GravityTopics()},
	}
}

// LogsForTx returns the gravity logs emitted by one transaction.
func (c *Client) LogsForTx(ctx context.Context, hash string) ([]types.Log, error) {
	h := strings.TrimSpace(hash)
	if !strings.HasPrefix(h, "0x") {
		h = "0x" + h
	}
	if len(h) != 2+2*ethcommon.HashLength {
		return nil, errors.Wrapf(ErrInvalidTxHash, "%q", hash)
	}
	receipt, err := c.eth.TransactionReceipt(ctx, ethcommon.HexToHash(h))
	if err != nil {
		return nil, trackererrors.NewRPCError(string(store.DomainEvm), "failed to get receipt", err).
			WithContext("tx_hash", h).
			WithContext("evm_chain_prefix", c.prefix)
	}

	topics := make(map[ethcommon.Hash]bool)
	for _, t := range decoder.GravityTopics() {
		topics[t] = true
	}
	var out []types.Log
	for _, lg := range receipt.Logs {
		if lg == nil || lg.Address != c.contract || len(lg.Topics) == 0 || !topics[lg.Topics[0]] {
			continue
		}
		out = append(out, *lg)
	}
	return out, nil
}

// Close closes the underlying connection.
func (c *Client) Close() {
	c.eth.Close()
}
