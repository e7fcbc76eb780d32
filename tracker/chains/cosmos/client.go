// Package cosmos connects to the CometBFT RPC of the relay chain, the primary
// chain and the other observed Cosmos chains: live transaction subscriptions over
// the websocket and historical transaction search for recovery and force-ingest.
package cosmos

import (
	"context"
	"encoding/hex"
	"strings"
	"sync"

	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/oraichain/ibc-routing/tracker/decoder"
	trackererrors "github.com/oraichain/ibc-routing/tracker/errors"
	"github.com/oraichain/ibc-routing/tracker/store"
)

const (
	defaultPerPage  = 50
	defaultMaxPages = 4
)

var (
	ErrEmptyRPCURL   = errors.New("rpc url is empty")
	ErrUnknownChain  = errors.New("no client for chain")
	ErrInvalidTxHash = errors.New("invalid transaction hash")
)

// RPC is the part of the CometBFT client the tracker uses.
type RPC interface {
	TxSearch(ctx context.Context, query string, prove bool, page, perPage *int, orderBy string) (*coretypes.ResultTxSearch, error)
	Tx(ctx context.Context, hash []byte, prove bool) (*coretypes.ResultTx, error)
	Subscribe(ctx context.Context, subscriber, query string, outCapacity ...int) (<-chan coretypes.ResultEvent, error)
	UnsubscribeAll(ctx context.Context, subscriber string) error
	Start() error
	Stop() error
	IsRunning() bool
}

// Client is one Cosmos chain endpoint.
type Client struct {
	domain   store.Domain
	chainID  string
	rpcURL   string
	rpc      RPC
	perPage  int
	maxPages int
	logger   zerolog.Logger
}

// NewClient dials rpcURL over HTTP with a websocket endpoint for subscriptions.
func NewClient(domain store.Domain, chainID, rpcURL string, logger zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(rpcURL) == "" {
		return nil, ErrEmptyRPCURL
	}
	rpc, err := rpchttp.New(rpcURL, "/websocket")
	if err != nil {
		return nil, trackererrors.NewNetworkError(string(domain), "failed to create rpc client for "+rpcURL, err)
	}
	c := NewClientWithRPC(domain, chainID, rpc, logger)
	c.rpcURL = rpcURL
	return c, nil
}

// NewClientWithRPC wraps an existing RPC implementation.
func NewClientWithRPC(domain store.Domain, chainID string, rpc RPC, logger zerolog.Logger) *Client {
	return &Client{
		domain:   domain,
		chainID:  chainID,
		rpc:      rpc,
		perPage:  defaultPerPage,
		maxPages: defaultMaxPages,
		logger: logger.With().
			Str("component", "cosmos_client").
			Str("domain", string(domain)).
			Str("chain_id", chainID).
			Logger(),
	}
}

func (c *Client) Domain() store.Domain { return c.domain }
func (c *Client) ChainID() string      { return c.chainID }

// SearchTxs runs a tx_search, oldest first, reading at most maxPages pages.
func (c *Client) SearchTxs(ctx context.Context, query string) ([]decoder.RawTx, error) {
	var out []decoder.RawTx
	perPage := c.perPage
	for page := 1; page <= c.maxPages; page++ {
		p := page
		res, err := c.rpc.TxSearch(ctx, query, false, &p, &perPage, "asc")
		if err != nil {
			return nil, trackererrors.NewRPCError(string(c.domain), "tx_search failed", err).
				WithContext("query", query).
				WithContext("page", page)
		}
		for _, tx := range res.Txs {
			out = append(out, decoder.RawTxFromResult(tx))
		}
		if len(out) >= res.TotalCount || len(res.Txs) < perPage {
			break
		}
	}

	c.logger.Debug().Str("query", query).Int("results", len(out)).Msg("tx search")
	return out, nil
}

// TxByHash fetches one transaction by its hex hash, with or without 0x prefix.
func (c *Client) TxByHash(ctx context.Context, hash string) (decoder.RawTx, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(hash, "0x"), "0X"))
	if err != nil || len(raw) == 0 {
		return decoder.RawTx{}, errors.Wrapf(ErrInvalidTxHash, "%q", hash)
	}
	res, err := c.rpc.Tx(ctx, raw, false)
	if err != nil {
		return decoder.RawTx{}, trackererrors.NewRPCError(string(c.domain), "tx lookup failed", err).
			WithContext("tx_hash", hash)
	}
	return decoder.RawTxFromResult(res), nil
}

// Pool holds the clients of every configured Cosmos chain. The relay and primary
// chains are looked up by domain, other Cosmos chains by chain id.
type Pool struct {
	mu      sync.RWMutex
	relay   *Client
	primary *Client
	others  map[string]*Client
}

func NewPool() *Pool {
	return &Pool{others: make(map[string]*Client)}
}

// Add registers c under its domain (and chain id for other Cosmos chains).
func (p *Pool) Add(c *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch c.domain {
	case store.DomainRelay:
		p.relay = c
	case store.DomainPrimary:
		p.primary = c
	default:
		p.others[c.chainID] = c
	}
}

// Get returns the client for domain, using chainID only for DomainCosmos.
func (p *Pool) Get(domain store.Domain, chainID string) (*Client, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var c *Client
	switch domain {
	case store.DomainRelay:
		c = p.relay
	case store.DomainPrimary:
		c = p.primary
	case store.DomainCosmos:
		c = p.others[chainID]
	}
	if c == nil {
		return nil, errors.Wrapf(ErrUnknownChain, "%s %s", domain, chainID)
	}
	return c, nil
}

// FindByChainID returns the client whose chain id is chainID, whatever its domain.
func (p *Pool) FindByChainID(chainID string) (*Client, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, c := range []*Client{p.relay, p.primary} {
		if c != nil && c.chainID == chainID {
			return c, true
		}
	}
	c, ok := p.others[chainID]
	return c, ok
}

// Clients returns every registered client.
func (p *Pool) Clients() []*Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*Client
	for _, c := range []*Client{p.relay, p.primary} {
		if c != nil {
			out = append(out, c)
		}
	}
	for _, c := range p.others {
		out = append(out, c)
	}
	return out
}

// SearchTxs routes a historical search to the right chain.
func (p *Pool) SearchTxs(ctx context.Context, domain store.Domain, chainID, query string) ([]decoder.RawTx, error) {
	c, err := p.Get(domain, chainID)
	if err != nil {
		return nil, err
	}
	return c.SearchTxs(ctx, query)
}
