// Package core wires the tracker together: storage, decoders, interpreters,
// chain listeners, the recovery sweeper and the HTTP API.
package core

import (
	"context"
	stderrors "errors"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/oraichain/ibc-routing/tracker/api"
	"github.com/oraichain/ibc-routing/tracker/chains/cosmos"
	"github.com/oraichain/ibc-routing/tracker/chains/evm"
	"github.com/oraichain/ibc-routing/tracker/config"
	"github.com/oraichain/ibc-routing/tracker/db"
	"github.com/oraichain/ibc-routing/tracker/decoder"
	"github.com/oraichain/ibc-routing/tracker/handlers"
	"github.com/oraichain/ibc-routing/tracker/hopstore"
	"github.com/oraichain/ibc-routing/tracker/interpreter"
	"github.com/oraichain/ibc-routing/tracker/manager"
	"github.com/oraichain/ibc-routing/tracker/metrics"
	"github.com/oraichain/ibc-routing/tracker/query"
	"github.com/oraichain/ibc-routing/tracker/recovery"
	"github.com/oraichain/ibc-routing/tracker/store"
)

// Listener is a live event source of one chain.
type Listener interface {
	Start(ctx context.Context) error
	Stop() error
}

// Client owns every long running component of the daemon.
type Client struct {
	cfg config.Config
	log zerolog.Logger

	db       *db.DB
	hops     *hopstore.Store
	metrics  *metrics.Metrics
	manager  *manager.Manager
	engine   *query.Engine
	ingester *Ingester
	sweeper  *recovery.Sweeper
	server   *api.Server

	pool       *cosmos.Pool
	evmClients []*evm.Client
	listeners  []Listener
}

// NewClient opens the database and builds every component from cfg. EVM chains
// are dialed here; Cosmos websockets are only opened by Start.
func NewClient(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Client, error) {
	database, err := db.OpenFileDB(cfg.DatabaseDir, cfg.DatabaseFile, true)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	c := &Client{
		cfg:     cfg,
		log:     log.With().Str("component", "core").Logger(),
		db:      database,
		hops:    hopstore.NewStore(database, log),
		metrics: metrics.New(),
		pool:    cosmos.NewPool(),
	}
	if err := c.build(ctx, log); err != nil {
		c.closeChains()
		_ = database.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) build(ctx context.Context, log zerolog.Logger) error {
	cfg := c.cfg

	c.manager = manager.New(manager.Config{
		Store: c.hops,
		Options: interpreter.Options{
			LocalTimeout:        cfg.LocalHopTimeout(),
			CrossTimeout:        cfg.CrossDomainTimeout(),
			MaxRecoveryAttempts: cfg.MaxRecoveryAttempts,
		},
		SnapshotDir:      cfg.SnapshotDir,
		SnapshotInterval: cfg.SnapshotInterval(),
		Metrics:          c.metrics,
		Logger:           log,
	})

	dec := decoder.New(RegistryFromConfig(cfg))
	dispatcher, err := handlers.NewDispatcher(c.manager, c.metrics, log)
	if err != nil {
		return err
	}
	evmHandler := handlers.NewEvmHandler(dec, dispatcher, c.metrics, log)
	c.ingester = NewIngester(cfg.PrimaryChain.ChainID, evmHandler, log)

	if err := c.addCosmos(store.DomainRelay, cfg.RelayChain, dec, dispatcher, log); err != nil {
		return err
	}
	if err := c.addCosmos(store.DomainPrimary, cfg.PrimaryChain, dec, dispatcher, log); err != nil {
		return err
	}
	for _, ch := range cfg.CosmosChains {
		if err := c.addCosmos(store.DomainCosmos, ch, dec, dispatcher, log); err != nil {
			return err
		}
	}
	for _, ch := range cfg.EvmChains {
		if err := c.addEvm(ctx, ch, evmHandler, log); err != nil {
			return err
		}
	}

	c.sweeper = recovery.NewSweeper(recovery.Config{
		Manager:       c.manager,
		Decoder:       dec,
		Searcher:      c.pool,
		Metrics:       c.metrics,
		CheckInterval: cfg.RecoverySweepInterval(),
		Logger:        log,
	})
	c.engine = query.NewEngine(query.Config{
		Store:          c.hops,
		PrimaryChainID: cfg.PrimaryChain.ChainID,
		RelayChainID:   cfg.RelayChain.ChainID,
		StuckAfter:     cfg.StuckAfter(),
		Logger:         log,
	})
	c.server = api.NewServer(c.engine, c.ingester, c.metrics.Handler(), log, cfg.APIListenAddr)
	return nil
}

func (c *Client) addCosmos(domain store.Domain, ch config.CosmosChainConfig, dec *decoder.Decoder, dispatcher *handlers.Dispatcher, log zerolog.Logger) error {
	if ch.RPCURL == "" {
		c.log.Warn().Str("domain", string(domain)).Str("chain_id", ch.ChainID).Msg("no rpc url configured, chain is not observed")
		return nil
	}
	client, err := cosmos.NewClient(domain, ch.ChainID, ch.RPCURL, log)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s client for %s", domain, ch.ChainID)
	}
	c.pool.Add(client)

	h := handlers.NewCosmosHandler(domain, ch.ChainID, dec, dispatcher, c.metrics, log)
	c.ingester.AddCosmos(client, h)

	listener, err := cosmos.NewEventListener(client, h, cosmos.Config{}, log)
	if err != nil {
		return errors.Wrapf(err, "failed to create listener for %s", ch.ChainID)
	}
	c.listeners = append(c.listeners, listener)
	return nil
}

func (c *Client) addEvm(ctx context.Context, ch config.EvmChainConfig, h *handlers.EvmHandler, log zerolog.Logger) error {
	url := ch.WsURL
	if url == "" {
		url = ch.RPCURL
	}
	if url == "" {
		c.log.Warn().Str("evm_chain_prefix", ch.ChainPrefix).Msg("no endpoint configured, chain is not observed")
		return nil
	}
	client, err := evm.Dial(ctx, ch.ChainPrefix, url, ch.GravityContract, log)
	if err != nil {
		return errors.Wrapf(err, "failed to dial evm chain %s", ch.ChainPrefix)
	}
	c.evmClients = append(c.evmClients, client)
	c.ingester.AddEvm(ch.ChainPrefix, client)

	listener, err := evm.NewEventListener(client, h, evm.Config{}, log)
	if err != nil {
		return errors.Wrapf(err, "failed to create listener for %s", ch.ChainPrefix)
	}
	c.listeners = append(c.listeners, listener)
	return nil
}

// Engine returns the route query engine.
func (c *Client) Engine() *query.Engine {
	return c.engine
}

// Manager returns the interpreter manager.
func (c *Client) Manager() *manager.Manager {
	return c.manager
}

// Start restores snapshotted interpreters, starts every component and blocks
// until ctx ends. On the way out all live interpreters are snapshotted before
// the database is closed.
func (c *Client) Start(ctx context.Context) error {
	c.log.Info().Msg("starting routing tracker")

	restored, err := c.manager.Recover()
	if err != nil {
		_ = c.db.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.manager.Start(runCtx)
	c.sweeper.Start(runCtx)

	var g errgroup.Group
	for _, l := range c.listeners {
		g.Go(func() error {
			return l.Start(runCtx)
		})
	}
	if err := g.Wait(); err != nil {
		cancel()
		return stderrors.Join(errors.Wrap(err, "failed to start listeners"), c.shutdown())
	}

	if err := c.server.Start(); err != nil {
		cancel()
		return stderrors.Join(err, c.shutdown())
	}

	c.log.Info().
		Int("restored", restored).
		Int("listeners", len(c.listeners)).
		Str("api", c.cfg.APIListenAddr).
		Msg("routing tracker started")

	<-ctx.Done()
	c.log.Info().Msg("shutting down routing tracker")
	cancel()
	return c.shutdown()
}

// shutdown expects the run context to be cancelled already.
func (c *Client) shutdown() error {
	var errs []error
	for _, l := range c.listeners {
		if err := l.Stop(); err != nil && !isNotRunning(err) {
			errs = append(errs, err)
		}
	}
	if err := c.server.Stop(); err != nil {
		errs = append(errs, errors.Wrap(err, "failed to stop api server"))
	}
	c.sweeper.Wait()
	c.manager.Wait()
	if err := c.manager.SnapshotAll(); err != nil {
		errs = append(errs, err)
	}
	c.closeChains()
	if err := c.db.Close(); err != nil {
		errs = append(errs, err)
	}
	c.log.Info().Int("live", c.manager.Count()).Msg("routing tracker stopped")
	return stderrors.Join(errs...)
}

func (c *Client) closeChains() {
	for _, ec := range c.evmClients {
		ec.Close()
	}
}

func isNotRunning(err error) bool {
	return errors.Is(err, cosmos.ErrNotRunning) || errors.Is(err, evm.ErrNotRunning)
}
