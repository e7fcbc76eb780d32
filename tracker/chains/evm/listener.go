package evm

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	trackererrors "github.com/oraichain/ibc-routing/tracker/errors"
)

// Default configuration values
const (
	DefaultReconnectDelay    = time.Second
	DefaultMaxReconnectDelay = 30 * time.Second
	DefaultMaxBlockRange     = 5000
	logBufferSize            = 128
)

var (
	ErrNilClient      = errors.New("evm client is nil")
	ErrNilHandler     = errors.New("log handler is nil")
	ErrAlreadyRunning = errors.New("event listener is already running")
	ErrNotRunning     = errors.New("event listener is not running")
)

// LogHandler consumes the gravity logs of one EVM chain.
type LogHandler interface {
	HandleLogs(ctx context.Context, prefix string, logs []types.Log) error
}

// Config holds configuration for an EVM event listener.
type Config struct {
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	// MaxBlockRange bounds one eth_getLogs call when catching up after a reconnect.
	MaxBlockRange uint64
}

func (c *Config) applyDefaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = DefaultMaxReconnectDelay
	}
	if c.MaxBlockRange == 0 {
		c.MaxBlockRange = DefaultMaxBlockRange
	}
}

// EventListener subscribes to the gravity contract logs and hands them to a
// LogHandler. After a dropped subscription the blocks it missed are fetched with
// eth_getLogs before subscribing again.
type EventListener struct {
	client  *Client
	handler LogHandler
	cfg     Config
	logger  zerolog.Logger

	lastBlock atomic.Uint64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewEventListener creates a listener for client's chain.
func NewEventListener(client *Client, handler LogHandler, cfg Config, logger zerolog.Logger) (*EventListener, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if handler == nil {
		return nil, ErrNilHandler
	}
	cfg.applyDefaults()
	return &EventListener{
		client:  client,
		handler: handler,
		cfg:     cfg,
		logger:  logger.With().Str("component", "evm_event_listener").Str("evm_chain_prefix", client.prefix).Logger(),
	}, nil
}

// Start begins watching the contract.
func (el *EventListener) Start(ctx context.Context) error {
	el.mu.Lock()
	defer el.mu.Unlock()
	if el.running {
		return ErrAlreadyRunning
	}

	if head, err := el.client.eth.BlockNumber(ctx); err == nil {
		el.lastBlock.Store(head)
	} else {
		el.logger.Warn().Err(err).Msg("failed to get latest block, missed logs will not be backfilled")
	}

	ctx, el.cancel = context.WithCancel(ctx)
	el.wg.Add(1)
	go el.run(ctx)

	el.running = true
	el.logger.Info().
		Str("contract", el.client.contract.Hex()).
		Uint64("from_block", el.lastBlock.Load()).
		Msg("EVM event listener started")
	return nil
}

// Stop gracefully stops the event listener.
func (el *EventListener) Stop() error {
	el.mu.Lock()
	defer el.mu.Unlock()
	if !el.running {
		return ErrNotRunning
	}
	el.cancel()
	el.wg.Wait()
	el.running = false
	el.logger.Info().Msg("EVM event listener stopped")
	return nil
}

// IsRunning returns whether the listener is currently running.
func (el *EventListener) IsRunning() bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.running
}

// LastBlock is the highest block whose logs have been handled.
func (el *EventListener) LastBlock() uint64 {
	return el.lastBlock.Load()
}

func (el *EventListener) run(ctx context.Context) {
	defer el.wg.Done()

	attempt := 0
	for {
		err := el.watch(ctx)
		if ctx.Err() != nil {
			return
		}
		delay := trackererrors.ExponentialBackoff(attempt, el.cfg.ReconnectDelay, el.cfg.MaxReconnectDelay)
		attempt++
		el.logger.Warn().Err(err).Dur("retry_in", delay).Msg("log subscription lost")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		if err := el.backfill(ctx); err != nil {
			el.logger.Error().Err(err).Msg("failed to backfill missed logs")
			continue
		}
		attempt = 0
	}
}

// watch consumes one subscription until it fails or ctx ends.
func (el *EventListener) watch(ctx context.Context) error {
	logs := make(chan types.Log, logBufferSize)
	sub, err := el.client.eth.SubscribeFilterLogs(ctx, el.client.FilterQuery(nil, nil), logs)
	if err != nil {
		return errors.Wrap(err, "subscribe to gravity logs")
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			if err == nil {
				err = errors.New("subscription closed")
			}
			return err
		case lg := <-logs:
			el.handle(ctx, []types.Log{lg})
		}
	}
}

// backfill fetches the logs between the last handled block and the chain head.
func (el *EventListener) backfill(ctx context.Context) error {
	from := el.lastBlock.Load()
	if from == 0 {
		return nil
	}
	head, err := el.client.eth.BlockNumber(ctx)
	if err != nil {
		return errors.Wrap(err, "get latest block")
	}

	for start := from; start <= head; {
		end := min(start+el.cfg.MaxBlockRange-1, head)
		q := el.client.FilterQuery(new(big.Int).SetUint64(start), new(big.Int).SetUint64(end))
		logs, err := el.client.eth.FilterLogs(ctx, q)
		if err != nil {
			return errors.Wrapf(err, "get logs %d-%d", start, end)
		}
		if len(logs) > 0 {
			el.logger.Info().
				Uint64("from_block", start).
				Uint64("to_block", end).
				Int("logs_found", len(logs)).
				Msg("backfilled gravity logs")
			el.handle(ctx, logs)
		}
		el.lastBlock.Store(end)
		start = end + 1
	}
	return nil
}

func (el *EventListener) handle(ctx context.Context, logs []types.Log) {
	if err := el.handler.HandleLogs(ctx, el.client.prefix, logs); err != nil {
		el.logger.Error().Err(err).Int("logs", len(logs)).Msg("failed to handle logs")
	}
	for _, lg := range logs {
		if lg.BlockNumber > el.lastBlock.Load() {
			el.lastBlock.Store(lg.BlockNumber)
		}
	}
}
