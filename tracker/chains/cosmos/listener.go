package cosmos

import (
	"context"
	"fmt"
	"sync"
	"time"

	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"
	channeltypes "github.com/cosmos/ibc-go/v10/modules/core/04-channel/types"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/oraichain/ibc-routing/tracker/decoder"
	trackererrors "github.com/oraichain/ibc-routing/tracker/errors"
	"github.com/oraichain/ibc-routing/tracker/store"
)

// Default configuration values
const (
	DefaultReconnectDelay    = time.Second
	DefaultMaxReconnectDelay = 30 * time.Second
	DefaultDedupeSize        = 4096
	DefaultBufferSize        = 256
)

var (
	ErrNilClient      = errors.New("cosmos client is nil")
	ErrNilHandler     = errors.New("tx handler is nil")
	ErrNoQueries      = errors.New("no subscription queries")
	ErrAlreadyRunning = errors.New("event listener is already running")
	ErrNotRunning     = errors.New("event listener is not running")
)

// TxHandler consumes the transactions a listener receives.
type TxHandler interface {
	HandleTx(ctx context.Context, tx decoder.RawTx) error
}

// Config holds configuration for a Cosmos event listener.
type Config struct {
	Queries           []string
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	DedupeSize        int
}

func (c *Config) applyDefaults(domain store.Domain) {
	if len(c.Queries) == 0 {
		c.Queries = QueriesFor(domain)
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = DefaultMaxReconnectDelay
	}
	if c.DedupeSize == 0 {
		c.DedupeSize = DefaultDedupeSize
	}
}

// QueriesFor returns the subscriptions covering every event the decoders of
// domain look at.
func QueriesFor(domain store.Domain) []string {
	exists := func(eventType, key string) string {
		return fmt.Sprintf("tm.event='Tx' AND %s.%s EXISTS", eventType, key)
	}
	recv := exists(channeltypes.EventTypeRecvPacket, channeltypes.AttributeKeySequence)
	switch domain {
	case store.DomainRelay:
		return []string{
			exists(decoder.EventTypeAutoForward, decoder.AttrKeyNonce),
			recv,
			exists(decoder.EventTypeBatchCreated, decoder.AttrKeyBatchNonce),
			exists(decoder.EventTypeBatchClaim, decoder.AttrKeyBatchNonce),
		}
	case store.DomainPrimary:
		return []string{
			recv,
			exists(channeltypes.EventTypeSendPacket, channeltypes.AttributeKeySequence),
			exists(channeltypes.EventTypeAcknowledgePacket, channeltypes.AttributeKeySequence),
		}
	case store.DomainCosmos:
		return []string{recv}
	}
	return nil
}

// EventListener subscribes to the transactions of one chain and hands each one,
// once, to a TxHandler.
type EventListener struct {
	client  *Client
	handler TxHandler
	cfg     Config
	seen    *lru.Cache[string, struct{}]
	logger  zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewEventListener creates a listener for client's chain.
func NewEventListener(client *Client, handler TxHandler, cfg Config, logger zerolog.Logger) (*EventListener, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if handler == nil {
		return nil, ErrNilHandler
	}
	cfg.applyDefaults(client.domain)
	if len(cfg.Queries) == 0 {
		return nil, ErrNoQueries
	}
	seen, err := lru.New[string, struct{}](cfg.DedupeSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create dedupe cache")
	}
	return &EventListener{
		client:  client,
		handler: handler,
		cfg:     cfg,
		seen:    seen,
		logger: logger.With().
			Str("component", "cosmos_event_listener").
			Str("domain", string(client.domain)).
			Str("chain_id", client.chainID).
			Logger(),
	}, nil
}

func (el *EventListener) subscriber() string {
	return "routingd-" + string(el.client.domain) + "-" + el.client.chainID
}

// Start opens one subscription per query and processes transactions until Stop
// is called or ctx ends.
func (el *EventListener) Start(ctx context.Context) error {
	el.mu.Lock()
	defer el.mu.Unlock()
	if el.running {
		return ErrAlreadyRunning
	}

	if !el.client.rpc.IsRunning() {
		if err := el.client.rpc.Start(); err != nil {
			return trackererrors.NewNetworkError(string(el.client.domain), "failed to start websocket client", err)
		}
	}

	ctx, el.cancel = context.WithCancel(ctx)
	txs := make(chan decoder.RawTx, DefaultBufferSize)

	var subs sync.WaitGroup
	for _, q := range el.cfg.Queries {
		subs.Add(1)
		el.wg.Add(1)
		go func(query string) {
			defer el.wg.Done()
			defer subs.Done()
			el.subscribeLoop(ctx, query, txs)
		}(q)
	}
	go func() {
		subs.Wait()
		close(txs)
	}()

	el.wg.Add(1)
	go el.processLoop(ctx, txs)

	el.running = true
	el.logger.Info().Strs("queries", el.cfg.Queries).Msg("cosmos event listener started")
	return nil
}

// IsRunning returns whether the listener is running.
func (el *EventListener) IsRunning() bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.running
}

// Stop cancels the subscriptions and waits for the processing loop to drain.
func (el *EventListener) Stop() error {
	el.mu.Lock()
	defer el.mu.Unlock()
	if !el.running {
		return ErrNotRunning
	}

	el.cancel()
	el.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := el.client.rpc.UnsubscribeAll(ctx, el.subscriber()); err != nil {
		el.logger.Debug().Err(err).Msg("unsubscribe failed")
	}

	el.running = false
	el.logger.Info().Msg("cosmos event listener stopped")
	return nil
}

// subscribeLoop keeps one subscription alive, resubscribing with backoff when the
// event channel closes or subscribing fails.
func (el *EventListener) subscribeLoop(ctx context.Context, query string, out chan<- decoder.RawTx) {
	attempt := 0
	for {
		events, err := el.client.rpc.Subscribe(ctx, el.subscriber(), query, DefaultBufferSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			delay := trackererrors.ExponentialBackoff(attempt, el.cfg.ReconnectDelay, el.cfg.MaxReconnectDelay)
			attempt++
			el.logger.Warn().Err(err).Str("query", query).Dur("retry_in", delay).Msg("subscribe failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		attempt = 0
		el.forward(ctx, events, out)
		if ctx.Err() != nil {
			return
		}
		el.logger.Warn().Str("query", query).Msg("subscription closed, resubscribing")
	}
}

func (el *EventListener) forward(ctx context.Context, events <-chan coretypes.ResultEvent, out chan<- decoder.RawTx) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, ok := ev.Data.(cmttypes.EventDataTx)
			if !ok {
				continue
			}
			select {
			case out <- decoder.RawTxFromEventData(data):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (el *EventListener) processLoop(ctx context.Context, txs <-chan decoder.RawTx) {
	defer el.wg.Done()
	for tx := range txs {
		if ctx.Err() != nil {
			continue
		}
		// The same transaction can match several subscriptions.
		if found, _ := el.seen.ContainsOrAdd(tx.Hash, struct{}{}); found {
			continue
		}
		if err := el.handler.HandleTx(ctx, tx); err != nil {
			el.logger.Error().Err(err).Str("tx_hash", tx.Hash).Uint64("height", tx.Height).Msg("failed to handle tx")
		}
	}
}
