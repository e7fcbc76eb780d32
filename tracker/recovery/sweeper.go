package recovery

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/oraichain/ibc-routing/tracker/decoder"
	"github.com/oraichain/ibc-routing/tracker/interpreter"
	"github.com/oraichain/ibc-routing/tracker/manager"
	"github.com/oraichain/ibc-routing/tracker/metrics"
	"github.com/oraichain/ibc-routing/tracker/store"
)

const (
	defaultCheckInterval = 5 * time.Second

	// maxStepsPerSweep bounds how far one instance is advanced by consecutive
	// searches within a single sweep.
	maxStepsPerSweep = 8

	resultMatched   = "matched"
	resultEmpty     = "empty"
	resultExhausted = "exhausted"
	resultError     = "error"
)

// Searcher runs a historical transaction search on one chain. chainID is empty
// for the relay and primary domains.
type Searcher interface {
	SearchTxs(ctx context.Context, domain store.Domain, chainID, query string) ([]decoder.RawTx, error)
}

// Config holds configuration for the recovery sweeper.
type Config struct {
	Manager       *manager.Manager
	Decoder       *decoder.Decoder
	Searcher      Searcher
	Metrics       *metrics.Metrics // optional
	CheckInterval time.Duration
	Now           func() time.Time
	Logger        zerolog.Logger
}

// Sweeper polls the live interpreters for expired deadlines and searches for the
// event each expired one is waiting for.
type Sweeper struct {
	manager       *manager.Manager
	decoder       *decoder.Decoder
	searcher      Searcher
	metrics       *metrics.Metrics
	checkInterval time.Duration
	now           func() time.Time
	logger        zerolog.Logger

	wg sync.WaitGroup
}

// NewSweeper creates a new recovery sweeper.
func NewSweeper(cfg Config) *Sweeper {
	interval := cfg.CheckInterval
	if interval == 0 {
		interval = defaultCheckInterval
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Sweeper{
		manager:       cfg.Manager,
		decoder:       cfg.Decoder,
		searcher:      cfg.Searcher,
		metrics:       cfg.Metrics,
		checkInterval: interval,
		now:           now,
		logger:        cfg.Logger.With().Str("component", "recovery_sweeper").Logger(),
	}
}

// Start begins the background sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

// Wait blocks until the sweep loop has exited after its context ended.
func (s *Sweeper) Wait() {
	s.wg.Wait()
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one recovery pass over every expired interpreter and returns how many
// of them advanced.
func (s *Sweeper) Sweep(ctx context.Context) int {
	now := s.now()
	expired := 0
	advanced := 0
	for _, it := range s.manager.Instances() {
		if ctx.Err() != nil {
			break
		}
		if !it.Expired(now) {
			continue
		}
		expired++
		if s.recover(ctx, it) {
			advanced++
		}
	}
	if expired == 0 {
		return 0
	}

	removed := s.manager.Prune()
	s.logger.Info().
		Int("expired", expired).
		Int("advanced", advanced).
		Int("finished", removed).
		Msg("recovery sweep done")
	return advanced
}

// recover searches for the awaited event and keeps following the chain of hops
// for as long as each search yields the next event.
func (s *Sweeper) recover(ctx context.Context, it *interpreter.Interpreter) bool {
	advanced := false
	for step := 0; step < maxStepsPerSweep && !it.Terminal(); step++ {
		state := it.State()
		matched, err := s.searchOnce(ctx, it)
		if err != nil {
			s.metrics.ObserveRecovery(string(state), resultError)
			s.logger.Warn().Err(err).
				Str("handle", it.Handle()).
				Str("state", string(state)).
				Msg("recovery search failed")
			return advanced
		}
		if !matched {
			if step > 0 {
				// Caught up; the new state gets its own deadline.
				return advanced
			}
			if it.RecordEmptySearch() {
				s.metrics.ObserveRecovery(string(state), resultExhausted)
			} else {
				s.metrics.ObserveRecovery(string(state), resultEmpty)
			}
			return advanced
		}
		s.metrics.ObserveRecovery(string(state), resultMatched)
		advanced = true
	}
	return advanced
}

func (s *Sweeper) searchOnce(ctx context.Context, it *interpreter.Interpreter) (bool, error) {
	search, ok := SearchFor(it.State(), it.Context())
	if !ok {
		return false, nil
	}

	txs, err := s.searcher.SearchTxs(ctx, search.Domain, search.ChainID, search.Query)
	if err != nil {
		return false, errors.Wrapf(err, "search %s %q", search.Domain, search.Query)
	}

	for _, tx := range txs {
		events, derr := s.decoder.DecodeCosmosTx(search.Domain, search.ChainID, tx)
		if derr != nil {
			s.logger.Debug().Err(derr).Str("tx_hash", tx.Hash).Msg("dropped undecodable events")
		}
		for _, ev := range events {
			matched, err := it.Deliver(ctx, ev)
			if err != nil {
				return false, err
			}
			if matched {
				s.logger.Info().
					Str("handle", it.Handle()).
					Str("tx_hash", tx.Hash).
					Str("state", string(it.State())).
					Msg("recovered missed event")
				return true, nil
			}
		}
	}
	return false, nil
}
