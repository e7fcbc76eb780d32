// Package interpreter implements the transfer state machine: one Interpreter per
// in-flight transfer, moving through lifecycle checkpoints as correlated events
// arrive from any domain.
//
// The transition itself (Transition) is a pure function; the Interpreter owns an
// instance's state, executes the persistence effects a transition asks for and
// keeps the recovery deadline.
package interpreter

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oraichain/ibc-routing/tracker/decoder"
	trackererrors "github.com/oraichain/ibc-routing/tracker/errors"
	"github.com/oraichain/ibc-routing/tracker/store"
)

// Store is the persistence the interpreter writes hops through.
type Store interface {
	Insert(ctx context.Context, record store.Record) (bool, error)
	Update(ctx context.Context, domain store.Domain, patch, where map[string]any) (int64, error)
}

// Options tunes deadlines and retries.
type Options struct {
	LocalTimeout time.Duration
	CrossTimeout time.Duration
	// MaxRecoveryAttempts is the number of empty recovery searches tolerated before
	// the instance fails. 0 retries forever.
	MaxRecoveryAttempts int
	// StorageRetry is used while storage is unavailable. Defaults to StorageRetryConfig.
	StorageRetry *trackererrors.RetryConfig
	// OnTransition is called after every committed transition.
	OnTransition func(from, to State)
	Now          func() time.Time
}

func (o Options) withDefaults() Options {
	if o.LocalTimeout <= 0 {
		o.LocalTimeout = 3 * time.Second
	}
	if o.CrossTimeout <= 0 {
		o.CrossTimeout = 60 * time.Second
	}
	if o.StorageRetry == nil {
		o.StorageRetry = trackererrors.StorageRetryConfig()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Interpreter tracks a single transfer. All methods are safe for concurrent use;
// deliveries to one instance are serialised by its own lock.
type Interpreter struct {
	mu sync.Mutex

	handle    string
	state     State
	ctx       Context
	deadline  time.Time
	attempts  int
	createdAt time.Time
	updatedAt time.Time
	failure   error

	store  Store
	opts   Options
	logger zerolog.Logger
}

// New creates an instance waiting for the source event of a transfer that starts
// in the origin domain (store.DomainEvm or store.DomainPrimary).
func New(origin store.Domain, st Store, opts Options, logger zerolog.Logger) *Interpreter {
	opts = opts.withDefaults()
	now := opts.Now()
	handle := uuid.NewString()
	return &Interpreter{
		handle:    handle,
		state:     StateAwaitingSource,
		ctx:       Context{Origin: origin},
		createdAt: now,
		updatedAt: now,
		store:     st,
		opts:      opts,
		logger:    logger.With().Str("component", "interpreter").Str("handle", handle).Logger(),
	}
}

// Handle returns the identifier of the instance.
func (i *Interpreter) Handle() string {
	return i.handle
}

// State returns the current state.
func (i *Interpreter) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Context returns a copy of the current correlation context.
func (i *Interpreter) Context() Context {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.ctx
}

// Terminal reports whether the instance reached done or failed.
func (i *Interpreter) Terminal() bool {
	return i.State().Terminal()
}

// Err returns why the instance failed, or nil.
func (i *Interpreter) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.failure
}

// Deadline returns when the current state expires; zero when it has none.
func (i *Interpreter) Deadline() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.deadline
}

// Attempts returns the number of empty recovery searches in the current state.
func (i *Interpreter) Attempts() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.attempts
}

// Expired reports whether the current state has a deadline that passed at now.
func (i *Interpreter) Expired(now time.Time) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return !i.state.Terminal() && !i.deadline.IsZero() && !now.Before(i.deadline)
}

// Deliver offers ev to the instance. It returns true when the event matched and
// the instance moved on. A storage outage blocks Deliver, with the state
// unchanged, until storage returns or ctx ends.
func (i *Interpreter) Deliver(ctx context.Context, ev decoder.Event) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	step := Transition(i.state, i.ctx, ev)
	if !step.Matched {
		return false, nil
	}

	if err := i.apply(ctx, step.Effects); err != nil {
		if ctx.Err() != nil {
			return false, err
		}
		if trackererrors.IsTrackerError(err, trackererrors.ErrCodeNotFound) {
			i.failLocked(err)
			return true, nil
		}
		return false, err
	}

	if step.State == StateFailed {
		i.commitLocked(step.State, step.Context)
		i.failure = step.Err
		i.logger.Error().Err(step.Err).Str("origin_key", i.ctx.OriginKey).Msg("transfer failed")
		return true, nil
	}
	i.commitLocked(step.State, step.Context)
	return true, nil
}

// apply executes effects in order, retrying all of them while storage is
// unavailable. Inserts are idempotent, so a replay after a partial failure is safe.
func (i *Interpreter) apply(ctx context.Context, effects []Effect) error {
	if len(effects) == 0 {
		return nil
	}
	return trackererrors.RetryWithConfig(ctx, func() error {
		for _, eff := range effects {
			if err := i.applyOne(ctx, eff); err != nil {
				if trackererrors.IsTrackerError(err, trackererrors.ErrCodeStorageUnavailable) {
					i.logger.Warn().Err(err).Str("state", string(i.state)).Msg("storage unavailable, retrying")
				}
				return err
			}
		}
		return nil
	}, i.opts.StorageRetry)
}

func (i *Interpreter) applyOne(ctx context.Context, eff Effect) error {
	switch e := eff.(type) {
	case InsertEffect:
		inserted, err := i.store.Insert(ctx, e.Record)
		if err != nil {
			return err
		}
		if !inserted {
			i.logger.Debug().
				Str("domain", string(e.Record.Domain())).
				Str("tx_hash", e.Record.Link().TxHash).
				Msg("hop already recorded")
		}
	case UpdateEffect:
		rows, err := i.store.Update(ctx, e.Domain, e.Patch, e.Where)
		if err != nil {
			return err
		}
		if rows == 0 && e.Required {
			return trackererrors.NewNotFoundError(string(e.Domain), "predecessor hop not found").
				WithContext("where", e.Where)
		}
	}
	return nil
}

func (i *Interpreter) commitLocked(state State, c Context) {
	from := i.state
	now := i.opts.Now()
	i.state = state
	i.ctx = c
	i.attempts = 0
	i.updatedAt = now
	i.deadline = i.deadlineFor(state, c, now)

	if from != state {
		i.logger.Info().
			Str("from", string(from)).
			Str("state", string(state)).
			Str("origin_key", c.OriginKey).
			Msg("transition")
		if i.opts.OnTransition != nil {
			i.opts.OnTransition(from, state)
		}
	}
}

func (i *Interpreter) deadlineFor(state State, c Context, now time.Time) time.Time {
	switch DeadlineClassOf(state, c) {
	case DeadlineLocal:
		return now.Add(i.opts.LocalTimeout)
	case DeadlineCross:
		return now.Add(i.opts.CrossTimeout)
	default:
		return time.Time{}
	}
}

// RecordEmptySearch notes a recovery search that found nothing. The deadline is
// pushed out again; once MaxRecoveryAttempts is reached the instance fails with
// TIMEOUT_EXHAUSTED and true is returned.
func (i *Interpreter) RecordEmptySearch() bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state.Terminal() {
		return false
	}
	i.attempts++
	if i.opts.MaxRecoveryAttempts > 0 && i.attempts >= i.opts.MaxRecoveryAttempts {
		err := trackererrors.NewTimeoutExhaustedError("", "no matching event found while waiting in "+string(i.state)).
			WithContext("attempts", i.attempts)
		i.failLocked(err)
		return true
	}
	i.deadline = i.deadlineFor(i.state, i.ctx, i.opts.Now())
	return false
}

// Fail moves the instance to failed.
func (i *Interpreter) Fail(err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state.Terminal() {
		return
	}
	i.failLocked(err)
}

func (i *Interpreter) failLocked(err error) {
	c := i.ctx
	c.FailureCode = string(trackererrors.CodeOf(err))
	c.FailureMessage = err.Error()
	i.commitLocked(StateFailed, c)
	i.failure = err
	i.logger.Error().Err(err).Str("origin_key", c.OriginKey).Msg("transfer failed")
}
