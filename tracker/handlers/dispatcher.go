// Package handlers turns raw chain data into decoded events and routes them: an
// event that starts a transfer gets its own interpreter, everything else is
// offered to every live interpreter, whose correlation checks decide relevance.
package handlers

import (
	"context"
	stderrors "errors"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/oraichain/ibc-routing/tracker/decoder"
	"github.com/oraichain/ibc-routing/tracker/interpreter"
	"github.com/oraichain/ibc-routing/tracker/manager"
	"github.com/oraichain/ibc-routing/tracker/metrics"
)

var ErrNilManager = errors.New("interpreter manager is nil")

// Dispatcher routes decoded events to interpreters.
type Dispatcher struct {
	manager *manager.Manager
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewDispatcher creates a dispatcher on top of m. metrics may be nil.
func NewDispatcher(m *manager.Manager, mt *metrics.Metrics, logger zerolog.Logger) (*Dispatcher, error) {
	if m == nil {
		return nil, ErrNilManager
	}
	return &Dispatcher{
		manager: m,
		metrics: mt,
		logger:  logger.With().Str("component", "dispatcher").Logger(),
	}, nil
}

// Dispatch delivers events in order. A failure on one event does not stop the
// others; all failures are returned together.
func (d *Dispatcher) Dispatch(ctx context.Context, events []decoder.Event) error {
	var errs []error
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		d.metrics.ObserveDecoded(string(ev.Origin().Domain), string(ev.Kind()))
		if err := d.dispatch(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func (d *Dispatcher) dispatch(ctx context.Context, ev decoder.Event) error {
	if key, ok := interpreter.OriginKeyOf(ev); ok {
		return d.start(ctx, key, ev)
	}
	if _, err := d.manager.Broadcast(ctx, ev); err != nil {
		return errors.Wrapf(err, "broadcast %s from %s", ev.Kind(), ev.Origin().TxHash)
	}
	return nil
}

// start spawns the interpreter for a source event unless one for the same origin
// is already alive.
func (d *Dispatcher) start(ctx context.Context, key string, ev decoder.Event) error {
	domain, _ := interpreter.OriginDomainOf(ev)
	it, created := d.manager.Claim(key, domain)
	if !created {
		d.logger.Debug().
			Str("origin_key", key).
			Str("handle", it.Handle()).
			Msg("transfer already tracked")
		return nil
	}

	matched, err := it.Deliver(ctx, ev)
	if err != nil || !matched {
		d.manager.Remove(it.Handle())
		if err != nil {
			return errors.Wrapf(err, "start transfer %s", key)
		}
		d.logger.Warn().Str("origin_key", key).Str("kind", string(ev.Kind())).Msg("source event rejected")
		return nil
	}

	d.logger.Info().
		Str("origin_key", key).
		Str("handle", it.Handle()).
		Str("tx_hash", ev.Origin().TxHash).
		Str("state", string(it.State())).
		Msg("tracking new transfer")

	if it.Terminal() {
		d.manager.Remove(it.Handle())
	}
	return nil
}
