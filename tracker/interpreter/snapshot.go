package interpreter

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	trackererrors "github.com/oraichain/ibc-routing/tracker/errors"
)

// Snapshot is the serialisable state of one instance. Restoring a snapshot yields
// an instance that reacts to subsequent events exactly like the original.
type Snapshot struct {
	Handle    string    `json:"handle"`
	State     State     `json:"state"`
	Context   Context   `json:"context"`
	Deadline  time.Time `json:"deadline"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot captures the instance.
func (i *Interpreter) Snapshot() Snapshot {
	i.mu.Lock()
	defer i.mu.Unlock()
	return Snapshot{
		Handle:    i.handle,
		State:     i.state,
		Context:   i.ctx,
		Deadline:  i.deadline,
		Attempts:  i.attempts,
		CreatedAt: i.createdAt,
		UpdatedAt: i.updatedAt,
	}
}

// Restore rebuilds an instance from a snapshot.
func Restore(snap Snapshot, st Store, opts Options, logger zerolog.Logger) (*Interpreter, error) {
	if snap.Handle == "" {
		return nil, errors.New("snapshot has no handle")
	}
	if !snap.State.Valid() {
		return nil, errors.Errorf("snapshot %s has unknown state %q", snap.Handle, snap.State)
	}

	opts = opts.withDefaults()
	i := &Interpreter{
		handle:    snap.Handle,
		state:     snap.State,
		ctx:       snap.Context,
		deadline:  snap.Deadline,
		attempts:  snap.Attempts,
		createdAt: snap.CreatedAt,
		updatedAt: snap.UpdatedAt,
		store:     st,
		opts:      opts,
		logger:    logger.With().Str("component", "interpreter").Str("handle", snap.Handle).Logger(),
	}
	if snap.State == StateFailed && snap.Context.FailureCode != "" {
		i.failure = trackererrors.NewTrackerError(
			trackererrors.ErrorCode(snap.Context.FailureCode), "", snap.Context.FailureMessage, nil)
	}
	return i, nil
}
