// Package hopstore is the persistence layer over the four hop tables. Tables and
// columns are resolved from store.Domain so that callers can probe several tables
// generically (e.g. "which hop carries this packet sequence").
//
// Every predicate is a conjunctive equality map; there is no OR or range support.
package hopstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/oraichain/ibc-routing/tracker/db"
	trackererrors "github.com/oraichain/ibc-routing/tracker/errors"
	"github.com/oraichain/ibc-routing/tracker/store"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNilDatabase   = errors.New("database is nil")
	ErrUnknownDomain = errors.New("unknown domain")
	ErrEmptyWhere    = errors.New("update requires a where clause")
	ErrEmptyPatch    = errors.New("update requires a non-empty patch")
)

// SelectOptions narrows a Select call.
type SelectOptions struct {
	Where      map[string]any // Conjunctive equality filters, keyed by column name
	Attributes []string       // Columns to load, all when empty
	Limit      int            // 0 means no limit
	Offset     int
	Order      string // e.g. "id asc"; defaults to insertion order
}

// Store reads and writes hop records.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewStore creates a Store on top of an opened database.
func NewStore(database *db.DB, logger zerolog.Logger) *Store {
	var client *gorm.DB
	if database != nil {
		client = database.Client()
	}
	return &Store{
		db:     client,
		logger: logger.With().Str("component", "hopstore").Logger(),
	}
}

// Insert stores the record. A record whose unique key already exists is silently
// skipped, because the same chain event may be delivered more than once.
// The returned bool reports whether a new row was written.
func (s *Store) Insert(ctx context.Context, record store.Record) (bool, error) {
	if s.db == nil {
		return false, ErrNilDatabase
	}
	if record == nil || !record.Domain().Valid() {
		return false, ErrUnknownDomain
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(record)
	if result.Error != nil {
		return false, storageError(result.Error, "insert into %s", record.Domain())
	}

	inserted := result.RowsAffected > 0
	if !inserted {
		s.logger.Debug().
			Str("domain", string(record.Domain())).
			Str("tx_hash", record.Link().TxHash).
			Msg("duplicate hop ignored")
	}
	return inserted, nil
}

// Select returns the records of one domain matching opts.
func (s *Store) Select(ctx context.Context, domain store.Domain, opts SelectOptions) ([]store.Record, error) {
	if s.db == nil {
		return nil, ErrNilDatabase
	}
	dest, rows, err := store.NewRecordSlice(domain)
	if err != nil {
		return nil, ErrUnknownDomain
	}

	query := s.db.WithContext(ctx)
	if len(opts.Where) > 0 {
		query = query.Where(opts.Where)
	}
	if len(opts.Attributes) > 0 {
		query = query.Select(opts.Attributes)
	}
	if opts.Order != "" {
		query = query.Order(opts.Order)
	} else {
		query = query.Order("id asc")
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}

	if err := query.Find(dest).Error; err != nil {
		return nil, storageError(err, "select from %s", domain)
	}
	return rows(), nil
}

// Update applies patch to every record of domain matching where and returns
// the number of rows affected. An empty where is refused.
func (s *Store) Update(ctx context.Context, domain store.Domain, patch, where map[string]any) (int64, error) {
	if s.db == nil {
		return 0, ErrNilDatabase
	}
	if len(where) == 0 {
		return 0, ErrEmptyWhere
	}
	if len(patch) == 0 {
		return 0, ErrEmptyPatch
	}
	model, err := store.NewRecord(domain)
	if err != nil {
		return 0, ErrUnknownDomain
	}

	result := s.db.WithContext(ctx).Model(model).Where(where).Updates(patch)
	if result.Error != nil {
		return 0, storageError(result.Error, "update %s", domain)
	}
	return result.RowsAffected, nil
}

// FindByTxHash returns the hops of domain created by txHash.
func (s *Store) FindByTxHash(ctx context.Context, domain store.Domain, txHash string) ([]store.Record, error) {
	return s.Select(ctx, domain, SelectOptions{
		Where: map[string]any{store.ColumnTxHash: txHash},
	})
}

// FindByPacketSequence probes every table keyed by an IBC packet for the given
// packet and returns all matching hops.
func (s *Store) FindByPacketSequence(ctx context.Context, sequence uint64, srcChannel, dstChannel string) ([]store.Record, error) {
	where := map[string]any{store.ColumnPacketSequence: sequence}
	if srcChannel != "" {
		where[store.ColumnSrcChannel] = srcChannel
	}
	if dstChannel != "" {
		where[store.ColumnDstChannel] = dstChannel
	}

	var found []store.Record
	for _, domain := range store.Domains {
		if !domain.HasPacketSequence() {
			continue
		}
		records, err := s.Select(ctx, domain, SelectOptions{Where: where})
		if err != nil {
			return nil, err
		}
		found = append(found, records...)
	}
	return found, nil
}

// FindPredecessor returns the hop that record links back to, or nil for an origin.
// When the predecessor transaction holds several hops, the one sharing record's
// correlation key is chosen.
func (s *Store) FindPredecessor(ctx context.Context, record store.Record) (store.Record, error) {
	link := record.Link()
	if link.PrevState == "" || link.PrevTxHash == "" {
		return nil, nil
	}

	candidates, err := s.FindByTxHash(ctx, link.PrevState, link.PrevTxHash)
	if err != nil {
		return nil, err
	}
	prev := pickLinked(candidates, func(c store.Record) (bool, bool) {
		if next := c.Link().NextState; next != "" && next != record.Domain() {
			return false, true
		}
		return linked(c, record)
	})
	if prev == nil && len(candidates) > 0 {
		s.logger.Debug().
			Str("domain", string(record.Domain())).
			Str("tx_hash", link.TxHash).
			Int("candidates", len(candidates)).
			Msg("no predecessor shares the hop's correlation key")
	}
	return prev, nil
}

// FindSuccessor returns the hop that follows record, or nil when none was observed yet.
func (s *Store) FindSuccessor(ctx context.Context, record store.Record) (store.Record, error) {
	link := record.Link()
	if link.NextState == "" {
		return nil, nil
	}

	candidates, err := s.Select(ctx, link.NextState, SelectOptions{
		Where: map[string]any{
			store.ColumnPrevTxHash: link.TxHash,
			store.ColumnPrevState:  string(record.Domain()),
		},
	})
	if err != nil {
		return nil, err
	}
	if next := pickLinked(candidates, func(c store.Record) (bool, bool) {
		return linked(record, c)
	}); next != nil {
		return next, nil
	}

	// A primary hop also names the packet it forwarded.
	primary, ok := record.(*store.PrimaryRecord)
	if !ok || primary.NextPacketSequence == 0 || !link.NextState.HasPacketSequence() {
		return nil, nil
	}
	next, err := s.Select(ctx, link.NextState, SelectOptions{
		Where: map[string]any{
			store.ColumnPacketSequence: primary.NextPacketSequence,
			store.ColumnSrcChannel:     primary.NextSrcChannel,
			store.ColumnDstChannel:     primary.NextDstChannel,
		},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(next) > 0 {
		return next[0], nil
	}
	return nil, nil
}

func storageError(err error, format string, domain store.Domain) error {
	return trackererrors.NewStorageUnavailableError(
		"failed to "+fmt.Sprintf(format, domain.TableName()), err,
	).WithContext("domain", string(domain))
}
