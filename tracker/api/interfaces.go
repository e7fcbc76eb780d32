package api

import (
	"context"

	"github.com/oraichain/ibc-routing/tracker/query"
)

// RouteQuerier resolves the routes a transaction took part in.
type RouteQuerier interface {
	Routes(ctx context.Context, txHash string, hint query.Hint) ([]query.Route, error)
}

// Ingester fetches a transaction from its chain and feeds it through the live
// event handlers.
type Ingester interface {
	Ingest(ctx context.Context, txHash string, hint query.Hint) error
}
