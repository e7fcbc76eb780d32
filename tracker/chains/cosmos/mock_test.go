package cosmos

import (
	"context"
	"sync"

	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/stretchr/testify/mock"

	"github.com/oraichain/ibc-routing/tracker/decoder"
)

type mockRPC struct {
	mock.Mock
}

func (m *mockRPC) TxSearch(ctx context.Context, query string, prove bool, page, perPage *int, orderBy string) (*coretypes.ResultTxSearch, error) {
	args := m.Called(ctx, query, *page, *perPage, orderBy)
	res, _ := args.Get(0).(*coretypes.ResultTxSearch)
	return res, args.Error(1)
}

func (m *mockRPC) Tx(ctx context.Context, hash []byte, prove bool) (*coretypes.ResultTx, error) {
	args := m.Called(ctx, hash)
	res, _ := args.Get(0).(*coretypes.ResultTx)
	return res, args.Error(1)
}

func (m *mockRPC) Subscribe(ctx context.Context, subscriber, query string, outCapacity ...int) (<-chan coretypes.ResultEvent, error) {
	args := m.Called(ctx, subscriber, query)
	ch, _ := args.Get(0).(chan coretypes.ResultEvent)
	return ch, args.Error(1)
}

func (m *mockRPC) UnsubscribeAll(ctx context.Context, subscriber string) error {
	return m.Called(ctx, subscriber).Error(0)
}

func (m *mockRPC) Start() error    { return m.Called().Error(0) }
func (m *mockRPC) Stop() error     { return m.Called().Error(0) }
func (m *mockRPC) IsRunning() bool { return m.Called().Bool(0) }

type recordingHandler struct {
	mu  sync.Mutex
	txs []decoder.RawTx
}

func (h *recordingHandler) HandleTx(_ context.Context, tx decoder.RawTx) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.txs = append(h.txs, tx)
	return nil
}

func (h *recordingHandler) hashes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.txs))
	for _, tx := range h.txs {
		out = append(out, tx.Hash)
	}
	return out
}
