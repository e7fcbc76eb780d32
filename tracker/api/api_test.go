package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oraichain/ibc-routing/tracker/query"
	"github.com/oraichain/ibc-routing/tracker/store"
)

const (
	evmHash    = "0x9f4b4d2b8d2c4f0b5f4d0dbb8f35fb8e2b1b1f9c5a6e7d8c9b0a1f2e3d4c5b6a"
	cosmosHash = "2A8C0F7E6B5D4C3B2A19081716151413121110F0E0D0C0B0A090807060504031"
)

type mockQuerier struct{ mock.Mock }

func (m *mockQuerier) Routes(ctx context.Context, txHash string, hint query.Hint) ([]query.Route, error) {
	args := m.Called(ctx, txHash, hint)
	routes, _ := args.Get(0).([]query.Route)
	return routes, args.Error(1)
}

type mockIngester struct{ mock.Mock }

func (m *mockIngester) Ingest(ctx context.Context, txHash string, hint query.Hint) error {
	return m.Called(ctx, txHash, hint).Error(0)
}

func newTestServer(t *testing.T) (*Server, *mockQuerier, *mockIngester) {
	t.Helper()
	q := &mockQuerier{}
	in := &mockIngester{}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("routingd_active_interpreters 0\n"))
	})
	s := NewServer(q, in, metrics, zerolog.New(zerolog.NewTestWriter(t)), "127.0.0.1:0")
	return s, q, in
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHandleHealth(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "routingd_active_interpreters")
}

func TestQueryRouting(t *testing.T) {
	t.Run("evm hint", func(t *testing.T) {
		s, q, _ := newTestServer(t)
		route := query.Route{
			Hops:   []query.Hop{{State: store.DomainEvm, Data: &store.EvmRecord{HopLink: store.HopLink{TxHash: evmHash}, EvmChainPrefix: "oraib"}}},
			Status: store.StatusPending,
		}
		q.On("Routes", mock.Anything, evmHash, query.Hint{EvmChainPrefix: "oraib"}).Return([]query.Route{route}, nil)

		w := serve(s, httptest.NewRequest(http.MethodGet, "/api/routing?txHash="+evmHash+"&evmChainPrefix=oraib", nil))

		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "Success", body["message"])
		data, ok := body["data"].([]any)
		require.True(t, ok)
		require.Len(t, data, 1)
		hops := data[0].(map[string]any)["routes"].([]any)
		assert.Equal(t, "evm", hops[0].(map[string]any)["state"])
		q.AssertExpectations(t)
	})

	t.Run("chain id hint", func(t *testing.T) {
		s, q, _ := newTestServer(t)
		q.On("Routes", mock.Anything, cosmosHash, query.Hint{ChainID: "cosmoshub-4"}).Return([]query.Route{}, nil)

		w := serve(s, httptest.NewRequest(http.MethodGet, "/api/routing?txHash="+cosmosHash+"&chainId=cosmoshub-4", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		q.AssertExpectations(t)
	})

	t.Run("missing tx hash", func(t *testing.T) {
		s, q, _ := newTestServer(t)

		w := serve(s, httptest.NewRequest(http.MethodGet, "/api/routing", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NotEmpty(t, decode(t, w)["message"])
		q.AssertNotCalled(t, "Routes", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed tx hash", func(t *testing.T) {
		s, _, _ := newTestServer(t)

		w := serve(s, httptest.NewRequest(http.MethodGet, "/api/routing?txHash=0x1234", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("both hints", func(t *testing.T) {
		s, _, _ := newTestServer(t)

		w := serve(s, httptest.NewRequest(http.MethodGet, "/api/routing?txHash="+evmHash+"&evmChainPrefix=oraib&chainId=Oraichain", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("query error", func(t *testing.T) {
		s, q, _ := newTestServer(t)
		q.On("Routes", mock.Anything, cosmosHash, query.Hint{}).Return(nil, errors.New("storage unavailable"))

		w := serve(s, httptest.NewRequest(http.MethodGet, "/api/routing?txHash="+cosmosHash, nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "storage unavailable", decode(t, w)["message"])
	})
}

func TestSubmitRouting(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		s, _, in := newTestServer(t)
		in.On("Ingest", mock.Anything, evmHash, query.Hint{EvmChainPrefix: "eth-mainnet"}).Return(nil)

		body := `{"txHash":"` + evmHash + `","evmChainPrefix":"eth-mainnet"}`
		w := serve(s, httptest.NewRequest(http.MethodPost, "/api/routing", strings.NewReader(body)))

		require.Equal(t, http.StatusOK, w.Code)
		resp := decode(t, w)
		assert.Equal(t, "Success", resp["message"])
		assert.Equal(t, []any{}, resp["data"])
		in.AssertExpectations(t)
	})

	t.Run("ingest failure", func(t *testing.T) {
		s, _, in := newTestServer(t)
		in.On("Ingest", mock.Anything, cosmosHash, query.Hint{ChainID: "Oraichain"}).Return(errors.New("tx not found"))

		body := `{"txHash":"` + cosmosHash + `","chainId":"Oraichain"}`
		w := serve(s, httptest.NewRequest(http.MethodPost, "/api/routing", strings.NewReader(body)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "tx not found", decode(t, w)["message"])
	})

	t.Run("unknown field", func(t *testing.T) {
		s, _, in := newTestServer(t)

		w := serve(s, httptest.NewRequest(http.MethodPost, "/api/routing", strings.NewReader(`{"hash":"abc"}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		in.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid json", func(t *testing.T) {
		s, _, _ := newTestServer(t)

		w := serve(s, httptest.NewRequest(http.MethodPost, "/api/routing", strings.NewReader(`{`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestMethodNotAllowed(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := serve(s, httptest.NewRequest(http.MethodDelete, "/api/routing", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServerStartStop(t *testing.T) {
	s, _, _ := newTestServer(t)

	require.NoError(t, s.Start())
	assert.NoError(t, s.Stop())
}

func TestServerStartFailsOnBusyPort(t *testing.T) {
	q := &mockQuerier{}
	in := &mockIngester{}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	busy := NewServer(q, in, nil, zerolog.Nop(), ln.Addr().String())
	err = busy.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to bind")
}
