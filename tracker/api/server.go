// Package api serves route queries and forced ingestion over HTTP.
package api

import (
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const startupTimeout = 5 * time.Second

var ErrNilServer = errors.New("api server is nil")

// Server provides HTTP endpoints
type Server struct {
	querier  RouteQuerier
	ingester Ingester
	metrics  http.Handler
	logger   zerolog.Logger
	server   *http.Server
}

// NewServer creates a new Server listening on addr. metrics may be nil, in which
// case /metrics is not served.
func NewServer(querier RouteQuerier, ingester Ingester, metrics http.Handler, logger zerolog.Logger, addr string) *Server {
	s := &Server{
		querier:  querier,
		ingester: ingester,
		metrics:  metrics,
		logger:   logger.With().Str("component", "api_server").Logger(),
	}

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	if s.server == nil {
		return ErrNilServer
	}

	startupChan := make(chan error, 1)

	go func() {
		// Verify the address is free before handing it to the server
		ln, err := net.Listen("tcp", s.server.Addr)
		if err != nil {
			startupChan <- errors.Wrapf(err, "failed to bind to address %s", s.server.Addr)
			return
		}
		ln.Close()

		startupChan <- nil

		err = s.server.ListenAndServe()
		switch {
		case err == nil:
			s.logger.Info().Msg("api server stopped normally")
		case errors.Is(err, http.ErrServerClosed):
			s.logger.Info().Msg("api server closed gracefully")
		default:
			s.logger.Error().Err(err).Msg("api server error")
		}
	}()

	select {
	case err := <-startupChan:
		if err != nil {
			return err
		}
		s.logger.Info().Str("addr", s.server.Addr).Msg("api server started")
		return nil
	case <-time.After(startupTimeout):
		return errors.New("api server startup timeout")
	}
}

// Stop shuts down the HTTP server
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
