package api

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
)

const maxBodyBytes = 1 << 16

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleQueryRouting handles GET /api/routing?txHash=<hash>&evmChainPrefix=<prefix>|chainId=<id>
func (s *Server) handleQueryRouting(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := RoutingRequest{
		TxHash:         q.Get("txHash"),
		EvmChainPrefix: q.Get("evmChainPrefix"),
		ChainID:        q.Get("chainId"),
	}
	if err := req.Validate(); err != nil {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}

	routes, err := s.querier.Routes(r.Context(), req.TxHash, req.Hint())
	if err != nil {
		s.logger.Warn().Err(err).Str("tx_hash", req.TxHash).Msg("route query failed")
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, Response{Message: messageSuccess, Data: routes})
}

// handleSubmitRouting handles POST /api/routing. The transaction is fetched from
// its chain and processed like a live event.
func (s *Server) handleSubmitRouting(w http.ResponseWriter, r *http.Request) {
	var req RoutingRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}

	if err := s.ingester.Ingest(r.Context(), req.TxHash, req.Hint()); err != nil {
		s.logger.Warn().Err(err).
			Str("tx_hash", req.TxHash).
			Str("evm_chain_prefix", req.EvmChainPrefix).
			Str("chain_id", req.ChainID).
			Msg("submitted transaction rejected")
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}
	s.logger.Info().Str("tx_hash", req.TxHash).Msg("submitted transaction processed")
	s.writeJSON(w, http.StatusOK, Response{Message: messageSuccess, Data: []any{}})
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, req *RoutingRequest) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	defer r.Body.Close()
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(req); err != nil {
		return errors.Wrap(err, "decoding json payload")
	}
	if err := req.Validate(); err != nil {
		return errors.Wrap(err, "validating payload")
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("failed to write response")
	}
}
