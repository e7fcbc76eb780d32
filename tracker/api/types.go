package api

import (
	"regexp"
	"strings"

	"github.com/jellydator/validation"
	"github.com/pkg/errors"

	"github.com/oraichain/ibc-routing/tracker/query"
)

const messageSuccess = "Success"

var txHashPattern = regexp.MustCompile(`^(0x|0X)?[0-9a-fA-F]{64}$`)

// Response is the envelope of a successful /api/routing response.
type Response struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Message string `json:"message"`
}

// RoutingRequest selects a transaction, either from the query string or from a
// submitted JSON body.
type RoutingRequest struct {
	TxHash         string `json:"txHash"`
	EvmChainPrefix string `json:"evmChainPrefix,omitempty"`
	ChainID        string `json:"chainId,omitempty"`
}

func (r RoutingRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TxHash, validation.Required, validation.Match(txHashPattern)),
		validation.Field(&r.ChainID, validation.By(func(any) error {
			if r.ChainID != "" && r.EvmChainPrefix != "" {
				return errors.New("only one of evmChainPrefix and chainId may be set")
			}
			return nil
		})),
	)
}

func (r RoutingRequest) Hint() query.Hint {
	return query.Hint{
		EvmChainPrefix: strings.TrimSpace(r.EvmChainPrefix),
		ChainID:        strings.TrimSpace(r.ChainID),
	}
}
