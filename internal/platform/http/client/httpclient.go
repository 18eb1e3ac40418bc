package client

import (
	"context"
	"net/http"
)

// HTTPClient is the interface the ledger client sends requests through.
// Implemented by ContextClient; tests and callers with their own transport
// substitute it via ledger.WithHTTPClient.
type HTTPClient interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

var _ HTTPClient = (*ContextClient)(nil)
