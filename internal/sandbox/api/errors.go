// Package api serves the ledger HTTP API on top of a chain.Chain.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MahdiBaghbani/ledgerclient-go/internal/sandbox/chain"
)

// Deterministic reason codes for stable error classification.
const (
	ReasonBadRequest        = "bad_request"
	ReasonInvalidAddress    = "invalid_address"
	ReasonInvalidTx         = "invalid_transaction"
	ReasonInsufficientFunds = "insufficient_funds"
	ReasonNonceMismatch     = "nonce_mismatch"
	ReasonIntrinsicGas      = "intrinsic_gas"
	ReasonKnownTransaction  = "known_transaction"
	ReasonBodyTooLarge      = "body_too_large"
	ReasonNotFound          = "not_found"
	ReasonMethodNotAllowed  = "method_not_allowed"
	ReasonFailureInjected   = "failure_injected"
	ReasonRateLimited       = "rate_limited"
	ReasonInternalError     = "internal_error"
)

// ErrorEnvelope is the standard error response format.
type ErrorEnvelope struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	Code       string `json:"code"`        // HTTP status text (e.g., "Not Found")
	ReasonCode string `json:"reason_code"` // Deterministic reason code
	Message    string `json:"message"`     // Human-readable message
}

// WriteError writes a standardized JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, reasonCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(ErrorEnvelope{
		Error: ErrorDetail{
			Code:       http.StatusText(statusCode),
			ReasonCode: reasonCode,
			Message:    message,
		},
	})
}

// WriteNotFound writes a 404 Not Found error.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, ReasonNotFound, message)
}

// WriteBadRequest writes a 400 Bad Request error.
func WriteBadRequest(w http.ResponseWriter, reasonCode, message string) {
	WriteError(w, http.StatusBadRequest, reasonCode, message)
}

// WriteInternalError writes a 500 Internal Server Error.
// Be careful not to leak sensitive information in the message.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, ReasonInternalError, message)
}

// chainErrors maps chain sentinels onto status and reason codes.
var chainErrors = []struct {
	err    error
	status int
	reason string
}{
	{chain.ErrNotFound, http.StatusNotFound, ReasonNotFound},
	{chain.ErrInvalidAddress, http.StatusBadRequest, ReasonInvalidAddress},
	{chain.ErrInvalidTx, http.StatusBadRequest, ReasonInvalidTx},
	{chain.ErrInsufficientFunds, http.StatusUnprocessableEntity, ReasonInsufficientFunds},
	{chain.ErrNonceMismatch, http.StatusConflict, ReasonNonceMismatch},
	{chain.ErrIntrinsicGas, http.StatusBadRequest, ReasonIntrinsicGas},
	{chain.ErrKnownTransaction, http.StatusConflict, ReasonKnownTransaction},
}

// writeChainError maps err to an envelope. Unknown errors are logged by the
// caller and reported as 500 without detail.
func writeChainError(w http.ResponseWriter, err error) bool {
	for _, m := range chainErrors {
		if errors.Is(err, m.err) {
			WriteError(w, m.status, m.reason, err.Error())
			return true
		}
	}
	WriteInternalError(w, "internal error")
	return false
}
