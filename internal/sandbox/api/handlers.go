package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/sandbox/chain"
	"github.com/MahdiBaghbani/ledgerclient-go/pkg/ledger"
)

// DefaultMaxBodyBytes bounds request bodies when Handler.MaxBodyBytes is 0.
const DefaultMaxBodyBytes = 1 << 20

// Handler serves the ledger endpoints.
type Handler struct {
	chain        *chain.Chain
	maxBodyBytes int64
}

// NewHandler creates a handler for c. maxBodyBytes <= 0 uses DefaultMaxBodyBytes.
func NewHandler(c *chain.Chain, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{chain: c, maxBodyBytes: maxBodyBytes}
}

// Mount registers the ledger routes on r, including the legacy aliases.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/account/{address}", h.GetAccount)
	r.Get("/accounts", h.GetAccounts)
	r.Post("/call", h.Call)
	r.Post("/tx", h.SendTx)
	r.Post("/transactions", h.SendTx)
	r.Post("/rawtx", h.SendRawTx)
	r.Post("/sendRawTransaction", h.SendRawTx)
	r.Get("/tx/{tx_hash}", h.GetReceipt)
	r.Get("/transaction/{tx_hash}", h.GetReceipt)
	r.Get("/info", h.Info)
}

// GetAccount handles GET /account/{address}.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.chain.Account(r.Context(), chi.URLParam(r, "address"))
	h.respond(w, r, acct, err)
}

// GetAccounts handles GET /accounts.
func (h *Handler) GetAccounts(w http.ResponseWriter, r *http.Request) {
	list, err := h.chain.Accounts(r.Context())
	h.respond(w, r, list, err)
}

// Call handles POST /call.
func (h *Handler) Call(w http.ResponseWriter, r *http.Request) {
	args, ok := h.decodeArgs(w, r)
	if !ok {
		return
	}
	res, err := h.chain.Call(r.Context(), args)
	h.respond(w, r, res, err)
}

// SendTx handles POST /tx and POST /transactions.
func (h *Handler) SendTx(w http.ResponseWriter, r *http.Request) {
	args, ok := h.decodeArgs(w, r)
	if !ok {
		return
	}
	res, err := h.chain.SendTx(r.Context(), args)
	h.respond(w, r, res, err)
}

// SendRawTx handles POST /rawtx and POST /sendRawTransaction.
func (h *Handler) SendRawTx(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	res, err := h.chain.SendRawTx(r.Context(), body)
	h.respond(w, r, res, err)
}

// GetReceipt handles GET /tx/{tx_hash} and GET /transaction/{tx_hash}.
func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.chain.Receipt(r.Context(), chi.URLParam(r, "tx_hash"))
	h.respond(w, r, receipt, err)
}

// Info handles GET /info.
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	info, err := h.chain.Info(r.Context())
	h.respond(w, r, info, err)
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusRequestEntityTooLarge, ReasonBodyTooLarge, "request body too large")
			return nil, false
		}
		WriteBadRequest(w, ReasonBadRequest, "failed to read request body")
		return nil, false
	}
	return body, true
}

func (h *Handler) decodeArgs(w http.ResponseWriter, r *http.Request) (ledger.SendTxArgs, bool) {
	var args ledger.SendTxArgs
	body, ok := h.readBody(w, r)
	if !ok {
		return args, false
	}
	if err := (ledger.JSONCodec{}).Decode(body, &args); err != nil {
		WriteBadRequest(w, ReasonInvalidTx, err.Error())
		return args, false
	}
	return args, true
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		if !writeChainError(w, err) {
			appctx.GetLogger(r.Context()).Error("ledger operation failed", "error", err)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}
