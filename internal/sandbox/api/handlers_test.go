package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/ledgerclient-go/internal/sandbox/chain"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/sandbox/store"
	_ "github.com/MahdiBaghbani/ledgerclient-go/internal/sandbox/store/memory"
	"github.com/MahdiBaghbani/ledgerclient-go/pkg/ledger"
)

const (
	alice = "0x629007eb99ff5c3539ada8a5800847eacfc25727"
	bob   = "0xe32e14de8b81d8d3aedacb1868619c74a68feab0"
)

func newRouter(t *testing.T, maxBody int64) http.Handler {
	t.Helper()
	s, err := store.New(&store.DriverConfig{Driver: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	c := chain.New(s, "memory")
	g, err := chain.ReadGenesis(strings.NewReader(`{"alloc":{"` + alice + `":{"balance":"1000000"}}}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.ApplyGenesis(context.Background(), g); err != nil {
		t.Fatal(err)
	}

	r := chi.NewRouter()
	NewHandler(c, maxBody).Mount(r)
	r.Get("/healthz", HealthHandler)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var env ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope %q: %v", rec.Body.String(), err)
	}
	return env.Error
}

func TestHandler_SendTxAndReceipt(t *testing.T) {
	h := newRouter(t, 0)

	for _, path := range []string{"/tx", "/transactions"} {
		rec := do(t, h, http.MethodPost, path, `{"from":"`+alice+`","to":"`+bob+`","value":10}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("POST %s = %d: %s", path, rec.Code, rec.Body.String())
		}
		res, err := ledger.Decode[ledger.TxHashResult](rec.Body.Bytes())
		if err != nil {
			t.Fatal(err)
		}

		for _, rpath := range []string{"/tx/", "/transaction/"} {
			rec = do(t, h, http.MethodGet, rpath+res.TxHash, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("GET %s = %d", rpath, rec.Code)
			}
			receipt, err := ledger.Decode[ledger.Receipt](rec.Body.Bytes())
			if err != nil {
				t.Fatal(err)
			}
			if receipt.TransactionHash != res.TxHash || receipt.Value.Int64() != 10 {
				t.Errorf("unexpected receipt %+v", receipt)
			}
		}
	}

	rec := do(t, h, http.MethodGet, "/account/"+bob, "")
	acct, err := ledger.Decode[ledger.Account](rec.Body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if acct.Balance.Int64() != 20 {
		t.Errorf("bob balance = %s, want 20", acct.Balance)
	}

	rec = do(t, h, http.MethodGet, "/accounts", "")
	list, err := ledger.Decode[ledger.AccountList](rec.Body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Accounts) != 2 {
		t.Errorf("accounts = %d, want 2", len(list.Accounts))
	}
}

func TestHandler_RawTx(t *testing.T) {
	h := newRouter(t, 0)

	raw, err := ledger.HexCodec{}.Encode(ledger.SendTxArgs{From: alice, To: ptr(bob)})
	if err != nil {
		t.Fatal(err)
	}
	rec := do(t, h, http.MethodPost, "/rawtx", string(raw))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /rawtx = %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodPost, "/sendRawTransaction", string(raw))
	if rec.Code != http.StatusConflict {
		t.Fatalf("replay = %d, want 409", rec.Code)
	}
	if d := decodeError(t, rec); d.ReasonCode != ReasonKnownTransaction {
		t.Errorf("reason = %s", d.ReasonCode)
	}
}

func TestHandler_Errors(t *testing.T) {
	h := newRouter(t, 64)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantReason string
	}{
		{"bad address", http.MethodGet, "/account/nope", "", http.StatusBadRequest, ReasonInvalidAddress},
		{"unknown receipt", http.MethodGet, "/tx/0x01", "", http.StatusNotFound, ReasonNotFound},
		{"malformed json", http.MethodPost, "/tx", "{", http.StatusBadRequest, ReasonInvalidTx},
		{"missing from", http.MethodPost, "/call", "{}", http.StatusBadRequest, ReasonInvalidTx},
		{"insufficient funds", http.MethodPost, "/tx", `{"from":"` + bob + `","value":5}`, http.StatusUnprocessableEntity, ReasonInsufficientFunds},
		{"nonce mismatch", http.MethodPost, "/tx", `{"from":"` + alice + `","nonce":7}`, http.StatusConflict, ReasonNonceMismatch},
		{"body too large", http.MethodPost, "/rawtx", "0x" + strings.Repeat("ab", 64), http.StatusRequestEntityTooLarge, ReasonBodyTooLarge},
		{"bad raw hex", http.MethodPost, "/rawtx", "0xzz", http.StatusBadRequest, ReasonInvalidTx},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			if d := decodeError(t, rec); d.ReasonCode != tt.wantReason {
				t.Errorf("reason = %s, want %s", d.ReasonCode, tt.wantReason)
			}
		})
	}
}

func TestHandler_CallAndInfo(t *testing.T) {
	h := newRouter(t, 0)

	rec := do(t, h, http.MethodPost, "/call", `{"from":"`+alice+`","to":"`+bob+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /call = %d: %s", rec.Code, rec.Body.String())
	}
	if res, _ := ledger.Decode[ledger.CallResult](rec.Body.Bytes()); res.Data != "0x" {
		t.Errorf("call data = %q", res.Data)
	}

	rec = do(t, h, http.MethodGet, "/info", "")
	info, err := ledger.Decode[ledger.Info](rec.Body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if info["type"] != "sandbox" || info["transactions"] != "0" {
		t.Errorf("unexpected info %v", info)
	}

	rec = do(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body.String())
	}
}

func ptr[T any](v T) *T { return &v }
