package ledger

import (
	"net/http"
	"net/url"

	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/hostport"
)

// Payload is an opaque request body. The client sends it byte for byte.
type Payload []byte

// Op names a client operation.
type Op string

const (
	OpGetAccount  Op = "getAccount"
	OpGetAccounts Op = "getAccounts"
	OpCall        Op = "call"
	OpSendTx      Op = "sendTx"
	OpSendRawTx   Op = "sendRawTx"
	OpGetReceipt  Op = "getReceipt"
	OpInfo        Op = "info"
)

// Request describes one outgoing request. A new Request is built for every
// call and never reused.
type Request struct {
	Op     Op
	Host   string
	Port   int
	Method string
	Path   string
	Body   Payload // nil for reads
}

// URL returns the request URL. Path is carried in Opaque so it is written
// to the request line exactly as concatenated, with no percent-encoding.
func (r Request) URL() *url.URL {
	return &url.URL{
		Scheme: "http",
		Host:   hostport.Join(r.Host, r.Port),
		Opaque: r.Path,
	}
}

func (c *Client) newRequest(op Op, method, path string, body Payload) Request {
	return Request{
		Op:     op,
		Host:   c.host,
		Port:   c.port,
		Method: method,
		Path:   path,
		Body:   body,
	}
}

func (c *Client) getAccountRequest(address string) Request {
	return c.newRequest(OpGetAccount, http.MethodGet, "/account/"+address, nil)
}

func (c *Client) getAccountsRequest() Request {
	return c.newRequest(OpGetAccounts, http.MethodGet, "/accounts", nil)
}

func (c *Client) callRequest(tx Payload) Request {
	return c.newRequest(OpCall, http.MethodPost, "/call", tx)
}

func (c *Client) sendTxRequest(tx Payload) Request {
	return c.newRequest(OpSendTx, http.MethodPost, "/tx", tx)
}

func (c *Client) sendRawTxRequest(tx Payload) Request {
	return c.newRequest(OpSendRawTx, http.MethodPost, "/rawtx", tx)
}

func (c *Client) getReceiptRequest(txHash string) Request {
	return c.newRequest(OpGetReceipt, http.MethodGet, "/tx/"+txHash, nil)
}

func (c *Client) infoRequest() Request {
	return c.newRequest(OpInfo, http.MethodGet, "/info", nil)
}
