// Package ledger is a client for an EVM-style ledger node's HTTP API.
//
// A Client targets one host and port and exposes seven operations:
// GetAccount, GetAccounts, Call, SendTx, SendRawTx, GetReceipt and Info.
// Each issues exactly one HTTP request on a fresh TCP connection and returns
// the raw response body. The client never parses bodies; callers decode them
// with Decode or their own Codec.
//
// Every operation has a blocking form that takes a context and an Async form
// that returns a cancellable *Task:
//
//	c, err := ledger.New("127.0.0.1", 8080)
//	if err != nil {
//		return err
//	}
//	body, err := c.GetAccount(ctx, "0x629007eb99ff5c3539ada8a5800847eacfc25727")
//
//	t := c.GetAccountsAsync(ctx)
//	defer t.Cancel()
//	body, err = t.Wait(ctx)
//
// Errors are either a *TransportError (the request never produced a complete
// response) or, under StatusStrict, a *StatusError carrying the non-2xx body.
// StatusPassthrough delivers non-2xx bodies as ordinary results.
package ledger
