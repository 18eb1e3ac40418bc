package ledger

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidHex is returned when a hex payload cannot be decoded.
var ErrInvalidHex = errors.New("ledger: invalid hex payload")

// Codec turns values into payloads and response bodies back into values.
// The Client never uses a Codec itself.
type Codec interface {
	Encode(v any) (Payload, error)
	Decode(body []byte, v any) error
}

// JSONCodec encodes values as JSON.
type JSONCodec struct{}

func (JSONCodec) Encode(v any) (Payload, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("ledger: encode json: %w", err)
	}
	return b, nil
}

func (JSONCodec) Decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("ledger: decode json: %w", err)
	}
	return nil
}

// HexCodec wraps Inner and hex-encodes its output with a 0x prefix. The
// sandbox accepts raw transactions in this form with a JSON Inner.
type HexCodec struct {
	Inner Codec
}

func (c HexCodec) Encode(v any) (Payload, error) {
	b, err := c.inner().Encode(v)
	if err != nil {
		return nil, err
	}
	return Payload("0x" + hex.EncodeToString(b)), nil
}

func (c HexCodec) Decode(body []byte, v any) error {
	raw, err := DecodeHex(string(body))
	if err != nil {
		return err
	}
	return c.inner().Decode(raw, v)
}

func (c HexCodec) inner() Codec {
	if c.Inner == nil {
		return JSONCodec{}
	}
	return c.Inner
}

// DecodeHex decodes a hex string with an optional 0x prefix. Surrounding
// whitespace and JSON string quotes are ignored.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	return b, nil
}

// Decode unmarshals a JSON response body into a T.
func Decode[T any](body []byte) (T, error) {
	var v T
	err := JSONCodec{}.Decode(body, &v)
	return v, err
}
