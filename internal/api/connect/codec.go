// Package connect provides the Connect RPC player service, its handler and client.
package connect

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// codecName is the Connect codec name, used as the content subtype.
const codecName = "json"

// jsonCodec marshals plain Go message structs as JSON.
type jsonCodec struct{}

var _ connect.Codec = jsonCodec{}

func (jsonCodec) Name() string { return codecName }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}

// WithJSON returns the option that registers the JSON codec on handlers and clients.
func WithJSON() connect.Option {
	return connect.WithCodec(jsonCodec{})
}
