package rpc

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// JSONCodec lets Connect carry plain Go structs as application/json.
// It replaces the protobuf JSON codec, so the API needs no generated code.
type JSONCodec struct{}

var _ connect.Codec = JSONCodec{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (JSONCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}
