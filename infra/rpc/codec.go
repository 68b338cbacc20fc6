package rpc

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// jsonCodec replaces connect's protobuf JSON codec so messages can be plain
// Go structs.
type jsonCodec struct{}

func (jsonCodec) Name() string                    { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)   { return json.Marshal(v) }
func (jsonCodec) Unmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }

func codecOption() connect.Option { return connect.WithCodec(jsonCodec{}) }
