package grpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec marshals messages as JSON. The service has no protobuf stubs;
// every message is a plain Go struct with json tags.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return "json"
}

// Codec returns the codec clients must force on their calls,
// e.g. grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec())).
func Codec() encoding.Codec {
	return jsonCodec{}
}
