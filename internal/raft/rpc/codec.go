package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype of the KVRaft service ("application/grpc+json")
const CodecName = "json"

// jsonCodec marshals KVRaft messages as JSON. The messages are plain Go structs, so the default protobuf codec
// cannot carry them.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		// Tolerate empty payloads from clients that skip the body of empty messages
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return nil
}

func (jsonCodec) Name() string {
	return CodecName
}

// Register the codec on init so both the server (which picks the codec by content-subtype) and clients find it.
func init() {
	encoding.RegisterCodec(jsonCodec{})
}
