package rpc

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

// JSONCodec lets connect handlers and clients exchange plain Go structs.
// It replaces connect's built-in "json" codec, which only accepts proto messages.
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
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// HandlerOptions are the options every service handler is registered with.
func HandlerOptions(interceptors ...connect.Interceptor) []connect.HandlerOption {
	return []connect.HandlerOption{
		connect.WithCodec(JSONCodec{}),
		connect.WithInterceptors(interceptors...),
	}
}

// ClientOptions configure a connect client to speak the JSON codec.
func ClientOptions(opts ...connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, opts...)
}

// Procedure builds the "/package.Service/Method" path connect routes on.
func Procedure(service, method string) string {
	return "/" + service + "/" + method
}
