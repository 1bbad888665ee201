// Package grpcsim is a minimal unary RPC client and server running
// over a simulated network, adapted from the "greeter" example
// service in tonic-example/src/server.rs. Because no protoc step runs
// in this build, the wire format is a small hand-rolled
// JSON-over-stream-socket codec rather than real protobuf — but RPC
// semantics (unary call, deadline, status codes) are modeled with the
// real google.golang.org/grpc/codes and .../status packages, so
// client/server error handling reads exactly like real gRPC code.
package grpcsim

import "encoding/json"

// envelope is what actually crosses the transport/stream connection —
// the Service/Method pair plus a JSON-encoded request or response
// body, the hand-rolled stand-in for a protobuf service descriptor
// and message.
type envelope struct {
	Service string          `json:"service"`
	Method  string          `json:"method"`
	Body    json.RawMessage `json:"body,omitempty"`
	Code    uint32          `json:"code"`
	Message string          `json:"message,omitempty"`
}

// HelloRequest is the request message for SayHello, named after
// tonic-example's HelloRequest.
type HelloRequest struct {
	Name string `json:"name"`
}

// HelloReply is the response message for SayHello.
type HelloReply struct {
	Message string `json:"message"`
}
