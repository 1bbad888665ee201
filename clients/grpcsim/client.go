package grpcsim

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/chaoslab/dsim/internal/simnet"
	"github.com/chaoslab/dsim/internal/simtask"
	"github.com/chaoslab/dsim/transport/stream"
)

// Client dials a grpcsim server fresh for every call — there is no
// connection pooling, matching how cheaply transport/stream.Dial
// sets up a connection in this simulator.
type Client struct {
	network    *simnet.Network
	executor   *simtask.Executor
	node       simnet.NodeID
	local      simnet.SocketAddr
	serverAddr simnet.SocketAddr
}

// NewClient creates a client dialing serverAddr from (node, local).
func NewClient(network *simnet.Network, executor *simtask.Executor, node simnet.NodeID, local, serverAddr simnet.SocketAddr) *Client {
	return &Client{network: network, executor: executor, node: node, local: local, serverAddr: serverAddr}
}

// Call invokes service/method with req and decodes the reply into
// reply. A dropped or clogged dial surfaces as
// status.Error(codes.Unavailable, ...), matching how a real gRPC
// client reports a failed connection attempt.
func (c *Client) Call(ctx context.Context, service, method string, req, reply any) error {
	conn, ok := stream.Dial(c.network, c.executor, c.node, c.local, c.serverAddr)
	if !ok {
		return status.Error(codes.Unavailable, "grpcsim: server unavailable")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	wire, err := json.Marshal(envelope{Service: service, Method: method, Body: body})
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	if err := conn.Send(ctx, wire); err != nil {
		return status.Error(codes.Unavailable, err.Error())
	}

	raw, err := conn.Recv(ctx)
	if err != nil {
		return status.Error(codes.Unavailable, err.Error())
	}
	respWire, ok := raw.([]byte)
	if !ok {
		return status.Error(codes.Internal, "grpcsim: malformed response")
	}
	var resp envelope
	if err := json.Unmarshal(respWire, &resp); err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	if codes.Code(resp.Code) != codes.OK {
		return status.Error(codes.Code(resp.Code), resp.Message)
	}
	if reply != nil {
		return json.Unmarshal(resp.Body, reply)
	}
	return nil
}

// GreeterClient is a typed wrapper over Call for the greeter service,
// mirroring GreeterClient::say_hello's call site shape.
type GreeterClient struct {
	client *Client
}

// NewGreeterClient wraps client for the greeter service.
func NewGreeterClient(client *Client) *GreeterClient {
	return &GreeterClient{client: client}
}

// SayHello calls the greeter service's SayHello method.
func (g *GreeterClient) SayHello(ctx context.Context, name string) (*HelloReply, error) {
	var reply HelloReply
	if err := g.client.Call(ctx, "Greeter", "SayHello", HelloRequest{Name: name}, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}
