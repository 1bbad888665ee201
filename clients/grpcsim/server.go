package grpcsim

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/chaoslab/dsim/internal/simnet"
	"github.com/chaoslab/dsim/internal/simtask"
	"github.com/chaoslab/dsim/transport/stream"
)

// Handler serves one RPC method: decode req, do the work, return a
// reply to be JSON-encoded back to the caller, or a *status.Status
// error.
type Handler func(ctx context.Context, req json.RawMessage) (any, error)

// Server is a registry of services, each a set of named Handlers —
// the Go stand-in for tonic's generated *Server trait implementations
// registered with Server::builder().add_service(...).
type Server struct {
	services map[string]map[string]Handler
	logger   zerolog.Logger
}

// NewServer creates a server with no services registered.
func NewServer(logger zerolog.Logger) *Server {
	return &Server{services: make(map[string]map[string]Handler), logger: logger}
}

// RegisterService adds service, whose methods dispatch to handlers.
func (s *Server) RegisterService(service string, handlers map[string]Handler) {
	s.services[service] = handlers
}

// Serve binds a stream listener at addr on node and accepts RPC calls
// until ctx is canceled.
func (s *Server) Serve(ctx context.Context, network *simnet.Network, executor *simtask.Executor, node simnet.NodeID, addr simnet.SocketAddr) (simnet.SocketAddr, error) {
	listener, bound, err := stream.Listen(network, executor, node, addr, s.logger)
	if err != nil {
		return simnet.SocketAddr{}, err
	}
	go s.acceptLoop(ctx, listener)
	return bound, nil
}

func (s *Server) acceptLoop(ctx context.Context, listener *stream.Listener) {
	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			return
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn *stream.Conn) {
	for {
		raw, err := conn.Recv(ctx)
		if err != nil {
			return
		}
		wire, ok := raw.([]byte)
		if !ok {
			return
		}
		var req envelope
		if err := json.Unmarshal(wire, &req); err != nil {
			return
		}
		resp := s.dispatch(ctx, req)
		out, err := json.Marshal(resp)
		if err != nil {
			return
		}
		if err := conn.Send(ctx, out); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req envelope) envelope {
	methods, ok := s.services[req.Service]
	if !ok {
		st := status.New(codes.NotFound, "grpcsim: unknown service "+req.Service)
		return envelope{Code: uint32(st.Code()), Message: st.Message()}
	}
	handler, ok := methods[req.Method]
	if !ok {
		st := status.New(codes.NotFound, "grpcsim: unknown method "+req.Service+"/"+req.Method)
		return envelope{Code: uint32(st.Code()), Message: st.Message()}
	}

	reply, err := handler(ctx, req.Body)
	if err != nil {
		st, ok := status.FromError(err)
		if !ok {
			st = status.New(codes.Unknown, err.Error())
		}
		return envelope{Code: uint32(st.Code()), Message: st.Message()}
	}

	body, err := json.Marshal(reply)
	if err != nil {
		st := status.New(codes.Internal, err.Error())
		return envelope{Code: uint32(st.Code()), Message: st.Message()}
	}
	return envelope{Body: body, Code: uint32(codes.OK)}
}

// Greeter implements the SayHello handler this package is adapted
// from: "error" as a name always fails with InvalidArgument, exactly
// as MyGreeter::say_hello does in the Rust source.
func Greeter() map[string]Handler {
	return map[string]Handler{
		"SayHello": func(_ context.Context, body json.RawMessage) (any, error) {
			var req HelloRequest
			if err := json.Unmarshal(body, &req); err != nil {
				return nil, status.Error(codes.InvalidArgument, "grpcsim: malformed request")
			}
			if req.Name == "error" {
				return nil, status.Error(codes.InvalidArgument, "error!")
			}
			return HelloReply{Message: "Hello " + req.Name + "!"}, nil
		},
	}
}
