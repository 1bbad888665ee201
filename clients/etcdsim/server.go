package etcdsim

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/chaoslab/dsim/internal/simnet"
	"github.com/chaoslab/dsim/internal/simtask"
	"github.com/chaoslab/dsim/transport/stream"
)

// campaignWaiter is a campaign call parked in an election's FIFO queue
// until the current leader resigns.
type campaignWaiter struct {
	key   *LeaderKey
	value []byte
	done  chan struct{}
}

// electionState is one named election's leadership record, waiter
// queue, and live Observe subscribers.
type electionState struct {
	mu           sync.Mutex
	rev          int64
	current      *LeaderKey
	currentValue []byte
	queue        []*campaignWaiter
	observers    map[int64]chan GetResponse
	nextObsID    int64
}

// Server holds every election this node serves, keyed by election
// name. Each name gets its own leadership record — campaigning on
// "foo" never contends with campaigning on "bar".
type Server struct {
	mu        sync.Mutex
	elections map[string]*electionState
	logger    zerolog.Logger
}

// NewServer creates an empty election server.
func NewServer(logger zerolog.Logger) *Server {
	return &Server{elections: make(map[string]*electionState), logger: logger}
}

func (s *Server) electionFor(name string) *electionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.elections[name]
	if !ok {
		e = &electionState{observers: make(map[int64]chan GetResponse)}
		s.elections[name] = e
	}
	return e
}

// Serve binds a stream listener at addr on node and accepts election
// RPCs until ctx is canceled. One goroutine handles the accept loop;
// one more handles each connection, matching the accept-then-spawn
// shape of the Rust broker this package is adapted from.
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
	req, err := conn.Recv(ctx)
	if err != nil {
		return
	}
	switch r := req.(type) {
	case campaignRequest:
		s.handleCampaign(ctx, conn, r)
	case proclaimRequest:
		s.handleProclaim(ctx, conn, r)
	case resignRequest:
		s.handleResign(ctx, conn, r)
	case observeRequest:
		s.handleObserve(ctx, conn, r)
	default:
		s.logger.Warn().Str("local", conn.LocalAddr().String()).Msg("etcdsim: unrecognized request")
	}
}

func (s *Server) handleCampaign(ctx context.Context, conn *stream.Conn, r campaignRequest) {
	e := s.electionFor(r.Name)
	e.mu.Lock()
	e.rev++
	lk := &LeaderKey{Name: r.Name, Key: fmt.Sprintf("%s/%016x", r.Name, e.rev), Rev: e.rev, Lease: r.Lease}

	if e.current == nil {
		e.current = lk
		e.currentValue = r.Value
		s.notifyObservers(e)
		e.mu.Unlock()
		_ = conn.Send(ctx, campaignResponse{Leader: *lk})
		return
	}

	w := &campaignWaiter{key: lk, value: r.Value, done: make(chan struct{})}
	e.queue = append(e.queue, w)
	e.mu.Unlock()

	select {
	case <-w.done:
		_ = conn.Send(ctx, campaignResponse{Leader: *lk})
	case <-ctx.Done():
	}
}

func (s *Server) handleProclaim(ctx context.Context, conn *stream.Conn, r proclaimRequest) {
	e := s.electionFor(r.Leader.Name)
	e.mu.Lock()
	if e.current == nil || e.current.Key != r.Leader.Key {
		e.mu.Unlock()
		_ = conn.Send(ctx, proclaimResponse{Err: "no leader key"})
		return
	}
	e.currentValue = r.Value
	s.notifyObservers(e)
	e.mu.Unlock()
	_ = conn.Send(ctx, proclaimResponse{})
}

func (s *Server) handleResign(ctx context.Context, conn *stream.Conn, r resignRequest) {
	e := s.electionFor(r.Leader.Name)
	e.mu.Lock()
	if e.current != nil && e.current.Key == r.Leader.Key {
		e.current = nil
		e.currentValue = nil
		if len(e.queue) > 0 {
			next := e.queue[0]
			e.queue = e.queue[1:]
			e.current = next.key
			e.currentValue = next.value
			close(next.done)
		}
		s.notifyObservers(e)
	}
	e.mu.Unlock()
	_ = conn.Send(ctx, resignResponse{})
}

func (s *Server) handleObserve(ctx context.Context, conn *stream.Conn, r observeRequest) {
	e := s.electionFor(r.Name)
	ch := make(chan GetResponse, 8)

	e.mu.Lock()
	id := e.nextObsID
	e.nextObsID++
	e.observers[id] = ch
	if e.current != nil {
		ch <- GetResponse{Header: ResponseHeader{Rev: e.current.Rev}, Kv: KeyValue{Key: e.current.Key, Value: e.currentValue}}
	}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.observers, id)
		e.mu.Unlock()
	}()

	for {
		select {
		case resp := <-ch:
			if err := conn.Send(ctx, resp); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// notifyObservers pushes the current leader to every live Observe
// subscriber. Callers must hold e.mu. A full subscriber channel drops
// the notification rather than blocking the campaign/resign path that
// triggered it.
func (s *Server) notifyObservers(e *electionState) {
	if e.current == nil {
		return
	}
	resp := GetResponse{Header: ResponseHeader{Rev: e.current.Rev}, Kv: KeyValue{Key: e.current.Key, Value: e.currentValue}}
	for _, ch := range e.observers {
		select {
		case ch <- resp:
		default:
		}
	}
}
