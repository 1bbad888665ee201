// Package stream implements simnet.Socket as a TCP-like listener:
// connection setup goes through the dispatcher once (latency/loss
// apply to the handshake only), and once a Conn exists its channel
// pair carries traffic without further per-message network
// involvement, matching the spec's documented stream semantics.
package stream

import (
	"context"
	"net"

	"github.com/rs/zerolog"

	"github.com/chaoslab/dsim/internal/simnet"
	"github.com/chaoslab/dsim/internal/simtask"
)

// Conn is one end of an established stream: payloads written to Send
// are read by the peer's Recv, and vice versa.
type Conn struct {
	local, remote simnet.SocketAddr
	send          chan<- simnet.Payload
	recv          <-chan simnet.Payload
}

// Send queues payload for the peer. Blocks if the peer isn't draining.
func (c *Conn) Send(ctx context.Context, payload simnet.Payload) error {
	select {
	case c.send <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv blocks until a payload arrives from the peer or ctx is done.
func (c *Conn) Recv(ctx context.Context) (simnet.Payload, error) {
	select {
	case p, ok := <-c.recv:
		if !ok {
			return nil, net.ErrClosed
		}
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// LocalAddr and RemoteAddr describe the two ends of the connection.
func (c *Conn) LocalAddr() simnet.SocketAddr  { return c.local }
func (c *Conn) RemoteAddr() simnet.SocketAddr { return c.remote }

// Listener is a bound stream socket. Each inbound connection attempt
// delivered via NewConnection is handed off on acceptCh for Accept to
// pick up; the listener itself never blocks the dispatcher.
type Listener struct {
	simnet.BaseSocket

	node     simnet.NodeID
	local    simnet.SocketAddr
	network  *simnet.Network
	executor *simtask.Executor
	logger   zerolog.Logger

	acceptCh chan *Conn
}

// Listen binds a stream listener for node on addr.
func Listen(network *simnet.Network, executor *simtask.Executor, node simnet.NodeID, addr simnet.SocketAddr, logger zerolog.Logger) (*Listener, simnet.SocketAddr, error) {
	l := &Listener{
		node:     node,
		network:  network,
		executor: executor,
		logger:   logger,
		acceptCh: make(chan *Conn, 16),
	}
	bound, err := network.Bind(node, addr, simnet.ProtocolStream, l)
	if err != nil {
		return nil, simnet.SocketAddr{}, err
	}
	l.local = bound
	return l, bound, nil
}

// NewConnection satisfies simnet.Socket: called by the network (via a
// dialer's scheduled delivery) with the two channel ends the dialer
// already created. The listener wraps its own ends into a Conn and
// hands it to the next Accept call.
func (l *Listener) NewConnection(src, dst simnet.SocketAddr, send chan<- simnet.Payload, recv <-chan simnet.Payload) {
	conn := &Conn{local: dst, remote: src, send: send, recv: recv}
	select {
	case l.acceptCh <- conn:
	default:
		l.logger.Warn().Str("local", l.local.String()).Msg("stream accept backlog full, dropping connection")
	}
}

// Accept blocks until an inbound connection arrives or ctx is done.
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	select {
	case c := <-l.acceptCh:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Dial opens a stream from (node, local) to dst. It creates the two
// channel halves itself, schedules the NewConnection delivery after
// the sampled latency, and returns the dialer's own Conn immediately —
// mirroring how a real TCP dial returns as soon as the local side is
// ready to write, without waiting for the peer to Accept.
func Dial(network *simnet.Network, executor *simtask.Executor, node simnet.NodeID, local, dst simnet.SocketAddr) (*Conn, bool) {
	dialerToListener := make(chan simnet.Payload, 16)
	listenerToDialer := make(chan simnet.Payload, 16)

	delivery, ok := network.TrySend(node, local, dst, simnet.ProtocolStream, nil)
	if !ok {
		return nil, false
	}

	handle := executor.Schedule(delivery.Latency, func() {
		delivery.Socket.NewConnection(local, dst, listenerToDialer, dialerToListener)
	})
	network.AbortTaskOnReset(delivery.DestNodeID, handle)

	return &Conn{local: local, remote: dst, send: dialerToListener, recv: listenerToDialer}, true
}
