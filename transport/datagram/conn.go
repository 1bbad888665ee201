// Package datagram implements simnet.Socket as a UDP-like endpoint:
// one Deliver call per packet, no connection setup, no ordering
// guarantee beyond what the link oracle's latency draws naturally
// impose.
package datagram

import (
	"context"
	"net"

	"github.com/rs/zerolog"

	"github.com/chaoslab/dsim/internal/simnet"
	"github.com/chaoslab/dsim/internal/simtask"
)

// Packet is one payload received on a Conn, tagged with the apparent
// source address the dispatcher resolved for it.
type Packet struct {
	Src     simnet.SocketAddr
	Payload simnet.Payload
}

// Conn is a bound datagram endpoint. It satisfies simnet.Socket so the
// network can deliver directly into it, and buffers incoming packets
// on a channel for ReadFrom to drain.
type Conn struct {
	simnet.BaseSocket

	node     simnet.NodeID
	local    simnet.SocketAddr
	protocol simnet.Protocol
	network  *simnet.Network
	executor *simtask.Executor
	logger   zerolog.Logger

	inbox chan Packet
}

// Listen binds a datagram socket for node on addr and returns the
// resolved local address alongside the Conn.
func Listen(network *simnet.Network, executor *simtask.Executor, node simnet.NodeID, addr simnet.SocketAddr, logger zerolog.Logger) (*Conn, simnet.SocketAddr, error) {
	c := &Conn{
		node:     node,
		protocol: simnet.ProtocolDatagram,
		network:  network,
		executor: executor,
		logger:   logger,
		inbox:    make(chan Packet, 64),
	}
	bound, err := network.Bind(node, addr, simnet.ProtocolDatagram, c)
	if err != nil {
		return nil, simnet.SocketAddr{}, err
	}
	c.local = bound
	return c, bound, nil
}

// Deliver satisfies simnet.Socket: it queues the payload for ReadFrom.
// Called by the network without its lock held, never blocking for
// longer than the inbox has room.
func (c *Conn) Deliver(src, _ simnet.SocketAddr, payload simnet.Payload) {
	select {
	case c.inbox <- Packet{Src: src, Payload: payload}:
	default:
		c.logger.Warn().Str("local", c.local.String()).Msg("datagram inbox full, dropping packet")
	}
}

// ReadFrom blocks until a packet arrives or ctx is done.
func (c *Conn) ReadFrom(ctx context.Context) (Packet, error) {
	select {
	case p := <-c.inbox:
		return p, nil
	case <-ctx.Done():
		return Packet{}, ctx.Err()
	}
}

// WriteTo attempts to send payload to dst. It consults the dispatcher
// immediately and, on admission, schedules the actual delivery after
// the sampled latency via the executor, registering the resulting
// cancel handle with the destination node so a reset tears it down.
// The boolean result reports whether a delivery was scheduled: the
// destination resolved, the oracle admitted the packet, and a socket is
// bound to receive it. A false result is an ordinary silent drop, not
// an error.
func (c *Conn) WriteTo(dst simnet.SocketAddr, payload simnet.Payload) bool {
	delivery, ok := c.network.TrySend(c.node, c.local, dst, simnet.ProtocolDatagram, payload)
	if !ok {
		return false
	}

	handle := c.executor.Schedule(delivery.Latency, func() {
		delivery.Socket.Deliver(delivery.Src, delivery.Dst, delivery.Payload)
	})
	c.network.AbortTaskOnReset(delivery.DestNodeID, handle)
	return true
}

// LocalAddr returns the address this Conn is bound to.
func (c *Conn) LocalAddr() net.Addr {
	return netAddr{c.local}
}

type netAddr struct {
	addr simnet.SocketAddr
}

func (a netAddr) Network() string { return "dsim+udp" }
func (a netAddr) String() string  { return a.addr.String() }
