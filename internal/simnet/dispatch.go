package simnet

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Delivery is what TrySend hands back on success: the resolved socket
// to call and the latency the caller should wait (via its task
// executor) before calling Deliver on it. The network never calls the
// socket itself — doing so while n.mu is held would let an upper-layer
// callback reenter the network and deadlock, so dispatch only ever
// resolves and returns.
type Delivery struct {
	Socket     Socket
	Src        SocketAddr
	Dst        SocketAddr
	Payload    Payload
	Latency    time.Duration
	DestNodeID NodeID
}

// TrySend attempts to send payload from (from, src) to dst over
// protocol. It resolves the destination node, rolls the link oracle,
// and looks up the destination socket, all under a single short
// critical section. A nil, false result means the packet was dropped —
// by clog, by the loss roll, by an unresolvable address, or because no
// socket is bound to receive it — and is never reported as an error:
// packet loss is ordinary network behavior, not a fault condition.
// Panics if from is unmanaged.
func (n *Network) TrySend(from NodeID, src, dst SocketAddr, protocol Protocol, payload Payload) (*Delivery, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	fromNode := n.mustHaveNode(from)

	destID, ok := n.resolveDestNode(from, dst, protocol)
	if !ok {
		return nil, false
	}

	latency, ok := n.testLink(from, destID)
	if !ok {
		return nil, false
	}

	socket, ok := n.lookupSocket(destID, dst, protocol)
	if !ok {
		return nil, false
	}

	apparentSrc := SocketAddr{IP: apparentSourceIP(fromNode, dst), Port: src.Port}

	n.logger.Debug().
		Uint64("from", uint64(from)).
		Uint64("to", uint64(destID)).
		Str("src", apparentSrc.String()).
		Str("dst", dst.String()).
		Dur("latency", latency).
		Msg("try_send")

	return &Delivery{
		Socket:     socket,
		Src:        apparentSrc,
		Dst:        dst,
		Payload:    payload,
		Latency:    latency,
		DestNodeID: destID,
	}, true
}

// TrySendCtx wraps TrySend in one tracing span per call, recording the
// outcome and (on success) the sampled latency as span attributes. Use
// this from the transport layer when the caller already carries a
// context from an upstream trace; TrySend itself stays context-free
// since the core's operations never suspend and never need a
// cancellation signal of their own.
func (n *Network) TrySendCtx(ctx context.Context, from NodeID, src, dst SocketAddr, protocol Protocol, payload Payload) (*Delivery, bool) {
	ctx, span := n.tracer.Start(ctx, "simnet.TrySend")
	defer span.End()

	delivery, ok := n.TrySend(from, src, dst, protocol, payload)
	span.SetAttributes(
		attribute.Int64("simnet.from_node", int64(from)),
		attribute.String("simnet.dst", dst.String()),
		attribute.Bool("simnet.delivered", ok),
	)
	if ok {
		span.SetAttributes(attribute.Int64("simnet.latency_ns", delivery.Latency.Nanoseconds()))
	}
	return delivery, ok
}
