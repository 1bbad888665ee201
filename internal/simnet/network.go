package simnet

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// RNG is the seeded randomness source the link oracle consults. The
// concrete implementation (internal/simrand.Source) is never imported
// here — simnet only depends on this interface, satisfied structurally.
type RNG interface {
	// Float64 returns a value in [0, 1), used for the loss roll.
	Float64() float64
	// DurationIn draws uniformly from the half-open interval [lo, hi).
	DurationIn(lo, hi time.Duration) time.Duration
}

// Network owns the node registry, address resolver, and fault model
// for one simulated run. All its exported methods are safe to call
// concurrently; every critical section is a short table lookup, set
// membership check, or single PRNG draw.
type Network struct {
	mu sync.Mutex

	rng    RNG
	config Config
	stat   Stat
	logger zerolog.Logger
	tracer trace.Tracer

	nodes       map[NodeID]*node
	addrToNode  map[[16]byte]NodeID
	cloggedIn   map[NodeID]struct{}
	cloggedOut  map[NodeID]struct{}
	cloggedLink map[linkKey]struct{}
}

// Option configures New.
type Option func(*Network)

// WithLogger attaches a logger; the default is zerolog.Nop().
func WithLogger(logger zerolog.Logger) Option {
	return func(n *Network) { n.logger = logger }
}

// WithTracer attaches a tracer used by TrySendCtx; the default is a
// no-op tracer, so dispatch never pays tracing overhead unless a
// caller opts in.
func WithTracer(tracer trace.Tracer) Option {
	return func(n *Network) { n.tracer = tracer }
}

// New creates an empty Network: no nodes, the given seeded RNG, and
// cfg as the initial Config.
func New(rng RNG, cfg Config, opts ...Option) *Network {
	n := &Network{
		rng:         rng,
		config:      cfg,
		logger:      zerolog.Nop(),
		tracer:      noop.NewTracerProvider().Tracer("simnet"),
		nodes:       make(map[NodeID]*node),
		addrToNode:  make(map[[16]byte]NodeID),
		cloggedIn:   make(map[NodeID]struct{}),
		cloggedOut:  make(map[NodeID]struct{}),
		cloggedLink: make(map[linkKey]struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// mustHaveNode panics if id is not in the registry. Callers must hold
// n.mu. This is the fail-fast path for programmer errors: an absent
// node id is framework misuse, never a recoverable condition.
func (n *Network) mustHaveNode(id NodeID) *node {
	nd, ok := n.nodes[id]
	if !ok {
		panic(fmt.Sprintf("simnet: node %d not found", id))
	}
	return nd
}

// InsertNode registers an empty node record under id. The caller
// guarantees id's uniqueness.
func (n *Network) InsertNode(id NodeID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.logger.Debug().Uint64("node", uint64(id)).Msg("insert_node")
	n.nodes[id] = newNode()
}

// ResetNode clears every bound socket and cancels every delivery
// scheduled into id. It retains id's assigned IP. Panics if id is
// unmanaged.
func (n *Network) ResetNode(id NodeID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	nd := n.mustHaveNode(id)
	n.logger.Debug().Uint64("node", uint64(id)).Msg("reset_node")
	nd.sockets = make(map[socketKey]Socket)
	for _, c := range nd.cancels {
		c.Cancel()
	}
	nd.cancels = nil
}

// SetIP assigns ip to id, replacing any previous IP and updating the
// reverse index. Fails fast (panics) if id is unmanaged or if ip is
// already bound to a different node. Returns ErrSocketsBound if id
// currently has bound sockets — re-keying a node's sockets to a new
// address has no well-defined behavior, so this package forbids the
// rebind rather than guessing.
func (n *Network) SetIP(id NodeID, ip net.IP) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	nd := n.mustHaveNode(id)
	if len(nd.sockets) > 0 {
		return ErrSocketsBound
	}
	n.logger.Debug().Uint64("node", uint64(id)).Str("ip", ip.String()).Msg("set_ip")

	key := ipKey(ip)
	if owner, ok := n.addrToNode[key]; ok && owner != id {
		panic(fmt.Sprintf("simnet: ip conflict: %s already bound to node %d", ip, owner))
	}
	if nd.ip != nil {
		delete(n.addrToNode, ipKey(nd.ip))
	}
	nd.ip = ip
	n.addrToNode[key] = id
	return nil
}

// Bind registers socket at addr/protocol on node id, resolving an
// ephemeral port if addr.Port is 0. Returns the resolved address. Panics
// if id is unmanaged; returns ErrAddrNotAvailable or ErrAddrInUse for
// the recoverable bind-time conditions.
func (n *Network) Bind(id NodeID, addr SocketAddr, protocol Protocol, socket Socket) (SocketAddr, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	nd := n.mustHaveNode(id)

	if !addr.IP.IsUnspecified() && !addr.IP.IsLoopback() {
		if nd.ip == nil || !nd.ip.Equal(addr.IP) {
			return SocketAddr{}, fmt.Errorf("%w: %s", ErrAddrNotAvailable, addr)
		}
	}

	if addr.Port == 0 {
		port, ok := firstFreeEphemeralPort(nd, addr.IP, protocol)
		if !ok {
			return SocketAddr{}, fmt.Errorf("%w: no available ephemeral port", ErrAddrInUse)
		}
		addr.Port = port
	}

	key := addr.key(protocol)
	if _, exists := nd.sockets[key]; exists {
		return SocketAddr{}, fmt.Errorf("%w: %s", ErrAddrInUse, addr)
	}
	nd.sockets[key] = socket
	n.logger.Debug().Uint64("node", uint64(id)).Str("addr", addr.String()).Stringer("protocol", protocol).Msg("bind")
	return addr, nil
}

// firstFreeEphemeralPort scans 1..=65535 in ascending order for a port
// not already occupied by (ip, port, protocol) in this node's table.
// The search never considers other nodes — ports are per-node.
func firstFreeEphemeralPort(nd *node, ip net.IP, protocol Protocol) (uint16, bool) {
	for port := 1; port <= 65535; port++ {
		k := SocketAddr{IP: ip, Port: uint16(port)}.key(protocol)
		if _, occupied := nd.sockets[k]; !occupied {
			return uint16(port), true
		}
	}
	return 0, false
}

// Close unregisters the socket bound at addr/protocol on node id, if
// any. Panics if id is unmanaged.
func (n *Network) Close(id NodeID, addr SocketAddr, protocol Protocol) {
	n.mu.Lock()
	defer n.mu.Unlock()
	nd := n.mustHaveNode(id)
	n.logger.Debug().Uint64("node", uint64(id)).Str("addr", addr.String()).Msg("close")
	delete(nd.sockets, addr.key(protocol))
}

// UpdateConfig applies f to the current config and panics if the
// result violates Config.Validate — a malformed config is a programmer
// error, not a runtime condition. The mutation takes effect on the
// next TrySend; in-flight scheduled deliveries keep their already
// sampled latency.
func (n *Network) UpdateConfig(f func(*Config)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	next := n.config
	f(&next)
	if err := next.Validate(); err != nil {
		panic("simnet: " + err.Error())
	}
	n.config = next
}

// Stat returns a snapshot of the network's monotonic counters.
func (n *Network) Stat() Stat {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stat
}

// AbortTaskOnReset registers handle with node id so that ResetNode(id)
// cancels it. This is how the transport layer ties a scheduled
// delivery's cancellation to the destination node's lifecycle. Panics
// if id is unmanaged.
func (n *Network) AbortTaskOnReset(id NodeID, handle CancelHandle) {
	n.mu.Lock()
	defer n.mu.Unlock()
	nd := n.mustHaveNode(id)
	nd.cancels = append(nd.cancels, handle)
}
