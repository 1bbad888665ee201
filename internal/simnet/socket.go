package simnet

import (
	"fmt"
	"net"
)

// Protocol distinguishes stream (TCP-like) from datagram (UDP-like)
// sockets. The two never share a socket table slot even at the same
// address and port.
type Protocol uint8

const (
	ProtocolStream Protocol = iota
	ProtocolDatagram
)

func (p Protocol) String() string {
	switch p {
	case ProtocolStream:
		return "stream"
	case ProtocolDatagram:
		return "datagram"
	default:
		return fmt.Sprintf("protocol(%d)", uint8(p))
	}
}

// SocketAddr is a simulated IPv4/IPv6 address plus port. Port 0 in a
// Bind call requests an ephemeral port.
type SocketAddr struct {
	IP   net.IP
	Port uint16
}

// NewSocketAddr builds a SocketAddr, keeping ip as given. Socket table
// lookups key on ip's 16-byte form (see socketKey), so two addresses
// referring to the same IP match there regardless of whether the caller
// used a 4-byte or 16-byte net.IP.
func NewSocketAddr(ip net.IP, port uint16) SocketAddr {
	return SocketAddr{IP: ip, Port: port}
}

func (a SocketAddr) String() string {
	return fmt.Sprintf("%s:%d", a.IP, a.Port)
}

func (a SocketAddr) key(protocol Protocol) socketKey {
	return socketKey{ip: ipKey(a.IP), port: a.Port, protocol: protocol}
}

// socketKey is the comparable map key backing a node's socket table;
// net.IP is a slice and can't be a map key directly.
type socketKey struct {
	ip       [16]byte
	port     uint16
	protocol Protocol
}

func ipKey(ip net.IP) [16]byte {
	var k [16]byte
	copy(k[:], ip.To16())
	return k
}

func wildcardAddr(port uint16) SocketAddr {
	return SocketAddr{IP: net.IPv4zero, Port: port}
}

// Payload is an opaque message handed to a Socket. The network never
// interprets it — it is free to be a byte slice or any higher-level
// protocol value the transport layer defines.
type Payload = any

// Socket is the delivery sink upper protocols register with Bind. Both
// methods are fire-and-forget from the network's perspective: it never
// waits on them and never calls them while its internal lock is held.
type Socket interface {
	// Deliver conveys a single payload from src to dst (datagram
	// semantics).
	Deliver(src, dst SocketAddr, payload Payload)

	// NewConnection hands the destination two endpoints of a
	// newly-opened bidirectional stream. Once established, the stream
	// is not subject to further per-packet latency/loss at this layer
	// — the network plays no further role in its traffic.
	NewConnection(src, dst SocketAddr, send chan<- Payload, recv <-chan Payload)
}

// BaseSocket gives Socket implementers no-op defaults to embed, the Go
// equivalent of the Rust trait's default method bodies.
type BaseSocket struct{}

func (BaseSocket) Deliver(_, _ SocketAddr, _ Payload)                               {}
func (BaseSocket) NewConnection(_, _ SocketAddr, _ chan<- Payload, _ <-chan Payload) {}
