package simnet

import "errors"

// Bind-time errors: returned to the caller, the socket is not
// registered. Check with errors.Is.
var (
	// ErrAddrNotAvailable means the requested IP doesn't match the
	// node's assigned IP and isn't loopback/wildcard.
	ErrAddrNotAvailable = errors.New("simnet: address not available")

	// ErrAddrInUse means the exact (address, protocol) key is already
	// bound on this node, or no ephemeral port was free.
	ErrAddrInUse = errors.New("simnet: address already in use")
)

// ErrSocketsBound is returned by SetIP when the node already has
// sockets bound under its current IP. Re-keying bound sockets to a new
// IP has no well-defined behavior, so this package forbids the rebind
// outright rather than silently orphaning socket table entries.
var ErrSocketsBound = errors.New("simnet: cannot change ip while sockets are bound")
