package simnet

import "net"

// resolveDestNode implements the four-step resolution order the
// dispatcher relies on. Callers must hold n.mu.
//
//  1. A loopback destination always resolves to the sender itself.
//  2. Otherwise, if the sender has a socket bound at exactly
//     (dst, protocol), the sender again resolves to itself — this lets
//     a node reach its own exact binding (for instance one on the
//     wildcard address) locally, and is checked before the reverse
//     index so it short-circuits even when the sender has no IP at all.
//  3. A sender with no assigned IP cannot reach any other node; a
//     resolution targeting non-loopback, non-self-bound addresses from
//     such a sender fails.
//  4. Otherwise the destination IP is looked up in the reverse index;
//     a miss fails resolution.
func (n *Network) resolveDestNode(from NodeID, dst SocketAddr, protocol Protocol) (NodeID, bool) {
	if dst.IP.IsLoopback() {
		return from, true
	}

	fromNode := n.nodes[from]
	if _, ok := fromNode.sockets[dst.key(protocol)]; ok {
		return from, true
	}

	if fromNode.ip == nil {
		n.logger.Warn().Uint64("node", uint64(from)).Str("dst", dst.String()).Msg("resolve_dest_node: sender has no ip")
		return 0, false
	}

	id, ok := n.addrToNode[ipKey(dst.IP)]
	if !ok {
		n.logger.Warn().Uint64("node", uint64(from)).Str("dst", dst.String()).Msg("resolve_dest_node: no node owns destination ip")
	}
	return id, ok
}

// lookupSocket finds the socket bound on node id at addr/protocol,
// falling back to that node's wildcard binding (port-only, IP
// unspecified) if no exact match exists. Callers must hold n.mu.
func (n *Network) lookupSocket(id NodeID, addr SocketAddr, protocol Protocol) (Socket, bool) {
	nd, ok := n.nodes[id]
	if !ok {
		return nil, false
	}
	if s, ok := nd.sockets[addr.key(protocol)]; ok {
		return s, true
	}
	if s, ok := nd.sockets[wildcardAddr(addr.Port).key(protocol)]; ok {
		return s, true
	}
	return nil, false
}

// apparentSourceIP is the IP the destination socket sees as the
// sender's address: loopback if the destination address itself was
// loopback, otherwise the sender's assigned IP. The sender is
// guaranteed to have an IP by the time this is called for a
// non-loopback destination, because resolution would already have
// failed otherwise.
func apparentSourceIP(fromNode *node, dst SocketAddr) net.IP {
	if dst.IP.IsLoopback() {
		return net.IPv4(127, 0, 0, 1)
	}
	return fromNode.ip
}
