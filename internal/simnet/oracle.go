package simnet

import "time"

// testLink rolls the link oracle for a packet from src to dst under
// the current config: first the clog check, which draws nothing, then
// the loss roll, then — only if the packet survives — msg_count
// increments and the latency draw happens. This
// fixed order matters because both draws come from the same seeded
// source: drawing the latency on a lossy drop would consume an extra
// value from the sequence, changing every subsequent draw in a run
// using that seed. Callers must hold n.mu.
func (n *Network) testLink(src, dst NodeID) (latency time.Duration, delivered bool) {
	if n.linkClogged(src, dst) {
		return 0, false
	}
	lost := n.rng.Float64() < n.config.PacketLossRate
	if lost {
		return 0, false
	}
	n.stat.MsgCount++
	lat := n.rng.DurationIn(n.config.SendLatency.Lo, n.config.SendLatency.Hi)
	return lat, true
}
