package simnet_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/chaoslab/dsim/internal/simnet"
)

func twoNodeNetwork(t *testing.T, rng simnet.RNG, cfg simnet.Config) (*simnet.Network, *recordingSocket) {
	t.Helper()
	n := simnet.New(rng, cfg)
	n.InsertNode(1)
	n.InsertNode(2)
	if err := n.SetIP(1, net.ParseIP("10.0.0.1")); err != nil {
		t.Fatal(err)
	}
	if err := n.SetIP(2, net.ParseIP("10.0.0.2")); err != nil {
		t.Fatal(err)
	}
	sock := &recordingSocket{}
	if _, err := n.Bind(2, simnet.NewSocketAddr(net.ParseIP("10.0.0.2"), 80), simnet.ProtocolDatagram, sock); err != nil {
		t.Fatal(err)
	}
	return n, sock
}

// P1: zero loss, no clogging, bound destination -> every TrySend
// succeeds.
func TestTrySendDeliversWithNoLossNoClog(t *testing.T) {
	cfg := simnet.DefaultConfig()
	n, _ := twoNodeNetwork(t, &fixedRNG{floats: []float64{0.99}}, cfg)

	d, ok := n.TrySend(1, simnet.NewSocketAddr(net.ParseIP("10.0.0.1"), 1234), simnet.NewSocketAddr(net.ParseIP("10.0.0.2"), 80), simnet.ProtocolDatagram, "hello")
	if !ok || d == nil {
		t.Fatal("expected delivery")
	}
	if n.Stat().MsgCount != 1 {
		t.Fatalf("expected msg count 1, got %d", n.Stat().MsgCount)
	}
}

// P2: packet_loss_rate = 1 always drops, msg_count never increments.
func TestTrySendAlwaysDropsAtFullLossRate(t *testing.T) {
	cfg := simnet.Config{PacketLossRate: 1, SendLatency: simnet.LatencyRange{Lo: time.Millisecond, Hi: 2 * time.Millisecond}}
	n, _ := twoNodeNetwork(t, &fixedRNG{floats: []float64{0}}, cfg)

	for i := 0; i < 5; i++ {
		_, ok := n.TrySend(1, simnet.NewSocketAddr(net.ParseIP("10.0.0.1"), 1234), simnet.NewSocketAddr(net.ParseIP("10.0.0.2"), 80), simnet.ProtocolDatagram, i)
		if ok {
			t.Fatalf("iteration %d: expected drop at loss rate 1", i)
		}
	}
	if n.Stat().MsgCount != 0 {
		t.Fatalf("expected msg count 0, got %d", n.Stat().MsgCount)
	}
}

// P4: msg_count increments by exactly 1 per admitted packet, not per
// attempt.
func TestMsgCountIncrementsOnlyOnAdmission(t *testing.T) {
	cfg := simnet.DefaultConfig()
	n, _ := twoNodeNetwork(t, &fixedRNG{floats: []float64{0}}, cfg)

	src := simnet.NewSocketAddr(net.ParseIP("10.0.0.1"), 1234)
	dst := simnet.NewSocketAddr(net.ParseIP("10.0.0.2"), 80)

	for i := 0; i < 3; i++ {
		if _, ok := n.TrySend(1, src, dst, simnet.ProtocolDatagram, nil); !ok {
			t.Fatalf("iteration %d: expected delivery", i)
		}
	}
	if got := n.Stat().MsgCount; got != 3 {
		t.Fatalf("expected msg count 3, got %d", got)
	}

	n.ClogNode(2, simnet.DirectionIn)
	if _, ok := n.TrySend(1, src, dst, simnet.ProtocolDatagram, nil); ok {
		t.Fatal("expected drop once destination is clogged")
	}
	if got := n.Stat().MsgCount; got != 3 {
		t.Fatalf("clogged send must not increment msg count, got %d", got)
	}
}

// Scenario: unresolvable destination is a silent drop, not an error.
func TestTrySendDropsOnUnresolvableDestination(t *testing.T) {
	n := simnet.New(&fixedRNG{floats: []float64{0}}, simnet.DefaultConfig())
	n.InsertNode(1)
	if err := n.SetIP(1, net.ParseIP("10.0.0.1")); err != nil {
		t.Fatal(err)
	}
	_, ok := n.TrySend(1, simnet.NewSocketAddr(net.ParseIP("10.0.0.1"), 1234), simnet.NewSocketAddr(net.ParseIP("10.0.0.99"), 80), simnet.ProtocolDatagram, nil)
	if ok {
		t.Fatal("expected drop for an address nobody owns")
	}
}

// Scenario: a sender with no assigned IP cannot reach a non-loopback,
// non-self-bound destination.
func TestTrySendFailsFromUnaddressedSender(t *testing.T) {
	n := simnet.New(&fixedRNG{floats: []float64{0}}, simnet.DefaultConfig())
	n.InsertNode(1)
	n.InsertNode(2)
	if err := n.SetIP(2, net.ParseIP("10.0.0.2")); err != nil {
		t.Fatal(err)
	}
	sock := &recordingSocket{}
	if _, err := n.Bind(2, simnet.NewSocketAddr(net.ParseIP("10.0.0.2"), 80), simnet.ProtocolDatagram, sock); err != nil {
		t.Fatal(err)
	}
	_, ok := n.TrySend(1, simnet.SocketAddr{}, simnet.NewSocketAddr(net.ParseIP("10.0.0.2"), 80), simnet.ProtocolDatagram, nil)
	if ok {
		t.Fatal("expected failure: sender has no IP and destination isn't loopback or self-bound")
	}
}

// Self-delivery via an exact local bind short-circuits the reverse
// index, even for a sender with no IP assigned at all.
func TestTrySendSelfDeliveryViaExactBindBypassesIPRequirement(t *testing.T) {
	n := simnet.New(&fixedRNG{floats: []float64{0}}, simnet.DefaultConfig())
	n.InsertNode(1)
	sock := &recordingSocket{}
	addr := simnet.NewSocketAddr(net.IPv4zero, 80)
	if _, err := n.Bind(1, addr, simnet.ProtocolDatagram, sock); err != nil {
		t.Fatal(err)
	}
	d, ok := n.TrySend(1, simnet.SocketAddr{}, addr, simnet.ProtocolDatagram, "ping")
	if !ok || d == nil {
		t.Fatal("expected self-delivery to succeed without the sender holding an IP")
	}
}

// Scenario: destination with no matching socket is a quiet drop even
// though the node and address resolve fine.
func TestTrySendDropsWhenNoSocketBound(t *testing.T) {
	n := simnet.New(&fixedRNG{floats: []float64{0}}, simnet.DefaultConfig())
	n.InsertNode(1)
	n.InsertNode(2)
	if err := n.SetIP(1, net.ParseIP("10.0.0.1")); err != nil {
		t.Fatal(err)
	}
	if err := n.SetIP(2, net.ParseIP("10.0.0.2")); err != nil {
		t.Fatal(err)
	}
	_, ok := n.TrySend(1, simnet.NewSocketAddr(net.ParseIP("10.0.0.1"), 1234), simnet.NewSocketAddr(net.ParseIP("10.0.0.2"), 80), simnet.ProtocolDatagram, nil)
	if ok {
		t.Fatal("expected drop when nothing is bound at the destination")
	}
}

// The link oracle admits the packet (no clog, no loss) before the
// caller ever looks up a destination socket, so msg_count increments
// even though the send ultimately fails for lack of a bound socket.
func TestMsgCountIncrementsOnOracleAdmissionEvenWithoutSocket(t *testing.T) {
	n := simnet.New(&fixedRNG{floats: []float64{0}}, simnet.DefaultConfig())
	n.InsertNode(1)
	n.InsertNode(2)
	if err := n.SetIP(1, net.ParseIP("10.0.0.1")); err != nil {
		t.Fatal(err)
	}
	if err := n.SetIP(2, net.ParseIP("10.0.0.2")); err != nil {
		t.Fatal(err)
	}
	_, ok := n.TrySend(1, simnet.NewSocketAddr(net.ParseIP("10.0.0.1"), 1234), simnet.NewSocketAddr(net.ParseIP("10.0.0.2"), 80), simnet.ProtocolDatagram, nil)
	if ok {
		t.Fatal("expected drop when nothing is bound at the destination")
	}
	if got := n.Stat().MsgCount; got != 1 {
		t.Fatalf("expected msg count 1 on oracle-admitted, socket-less drop, got %d", got)
	}
}

func TestTrySendCtxDelegatesToTrySend(t *testing.T) {
	cfg := simnet.DefaultConfig()
	n, _ := twoNodeNetwork(t, &fixedRNG{floats: []float64{0.99}}, cfg)

	d, ok := n.TrySendCtx(context.Background(), 1, simnet.NewSocketAddr(net.ParseIP("10.0.0.1"), 1234), simnet.NewSocketAddr(net.ParseIP("10.0.0.2"), 80), simnet.ProtocolDatagram, "hello")
	if !ok || d == nil {
		t.Fatal("expected delivery via TrySendCtx")
	}
}

// Wildcard binds receive traffic addressed to any IP on their port.
func TestTrySendFallsBackToWildcardBind(t *testing.T) {
	n := simnet.New(&fixedRNG{floats: []float64{0}}, simnet.DefaultConfig())
	n.InsertNode(1)
	n.InsertNode(2)
	if err := n.SetIP(1, net.ParseIP("10.0.0.1")); err != nil {
		t.Fatal(err)
	}
	if err := n.SetIP(2, net.ParseIP("10.0.0.2")); err != nil {
		t.Fatal(err)
	}
	sock := &recordingSocket{}
	if _, err := n.Bind(2, simnet.NewSocketAddr(net.IPv4zero, 80), simnet.ProtocolDatagram, sock); err != nil {
		t.Fatal(err)
	}
	_, ok := n.TrySend(1, simnet.NewSocketAddr(net.ParseIP("10.0.0.1"), 1234), simnet.NewSocketAddr(net.ParseIP("10.0.0.2"), 80), simnet.ProtocolDatagram, "x")
	if !ok {
		t.Fatal("expected wildcard bind to receive the packet")
	}
}
