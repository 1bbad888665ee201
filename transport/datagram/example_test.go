package datagram_test

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/chaoslab/dsim/internal/simnet"
	"github.com/chaoslab/dsim/internal/simrand"
	"github.com/chaoslab/dsim/internal/simtask"
	"github.com/chaoslab/dsim/transport/datagram"
)

// A node can address its own socket bound on the loopback address
// without holding an IP at all: a loopback destination resolves to the
// sender itself, skipping the dispatcher's reverse-index lookup.
func ExampleConn_loopback() {
	cfg := simnet.DefaultConfig()
	rng := simrand.New(1)
	network := simnet.New(rng, cfg)
	executor := simtask.NewExecutor()

	network.InsertNode(1)
	conn, addr, err := datagram.Listen(network, executor, 1, simnet.NewSocketAddr(net.ParseIP("127.0.0.1"), 9000), zerolog.Nop())
	if err != nil {
		fmt.Println("listen failed:", err)
		return
	}

	if !conn.WriteTo(addr, "ping") {
		fmt.Println("write dropped")
		return
	}
	executor.Advance(cfg.SendLatency.Hi)

	pkt, err := conn.ReadFrom(context.Background())
	if err != nil {
		fmt.Println("read failed:", err)
		return
	}
	fmt.Println(pkt.Payload)
	// Output: ping
}
