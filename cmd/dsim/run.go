package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/chaoslab/dsim/internal/simlog"
	"github.com/chaoslab/dsim/internal/simmetrics"
	"github.com/chaoslab/dsim/internal/simnet"
	"github.com/chaoslab/dsim/internal/simrand"
	"github.com/chaoslab/dsim/internal/simtask"
	"github.com/chaoslab/dsim/pkg/config"
	"github.com/chaoslab/dsim/transport/datagram"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Args:  cobra.NoArgs,
	Short: "Drive a scripted scenario across a simulated cluster",
	Long: `Builds a Network from config, inserts the configured number of nodes,
binds a datagram socket per node, and drives a fixed round-robin send
scenario across them, printing each outcome (delivered, dropped, or
cancelled) as it resolves.`,
	RunE: runDemo,
}

func init() {
	runCmd.Flags().Int64("seed", 0, "override simulation.seed (0 keeps the config value)")
	runCmd.Flags().Int("rounds", 20, "number of send rounds to drive")
}

func runDemo(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = "dsim.yaml"
	}
	cfg, err := loadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if seed, _ := cmd.Flags().GetInt64("seed"); seed != 0 {
		cfg.Simulation.Seed = seed
	}
	rounds, _ := cmd.Flags().GetInt("rounds")

	logLevel := simlog.LevelInfo
	if verbose {
		logLevel = simlog.LevelDebug
	}
	runID := uuid.NewString()
	zlog := simlog.New(simlog.Config{
		Level:  logLevel,
		Format: simlog.Format(cfg.Framework.LogFormat),
		Output: os.Stdout,
	}).With().Str("run_id", runID).Logger()

	rng := simrand.New(cfg.Simulation.Seed)
	netCfg := simnet.Config{
		PacketLossRate: cfg.Simulation.PacketLossRate,
		SendLatency: simnet.LatencyRange{
			Lo: cfg.Simulation.SendLatencyLo,
			Hi: cfg.Simulation.SendLatencyHi,
		},
	}
	tracerProvider := sdktrace.NewTracerProvider()
	defer tracerProvider.Shutdown(context.Background())
	network := simnet.New(rng, netCfg, simnet.WithLogger(zlog), simnet.WithTracer(tracerProvider.Tracer("dsim")))
	executor := simtask.NewExecutor()

	registry := prometheus.NewRegistry()
	metrics := simmetrics.New(registry, "dsim")
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				zlog.Warn().Err(err).Msg("metrics listener stopped")
			}
		}()
		defer server.Close()
		fmt.Printf("dsim: metrics listening on %s/metrics\n", cfg.Metrics.ListenAddr)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	baseIP := net.ParseIP(cfg.Cluster.IPBase).To4()
	if baseIP == nil {
		return fmt.Errorf("cluster.ip_base %q is not a valid IPv4 address", cfg.Cluster.IPBase)
	}

	type peer struct {
		id   simnet.NodeID
		addr simnet.SocketAddr
		conn *datagram.Conn
	}
	peers := make([]peer, cfg.Cluster.NodeCount)
	for i := 0; i < cfg.Cluster.NodeCount; i++ {
		id := simnet.NodeID(i + 1)
		ip := make(net.IP, len(baseIP))
		copy(ip, baseIP)
		ip[3] += byte(i)

		network.InsertNode(id)
		if err := network.SetIP(id, ip); err != nil {
			return fmt.Errorf("assign ip to node %d: %w", id, err)
		}
		conn, addr, err := datagram.Listen(network, executor, id, simnet.NewSocketAddr(ip, 9000), zlog)
		if err != nil {
			return fmt.Errorf("bind node %d: %w", id, err)
		}
		peers[i] = peer{id: id, addr: addr, conn: conn}
	}

	fmt.Printf("dsim: run=%s seed=%d nodes=%d packet_loss_rate=%.3f\n", runID, cfg.Simulation.Seed, cfg.Cluster.NodeCount, cfg.Simulation.PacketLossRate)

	delivered, dropped := 0, 0
	for round := 0; round < rounds; round++ {
		from := peers[round%len(peers)]
		to := peers[(round+1)%len(peers)]

		payload := fmt.Sprintf("round-%d", round)
		metrics.DeliveryScheduled()
		ok := from.conn.WriteTo(to.addr, payload)
		executor.Advance(cfg.Simulation.SendLatencyHi)

		if !ok {
			dropped++
			metrics.RecordDropped(simmetrics.DropReasonUnresolved)
			metrics.DeliveryFinished()
			fmt.Printf("round %2d: %s -> %s DROPPED\n", round, from.addr, to.addr)
			continue
		}

		recvCtx, recvCancel := context.WithTimeout(ctx, time.Millisecond)
		pkt, err := to.conn.ReadFrom(recvCtx)
		recvCancel()
		metrics.DeliveryFinished()
		if err != nil {
			dropped++
			metrics.RecordCancelled()
			fmt.Printf("round %2d: %s -> %s CANCELLED (%v)\n", round, from.addr, to.addr, err)
			continue
		}
		delivered++
		metrics.RecordDelivered()
		fmt.Printf("round %2d: %s -> %s DELIVERED %q\n", round, from.addr, to.addr, pkt.Payload)
	}

	fmt.Printf("dsim: %d delivered, %d dropped/cancelled out of %d rounds\n", delivered, dropped, rounds)
	return nil
}
