package kafkasim_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/chaoslab/dsim/clients/kafkasim"
	"github.com/chaoslab/dsim/internal/simnet"
	"github.com/chaoslab/dsim/internal/simrand"
	"github.com/chaoslab/dsim/internal/simtask"

	"github.com/stretchr/testify/require"
)

func newCluster(t *testing.T) (*simnet.Network, *simtask.Executor, simnet.SocketAddr) {
	t.Helper()
	network := simnet.New(simrand.New(1), simnet.DefaultConfig())
	executor := simtask.NewExecutor()
	// Each call's connection reaches the broker only once the virtual
	// clock passes its sampled latency, so keep the clock moving.
	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				executor.Advance(time.Millisecond)
				time.Sleep(100 * time.Microsecond)
			}
		}
	}()
	network.InsertNode(1)
	network.InsertNode(2)
	if err := network.SetIP(1, net.ParseIP("10.0.0.1")); err != nil {
		t.Fatal(err)
	}
	if err := network.SetIP(2, net.ParseIP("10.0.0.2")); err != nil {
		t.Fatal(err)
	}
	broker := kafkasim.NewBroker(zerolog.Nop())
	addr, err := broker.Serve(context.Background(), network, executor, 1, simnet.NewSocketAddr(net.ParseIP("10.0.0.1"), 9092))
	if err != nil {
		t.Fatal(err)
	}
	return network, executor, addr
}

func TestProduceThenFetchReturnsRecordsInOrder(t *testing.T) {
	network, executor, addr := newCluster(t)
	client := kafkasim.NewClient(network, executor, 2, simnet.NewSocketAddr(net.ParseIP("10.0.0.2"), 0), addr)
	ctx := context.Background()

	require.NoError(t, client.CreateTopic(ctx, "events", 1))
	base, err := client.Produce(ctx, "events", 0, []*kgo.Record{{Value: []byte("a")}, {Value: []byte("b")}})
	require.NoError(t, err)
	require.Equal(t, int64(0), base)

	records, next, err := client.Fetch(ctx, "events", 0, 0, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "a", string(records[0].Value))
	require.Equal(t, "b", string(records[1].Value))
	require.Equal(t, int64(2), next)
}

func TestFetchBlocksUntilProduce(t *testing.T) {
	network, executor, addr := newCluster(t)
	producer := kafkasim.NewClient(network, executor, 2, simnet.NewSocketAddr(net.ParseIP("10.0.0.2"), 0), addr)
	ctx := context.Background()
	if err := producer.CreateTopic(ctx, "events", 1); err != nil {
		t.Fatal(err)
	}

	consumer := kafkasim.NewClient(network, executor, 2, simnet.NewSocketAddr(net.ParseIP("10.0.0.2"), 0), addr)
	done := make(chan struct{})
	var fetchErr error
	go func() {
		_, _, fetchErr = consumer.Fetch(ctx, "events", 0, 0, 0)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("fetch resolved before any record was produced")
	case <-time.After(20 * time.Millisecond):
	}

	if _, err := producer.Produce(ctx, "events", 0, []*kgo.Record{{Value: []byte("x")}}); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
		if fetchErr != nil {
			t.Fatal(fetchErr)
		}
	case <-time.After(time.Second):
		t.Fatal("fetch never unblocked after produce")
	}
}

func TestFetchWatermarksTracksHighWatermark(t *testing.T) {
	network, executor, addr := newCluster(t)
	client := kafkasim.NewClient(network, executor, 2, simnet.NewSocketAddr(net.ParseIP("10.0.0.2"), 0), addr)
	ctx := context.Background()
	if err := client.CreateTopic(ctx, "events", 1); err != nil {
		t.Fatal(err)
	}
	if _, err := client.Produce(ctx, "events", 0, []*kgo.Record{{Value: []byte("a")}, {Value: []byte("b")}, {Value: []byte("c")}}); err != nil {
		t.Fatal(err)
	}
	low, high, err := client.FetchWatermarks(ctx, "events", 0)
	if err != nil {
		t.Fatal(err)
	}
	if low != 0 || high != 3 {
		t.Fatalf("expected watermarks [0, 3), got [%d, %d)", low, high)
	}
}

func TestFetchAllPartitionsFansOutConcurrently(t *testing.T) {
	network, executor, addr := newCluster(t)
	client := kafkasim.NewClient(network, executor, 2, simnet.NewSocketAddr(net.ParseIP("10.0.0.2"), 0), addr)
	ctx := context.Background()
	if err := client.CreateTopic(ctx, "events", 3); err != nil {
		t.Fatal(err)
	}
	for p := int32(0); p < 3; p++ {
		if _, err := client.Produce(ctx, "events", p, []*kgo.Record{{Value: []byte("x")}}); err != nil {
			t.Fatal(err)
		}
	}
	results, err := client.FetchAllPartitions(ctx, "events", map[int32]int64{0: 0, 1: 0, 2: 0}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 partitions fetched, got %d", len(results))
	}
}
