package s3sim_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/chaoslab/dsim/clients/s3sim"
	"github.com/chaoslab/dsim/internal/simnet"
	"github.com/chaoslab/dsim/internal/simrand"
	"github.com/chaoslab/dsim/internal/simtask"

	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*simnet.Network, *simtask.Executor, simnet.SocketAddr) {
	t.Helper()
	network := simnet.New(simrand.New(1), simnet.DefaultConfig())
	executor := simtask.NewExecutor()
	// Each call's connection reaches the server only once the virtual
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
	srv := s3sim.NewServer(zerolog.Nop())
	addr, err := srv.Serve(context.Background(), network, executor, 1, simnet.NewSocketAddr(net.ParseIP("10.0.0.1"), 9000))
	if err != nil {
		t.Fatal(err)
	}
	return network, executor, addr
}

func TestPutGetDeleteRoundTrip(t *testing.T) {
	network, executor, addr := newStore(t)
	client := s3sim.NewClient(network, executor, 2, simnet.NewSocketAddr(net.ParseIP("10.0.0.2"), 0), addr)

	ctx := context.Background()
	require.NoError(t, client.CreateBucket(ctx, "bucket"))

	etag, err := client.PutObject(ctx, "bucket", "k1", []byte("hello"))
	require.NoError(t, err)
	require.NotEmpty(t, etag)

	got, err := client.GetObject(ctx, "bucket", "k1")
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))

	require.NoError(t, client.DeleteObject(ctx, "bucket", "k1"))
	_, err = client.GetObject(ctx, "bucket", "k1")
	require.Error(t, err)
}

func TestListObjectsV2FiltersByPrefix(t *testing.T) {
	network, executor, addr := newStore(t)
	client := s3sim.NewClient(network, executor, 2, simnet.NewSocketAddr(net.ParseIP("10.0.0.2"), 0), addr)

	ctx := context.Background()
	if err := client.CreateBucket(ctx, "bucket"); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"logs/a", "logs/b", "data/c"} {
		if _, err := client.PutObject(ctx, "bucket", key, []byte(key)); err != nil {
			t.Fatal(err)
		}
	}

	objects, err := client.ListObjectsV2(ctx, "bucket", "logs/")
	if err != nil {
		t.Fatal(err)
	}
	if len(objects) != 2 {
		t.Fatalf("expected 2 matching objects, got %d", len(objects))
	}
	for _, obj := range objects {
		if obj.Key == nil || (*obj.Key)[:5] != "logs/" {
			t.Fatalf("unexpected key in filtered listing: %v", obj.Key)
		}
	}
}

func TestGetObjectFromMissingBucketFails(t *testing.T) {
	network, executor, addr := newStore(t)
	client := s3sim.NewClient(network, executor, 2, simnet.NewSocketAddr(net.ParseIP("10.0.0.2"), 0), addr)

	if _, err := client.GetObject(context.Background(), "nope", "k"); err == nil {
		t.Fatal("expected NoSuchBucket error")
	}
}
