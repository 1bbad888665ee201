package kafkasim

import (
	"context"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"github.com/chaoslab/dsim/internal/simnet"
	"github.com/chaoslab/dsim/internal/simtask"
	"github.com/chaoslab/dsim/transport/stream"
)

// Client is a producer/consumer handle bound to one node's simulated
// network identity, dialing the broker addr on every call. Records
// are exchanged as real kgo.Record values so call sites look like
// real franz-go usage.
type Client struct {
	network    *simnet.Network
	executor   *simtask.Executor
	node       simnet.NodeID
	local      simnet.SocketAddr
	serverAddr simnet.SocketAddr
}

// NewClient creates a client dialing serverAddr from (node, local).
func NewClient(network *simnet.Network, executor *simtask.Executor, node simnet.NodeID, local, serverAddr simnet.SocketAddr) *Client {
	return &Client{network: network, executor: executor, node: node, local: local, serverAddr: serverAddr}
}

func (c *Client) call(ctx context.Context, req any) (any, error) {
	conn, ok := stream.Dial(c.network, c.executor, c.node, c.local, c.serverAddr)
	if !ok {
		return nil, ErrUnavailable
	}
	if err := conn.Send(ctx, req); err != nil {
		return nil, err
	}
	return conn.Recv(ctx)
}

// CreateTopic creates a topic with the given partition count.
// Creating an existing topic is a no-op.
func (c *Client) CreateTopic(ctx context.Context, topic string, partitions int) error {
	_, err := c.call(ctx, createTopicRequest{Name: topic, Partitions: partitions})
	return err
}

// Produce appends records to (topic, partition) and returns the
// offset of the first record written.
func (c *Client) Produce(ctx context.Context, topic string, partition int32, records []*kgo.Record) (int64, error) {
	raw := make([][]byte, len(records))
	for i, r := range records {
		raw[i] = r.Value
	}
	resp, err := c.call(ctx, produceRequest{Topic: topic, Partition: partition, Records: raw})
	if err != nil {
		return 0, err
	}
	r := resp.(produceResponse)
	if r.Err != "" {
		return 0, stringError(r.Err)
	}
	return r.BaseOffset, nil
}

// Fetch blocks until at least one record is available at or after
// offset, or ctx is done, returning the records found and the next
// offset to fetch from.
func (c *Client) Fetch(ctx context.Context, topic string, partition int32, offset int64, maxRecords int) ([]*kgo.Record, int64, error) {
	resp, err := c.call(ctx, fetchRequest{Topic: topic, Partition: partition, Offset: offset, MaxBytes: maxRecords})
	if err != nil {
		return nil, offset, err
	}
	r := resp.(fetchResponse)
	if r.Err != "" {
		return nil, offset, stringError(r.Err)
	}
	records := make([]*kgo.Record, len(r.Records))
	for i, raw := range r.Records {
		records[i] = &kgo.Record{Topic: topic, Partition: partition, Offset: offset + int64(i), Value: raw}
	}
	return records, r.NextOffset, nil
}

// FetchWatermarks returns the low (always 0, this simulator never
// truncates) and high (next offset to be written) watermarks for a
// partition.
func (c *Client) FetchWatermarks(ctx context.Context, topic string, partition int32) (low, high int64, err error) {
	resp, err := c.call(ctx, fetchWatermarksRequest{Topic: topic, Partition: partition})
	if err != nil {
		return 0, 0, err
	}
	r := resp.(fetchWatermarksResponse)
	if r.Err != "" {
		return 0, 0, stringError(r.Err)
	}
	return r.Low, r.High, nil
}

// FetchAllPartitions fans out a Fetch call to every partition in
// offsets concurrently and returns each partition's records keyed by
// partition, matching how a real consumer group member polls all of
// its assigned partitions in parallel rather than one at a time.
func (c *Client) FetchAllPartitions(ctx context.Context, topic string, offsets map[int32]int64, maxRecords int) (map[int32][]*kgo.Record, error) {
	g, gctx := errgroup.WithContext(ctx)
	out := make(map[int32][]*kgo.Record, len(offsets))
	var mu sync.Mutex
	for partition, offset := range offsets {
		partition, offset := partition, offset
		g.Go(func() error {
			records, _, err := c.Fetch(gctx, topic, partition, offset, maxRecords)
			if err != nil {
				return err
			}
			mu.Lock()
			out[partition] = records
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

type stringError string

func (e stringError) Error() string { return string(e) }
