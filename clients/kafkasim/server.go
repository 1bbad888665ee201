package kafkasim

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/chaoslab/dsim/internal/simnet"
	"github.com/chaoslab/dsim/internal/simtask"
	"github.com/chaoslab/dsim/transport/stream"
)

// partitionLog is one partition's append-only record log. Fetch
// blocks on a waiter channel until Produce appends past the requested
// offset or the caller's context is canceled — there is no polling.
type partitionLog struct {
	mu      sync.Mutex
	records [][]byte
	waiters []chan struct{}
}

func (p *partitionLog) append(records [][]byte) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	base := int64(len(p.records))
	p.records = append(p.records, records...)
	for _, w := range p.waiters {
		close(w)
	}
	p.waiters = nil
	return base
}

func (p *partitionLog) fetch(ctx context.Context, offset int64, maxRecords int) ([][]byte, int64, error) {
	for {
		p.mu.Lock()
		if offset < int64(len(p.records)) {
			end := int64(len(p.records))
			if maxRecords > 0 && offset+int64(maxRecords) < end {
				end = offset + int64(maxRecords)
			}
			out := append([][]byte(nil), p.records[offset:end]...)
			p.mu.Unlock()
			return out, end, nil
		}
		wait := make(chan struct{})
		p.waiters = append(p.waiters, wait)
		p.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, offset, ctx.Err()
		}
	}
}

func (p *partitionLog) watermarks() (low, high int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return 0, int64(len(p.records))
}

type topicState struct {
	partitions []*partitionLog
}

// Broker holds every topic this node serves. Each topic is a fixed
// number of partitions created up front by CreateTopic, matching the
// original SimBroker's request enum exactly: CreateTopic, Produce,
// Fetch, FetchMetadata, FetchWatermarks.
type Broker struct {
	mu     sync.Mutex
	topics map[string]*topicState
	logger zerolog.Logger
}

// NewBroker creates a broker with no topics.
func NewBroker(logger zerolog.Logger) *Broker {
	return &Broker{topics: make(map[string]*topicState), logger: logger}
}

// Serve binds a stream listener at addr on node and accepts broker
// RPCs until ctx is canceled.
func (b *Broker) Serve(ctx context.Context, network *simnet.Network, executor *simtask.Executor, node simnet.NodeID, addr simnet.SocketAddr) (simnet.SocketAddr, error) {
	listener, bound, err := stream.Listen(network, executor, node, addr, b.logger)
	if err != nil {
		return simnet.SocketAddr{}, err
	}
	go b.acceptLoop(ctx, listener)
	return bound, nil
}

func (b *Broker) acceptLoop(ctx context.Context, listener *stream.Listener) {
	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			return
		}
		go b.handleConn(ctx, conn)
	}
}

func (b *Broker) handleConn(ctx context.Context, conn *stream.Conn) {
	req, err := conn.Recv(ctx)
	if err != nil {
		return
	}
	switch r := req.(type) {
	case createTopicRequest:
		_ = conn.Send(ctx, b.createTopic(r))
	case produceRequest:
		_ = conn.Send(ctx, b.produce(r))
	case fetchRequest:
		_ = conn.Send(ctx, b.fetch(ctx, r))
	case fetchMetadataRequest:
		_ = conn.Send(ctx, b.fetchMetadata(r))
	case fetchWatermarksRequest:
		_ = conn.Send(ctx, b.fetchWatermarks(r))
	default:
		b.logger.Warn().Msg("kafkasim: unrecognized request")
	}
}

func (b *Broker) createTopic(r createTopicRequest) createTopicResponse {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.topics[r.Name]; exists {
		return createTopicResponse{}
	}
	partitions := make([]*partitionLog, r.Partitions)
	for i := range partitions {
		partitions[i] = &partitionLog{}
	}
	b.topics[r.Name] = &topicState{partitions: partitions}
	return createTopicResponse{}
}

func (b *Broker) partitionOf(topic string, partition int32) (*partitionLog, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[topic]
	if !ok || int(partition) >= len(t.partitions) {
		return nil, false
	}
	return t.partitions[partition], true
}

func (b *Broker) produce(r produceRequest) produceResponse {
	p, ok := b.partitionOf(r.Topic, r.Partition)
	if !ok {
		return produceResponse{Err: ErrUnknownTopic.Error()}
	}
	return produceResponse{BaseOffset: p.append(r.Records)}
}

func (b *Broker) fetch(ctx context.Context, r fetchRequest) fetchResponse {
	p, ok := b.partitionOf(r.Topic, r.Partition)
	if !ok {
		return fetchResponse{Err: ErrUnknownTopic.Error()}
	}
	records, next, err := p.fetch(ctx, r.Offset, maxRecordsFor(r.MaxBytes))
	if err != nil {
		return fetchResponse{Err: err.Error()}
	}
	return fetchResponse{Records: records, NextOffset: next}
}

// maxRecordsFor is a coarse stand-in for the real byte-budgeted fetch:
// this simulator never models per-record size limits, only a count
// cap derived from the requested byte budget so zero still means
// "no limit".
func maxRecordsFor(maxBytes int) int {
	if maxBytes <= 0 {
		return 0
	}
	return maxBytes
}

func (b *Broker) fetchMetadata(r fetchMetadataRequest) fetchMetadataResponse {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r.Topic != "" {
		t, ok := b.topics[r.Topic]
		if !ok {
			return fetchMetadataResponse{Err: ErrUnknownTopic.Error()}
		}
		return fetchMetadataResponse{Topics: []topicMetadata{{Name: r.Topic, Partitions: len(t.partitions)}}}
	}
	topics := make([]topicMetadata, 0, len(b.topics))
	for name, t := range b.topics {
		topics = append(topics, topicMetadata{Name: name, Partitions: len(t.partitions)})
	}
	return fetchMetadataResponse{Topics: topics}
}

func (b *Broker) fetchWatermarks(r fetchWatermarksRequest) fetchWatermarksResponse {
	p, ok := b.partitionOf(r.Topic, r.Partition)
	if !ok {
		return fetchWatermarksResponse{Err: ErrUnknownTopic.Error()}
	}
	low, high := p.watermarks()
	return fetchWatermarksResponse{Low: low, High: high}
}
