// Package kafkasim is an in-process broker and producer/consumer
// client pair running over a simulated network. The request set this
// package serves (CreateTopic, Produce, Fetch, FetchMetadata,
// FetchWatermarks) is the same request enum SimBroker accepts in the
// Rust source this package is adapted from. The producer/consumer
// types are shaped after github.com/twmb/franz-go's kgo.Record so call
// sites read like real franz-go usage, but no real Kafka wire
// protocol is spoken.
package kafkasim

import "errors"

// ErrUnavailable is returned when dialing the broker fails.
var ErrUnavailable = errors.New("kafkasim: broker unavailable")

// ErrUnknownTopic is returned by Fetch/FetchWatermarks against a topic
// that was never created.
var ErrUnknownTopic = errors.New("kafkasim: unknown topic")

type createTopicRequest struct {
	Name       string
	Partitions int
}

type createTopicResponse struct {
	Err string
}

type produceRequest struct {
	Topic     string
	Partition int32
	Records   [][]byte
}

type produceResponse struct {
	BaseOffset int64
	Err        string
}

type fetchRequest struct {
	Topic     string
	Partition int32
	Offset    int64
	MaxBytes  int
}

type fetchResponse struct {
	Records    [][]byte
	NextOffset int64
	Err        string
}

type fetchMetadataRequest struct {
	Topic string
}

type topicMetadata struct {
	Name       string
	Partitions int
}

type fetchMetadataResponse struct {
	Topics []topicMetadata
	Err    string
}

type fetchWatermarksRequest struct {
	Topic     string
	Partition int32
}

type fetchWatermarksResponse struct {
	Low  int64
	High int64
	Err  string
}
