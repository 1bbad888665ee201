package s3sim

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/chaoslab/dsim/internal/simnet"
	"github.com/chaoslab/dsim/internal/simtask"
	"github.com/chaoslab/dsim/transport/stream"
)

// Server holds every bucket this node serves, as an in-memory
// map[bucket]map[key][]byte guarded by a single mutex — the
// massively simplified analog of S3's actual storage layer that the
// "thin client shim" framing calls for.
type Server struct {
	mu      sync.Mutex
	buckets map[string]map[string][]byte
	logger  zerolog.Logger
}

// NewServer creates an object store with no buckets.
func NewServer(logger zerolog.Logger) *Server {
	return &Server{buckets: make(map[string]map[string][]byte), logger: logger}
}

// Serve binds a stream listener at addr on node and accepts object
// store RPCs until ctx is canceled.
func (s *Server) Serve(ctx context.Context, network *simnet.Network, executor *simtask.Executor, node simnet.NodeID, addr simnet.SocketAddr) (simnet.SocketAddr, error) {
	listener, bound, err := stream.Listen(network, executor, node, addr, s.logger)
	if err != nil {
		return simnet.SocketAddr{}, err
	}
	go s.acceptLoop(ctx, listener)
	return bound, nil
}

func (s *Server) acceptLoop(ctx context.Context, listener *stream.Listener) {
	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			return
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn *stream.Conn) {
	req, err := conn.Recv(ctx)
	if err != nil {
		return
	}
	switch r := req.(type) {
	case createBucketRequest:
		_ = conn.Send(ctx, s.createBucket(r))
	case putObjectRequest:
		_ = conn.Send(ctx, s.putObject(r))
	case getObjectRequest:
		_ = conn.Send(ctx, s.getObject(r))
	case deleteObjectRequest:
		_ = conn.Send(ctx, s.deleteObject(r))
	case listObjectsV2Request:
		_ = conn.Send(ctx, s.listObjectsV2(r))
	default:
		s.logger.Warn().Msg("s3sim: unrecognized request")
	}
}

func (s *Server) createBucket(r createBucketRequest) createBucketResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.buckets[r.Bucket]; !exists {
		s.buckets[r.Bucket] = make(map[string][]byte)
	}
	return createBucketResponse{}
}

func (s *Server) putObject(r putObjectRequest) putObjectResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.buckets[r.Bucket]
	if !ok {
		return putObjectResponse{Err: ErrNoSuchBucket.Error()}
	}
	bucket[r.Key] = r.Body
	return putObjectResponse{ETag: etagOf(r.Body)}
}

func (s *Server) getObject(r getObjectRequest) getObjectResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.buckets[r.Bucket]
	if !ok {
		return getObjectResponse{Err: ErrNoSuchBucket.Error()}
	}
	body, ok := bucket[r.Key]
	if !ok {
		return getObjectResponse{Err: ErrNoSuchKey.Error()}
	}
	return getObjectResponse{Body: body, ETag: etagOf(body), ContentLength: int64(len(body))}
}

func (s *Server) deleteObject(r deleteObjectRequest) deleteObjectResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.buckets[r.Bucket]
	if !ok {
		return deleteObjectResponse{Err: ErrNoSuchBucket.Error()}
	}
	delete(bucket, r.Key)
	return deleteObjectResponse{}
}

func (s *Server) listObjectsV2(r listObjectsV2Request) listObjectsV2Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.buckets[r.Bucket]
	if !ok {
		return listObjectsV2Response{Err: ErrNoSuchBucket.Error()}
	}
	var keys []objectSummary
	for key, body := range bucket {
		if !strings.HasPrefix(key, r.Prefix) {
			continue
		}
		keys = append(keys, objectSummary{Key: key, Size: int64(len(body)), ETag: etagOf(body)})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Key < keys[j].Key })
	return listObjectsV2Response{Keys: keys}
}

func etagOf(body []byte) string {
	h := fnv.New32a()
	h.Write(body)
	return fmt.Sprintf("%x", h.Sum32())
}
