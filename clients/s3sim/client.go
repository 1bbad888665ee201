package s3sim

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/chaoslab/dsim/internal/simnet"
	"github.com/chaoslab/dsim/internal/simtask"
	"github.com/chaoslab/dsim/transport/stream"
)

// Client is a thin object-store client, bound to one node's simulated
// network identity, that dials the server addr on every call.
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

// CreateBucket creates an empty bucket. Creating an existing bucket is
// a no-op, matching S3's idempotent CreateBucket semantics for a
// bucket the caller already owns.
func (c *Client) CreateBucket(ctx context.Context, bucket string) error {
	_, err := c.call(ctx, createBucketRequest{Bucket: bucket})
	return err
}

// PutObject stores body under key in bucket, returning the computed
// ETag.
func (c *Client) PutObject(ctx context.Context, bucket, key string, body []byte) (string, error) {
	resp, err := c.call(ctx, putObjectRequest{Bucket: bucket, Key: key, Body: body})
	if err != nil {
		return "", err
	}
	r := resp.(putObjectResponse)
	if r.Err != "" {
		return "", stringError(r.Err)
	}
	return r.ETag, nil
}

// GetObject retrieves the object stored at key in bucket.
func (c *Client) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	resp, err := c.call(ctx, getObjectRequest{Bucket: bucket, Key: key})
	if err != nil {
		return nil, err
	}
	r := resp.(getObjectResponse)
	if r.Err != "" {
		return nil, stringError(r.Err)
	}
	return r.Body, nil
}

// DeleteObject removes key from bucket, if present.
func (c *Client) DeleteObject(ctx context.Context, bucket, key string) error {
	resp, err := c.call(ctx, deleteObjectRequest{Bucket: bucket, Key: key})
	if err != nil {
		return err
	}
	r := resp.(deleteObjectResponse)
	if r.Err != "" {
		return stringError(r.Err)
	}
	return nil
}

// ListObjectsV2 lists every object in bucket whose key starts with
// prefix, returning real aws-sdk-go-v2 types.Object values so callers
// can reuse downstream code written against the real SDK's listing
// response shape.
func (c *Client) ListObjectsV2(ctx context.Context, bucket, prefix string) ([]types.Object, error) {
	resp, err := c.call(ctx, listObjectsV2Request{Bucket: bucket, Prefix: prefix})
	if err != nil {
		return nil, err
	}
	r := resp.(listObjectsV2Response)
	if r.Err != "" {
		return nil, stringError(r.Err)
	}
	objects := make([]types.Object, 0, len(r.Keys))
	for _, k := range r.Keys {
		key, size, etag := k.Key, k.Size, k.ETag
		objects = append(objects, types.Object{
			Key:          &key,
			Size:         &size,
			ETag:         &etag,
			StorageClass: types.ObjectStorageClassStandard,
		})
	}
	return objects, nil
}

type stringError string

func (e stringError) Error() string { return string(e) }
