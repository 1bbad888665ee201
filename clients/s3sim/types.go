// Package s3sim is a thin object-store client and server running over
// a simulated network. The client surface is typed against
// github.com/aws/aws-sdk-go-v2/service/s3/types so call sites read
// like real aws-sdk-go-v2 usage, but no real AWS transport is ever
// invoked — every call is framed as a small request/response struct
// sent over a transport/stream connection to an in-process server
// holding buckets and objects in memory.
package s3sim

import "errors"

// ErrUnavailable is returned when dialing the object-store server
// fails.
var ErrUnavailable = errors.New("s3sim: server unavailable")

// ErrNoSuchBucket and ErrNoSuchKey mirror the AWS error codes a real
// S3 client would surface for the same conditions.
var (
	ErrNoSuchBucket = errors.New("s3sim: NoSuchBucket")
	ErrNoSuchKey    = errors.New("s3sim: NoSuchKey")
)

type putObjectRequest struct {
	Bucket string
	Key    string
	Body   []byte
}

type putObjectResponse struct {
	ETag string
	Err  string
}

type getObjectRequest struct {
	Bucket string
	Key    string
}

type getObjectResponse struct {
	Body         []byte
	ETag         string
	ContentLength int64
	Err          string
}

type deleteObjectRequest struct {
	Bucket string
	Key    string
}

type deleteObjectResponse struct {
	Err string
}

type listObjectsV2Request struct {
	Bucket string
	Prefix string
}

type listObjectsV2Response struct {
	Keys []objectSummary
	Err  string
}

type objectSummary struct {
	Key          string
	Size         int64
	ETag         string
}

type createBucketRequest struct {
	Bucket string
}

type createBucketResponse struct {
	Err string
}
