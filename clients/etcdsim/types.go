// Package etcdsim is a thin leader-election client and server running
// entirely over a simulated network. Its client surface mirrors
// go.etcd.io/etcd/client/v3/concurrency.Election's public method names
// (Campaign, Proclaim, Resign, Observe) so call sites read like real
// etcd client code, but the real etcd client is never imported: the
// wire format underneath is this package's own request/response
// structs, framed over a transport/stream connection to an in-process
// server holding a single-key/single-lease store per election name.
package etcdsim

import "errors"

// ErrUnavailable is returned when dialing the election server fails —
// the destination is unreachable, clogged, or dropped by the loss
// roll.
var ErrUnavailable = errors.New("etcdsim: server unavailable")

// LeaderKey identifies one campaign's claim on an election's
// leadership: the monotonically increasing revision at which it was
// created, and the lease it's tied to.
type LeaderKey struct {
	Name string
	Key  string
	Rev  int64
	Lease int64
}

// KeyValue is the leader key/value pair reported by Observe.
type KeyValue struct {
	Key   string
	Value []byte
}

// ResponseHeader carries the revision the response was computed at.
type ResponseHeader struct {
	Rev int64
}

// GetResponse is what Observe streams to its caller each time the
// elected leader changes.
type GetResponse struct {
	Header ResponseHeader
	Kv     KeyValue
}

// CampaignResponse is returned once a campaign acquires leadership.
type CampaignResponse struct {
	Header ResponseHeader
	Leader LeaderKey
}

type campaignRequest struct {
	Name  string
	Value []byte
	Lease int64
}

type campaignResponse struct {
	Leader LeaderKey
}

type proclaimRequest struct {
	Leader LeaderKey
	Value  []byte
}

type proclaimResponse struct {
	Err string
}

type resignRequest struct {
	Leader LeaderKey
}

type resignResponse struct{}

type observeRequest struct {
	Name string
}
