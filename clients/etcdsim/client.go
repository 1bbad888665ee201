package etcdsim

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/chaoslab/dsim/internal/simnet"
	"github.com/chaoslab/dsim/internal/simtask"
	"github.com/chaoslab/dsim/transport/stream"
)

// Election is a client handle for one named election, bound to a
// single node's simulated network identity. Its method set mirrors
// concurrency.Election's public surface.
type Election struct {
	network    *simnet.Network
	executor   *simtask.Executor
	node       simnet.NodeID
	local      simnet.SocketAddr
	serverAddr simnet.SocketAddr
	name       string
}

// NewElection creates a client for the election named name, dialing
// serverAddr from (node, local) on every call.
func NewElection(network *simnet.Network, executor *simtask.Executor, node simnet.NodeID, local, serverAddr simnet.SocketAddr, name string) *Election {
	return &Election{network: network, executor: executor, node: node, local: local, serverAddr: serverAddr, name: name}
}

func (el *Election) dial() (*stream.Conn, error) {
	conn, ok := stream.Dial(el.network, el.executor, el.node, el.local, el.serverAddr)
	if !ok {
		return nil, ErrUnavailable
	}
	return conn, nil
}

// Campaign puts value up for election and blocks until it is elected
// leader — immediately if no one currently holds leadership, or after
// every earlier campaigner on this name has resigned.
func (el *Election) Campaign(ctx context.Context, value []byte, lease int64) (*CampaignResponse, error) {
	conn, err := el.dial()
	if err != nil {
		return nil, err
	}
	if err := conn.Send(ctx, campaignRequest{Name: el.name, Value: value, Lease: lease}); err != nil {
		return nil, err
	}
	resp, err := conn.Recv(ctx)
	if err != nil {
		return nil, err
	}
	r := resp.(campaignResponse)
	return &CampaignResponse{Header: ResponseHeader{Rev: r.Leader.Rev}, Leader: r.Leader}, nil
}

// Proclaim updates value on an already-held leader key without
// triggering a new election round.
func (el *Election) Proclaim(ctx context.Context, leader LeaderKey, value []byte) error {
	conn, err := el.dial()
	if err != nil {
		return err
	}
	if err := conn.Send(ctx, proclaimRequest{Leader: leader, Value: value}); err != nil {
		return err
	}
	resp, err := conn.Recv(ctx)
	if err != nil {
		return err
	}
	r := resp.(proclaimResponse)
	if r.Err != "" {
		return errString(r.Err)
	}
	return nil
}

// Resign releases leader, promoting the next queued campaigner (if
// any) on the same election name.
func (el *Election) Resign(ctx context.Context, leader LeaderKey) error {
	conn, err := el.dial()
	if err != nil {
		return err
	}
	if err := conn.Send(ctx, resignRequest{Leader: leader}); err != nil {
		return err
	}
	_, err = conn.Recv(ctx)
	return err
}

// Observe returns a channel that receives the current leader every
// time leadership changes. The channel is closed when ctx is done or
// the connection drops.
func (el *Election) Observe(ctx context.Context) (<-chan GetResponse, error) {
	conn, err := el.dial()
	if err != nil {
		return nil, err
	}
	if err := conn.Send(ctx, observeRequest{Name: el.name}); err != nil {
		return nil, err
	}
	out := make(chan GetResponse, 8)
	go func() {
		defer close(out)
		for {
			v, err := conn.Recv(ctx)
			if err != nil {
				return
			}
			resp, ok := v.(GetResponse)
			if !ok {
				return
			}
			select {
			case out <- resp:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// CampaignMany runs Campaign concurrently across elections, the shape
// a node holding leadership responsibilities for several independent
// resource prefixes at once needs: each campaign blocks independently,
// and CampaignMany returns once every one of them has won its own
// election, or the first error/cancellation aborts the rest via the
// shared errgroup context.
func CampaignMany(ctx context.Context, elections []*Election, value []byte, lease int64) ([]*CampaignResponse, error) {
	responses := make([]*CampaignResponse, len(elections))
	g, gctx := errgroup.WithContext(ctx)
	for i, el := range elections {
		g.Go(func() error {
			resp, err := el.Campaign(gctx, value, lease)
			if err != nil {
				return err
			}
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return responses, nil
}

type errString string

func (e errString) Error() string { return string(e) }
