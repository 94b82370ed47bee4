package metrics

import (
	"context"
	"fmt"
	"time"

	rabbithole "github.com/michaelklishin/rabbit-hole/v2"

	"github.com/guimove/rmqscaler/internal/model"
)

// ManagementSource reads broker load from the RabbitMQ management HTTP API
// (/api/overview and /api/queues).
type ManagementSource struct {
	client   *rabbithole.Client
	endpoint string
	timeout  time.Duration
}

// ManagementOption configures a ManagementSource.
type ManagementOption func(*ManagementSource)

// WithManagementTimeout sets the per-request HTTP timeout.
func WithManagementTimeout(d time.Duration) ManagementOption {
	return func(s *ManagementSource) { s.timeout = d }
}

// NewManagementSource creates a source for the management API at endpoint.
func NewManagementSource(endpoint, username, password string, opts ...ManagementOption) (*ManagementSource, error) {
	client, err := rabbithole.NewClient(endpoint, username, password)
	if err != nil {
		return nil, fmt.Errorf("creating rabbitmq management client: %w", err)
	}

	s := &ManagementSource{
		client:   client,
		endpoint: endpoint,
		timeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	client.SetTimeout(s.timeout)

	return s, nil
}

// Ping checks that the management API answers.
func (s *ManagementSource) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.client.Overview(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBrokerUnreachable, s.endpoint, err)
	}
	return nil
}

func (s *ManagementSource) BackendType() string {
	return "management"
}

// Fetch reads totals and rates from the overview and computes the deepest
// queue from the queue listing. An empty queue list means depth zero.
func (s *ManagementSource) Fetch(ctx context.Context) (model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.Snapshot{}, err
	}

	overview, err := s.client.Overview()
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: overview: %v", ErrBrokerUnreachable, err)
	}

	queues, err := s.client.ListQueues()
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: queues: %v", ErrBrokerUnreachable, err)
	}

	var maxDepth float64
	for _, q := range queues {
		if d := float64(q.Messages); d > maxDepth {
			maxDepth = d
		}
	}

	return model.NewSnapshot(
		float64(overview.QueueTotals.Messages),
		maxDepth,
		float64(overview.MessageStats.PublishDetails.Rate),
		float64(overview.MessageStats.DeliverGetDetails.Rate),
	), nil
}
