package metrics

import (
	"context"
	"errors"

	"github.com/guimove/rmqscaler/internal/model"
)

var (
	ErrBrokerUnreachable = errors.New("rabbitmq metrics endpoint unreachable")
	ErrNoMetricsFound    = errors.New("no broker metrics found")
)

// Source abstracts where broker load figures come from.
type Source interface {
	// Fetch returns the current broker load. Errors are transient; the
	// caller skips the tick and tries again on the next one.
	Fetch(ctx context.Context) (model.Snapshot, error)

	// Ping validates connectivity to the metrics backend.
	Ping(ctx context.Context) error

	// BackendType returns the backend name (management, prometheus, static).
	BackendType() string
}
